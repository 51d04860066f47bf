package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/transportal/internal/shared"
)

// ViewFunc fetches upstream state and renders it.
type ViewFunc func(ctx context.Context) ([]byte, error)

// PushEngine polls one view for one connection.
type PushEngine struct {
	Interval time.Duration
	Fetch    ViewFunc

	// Wake, when set, returns a channel whose closing triggers an early poll.
	Wake func() <-chan struct{}

	Logger *log.Logger
}

// Run polls until ctx is cancelled or the daemon rejects the credentials, sending events to out.
//
// Returns nil on cancellation and an error wrapping [shared.ErrAuthRejected] when credentials are
// rejected.
func (e *PushEngine) Run(ctx context.Context, out chan<- Event) error {
	if e.Fetch == nil {
		return fmt.Errorf("%w: push engine requires a view", shared.ErrMissingArgument)
	}
	if e.Interval <= 0 {
		return fmt.Errorf("%w: push interval must be positive", shared.ErrInvalidArgument)
	}

	logger := e.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	var snapshot Snapshot
	removed := false
	polls := 0

	for {
		var wake <-chan struct{}
		if e.Wake != nil {
			wake = e.Wake()
		}

		rendered, err := e.Fetch(ctx)
		if ctx.Err() != nil {
			logger.Debug("push loop cancelled", "polls", polls)
			return nil
		}
		polls++

		switch {
		case err == nil:
			removed = false
			if snapshot.Update(rendered) {
				logger.Debug("view changed", "poll", polls, "bytes", len(rendered))
				if !send(ctx, out, updateEvent(rendered)) {
					return nil
				}
			}
		case errors.Is(err, shared.ErrTorrentNotFound):
			if !removed {
				removed = true
				snapshot.Reset()
				if !send(ctx, out, removedEvent()) {
					return nil
				}
			}
		case errors.Is(err, shared.ErrAuthRejected):
			logger.Warn("upstream rejected credentials, ending push loop", "poll", polls)
			send(ctx, out, errorEvent(err))
			return err
		default:
			if shared.IsTransient(err) {
				logger.Warn("poll failed", "poll", polls, "error", err)
			} else {
				logger.Error("poll failed", "poll", polls, "error", err)
			}
			if !send(ctx, out, errorEvent(err)) {
				return nil
			}
		}

		if !e.wait(ctx, wake) {
			logger.Debug("push loop cancelled", "polls", polls)
			return nil
		}
	}
}

// wait blocks for the interval, an early wake, or cancellation. It reports false on cancellation.
func (e *PushEngine) wait(ctx context.Context, wake <-chan struct{}) bool {
	timer := time.NewTimer(e.Interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-wake:
		return true
	}
}

func send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- ev:
		return true
	}
}
