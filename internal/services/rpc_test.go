package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/transportal/internal/shared"
	th "github.com/desertthunder/transportal/internal/testing"
)

var testCreds = Credentials{Username: "admin", Password: "hunter2"}

func TestRPCClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Call", func(t *testing.T) {
		t.Run("performs the session id handshake", func(t *testing.T) {
			fake := th.NewFakeTransmission(t, testCreds.Username, testCreds.Password)
			client := NewRPCClient(fake.URL(), nil, nil)

			var result sessionGetResult
			if err := client.Call(ctx, testCreds, methodSessionGet, sessionGetArgs{Fields: []string{"version"}}, &result); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if result.Version != fake.Version {
				t.Errorf("expected version %q, got %q", fake.Version, result.Version)
			}
			if client.Token() != fake.Token() {
				t.Errorf("expected cached token %q, got %q", fake.Token(), client.Token())
			}
			if fake.Requests() != 2 {
				t.Errorf("expected 2 requests (409 then retry), got %d", fake.Requests())
			}
		})

		t.Run("reuses the cached session id", func(t *testing.T) {
			fake := th.NewFakeTransmission(t, testCreds.Username, testCreds.Password)
			client := NewRPCClient(fake.URL(), nil, nil)

			for range 3 {
				if err := client.Call(ctx, testCreds, methodSessionGet, nil, nil); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
			}

			if fake.Requests() != 4 {
				t.Errorf("expected 4 requests, got %d", fake.Requests())
			}
		})

		t.Run("recovers when the daemon rotates its session id", func(t *testing.T) {
			fake := th.NewFakeTransmission(t, testCreds.Username, testCreds.Password)
			client := NewRPCClient(fake.URL(), nil, nil)

			if err := client.Call(ctx, testCreds, methodSessionGet, nil, nil); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			old := client.Token()
			fake.RotateToken()

			if err := client.Call(ctx, testCreds, methodSessionGet, nil, nil); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if client.Token() == old {
				t.Error("expected token to be refreshed")
			}
		})

		t.Run("retries exactly once", func(t *testing.T) {
			var hits atomic.Int64
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := hits.Add(1)
				w.Header().Set(SessionIDHeader, fmt.Sprintf("token-%d", n))
				w.WriteHeader(http.StatusConflict)
			}))
			defer server.Close()

			client := NewRPCClient(server.URL, nil, nil)
			err := client.Call(ctx, testCreds, methodSessionGet, nil, nil)

			if !errors.Is(err, shared.ErrUpstreamProtocol) {
				t.Fatalf("expected ErrUpstreamProtocol, got %v", err)
			}
			if errors.Is(err, shared.ErrStaleAuthorization) {
				t.Error("stale authorization must not escape the client")
			}
			if hits.Load() != 2 {
				t.Errorf("expected 2 requests, got %d", hits.Load())
			}
		})

		t.Run("rejects 409 without replacement id", func(t *testing.T) {
			var hits atomic.Int64
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(http.StatusConflict)
			}))
			defer server.Close()

			err := NewRPCClient(server.URL, nil, nil).Call(ctx, testCreds, methodSessionGet, nil, nil)
			if !errors.Is(err, shared.ErrUpstreamProtocol) {
				t.Fatalf("expected ErrUpstreamProtocol, got %v", err)
			}
			if hits.Load() != 1 {
				t.Errorf("expected 1 request, got %d", hits.Load())
			}
		})

		t.Run("updates the cache from any response header", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set(SessionIDHeader, "rotated")
				io.WriteString(w, `{"result":"success","arguments":{}}`)
			}))
			defer server.Close()

			client := NewRPCClient(server.URL, nil, nil)
			if err := client.Call(ctx, testCreds, methodSessionGet, nil, nil); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if client.Token() != "rotated" {
				t.Errorf("expected token 'rotated', got %q", client.Token())
			}
		})

		t.Run("coalesces concurrent refreshes", func(t *testing.T) {
			const workers = 20
			var stale atomic.Int64
			release := make(chan struct{})
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get(SessionIDHeader) != "fresh" {
					if stale.Add(1) == workers {
						close(release)
					}
					select {
					case <-release:
					case <-time.After(5 * time.Second):
					}
					w.Header().Set(SessionIDHeader, "fresh")
					w.WriteHeader(http.StatusConflict)
					return
				}
				io.WriteString(w, `{"result":"success","arguments":{}}`)
			}))
			defer server.Close()

			logs := &bytes.Buffer{}
			logger := shared.NewLogger(logs)
			shared.SetLogLevel(logger, log.DebugLevel)
			client := NewRPCClient(server.URL, nil, logger)

			var wg sync.WaitGroup
			errs := make(chan error, workers)
			for range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- client.Call(ctx, testCreds, methodSessionGet, nil, nil)
				}()
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
			}
			if stale.Load() != workers {
				t.Fatalf("expected every caller to hit the stale id, got %d", stale.Load())
			}
			if client.Token() != "fresh" {
				t.Errorf("expected token 'fresh', got %q", client.Token())
			}
			if n := strings.Count(logs.String(), "rpc session id refreshed"); n != 1 {
				t.Errorf("expected exactly one refresh, got %d", n)
			}
		})

		t.Run("response ids do not wait on an in-flight refresh", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set(SessionIDHeader, "newer")
				io.WriteString(w, `{"result":"success","arguments":{}}`)
			}))
			defer server.Close()

			client := NewRPCClient(server.URL, nil, nil)
			client.token = "old"

			held, release := make(chan struct{}), make(chan struct{})
			go client.refresh.Do("old", func() (any, error) {
				close(held)
				<-release
				return "old", nil
			})
			<-held
			defer close(release)

			done := make(chan error, 1)
			go func() { done <- client.Call(ctx, testCreds, methodSessionGet, nil, nil) }()

			select {
			case err := <-done:
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("call blocked behind the refresh group")
			}
			if client.Token() != "newer" {
				t.Errorf("expected token 'newer', got %q", client.Token())
			}
		})
	})

	t.Run("Errors", func(t *testing.T) {
		statusServer := func(status int, body string) *httptest.Server {
			return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				io.WriteString(w, body)
			}))
		}

		t.Run("401 rejects credentials", func(t *testing.T) {
			server := statusServer(http.StatusUnauthorized, "")
			defer server.Close()

			err := NewRPCClient(server.URL, nil, nil).Call(ctx, testCreds, methodSessionGet, nil, nil)
			if !errors.Is(err, shared.ErrAuthRejected) {
				t.Errorf("expected ErrAuthRejected, got %v", err)
			}
			if errors.Is(err, shared.ErrUpstreamForbidden) {
				t.Error("401 must not be reported as forbidden")
			}
		})

		t.Run("403 rejects credentials and is forbidden", func(t *testing.T) {
			server := statusServer(http.StatusForbidden, "")
			defer server.Close()

			err := NewRPCClient(server.URL, nil, nil).Call(ctx, testCreds, methodSessionGet, nil, nil)
			if !errors.Is(err, shared.ErrAuthRejected) || !errors.Is(err, shared.ErrUpstreamForbidden) {
				t.Errorf("expected ErrAuthRejected and ErrUpstreamForbidden, got %v", err)
			}
		})

		t.Run("wrong credentials against the daemon", func(t *testing.T) {
			fake := th.NewFakeTransmission(t, testCreds.Username, testCreds.Password)
			err := NewRPCClient(fake.URL(), nil, nil).Call(ctx, Credentials{Username: "admin", Password: "nope"}, methodSessionGet, nil, nil)
			if !errors.Is(err, shared.ErrAuthRejected) {
				t.Errorf("expected ErrAuthRejected, got %v", err)
			}
		})

		t.Run("other statuses are protocol errors", func(t *testing.T) {
			server := statusServer(http.StatusInternalServerError, "boom")
			defer server.Close()

			err := NewRPCClient(server.URL, nil, nil).Call(ctx, testCreds, methodSessionGet, nil, nil)
			if !errors.Is(err, shared.ErrUpstreamProtocol) {
				t.Errorf("expected ErrUpstreamProtocol, got %v", err)
			}
			if !strings.Contains(err.Error(), "boom") {
				t.Errorf("expected body snippet in error, got %v", err)
			}
		})

		t.Run("unsuccessful result is a protocol error", func(t *testing.T) {
			server := statusServer(http.StatusOK, `{"result":"method name not recognized"}`)
			defer server.Close()

			err := NewRPCClient(server.URL, nil, nil).Call(ctx, testCreds, "bogus", nil, nil)
			if !errors.Is(err, shared.ErrUpstreamProtocol) {
				t.Errorf("expected ErrUpstreamProtocol, got %v", err)
			}
		})

		t.Run("invalid JSON is a protocol error", func(t *testing.T) {
			server := statusServer(http.StatusOK, `{not json`)
			defer server.Close()

			err := NewRPCClient(server.URL, nil, nil).Call(ctx, testCreds, methodSessionGet, nil, nil)
			if !errors.Is(err, shared.ErrUpstreamProtocol) {
				t.Errorf("expected ErrUpstreamProtocol, got %v", err)
			}
		})

		t.Run("unreadable body is a protocol error", func(t *testing.T) {
			resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: &th.FCloser{}}
			client := NewRPCClient("http://daemon.invalid/rpc", &http.Client{Transport: th.NewMockRoundTripper(resp, nil)}, nil)

			err := client.Call(ctx, testCreds, methodSessionGet, nil, nil)
			if !errors.Is(err, shared.ErrUpstreamProtocol) {
				t.Errorf("expected ErrUpstreamProtocol, got %v", err)
			}
		})

		t.Run("transport failure is unreachable", func(t *testing.T) {
			client := NewRPCClient("http://daemon.invalid/rpc", &http.Client{Transport: th.NewMockRoundTripper(nil, errors.New("connection refused"))}, nil)

			err := client.Call(ctx, testCreds, methodSessionGet, nil, nil)
			if !errors.Is(err, shared.ErrUpstreamUnreachable) {
				t.Errorf("expected ErrUpstreamUnreachable, got %v", err)
			}
			if !shared.IsTransient(err) {
				t.Error("expected unreachable to be transient")
			}
		})

		t.Run("closed server is unreachable", func(t *testing.T) {
			server := statusServer(http.StatusOK, "")
			server.Close()

			err := NewRPCClient(server.URL, nil, nil).Call(ctx, testCreds, methodSessionGet, nil, nil)
			if !errors.Is(err, shared.ErrUpstreamUnreachable) {
				t.Errorf("expected ErrUpstreamUnreachable, got %v", err)
			}
		})

		t.Run("client timeout is unreachable", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			}))
			defer server.Close()

			client := NewRPCClient(server.URL, &http.Client{Timeout: 50 * time.Millisecond}, nil)
			err := client.Call(ctx, testCreds, methodSessionGet, nil, nil)
			if !errors.Is(err, shared.ErrUpstreamUnreachable) {
				t.Errorf("expected ErrUpstreamUnreachable, got %v", err)
			}
			if errors.Is(err, shared.ErrUpstreamProtocol) {
				t.Error("timeout must not be reported as a protocol error")
			}
		})

		t.Run("cancelled context is unreachable and cancelled", func(t *testing.T) {
			server := statusServer(http.StatusOK, `{"result":"success"}`)
			defer server.Close()

			cctx, cancel := context.WithCancel(ctx)
			cancel()

			err := NewRPCClient(server.URL, nil, nil).Call(cctx, testCreds, methodSessionGet, nil, nil)
			if !errors.Is(err, shared.ErrUpstreamUnreachable) || !errors.Is(err, context.Canceled) {
				t.Errorf("expected unreachable wrapping context.Canceled, got %v", err)
			}
		})
	})
}

func TestCredentials(t *testing.T) {
	if s := testCreds.String(); strings.Contains(s, testCreds.Password) {
		t.Errorf("expected password to be masked, got %q", s)
	}
}
