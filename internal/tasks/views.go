package tasks

import (
	"context"

	"github.com/desertthunder/transportal/internal/models"
	"github.com/desertthunder/transportal/internal/services"
)

// CredentialsFunc returns the credentials for one poll.
type CredentialsFunc func() (services.Credentials, error)

// ListView renders the query's torrent list on every poll.
func ListView(svc services.Torrents, creds CredentialsFunc, q models.Query, render func([]models.Torrent) ([]byte, error)) ViewFunc {
	return func(ctx context.Context) ([]byte, error) {
		c, err := creds()
		if err != nil {
			return nil, err
		}
		torrents, err := svc.List(ctx, c, q)
		if err != nil {
			return nil, err
		}
		return render(torrents)
	}
}

// DetailView renders one torrent on every poll.
func DetailView(svc services.Torrents, creds CredentialsFunc, hash string, render func(*models.Torrent) ([]byte, error)) ViewFunc {
	return func(ctx context.Context) ([]byte, error) {
		c, err := creds()
		if err != nil {
			return nil, err
		}
		torrent, err := svc.Details(ctx, c, hash)
		if err != nil {
			return nil, err
		}
		return render(torrent)
	}
}
