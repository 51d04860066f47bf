// package services defines the [Torrents] interface over the Transmission RPC API
package services

import (
	"context"

	"github.com/desertthunder/transportal/internal/models"
)

// Torrents defines the daemon operations the proxy performs on a user's behalf.
type Torrents interface {
	// Version probes the daemon with the given credentials and returns its version string.
	// Used to verify credentials before a session is created.
	Version(ctx context.Context, creds Credentials) (string, error)

	// List retrieves every torrent, filtered and ordered by the query.
	List(ctx context.Context, creds Credentials, q models.Query) ([]models.Torrent, error)

	// Details retrieves one torrent by hash.
	Details(ctx context.Context, creds Credentials, hash string) (*models.Torrent, error)

	// Start, Stop and Verify act on one torrent by hash.
	Start(ctx context.Context, creds Credentials, hash string) error
	Stop(ctx context.Context, creds Credentials, hash string) error
	Verify(ctx context.Context, creds Credentials, hash string) error

	// Add submits a magnet link, optionally paused.
	Add(ctx context.Context, creds Credentials, magnet string, paused bool) (*models.TorrentAdded, error)
}

// Credentials are the basic auth pair forwarded to the daemon.
type Credentials struct {
	Username string
	Password string
}

// String keeps passwords out of logs.
func (c Credentials) String() string {
	return c.Username + ":****"
}
