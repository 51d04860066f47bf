// Torrent operations implementation of [Torrents]
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/transportal/internal/models"
	"github.com/desertthunder/transportal/internal/shared"
)

// MagnetPrefix is the only form of magnet link the daemon is asked to add.
const MagnetPrefix = "magnet:?xt=urn:btih:"

// TorrentService implements [Torrents] over an [RPCClient].
type TorrentService struct {
	rpc *RPCClient
}

// NewTorrentService creates a torrent service backed by rpc.
func NewTorrentService(rpc *RPCClient) *TorrentService {
	return &TorrentService{rpc: rpc}
}

// Version calls session-get for the daemon version.
func (s *TorrentService) Version(ctx context.Context, creds Credentials) (string, error) {
	var result sessionGetResult
	args := sessionGetArgs{Fields: []string{"version", "rpc-version"}}
	if err := s.rpc.Call(ctx, creds, methodSessionGet, args, &result); err != nil {
		return "", err
	}
	return result.Version, nil
}

// List calls torrent-get for every torrent and applies q.
func (s *TorrentService) List(ctx context.Context, creds Credentials, q models.Query) ([]models.Torrent, error) {
	var result torrentGetResult
	args := torrentGetArgs{Format: "objects", Fields: torrentFields}
	if err := s.rpc.Call(ctx, creds, methodTorrentGet, args, &result); err != nil {
		return nil, err
	}
	return q.Apply(result.Torrents), nil
}

// Details calls torrent-get for one hash.
//
// Returns [shared.ErrTorrentNotFound] when the daemon returns no object for it.
func (s *TorrentService) Details(ctx context.Context, creds Credentials, hash string) (*models.Torrent, error) {
	if err := ValidateHash(hash); err != nil {
		return nil, err
	}

	var result torrentGetResult
	args := torrentGetArgs{Format: "objects", Fields: torrentFields, IDs: []string{hash}}
	if err := s.rpc.Call(ctx, creds, methodTorrentGet, args, &result); err != nil {
		return nil, err
	}

	for _, t := range result.Torrents {
		if strings.EqualFold(t.HashString, hash) {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrTorrentNotFound, hash)
}

// Start calls torrent-start.
func (s *TorrentService) Start(ctx context.Context, creds Credentials, hash string) error {
	return s.act(ctx, creds, methodTorrentStart, hash)
}

// Stop calls torrent-stop.
func (s *TorrentService) Stop(ctx context.Context, creds Credentials, hash string) error {
	return s.act(ctx, creds, methodTorrentStop, hash)
}

// Verify calls torrent-verify.
func (s *TorrentService) Verify(ctx context.Context, creds Credentials, hash string) error {
	return s.act(ctx, creds, methodTorrentVerify, hash)
}

func (s *TorrentService) act(ctx context.Context, creds Credentials, method, hash string) error {
	if err := ValidateHash(hash); err != nil {
		return err
	}
	return s.rpc.Call(ctx, creds, method, torrentIDsArgs{IDs: []string{hash}}, nil)
}

// Add calls torrent-add with the magnet link as filename.
//
// The daemon answers with either torrent-added or torrent-duplicate; both are success.
func (s *TorrentService) Add(ctx context.Context, creds Credentials, magnet string, paused bool) (*models.TorrentAdded, error) {
	if !strings.HasPrefix(magnet, MagnetPrefix) {
		return nil, fmt.Errorf("%w: magnet link must start with %s", shared.ErrInvalidInput, MagnetPrefix)
	}

	var result torrentAddResult
	if err := s.rpc.Call(ctx, creds, methodTorrentAdd, torrentAddArgs{Filename: magnet, Paused: paused}, &result); err != nil {
		return nil, err
	}

	switch {
	case result.Added != nil:
		return result.Added, nil
	case result.Duplicate != nil:
		result.Duplicate.Duplicate = true
		return result.Duplicate, nil
	default:
		return nil, fmt.Errorf("%w: %s: no torrent in response", shared.ErrUpstreamProtocol, methodTorrentAdd)
	}
}

// ValidateHash accepts 40 (v1) or 64 (v2) hex character info hashes.
func ValidateHash(hash string) error {
	if len(hash) != 40 && len(hash) != 64 {
		return fmt.Errorf("%w: torrent hash %q", shared.ErrInvalidInput, hash)
	}
	for _, r := range hash {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return fmt.Errorf("%w: torrent hash %q", shared.ErrInvalidInput, hash)
		}
	}
	return nil
}
