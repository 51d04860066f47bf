// Package services talks to the Transmission daemon's RPC endpoint.
//
// # RPC Client
//
// [RPCClient] posts JSON requests of the form {"method", "arguments", "tag"} to the daemon with
// HTTP basic auth and the cached X-Transmission-Session-Id header. The daemon answers 409 with a
// replacement id whenever the cached one is stale. The client stores the replacement and re-issues
// the call exactly once; concurrent calls that see the same stale id share a single refresh.
//
// The session id is a process-wide cache shared by every user session, while credentials are
// supplied per call.
//
// # Torrent Service
//
// [TorrentService] implements [Torrents] on top of the client and is the only caller of
// [RPCClient.Call]. It maps daemon objects onto [models.Torrent].
//
// # Error Handling
//
// Calls fail with typed errors from the shared package:
//   - [shared.ErrAuthRejected] : 401 or 403 (403 is also [shared.ErrUpstreamForbidden])
//   - [shared.ErrUpstreamUnreachable] : transport failure or timeout
//   - [shared.ErrUpstreamProtocol] : unexpected status, bad JSON, result other than "success",
//     or a second 409 after a refresh
//   - [shared.ErrTorrentNotFound] : details requested for a hash the daemon doesn't know
package services
