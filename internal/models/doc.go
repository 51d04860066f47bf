// Package models defines the data carried between the Transmission RPC client, the push engine and
// the HTTP boundary.
//
// The package contains three groups of types:
//
// 1. Upstream DTOs: typed views over Transmission RPC objects
//   - [Torrent] : one torrent-get object with the fields the views render
//   - [TorrentStatus] : Transmission's numeric status code
//   - [TorrentAdded] : the torrent-add result (added or duplicate)
//
// 2. Stream parameters
//   - [Query] : filter text, sort key and direction parsed once when a stream opens
//
// 3. Persistent entities
//   - [AuditEntry] : one user action recorded by the audit repository
package models
