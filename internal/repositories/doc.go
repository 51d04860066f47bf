// Package repositories implements SQLite persistence for the audit log.
//
// The proxy keeps no session or torrent state on disk. The only persisted entity is
// [models.AuditEntry], written by [AuditRepository] when a database path is configured.
//
// Sequence numbers provide stable, human-readable ordering (e.g., entry #42) independent of UUIDs and
// timestamps. [NextSequence] increments a per-table counter stored in a dedicated sequence table,
// inside the caller's transaction.
package repositories
