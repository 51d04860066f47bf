// Package tasks runs the per-connection push loop that keeps a browser in sync with the daemon.
//
// # Push Engine
//
// [PushEngine.Run] polls a [ViewFunc] at a fixed cadence and emits [Event] values:
//
//  1. update : the rendered view differs from the last one sent on this connection
//  2. error : a transient upstream failure; the loop keeps polling
//  3. removed : the watched torrent disappeared (emitted once per disappearance)
//
// The first poll happens immediately. Afterwards the loop sleeps for the interval or until the
// session's change notifier fires, whichever comes first. Polls never overlap, so events leave in
// poll order.
//
// Rejected credentials end the loop after a final error event. Cancelling the context ends it
// silently; nothing is sent after cancellation.
//
// # Snapshots
//
// A [Snapshot] keeps the blake3 fingerprint of the last view sent, so identical polls produce no
// traffic.
//
// # Views
//
// [ListView] and [DetailView] adapt [services.Torrents] lookups and a renderer into a [ViewFunc].
package tasks
