// Package server provides HTTP routing, middleware, and the session-aware handlers in front of the
// Transmission RPC API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with "METHOD /path" patterns.
//
// # Handler Interface
//
// Handlers implement the [Handler] interface and return their [Route] list, so each group of
// endpoints (auth, torrents, streams) keeps its route definitions and per-route middleware together.
//
// # Proxy
//
// [Proxy] wires the session registry, the torrent service and the renderer into the routes:
//
//	GET  /login, POST /login, POST /logout
//	GET  /, /torrent/{hash}, /stub/torrents, /stub/torrent?hash=
//	GET  /add-torrent, POST /add-torrent, /start-torrent, /pause-torrent, /verify-torrent
//	GET  /sse/torrents, /sse/torrent?hash=, /ws/torrents
//
// Everything but login and logout sits behind [RequireSession]. Login verifies credentials against
// the daemon before a session exists; any later credential rejection destroys the session.
//
// # Streams
//
// Each stream connection runs one [tasks.PushEngine] under an errgroup. The handler returns only
// after the loop has stopped, whether the client left, the session was destroyed or the daemon
// rejected the credentials.
package server
