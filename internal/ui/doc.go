// Package ui implements the terminal torrent watcher using bubbletea's Elm architecture.
//
// The watcher runs the same [tasks.PushEngine] as the web streams: a list view renders the
// torrent list as JSON, the engine pushes an event only when that rendering changes, and the
// [Model] decodes each update into a bubbles list.
//
// Two views are available:
//  1. [ListView] : Browse and filter the daemon's torrents
//  2. [DetailView] : Inspect the selected torrent
//
// Actions (start/pause, verify) call the daemon directly and wake the engine so the result shows
// before the next poll. Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with
// contextual help displayed via charmbracelet/bubbles/help.
package ui
