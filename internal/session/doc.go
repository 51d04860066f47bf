// Package session keeps authenticated users in process memory.
//
// A [Registry] maps 128-bit [Secret] values to [Session] records. The secret travels to the
// browser once, in the session_secret cookie, and every later request presents it back.
// Sessions are never written to disk and vanish when the process exits.
//
// Credentials are sealed with a per-process [Vault] key (NaCl secretbox) and opened only for the
// duration of an upstream call.
//
// Each session carries a change notifier: handlers call [Session.Notify] after a mutation and open
// push streams wake early through [Session.Changed].
package session
