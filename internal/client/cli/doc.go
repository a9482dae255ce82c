// Package cli provides the interactive GophChat command-line client.
//
// It wires configuration, local storage, the relay API client and the chat
// session, and runs an interactive REPL (or the terminal UI) on top of them.
// Typical flow: reuse stored credentials or prompt for them, connect the live
// channel, start a background connectivity watcher and execute user commands.
//
// Key features:
//   - Register / Login / Logout
//   - Send messages, with optimistic display until the relay echoes them
//   - Page through older history and clear it
//   - Connect / Disconnect the live channel
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
