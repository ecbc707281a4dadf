// Package cli provides the interactive Waffle client.
//
// It wires configuration, the local credential cache, the group store and
// an interactive REPL. Typical flow: unlock the group with the passphrase
// (or a remembered one), pick a display name once, then read the feed and
// check in for the week.
//
// Key features:
//   - Passphrase gate with a remembered passphrase
//   - Feed of this week and last week, locked until the user posts
//   - Text and voice check-ins, one per week
//   - Saving voice notes to files
//   - Manual and scheduled cleanup of expired weeks
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
