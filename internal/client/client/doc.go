// Package client opens the client's local SQLite database.
//
// The database only caches what the user would otherwise retype on every
// start (the group passphrase and the chosen username). Posts are never
// stored locally; the remote store is the only copy.
//
// InitDatabase applies the embedded goose migrations and returns the wired
// repositories; RunMigrations can be used on an already opened *sql.DB.
package client
