// Package migrations embeds the schema of the local credential cache.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
