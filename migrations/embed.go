// Package migrations embeds the SQL schema migrations that the server
// applies at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
