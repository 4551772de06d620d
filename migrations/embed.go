// Package migrations embeds the client-store schema applied on open.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
