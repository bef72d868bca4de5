// Package migrations embeds the campus catalog schema so the server does not
// depend on its working directory.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
