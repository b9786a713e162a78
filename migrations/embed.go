// Package migrations embeds the versioned SQL schema files.
//
// Files follow the NNNNNN_name.up.sql / NNNNNN_name.down.sql convention.
package migrations

import "embed"

// FS holds every migration file in this directory.
//
//go:embed *.sql
var FS embed.FS
