// Package migrations holds the versioned Postgres schema, embedded into the
// server binary.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
