// Package dbmigrations exposes embedded SQL migrations for riskcore binaries.
package dbmigrations

import "embed"

// Files contains the embedded SQL migrations bundled into riskcore binaries.
//
//go:embed *.sql
var Files embed.FS
