// Package db holds the SQL schema applied by goose.
package db

import "embed"

// Migrations contains the goose migrations under "migrations".
//
//go:embed migrations/*.sql
var Migrations embed.FS
