// Package db embeds the SQL schema applied on startup.
package db

import _ "embed"

// Schema holds the idempotent DDL for the sales tables; RunMigrations
// executes it verbatim.
//
//go:embed migrations/001_schema.sql
var Schema string
