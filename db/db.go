// Package db embeds the PostgreSQL schema
package db

import _ "embed"

// InitSQL creates every table and index the indexer writes to
//
//go:embed init_pg_db.sql
var InitSQL string
