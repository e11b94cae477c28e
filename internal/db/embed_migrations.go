package db

import "embed"

// MigrationFS embeds the events, devices and settings schema from internal/db/migrations.
// Applied by cmd/migrate and, when MIGRATE_ON_START is set, by cmd/server.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
