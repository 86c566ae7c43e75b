// Package migrations embeds the SQL migrations applied by goose at
// startup when the Postgres account store is configured.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
