// Package migrations содержит SQL-миграции схемы базы данных
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
