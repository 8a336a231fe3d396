package migrations

import "embed"

// FS はスナップショット保存用のSQLiteマイグレーションです。
//
//go:embed *.sql
var FS embed.FS
