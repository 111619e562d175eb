// Package migrations はバイナリに同梱するスキーマ定義を提供する。
package migrations

import "embed"

// FS は {version}_{name}.sql 形式のマイグレーションファイル群。
//
//go:embed *.sql
var FS embed.FS
