package domain

import "time"

// MigrationStatus はマイグレーションの適用状態を表す
type MigrationStatus string

const (
	MigrationStatusPending MigrationStatus = "pending"
	MigrationStatusApplied MigrationStatus = "applied"
)

// Migration は credentials スキーマへのマイグレーション1件を表す
type Migration struct {
	Version   string     // ファイル名先頭の番号（例: "001"）
	Name      string     // 番号以降のファイル名
	AppliedAt *time.Time // 未適用の場合はnil
	FilePath  string
	Status    MigrationStatus
}

// IsApplied は適用済みかどうかを返す
func (m *Migration) IsApplied() bool {
	return m.Status == MigrationStatusApplied
}
