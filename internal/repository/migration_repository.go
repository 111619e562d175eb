package repository

import (
	"context"
	"log/slog"
	"time"

	"credential-service/internal/domain"

	"gorm.io/gorm"
)

// SchemaMigrationModel はschema_migrationsテーブルのモデル。
type SchemaMigrationModel struct {
	Version   string    `gorm:"column:version;primaryKey;type:varchar(14)"`
	AppliedAt time.Time `gorm:"column:applied_at;not null;autoCreateTime"`
}

// TableName はテーブル名を指定。
func (SchemaMigrationModel) TableName() string {
	return "schema_migrations"
}

// MigrationRepository はマイグレーション履歴を管理するリポジトリ。
type MigrationRepository struct {
	db *gorm.DB
}

// NewMigrationRepository は新しいMigrationRepositoryを生成する。
func NewMigrationRepository(db *gorm.DB) *MigrationRepository {
	return &MigrationRepository{db: db}
}

// EnsureTable は履歴テーブルが無ければ作成する。
func (r *MigrationRepository) EnsureTable(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&SchemaMigrationModel{}); err != nil {
		slog.ErrorContext(ctx, "failed to ensure schema_migrations table",
			"operation", "ensure_table",
			"error", err,
		)
		return err
	}
	return nil
}

// FindAllApplied は適用済みマイグレーションをバージョン順に取得する。
func (r *MigrationRepository) FindAllApplied(ctx context.Context) ([]*domain.Migration, error) {
	var models []SchemaMigrationModel
	if err := r.db.WithContext(ctx).Order("version ASC").Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to find applied migrations",
			"operation", "find_all_applied",
			"error", err,
		)
		return nil, err
	}

	migrations := make([]*domain.Migration, len(models))
	for i := range models {
		appliedAt := models[i].AppliedAt
		migrations[i] = &domain.Migration{
			Version:   models[i].Version,
			AppliedAt: &appliedAt,
			Status:    domain.MigrationStatusApplied,
		}
	}
	return migrations, nil
}

// RecordMigration は tx 上で適用履歴を記録する。SQL 本体と同じトランザクションで呼ぶ。
func (r *MigrationRepository) RecordMigration(ctx context.Context, tx *gorm.DB, version string) error {
	if err := tx.WithContext(ctx).Create(&SchemaMigrationModel{Version: version}).Error; err != nil {
		slog.ErrorContext(ctx, "failed to record migration",
			"operation", "record_migration",
			"version", version,
			"error", err,
		)
		return err
	}
	return nil
}
