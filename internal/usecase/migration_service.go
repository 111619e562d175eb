package usecase

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"credential-service/internal/domain"

	"gorm.io/gorm"
)

// MigrationRepository はマイグレーション履歴を管理するリポジトリのインターフェース。
type MigrationRepository interface {
	EnsureTable(ctx context.Context) error
	FindAllApplied(ctx context.Context) ([]*domain.Migration, error)
	RecordMigration(ctx context.Context, tx *gorm.DB, version string) error
}

// MigrationService はマイグレーション実行のビジネスロジックを提供する。
type MigrationService struct {
	repo MigrationRepository
	db   *gorm.DB
	fsys fs.FS
}

// NewMigrationService は新しいMigrationServiceを生成する。
// fsys には同梱の migrations.FS か、os.DirFS で開いたディレクトリを渡す。
func NewMigrationService(repo MigrationRepository, db *gorm.DB, fsys fs.FS) *MigrationService {
	return &MigrationService{
		repo: repo,
		db:   db,
		fsys: fsys,
	}
}

// ApplyMigrations は未適用マイグレーションをバージョン順に実行し、適用件数を返す。
func (s *MigrationService) ApplyMigrations(ctx context.Context) (int, error) {
	migrations, err := s.GetMigrationStatus(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		if m.IsApplied() {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			slog.ErrorContext(ctx, "failed to apply migration",
				"operation", "apply_migrations",
				"version", m.Version,
				"error", err,
			)
			return applied, fmt.Errorf("%w: version %s: %v", domain.ErrMigrationFailed, m.Version, err)
		}
		slog.InfoContext(ctx, "migration applied", "version", m.Version, "name", m.Name)
		applied++
	}
	return applied, nil
}

// GetMigrationStatus は同梱ファイルと適用履歴を突き合わせた一覧を返す。
func (s *MigrationService) GetMigrationStatus(ctx context.Context) ([]*domain.Migration, error) {
	if err := s.repo.EnsureTable(ctx); err != nil {
		return nil, fmt.Errorf("preparing schema_migrations: %w", err)
	}

	migrations, err := s.scanMigrationFiles()
	if err != nil {
		return nil, err
	}

	applied, err := s.repo.FindAllApplied(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching applied migrations: %w", err)
	}
	appliedAt := make(map[string]*domain.Migration, len(applied))
	for _, m := range applied {
		appliedAt[m.Version] = m
	}

	for _, m := range migrations {
		if a, ok := appliedAt[m.Version]; ok {
			m.Status = domain.MigrationStatusApplied
			m.AppliedAt = a.AppliedAt
		}
	}
	return migrations, nil
}

func (s *MigrationService) scanMigrationFiles() ([]*domain.Migration, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	var migrations []*domain.Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, name, err := parseMigrationFileName(entry.Name())
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, &domain.Migration{
			Version:  version,
			Name:     name,
			FilePath: entry.Name(),
			Status:   domain.MigrationStatusPending,
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// parseMigrationFileName は {version}_{name}.sql からバージョンと名前を取り出す。
func parseMigrationFileName(filename string) (version, name string, err error) {
	version, name, ok := strings.Cut(strings.TrimSuffix(filename, ".sql"), "_")
	if !ok || version == "" || name == "" {
		return "", "", fmt.Errorf("%w: %s (expected format: {version}_{name}.sql)", domain.ErrInvalidMigrationFile, filename)
	}
	return version, name, nil
}

func (s *MigrationService) applyMigration(ctx context.Context, m *domain.Migration) error {
	sqlBytes, err := fs.ReadFile(s.fsys, m.FilePath)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrMigrationFileNotFound, m.FilePath)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(string(sqlBytes)).Error; err != nil {
			return fmt.Errorf("executing %s: %w", m.FilePath, err)
		}
		return s.repo.RecordMigration(ctx, tx, m.Version)
	})
}
