package repository

import (
	"context"
	"testing"

	"gorm.io/gorm"
)

func TestMigrationRepository_RecordAndFind(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewMigrationRepository(db)

	if err := repo.EnsureTable(ctx); err != nil {
		t.Fatalf("EnsureTable failed: %v", err)
	}
	// 2回目もエラーにならない
	if err := repo.EnsureTable(ctx); err != nil {
		t.Fatalf("EnsureTable (second call) failed: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := repo.RecordMigration(ctx, tx, "002"); err != nil {
			return err
		}
		return repo.RecordMigration(ctx, tx, "001")
	})
	if err != nil {
		t.Fatalf("RecordMigration failed: %v", err)
	}

	applied, err := repo.FindAllApplied(ctx)
	if err != nil {
		t.Fatalf("FindAllApplied failed: %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("expected 2 applied migrations, got %d", len(applied))
	}
	if applied[0].Version != "001" || applied[1].Version != "002" {
		t.Errorf("expected versions in order, got %s, %s", applied[0].Version, applied[1].Version)
	}
	if applied[0].AppliedAt == nil || applied[0].AppliedAt.IsZero() {
		t.Error("expected AppliedAt to be set")
	}
}
