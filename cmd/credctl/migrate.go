package main

import (
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"credential-service/internal/domain"
	"credential-service/internal/infra"
	"credential-service/internal/repository"
	"credential-service/internal/usecase"
	"credential-service/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  "Manage database migrations for the credential service",
	}
	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateStatusCmd())
	return cmd
}

// newMigrationService はDB接続とマイグレーションファイル群を準備する。
// MIGRATIONS_DIR が設定されていればそのディレクトリを、なければ同梱のファイルを使う。
func newMigrationService() (*usecase.MigrationService, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	db, err := infra.NewDB(dsn, false)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	var fsys fs.FS = migrations.FS
	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		fsys = os.DirFS(dir)
	}

	return usecase.NewMigrationService(repository.NewMigrationRepository(db), db, fsys), nil
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Long:  "Apply all pending migrations to the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newMigrationService()
			if err != nil {
				return err
			}

			appliedCount, err := svc.ApplyMigrations(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			if appliedCount == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending migrations.")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", appliedCount)
			}
			return nil
		},
	}
}

func migrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long:  "Show the status of all migrations (applied/pending)",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newMigrationService()
			if err != nil {
				return err
			}

			list, err := svc.GetMigrationStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
			fmt.Fprintln(w, "-------\t----\t------\t----------")

			for _, m := range list {
				appliedAt := "-"
				if m.AppliedAt != nil {
					appliedAt = m.AppliedAt.Format("2006-01-02 15:04:05")
				}
				status := string(domain.MigrationStatusPending)
				if m.IsApplied() {
					status = string(domain.MigrationStatusApplied)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Version, m.Name, status, appliedAt)
			}

			if err := w.Flush(); err != nil {
				return fmt.Errorf("failed to flush output: %w", err)
			}
			return nil
		},
	}
}
