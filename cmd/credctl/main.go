// Package main はCLIツールのエントリポイント。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

var (
	apiURL  string
	output  string
	timeout time.Duration
)

// HTTPクライアント
var httpClient *http.Client

func main() {
	// .envファイルを読み込む（存在しない場合は無視）
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "credctl",
		Short:        "Credential Service CLI",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if apiURL == "" {
				apiURL = os.Getenv("CREDCTL_API_URL")
			}
			httpClient = &http.Client{Timeout: timeout}
		},
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API endpoint URL (or set CREDCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	// サブコマンド登録
	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(passwdCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(saltCmd())
	rootCmd.AddCommand(hashCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "credctl version %s\n", version)
		},
	}
}
