// Package main はAPIサーバーのエントリポイント。
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"credential-service/config"
	"credential-service/internal/handler"
	"credential-service/internal/infra"
	"credential-service/internal/repository"
	"credential-service/internal/usecase"
)

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	// 設定読み込み
	cfg := config.Load()

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// トレース情報付きロガーを設定
	infra.SetupLogger(cfg)

	// DB初期化
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is not set")
		os.Exit(1)
	}
	db, err := infra.NewDB(cfg.DatabaseURL, cfg.OtelEnabled)
	if err != nil {
		slog.Error("failed to init database", "error", err)
		os.Exit(1)
	}

	// KMSクライアント初期化（鍵名が未設定なら封印しない）
	var sealer usecase.KMSClient
	if cfg.KMSKeyName != "" {
		kmsClient, err := infra.NewKMSClient(ctx, cfg.KMSKeyName)
		if err != nil {
			slog.Error("failed to init KMS client", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := kmsClient.Close(); closeErr != nil {
				slog.Error("failed to close KMS client", "error", closeErr)
			}
		}()
		sealer = kmsClient
	} else {
		slog.Warn("KMS_KEY_NAME is not set, password hashes are stored unsealed")
	}

	hasher, err := infra.NewHasher(cfg)
	if err != nil {
		slog.Error("failed to init hasher", "error", err)
		os.Exit(1)
	}

	// DI
	repo := repository.NewCredentialRepository(db)
	service := usecase.NewCredentialService(repo, hasher, sealer, usecase.PasswordPolicy{MinLength: cfg.PasswordMinLength})
	h, err := handler.NewCredentialHandler(service)
	if err != nil {
		slog.Error("failed to init handler", "error", err)
		os.Exit(1)
	}
	router := handler.NewRouter(h)

	// サーバー起動
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Port, "hash_workers", cfg.HashWorkers, "sealed", sealer != nil)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
