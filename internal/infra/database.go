// Package infra は外部サービスとの接続を提供する。
package infra

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

const sqlitePrefix = "sqlite://"

// NewDB はgormによるデータベース接続を初期化する。
// DSN が sqlite:// で始まる場合は SQLite、それ以外は MySQL として開く。
func NewDB(dsn string, tracingEnabled bool) (*gorm.DB, error) {
	dialector, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if tracingEnabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, fmt.Errorf("registering gorm tracing plugin: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 接続プール設定
	if _, ok := dialector.(*sqlite.Dialector); ok {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

func dialectorFor(dsn string) (gorm.Dialector, error) {
	switch {
	case dsn == "":
		return nil, fmt.Errorf("empty database DSN")
	case strings.HasPrefix(dsn, sqlitePrefix):
		path := strings.TrimPrefix(dsn, sqlitePrefix)
		if path == "" {
			return nil, fmt.Errorf("sqlite DSN has no path: %q", dsn)
		}
		return sqlite.Open(path), nil
	default:
		return mysql.Open(dsn), nil
	}
}
