// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config はアプリケーション設定を表す。
type Config struct {
	Port               string
	DatabaseURL        string
	KMSKeyName         string
	GoogleCloudProject string
	LogLevel           string
	MigrationsDir      string

	OtelEnabled      bool
	OtelEndpoint     string
	OtelServiceName  string
	OtelSamplingRate float64

	// HashWorkers はパスワード導出を同時に実行するワーカー数（0 は CPU 数）。
	HashWorkers int
	// HashStrict はパラメータ不一致を検証失敗ではなくエラーとして扱う。
	HashStrict        bool
	PasswordMinLength int
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		KMSKeyName:         os.Getenv("KMS_KEY_NAME"),
		GoogleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),
		LogLevel:           strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		MigrationsDir:      os.Getenv("MIGRATIONS_DIR"),

		OtelEnabled:      getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint:     getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OtelServiceName:  getEnv("OTEL_SERVICE_NAME", "credential-service"),
		OtelSamplingRate: getEnvFloat("OTEL_SAMPLING_RATE", 1.0),

		HashWorkers:       getEnvInt("HASH_WORKERS", 0),
		HashStrict:        getEnvBool("HASH_STRICT", false),
		PasswordMinLength: getEnvInt("PASSWORD_MIN_LENGTH", 8),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return v
}

func getEnvInt(key string, defaultVal int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return v
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v < 0 || v > 1 {
		return defaultVal
	}
	return v
}
