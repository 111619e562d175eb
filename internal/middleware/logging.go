// Package middleware はHTTPミドルウェアと監査ログを提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"
)

// 監査ログの結果値。
const (
	ResultSuccess = "SUCCESS"
	ResultFailed  = "FAILED"
	ResultDenied  = "DENIED"
)

// WriteAuditLog は認証情報の操作結果を監査ログとして出力する。
// パスワード・ソルト・ハッシュは渡さないこと。
func WriteAuditLog(ctx context.Context, operation string, subject string, result string) {
	slog.InfoContext(ctx, "credential operation completed",
		"operation", operation,
		"subject", subject,
		"result", result,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	)
}
