package infra

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"credential-service/config"
)

// redactedKeys はログに値を出力しない属性名。
var redactedKeys = map[string]struct{}{
	"password":         {},
	"current_password": {},
	"new_password":     {},
	"salt":             {},
	"hash":             {},
	"password_hash":    {},
}

// TraceHandler はトレース情報をログに付与するslogハンドラ。
type TraceHandler struct {
	handler     slog.Handler
	projectID   string
	otelEnabled bool
}

// NewTraceHandler はトレース情報付きのslogハンドラを生成する。
func NewTraceHandler(handler slog.Handler, cfg *config.Config) *TraceHandler {
	return &TraceHandler{
		handler:     handler,
		projectID:   cfg.GoogleCloudProject,
		otelEnabled: cfg.OtelEnabled,
	}
}

// Enabled はハンドラがログを処理するかどうかを返す。
func (h *TraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle はログレコードにトレースIDとスパンIDを付与する。
func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.otelEnabled {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			traceID := sc.TraceID().String()
			spanID := sc.SpanID().String()
			r.AddAttrs(
				slog.String("trace", traceID),
				slog.String("spanId", spanID),
				slog.Bool("traceSampled", sc.IsSampled()),
			)
			// Google Cloud Logging連携用フィールド
			if h.projectID != "" {
				r.AddAttrs(
					slog.String("logging.googleapis.com/trace", "projects/"+h.projectID+"/traces/"+traceID),
					slog.String("logging.googleapis.com/spanId", spanID),
				)
			}
		}
	}
	return h.handler.Handle(ctx, r)
}

// WithAttrs は属性を追加した新しいハンドラを返す。
func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{handler: h.handler.WithAttrs(attrs), projectID: h.projectID, otelEnabled: h.otelEnabled}
}

// WithGroup はグループを追加した新しいハンドラを返す。
func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{handler: h.handler.WithGroup(name), projectID: h.projectID, otelEnabled: h.otelEnabled}
}

// ParseLevel はLOG_LEVELの値をslog.Levelに変換する。不明な値はINFO。
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger はJSON出力・秘匿化・トレース付与を組み合わせたロガーを生成する。
func NewLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       ParseLevel(cfg.LogLevel),
		ReplaceAttr: redact,
	})
	return slog.New(NewTraceHandler(jsonHandler, cfg))
}

// SetupLogger はトレース情報付きのグローバルロガーを設定する。
func SetupLogger(cfg *config.Config) {
	slog.SetDefault(NewLogger(os.Stdout, cfg))
}

func redact(groups []string, a slog.Attr) slog.Attr {
	if _, ok := redactedKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}
