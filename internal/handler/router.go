package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter はルーターを生成する。
func NewRouter(h *CredentialHandler) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// ルート定義
	r.Route("/v1/credentials", func(r chi.Router) {
		r.Post("/", h.Register)
		r.Get("/", h.List)
		r.Post("/import", h.Import)
		r.Get("/{subject}", h.Describe)
		r.Delete("/{subject}", h.Delete)
		r.Post("/{subject}/verify", h.Verify)
		r.Put("/{subject}/password", h.ChangePassword)
		r.Post("/{subject}/reset", h.ResetPassword)
	})

	return otelhttp.NewHandler(r, "credential-service")
}
