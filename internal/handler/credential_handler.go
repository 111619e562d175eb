// Package handler はHTTPハンドラを提供する。
package handler

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"credential-service/internal/domain"
	"credential-service/internal/middleware"
	"credential-service/internal/usecase"
	"credential-service/pkg/httputil"
	"credential-service/pkg/passhash"
)

// CredentialHandler はHTTPハンドラを提供する。
type CredentialHandler struct {
	service  *usecase.CredentialService
	validate *requestValidator
}

// NewCredentialHandler は新しいCredentialHandlerを生成する。
func NewCredentialHandler(service *usecase.CredentialService) (*CredentialHandler, error) {
	v, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	return &CredentialHandler{service: service, validate: v}, nil
}

// CredentialResponse は認証情報メタデータのレスポンス形式。
type CredentialResponse struct {
	Subject   string `json:"subject"`
	Scheme    string `json:"scheme"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CredentialListResponse は認証情報一覧のレスポンス形式。
type CredentialListResponse struct {
	Credentials []CredentialResponse `json:"credentials"`
}

// VerifyResponse はパスワード検証のレスポンス形式。
type VerifyResponse struct {
	Valid bool `json:"valid"`
}

// ValidationErrorResponse はリクエスト検証エラーのレスポンス形式。
type ValidationErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

func toResponse(m *domain.CredentialMetadata) CredentialResponse {
	return CredentialResponse{
		Subject:   m.Subject,
		Scheme:    string(m.Scheme),
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: m.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func subjectParam(r *http.Request) string {
	raw := chi.URLParam(r, "subject")
	if s, err := url.PathUnescape(raw); err == nil {
		return s
	}
	return raw
}

// decode はボディを読み込んで検証する。失敗時はレスポンスを書き込み false を返す。
func (h *CredentialHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httputil.DecodeJSON(w, r, v); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "request body is not valid JSON")
		return false
	}
	if err := h.validate.Validate(v); err != nil {
		var ve ValidationError
		if errors.As(err, &ve) {
			httputil.JSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Code:    "INVALID_REQUEST",
				Message: "request validation failed",
				Fields:  ve,
			})
			return false
		}
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "request validation failed")
		return false
	}
	return true
}

// writeServiceError はサービス層のエラーをHTTPステータスに変換する。
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSubject):
		httputil.Error(w, http.StatusBadRequest, "INVALID_SUBJECT", "invalid subject format")
	case errors.Is(err, domain.ErrPasswordPolicy):
		httputil.Error(w, http.StatusBadRequest, "PASSWORD_POLICY", err.Error())
	case errors.Is(err, domain.ErrCredentialNotFound):
		httputil.Error(w, http.StatusNotFound, "CREDENTIAL_NOT_FOUND", "credential not found for this subject")
	case errors.Is(err, domain.ErrCredentialAlreadyExists):
		httputil.Error(w, http.StatusConflict, "CREDENTIAL_ALREADY_EXISTS", "credential already exists for this subject")
	case errors.Is(err, domain.ErrInvalidPassword):
		httputil.Error(w, http.StatusForbidden, "INVALID_PASSWORD", "current password is incorrect")
	case errors.Is(err, passhash.ErrParamsMismatch):
		httputil.Error(w, http.StatusUnprocessableEntity, "PARAMS_MISMATCH", "stored hash does not match hashing parameters")
	case errors.Is(err, passhash.ErrMalformedInput):
		httputil.Error(w, http.StatusUnprocessableEntity, "MALFORMED_CREDENTIAL", "hash or salt is malformed")
	default:
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// Register は新しい認証情報を登録する。
func (h *CredentialHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	metadata, err := h.service.Register(r.Context(), req.Subject, req.Password)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "REGISTER", req.Subject, middleware.ResultFailed)
		writeServiceError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "REGISTER", metadata.Subject, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusCreated, toResponse(metadata))
}

// Import は生成済みのハッシュとソルトを取り込む。
func (h *CredentialHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !h.decode(w, r, &req) {
		return
	}

	metadata, err := h.service.Import(r.Context(), req.Subject, req.PasswordHash, req.Salt, req.Scheme)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "IMPORT", req.Subject, middleware.ResultFailed)
		writeServiceError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "IMPORT", metadata.Subject, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusCreated, toResponse(metadata))
}

// Verify はパスワードを検証する。不一致は 200 で valid=false を返す。
func (h *CredentialHandler) Verify(w http.ResponseWriter, r *http.Request) {
	subject := subjectParam(r)
	var req VerifyRequest
	if !h.decode(w, r, &req) {
		return
	}

	ok, err := h.service.Verify(r.Context(), subject, req.Password)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "VERIFY", subject, middleware.ResultFailed)
		writeServiceError(w, err)
		return
	}

	result := middleware.ResultSuccess
	if !ok {
		result = middleware.ResultDenied
	}
	middleware.WriteAuditLog(r.Context(), "VERIFY", subject, result)
	httputil.JSON(w, http.StatusOK, VerifyResponse{Valid: ok})
}

// ChangePassword は現在のパスワードを確認してパスワードを変更する。
func (h *CredentialHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	subject := subjectParam(r)
	var req ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.service.ChangePassword(r.Context(), subject, req.CurrentPassword, req.NewPassword)
	if err != nil {
		result := middleware.ResultFailed
		if errors.Is(err, domain.ErrInvalidPassword) {
			result = middleware.ResultDenied
		}
		middleware.WriteAuditLog(r.Context(), "CHANGE_PASSWORD", subject, result)
		writeServiceError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "CHANGE_PASSWORD", subject, middleware.ResultSuccess)
	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword は現在のパスワードを確認せずにパスワードを再設定する。
func (h *CredentialHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	subject := subjectParam(r)
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), subject, req.NewPassword); err != nil {
		middleware.WriteAuditLog(r.Context(), "RESET_PASSWORD", subject, middleware.ResultFailed)
		writeServiceError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "RESET_PASSWORD", subject, middleware.ResultSuccess)
	w.WriteHeader(http.StatusNoContent)
}

// Describe は認証情報のメタデータを取得する。
func (h *CredentialHandler) Describe(w http.ResponseWriter, r *http.Request) {
	subject := subjectParam(r)

	metadata, err := h.service.Describe(r.Context(), subject)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "DESCRIBE", subject, middleware.ResultFailed)
		writeServiceError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "DESCRIBE", metadata.Subject, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, toResponse(metadata))
}

// List は認証情報一覧を取得する。
func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	metadata, err := h.service.List(r.Context())
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "LIST", "", middleware.ResultFailed)
		writeServiceError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "LIST", "", middleware.ResultSuccess)
	response := CredentialListResponse{
		Credentials: make([]CredentialResponse, len(metadata)),
	}
	for i, m := range metadata {
		response.Credentials[i] = toResponse(m)
	}
	httputil.JSON(w, http.StatusOK, response)
}

// Delete は認証情報を削除する。
func (h *CredentialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	subject := subjectParam(r)

	if err := h.service.Delete(r.Context(), subject); err != nil {
		middleware.WriteAuditLog(r.Context(), "DELETE", subject, middleware.ResultFailed)
		writeServiceError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "DELETE", subject, middleware.ResultSuccess)
	w.WriteHeader(http.StatusNoContent)
}
