package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// RegisterRequest は認証情報登録のリクエスト形式。
type RegisterRequest struct {
	Subject  string `json:"subject" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

// VerifyRequest はパスワード検証のリクエスト形式。
type VerifyRequest struct {
	Password string `json:"password" validate:"required,max=1024"`
}

// ChangePasswordRequest はパスワード変更のリクエスト形式。
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=1024"`
	NewPassword     string `json:"new_password" validate:"required,max=1024,nefield=CurrentPassword"`
}

// ResetPasswordRequest はパスワード再設定のリクエスト形式。
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,max=1024"`
}

// ImportRequest は生成済みハッシュの取り込みリクエスト形式。
type ImportRequest struct {
	Subject      string `json:"subject" validate:"required,max=254"`
	PasswordHash string `json:"password_hash" validate:"required,base64"`
	Salt         string `json:"salt" validate:"required"`
	Scheme       string `json:"scheme" validate:"omitempty,oneof=pbkdf2-sha512-v1 pbkdf2-sha512-v0"`
}

// ValidationError はフィールド名とメッセージの組。
type ValidationError map[string]string

func (ve ValidationError) Error() string {
	b, err := json.Marshal(map[string]string(ve))
	if err != nil {
		return "validation error"
	}
	return string(b)
}

// requestValidator はリクエスト構造体を検証する。
type requestValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func newRequestValidator() (*requestValidator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	// エラーのフィールド名は JSON のキーに合わせる
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	enLang := en.New()
	uni := ut.New(enLang, enLang)
	trans, ok := uni.GetTranslator("en")
	if !ok {
		return nil, errors.New("translator not found")
	}
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, fmt.Errorf("registering translations: %w", err)
	}

	return &requestValidator{validate: validate, translator: trans}, nil
}

// Validate は構造体を検証し、失敗時は ValidationError を返す。
func (v *requestValidator) Validate(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	ve := make(ValidationError, len(fieldErrs))
	for _, fe := range fieldErrs {
		ve[fe.Field()] = fe.Translate(v.translator)
	}
	return ve
}
