// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import (
	"regexp"
	"strings"
	"time"

	"credential-service/pkg/passhash"
)

var subjectRegex = regexp.MustCompile(`^[a-z0-9._@+-]{1,254}$`)

// Credential は認証情報レコードを表す。
// パスワード変更時は PasswordHash と Salt を組で置き換え、既存の値は書き換えない。
type Credential struct {
	ID           string
	Subject      string
	PasswordHash passhash.PasswordHash
	Salt         passhash.Salt
	Scheme       passhash.Scheme
	// Sealed は PasswordHash が KMS で暗号化されているかを表す。
	Sealed    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CredentialMetadata は認証情報のメタデータを表す（ハッシュ・ソルトを含まない）。
type CredentialMetadata struct {
	Subject   string
	Scheme    passhash.Scheme
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Metadata はレコードからメタデータを取り出す。
func (c *Credential) Metadata() *CredentialMetadata {
	return &CredentialMetadata{
		Subject:   c.Subject,
		Scheme:    c.Scheme,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// NormalizeSubject はサブジェクト（メールアドレス等）を小文字化して検証する。
func NormalizeSubject(subject string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(subject))
	if !subjectRegex.MatchString(s) {
		return "", ErrInvalidSubject
	}
	return s, nil
}
