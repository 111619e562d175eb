package passhash

import (
	"fmt"
	"strings"
)

// Scheme は導出パラメータとソルトの扱いを識別するタグ。
type Scheme string

const (
	// SchemePBKDF2SHA512V1 は現行スキーム。base64 をデコードしたソルトのバイト列を使う。
	SchemePBKDF2SHA512V1 Scheme = "pbkdf2-sha512-v1"

	// SchemePBKDF2SHA512V0 は旧システムから移行したレコード用。
	// ソルトの base64 テキストそのものを導出の入力に使う。
	SchemePBKDF2SHA512V0 Scheme = "pbkdf2-sha512-v0"

	// CurrentScheme は新規ハッシュに使うスキーム。
	CurrentScheme = SchemePBKDF2SHA512V1
)

// ParseScheme は文字列をスキームに変換する。空文字列は現行スキームとみなす。
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.TrimSpace(s)) {
	case "", SchemePBKDF2SHA512V1:
		return SchemePBKDF2SHA512V1, nil
	case SchemePBKDF2SHA512V0:
		return SchemePBKDF2SHA512V0, nil
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrMalformedInput, s)
	}
}

// String はスキームのタグ文字列を返す。
func (s Scheme) String() string {
	return string(s)
}
