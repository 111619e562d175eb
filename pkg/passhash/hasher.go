package passhash

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	defaultIterations = 10000
	defaultKeyLength  = 64
	defaultSaltLength = 16

	minIterations = 1
	minKeyLength  = 16
	minSaltLength = 16
)

// Salt は base64 エンコードされたソルト。
type Salt string

// PasswordHash は base64 エンコードされた導出鍵。
type PasswordHash string

// Params は導出パラメータを表す。ダイジェストは SHA-512 固定。
type Params struct {
	Iterations int
	KeyLength  int
	SaltLength int
}

// DefaultParams は現行スキームのパラメータを返す。
func DefaultParams() Params {
	return Params{
		Iterations: defaultIterations,
		KeyLength:  defaultKeyLength,
		SaltLength: defaultSaltLength,
	}
}

func (p Params) validate() error {
	if p.Iterations < minIterations {
		return fmt.Errorf("%w: iterations must be >= %d", ErrInvalidParams, minIterations)
	}
	if p.KeyLength < minKeyLength {
		return fmt.Errorf("%w: key length must be >= %d", ErrInvalidParams, minKeyLength)
	}
	if p.SaltLength < minSaltLength {
		return fmt.Errorf("%w: salt length must be >= %d", ErrInvalidParams, minSaltLength)
	}
	return nil
}

// Options は Hasher の生成オプション。
type Options struct {
	// Params の各値が 0 の場合は DefaultParams の値を使う。
	Params Params
	// Workers は同時に実行する導出処理の上限。0 以下なら CPU 数。
	Workers int
	// Strict が true の場合、パラメータ不一致を false ではなく ErrParamsMismatch で返す。
	Strict bool
	// Rand はソルト生成に使う乱数源。nil なら crypto/rand.Reader。
	Rand io.Reader
}

// Hasher はパスワードハッシュの生成と検証を行う。
// 生成後は不変で、複数の goroutine から同時に利用できる。
type Hasher struct {
	params Params
	strict bool
	rand   io.Reader
	sema   chan struct{}
}

// New は新しい Hasher を生成する。
func New(opts Options) (*Hasher, error) {
	params := opts.Params
	def := DefaultParams()
	if params.Iterations == 0 {
		params.Iterations = def.Iterations
	}
	if params.KeyLength == 0 {
		params.KeyLength = def.KeyLength
	}
	if params.SaltLength == 0 {
		params.SaltLength = def.SaltLength
	}
	if err := params.validate(); err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	r := opts.Rand
	if r == nil {
		r = rand.Reader
	}

	return &Hasher{
		params: params,
		strict: opts.Strict,
		rand:   r,
		sema:   make(chan struct{}, workers),
	}, nil
}

// Params は Hasher の導出パラメータを返す。
func (h *Hasher) Params() Params {
	return h.params
}

// GenerateSalt は乱数源から SaltLength バイトを読み出し、base64 で返す。
func (h *Hasher) GenerateSalt() (Salt, error) {
	buf := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(h.rand, buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return Salt(base64.StdEncoding.EncodeToString(buf)), nil
}

// HashPassword は現行スキームでパスワードを導出する。
// 同じ入力には常に同じ結果を返す。呼び出し元の goroutine で CPU を消費する。
func (h *Hasher) HashPassword(password string, salt Salt) (PasswordHash, error) {
	return h.HashPasswordWithScheme(CurrentScheme, password, salt)
}

// HashPasswordWithScheme は指定スキームでパスワードを導出する。
func (h *Hasher) HashPasswordWithScheme(scheme Scheme, password string, salt Salt) (PasswordHash, error) {
	saltBytes, err := h.saltBytes(scheme, salt)
	if err != nil {
		return "", err
	}
	key := h.derive(password, saltBytes)
	return PasswordHash(base64.StdEncoding.EncodeToString(key)), nil
}

// VerifyPassword は現行スキームでパスワードを検証する。
// パスワード不一致はエラーではなく false を返す。
func (h *Hasher) VerifyPassword(password string, hashed PasswordHash, salt Salt) (bool, error) {
	return h.VerifyPasswordWithScheme(CurrentScheme, password, hashed, salt)
}

// VerifyPasswordWithScheme は指定スキームでパスワードを検証する。
// 比較は一致位置に依存しない定数時間で行う。
func (h *Hasher) VerifyPasswordWithScheme(scheme Scheme, password string, hashed PasswordHash, salt Salt) (bool, error) {
	saltBytes, err := h.saltBytes(scheme, salt)
	if err != nil {
		return false, err
	}

	expected, err := decodeBase64(string(hashed))
	if err != nil || len(expected) == 0 {
		return false, fmt.Errorf("%w: invalid hash encoding", ErrMalformedInput)
	}
	if len(expected) != h.params.KeyLength {
		if h.strict {
			return false, fmt.Errorf("%w: hash length %d, want %d", ErrParamsMismatch, len(expected), h.params.KeyLength)
		}
		return false, nil
	}

	computed := h.derive(password, saltBytes)
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// Validate は導出を行わずにハッシュとソルトの形式だけを検査する。
// 外部から取り込むレコードの事前チェックに使う。
func (h *Hasher) Validate(scheme Scheme, hashed PasswordHash, salt Salt) error {
	if _, err := h.saltBytes(scheme, salt); err != nil {
		return err
	}
	raw, err := decodeBase64(string(hashed))
	if err != nil || len(raw) == 0 {
		return fmt.Errorf("%w: invalid hash encoding", ErrMalformedInput)
	}
	if len(raw) != h.params.KeyLength {
		return fmt.Errorf("%w: hash length %d, want %d", ErrParamsMismatch, len(raw), h.params.KeyLength)
	}
	return nil
}

// NeedsRehash は保存済みレコードを現行スキームで再ハッシュすべきかを返す。
func (h *Hasher) NeedsRehash(scheme Scheme) bool {
	return scheme != CurrentScheme
}

func (h *Hasher) derive(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, h.params.Iterations, h.params.KeyLength, sha512.New)
}

// decodeBase64 は標準 base64 を復号する。改行を含む入力は元のテキストと
// 一致しなくなるため受け付けない。
func decodeBase64(s string) ([]byte, error) {
	if strings.ContainsAny(s, "\r\n") {
		return nil, errors.New("base64 text contains line breaks")
	}
	return base64.StdEncoding.DecodeString(s)
}

func (h *Hasher) saltBytes(scheme Scheme, salt Salt) ([]byte, error) {
	switch scheme {
	case SchemePBKDF2SHA512V1:
		b, err := decodeBase64(string(salt))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid salt encoding", ErrMalformedInput)
		}
		if len(b) < h.params.SaltLength {
			return nil, fmt.Errorf("%w: salt is %d bytes, want at least %d", ErrMalformedInput, len(b), h.params.SaltLength)
		}
		return b, nil
	case SchemePBKDF2SHA512V0:
		// 旧形式はソルトのテキストをそのまま使う。hex のソルトも混在する。
		if salt == "" {
			return nil, fmt.Errorf("%w: empty salt", ErrMalformedInput)
		}
		return []byte(salt), nil
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrMalformedInput, scheme)
	}
}
