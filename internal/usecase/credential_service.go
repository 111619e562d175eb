// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"credential-service/internal/domain"
	"credential-service/pkg/passhash"
)

const maxPasswordBytes = 1024

// CredentialRepository はデータアクセスのインターフェース。
type CredentialRepository interface {
	ExistsBySubject(ctx context.Context, subject string) (bool, error)
	Create(ctx context.Context, cred *domain.Credential) error
	FindBySubject(ctx context.Context, subject string) (*domain.Credential, error)
	FindAll(ctx context.Context) ([]*domain.Credential, error)
	ReplaceSecret(ctx context.Context, id string, hash passhash.PasswordHash, salt passhash.Salt, scheme passhash.Scheme, sealed bool) error
	Delete(ctx context.Context, id string) error
}

// KMSClient は暗号化/復号のインターフェース。保存前のハッシュの封印に使う。
type KMSClient interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// Hasher はパスワード導出のインターフェース。導出はワーカー上で実行される。
type Hasher interface {
	HashNew(ctx context.Context, password string) (passhash.PasswordHash, passhash.Salt, error)
	Verify(ctx context.Context, scheme passhash.Scheme, password string, hashed passhash.PasswordHash, salt passhash.Salt) (bool, error)
	Validate(scheme passhash.Scheme, hashed passhash.PasswordHash, salt passhash.Salt) error
	NeedsRehash(scheme passhash.Scheme) bool
}

// PasswordPolicy はパスワードの受け入れ条件。
type PasswordPolicy struct {
	MinLength int
}

// Check はパスワードがポリシーを満たすか検査する。長さは文字数で数える。
func (p PasswordPolicy) Check(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is empty", domain.ErrPasswordPolicy)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: password exceeds %d bytes", domain.ErrPasswordPolicy, maxPasswordBytes)
	}
	if utf8.RuneCountInString(password) < p.MinLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrPasswordPolicy, p.MinLength)
	}
	return nil
}

// CredentialService は認証情報に関するビジネスロジックを提供する。
type CredentialService struct {
	repo      CredentialRepository
	hasher    Hasher
	kmsClient KMSClient
	policy    PasswordPolicy
}

// NewCredentialService は新しいCredentialServiceを生成する。
// kmsClient が nil の場合、ハッシュは封印せずに保存する。
func NewCredentialService(repo CredentialRepository, hasher Hasher, kmsClient KMSClient, policy PasswordPolicy) *CredentialService {
	return &CredentialService{
		repo:      repo,
		hasher:    hasher,
		kmsClient: kmsClient,
		policy:    policy,
	}
}

// Register は新しいソルトでパスワードをハッシュし、認証情報を登録する。
func (s *CredentialService) Register(ctx context.Context, subject, password string) (*domain.CredentialMetadata, error) {
	subject, err := domain.NormalizeSubject(subject)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Check(password); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsBySubject(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("checking existing credential: %w", err)
	}
	if exists {
		return nil, domain.ErrCredentialAlreadyExists
	}

	hash, salt, err := s.hasher.HashNew(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	stored, sealed, err := s.seal(ctx, hash)
	if err != nil {
		return nil, err
	}

	cred := &domain.Credential{
		Subject:      subject,
		PasswordHash: stored,
		Salt:         salt,
		Scheme:       passhash.CurrentScheme,
		Sealed:       sealed,
	}
	if err := s.repo.Create(ctx, cred); err != nil {
		if errors.Is(err, domain.ErrCredentialAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("creating credential: %w", err)
	}

	return cred.Metadata(), nil
}

// Verify はパスワードを検証する。不一致は false を返し、エラーにはしない。
// 旧スキームのレコードは検証成功時に新しいソルトで再ハッシュする。
func (s *CredentialService) Verify(ctx context.Context, subject, password string) (bool, error) {
	cred, err := s.find(ctx, subject)
	if err != nil {
		return false, err
	}

	ok, err := s.verify(ctx, cred, password)
	if err != nil || !ok {
		return false, err
	}

	if s.hasher.NeedsRehash(cred.Scheme) {
		// 再ハッシュに失敗してもログイン自体は成功とする
		if err := s.replaceSecret(ctx, cred, password); err != nil {
			slog.WarnContext(ctx, "failed to upgrade credential scheme",
				"operation", "verify",
				"subject", cred.Subject,
				"from_scheme", cred.Scheme,
				"error", err,
			)
		} else {
			slog.InfoContext(ctx, "credential scheme upgraded",
				"subject", cred.Subject,
				"from_scheme", cred.Scheme,
				"to_scheme", passhash.CurrentScheme,
			)
		}
	}
	return true, nil
}

// ChangePassword は現在のパスワードを確認したうえで、新しいソルトとハッシュに置き換える。
func (s *CredentialService) ChangePassword(ctx context.Context, subject, currentPassword, newPassword string) error {
	if err := s.policy.Check(newPassword); err != nil {
		return err
	}
	cred, err := s.find(ctx, subject)
	if err != nil {
		return err
	}

	ok, err := s.verify(ctx, cred, currentPassword)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidPassword
	}

	return s.replaceSecret(ctx, cred, newPassword)
}

// ResetPassword は現在のパスワードを確認せずに置き換える（管理者操作）。
func (s *CredentialService) ResetPassword(ctx context.Context, subject, newPassword string) error {
	if err := s.policy.Check(newPassword); err != nil {
		return err
	}
	cred, err := s.find(ctx, subject)
	if err != nil {
		return err
	}
	return s.replaceSecret(ctx, cred, newPassword)
}

// Import は外部システムで生成済みのハッシュとソルトをそのまま登録する。
func (s *CredentialService) Import(ctx context.Context, subject, hash, salt, scheme string) (*domain.CredentialMetadata, error) {
	subject, err := domain.NormalizeSubject(subject)
	if err != nil {
		return nil, err
	}
	sc, err := passhash.ParseScheme(scheme)
	if err != nil {
		return nil, err
	}
	if err := s.hasher.Validate(sc, passhash.PasswordHash(hash), passhash.Salt(salt)); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsBySubject(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("checking existing credential: %w", err)
	}
	if exists {
		return nil, domain.ErrCredentialAlreadyExists
	}

	stored, sealed, err := s.seal(ctx, passhash.PasswordHash(hash))
	if err != nil {
		return nil, err
	}
	cred := &domain.Credential{
		Subject:      subject,
		PasswordHash: stored,
		Salt:         passhash.Salt(salt),
		Scheme:       sc,
		Sealed:       sealed,
	}
	if err := s.repo.Create(ctx, cred); err != nil {
		if errors.Is(err, domain.ErrCredentialAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("creating credential: %w", err)
	}
	return cred.Metadata(), nil
}

// Describe は認証情報のメタデータを取得する。
func (s *CredentialService) Describe(ctx context.Context, subject string) (*domain.CredentialMetadata, error) {
	cred, err := s.find(ctx, subject)
	if err != nil {
		return nil, err
	}
	return cred.Metadata(), nil
}

// List は全認証情報のメタデータを取得する。
func (s *CredentialService) List(ctx context.Context) ([]*domain.CredentialMetadata, error) {
	creds, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding credentials: %w", err)
	}

	metadata := make([]*domain.CredentialMetadata, len(creds))
	for i, c := range creds {
		metadata[i] = c.Metadata()
	}
	return metadata, nil
}

// Delete は認証情報を削除する。
func (s *CredentialService) Delete(ctx context.Context, subject string) error {
	cred, err := s.find(ctx, subject)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, cred.ID); err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return err
		}
		return fmt.Errorf("deleting credential: %w", err)
	}
	return nil
}

func (s *CredentialService) find(ctx context.Context, subject string) (*domain.Credential, error) {
	subject, err := domain.NormalizeSubject(subject)
	if err != nil {
		return nil, err
	}
	cred, err := s.repo.FindBySubject(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("finding credential: %w", err)
	}
	if cred == nil {
		return nil, domain.ErrCredentialNotFound
	}
	return cred, nil
}

func (s *CredentialService) verify(ctx context.Context, cred *domain.Credential, password string) (bool, error) {
	hash, err := s.open(ctx, cred)
	if err != nil {
		return false, err
	}
	ok, err := s.hasher.Verify(ctx, cred.Scheme, password, hash, cred.Salt)
	if err != nil {
		return false, fmt.Errorf("verifying credential: %w", err)
	}
	return ok, nil
}

// replaceSecret は新しいソルトを生成して現行スキームでハッシュを置き換える。
// 既存のソルトは再利用しない。
func (s *CredentialService) replaceSecret(ctx context.Context, cred *domain.Credential, password string) error {
	hash, salt, err := s.hasher.HashNew(ctx, password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	stored, sealed, err := s.seal(ctx, hash)
	if err != nil {
		return err
	}
	if err := s.repo.ReplaceSecret(ctx, cred.ID, stored, salt, passhash.CurrentScheme, sealed); err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return err
		}
		return fmt.Errorf("replacing secret: %w", err)
	}
	return nil
}

func (s *CredentialService) seal(ctx context.Context, hash passhash.PasswordHash) (passhash.PasswordHash, bool, error) {
	if s.kmsClient == nil {
		return hash, false, nil
	}
	ciphertext, err := s.kmsClient.Encrypt(ctx, []byte(hash))
	if err != nil {
		return "", false, fmt.Errorf("sealing hash: %w", err)
	}
	return passhash.PasswordHash(base64.StdEncoding.EncodeToString(ciphertext)), true, nil
}

func (s *CredentialService) open(ctx context.Context, cred *domain.Credential) (passhash.PasswordHash, error) {
	if !cred.Sealed {
		return cred.PasswordHash, nil
	}
	if s.kmsClient == nil {
		return "", errors.New("credential is sealed but no KMS client is configured")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(string(cred.PasswordHash))
	if err != nil {
		return "", fmt.Errorf("%w: invalid sealed hash encoding", passhash.ErrMalformedInput)
	}
	plain, err := s.kmsClient.Decrypt(ctx, ciphertext)
	if err != nil {
		return "", fmt.Errorf("opening sealed hash: %w", err)
	}
	return passhash.PasswordHash(plain), nil
}
