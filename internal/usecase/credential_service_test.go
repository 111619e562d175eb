package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"credential-service/internal/domain"
	"credential-service/pkg/passhash"
)

// mockCredentialRepository はテスト用のインメモリリポジトリ。
type mockCredentialRepository struct {
	creds      map[string]*domain.Credential
	existsErr  error
	createErr  error
	findErr    error
	replaceErr error
	replaced   int
	nextID     int
}

func newMockCredentialRepository() *mockCredentialRepository {
	return &mockCredentialRepository{creds: make(map[string]*domain.Credential)}
}

func (m *mockCredentialRepository) ExistsBySubject(ctx context.Context, subject string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.creds[subject]
	return ok, nil
}

func (m *mockCredentialRepository) Create(ctx context.Context, cred *domain.Credential) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	cred.ID = fmt.Sprintf("cred-%d", m.nextID)
	cred.CreatedAt = time.Now()
	cred.UpdatedAt = cred.CreatedAt
	stored := *cred
	m.creds[cred.Subject] = &stored
	return nil
}

func (m *mockCredentialRepository) FindBySubject(ctx context.Context, subject string) (*domain.Credential, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.creds[subject]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *mockCredentialRepository) FindAll(ctx context.Context) ([]*domain.Credential, error) {
	var out []*domain.Credential
	for _, c := range m.creds {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out, nil
}

func (m *mockCredentialRepository) ReplaceSecret(ctx context.Context, id string, hash passhash.PasswordHash, salt passhash.Salt, scheme passhash.Scheme, sealed bool) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	for _, c := range m.creds {
		if c.ID == id {
			c.PasswordHash, c.Salt, c.Scheme, c.Sealed = hash, salt, scheme, sealed
			m.replaced++
			return nil
		}
	}
	return domain.ErrCredentialNotFound
}

func (m *mockCredentialRepository) Delete(ctx context.Context, id string) error {
	for subject, c := range m.creds {
		if c.ID == id {
			delete(m.creds, subject)
			return nil
		}
	}
	return domain.ErrCredentialNotFound
}

// mockKMSClient はテスト用のモックKMSクライアント。
type mockKMSClient struct {
	encryptErr error
	decryptErr error
}

func (m *mockKMSClient) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if m.encryptErr != nil {
		return nil, m.encryptErr
	}
	return append([]byte("sealed:"), plaintext...), nil
}

func (m *mockKMSClient) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if m.decryptErr != nil {
		return nil, m.decryptErr
	}
	return []byte(strings.TrimPrefix(string(ciphertext), "sealed:")), nil
}

func newTestHasher(t *testing.T) *passhash.Hasher {
	t.Helper()
	h, err := passhash.New(passhash.Options{Params: passhash.Params{Iterations: 1}, Workers: 2})
	if err != nil {
		t.Fatalf("passhash.New failed: %v", err)
	}
	return h
}

func newTestService(t *testing.T, repo *mockCredentialRepository, kms KMSClient) *CredentialService {
	t.Helper()
	return NewCredentialService(repo, newTestHasher(t), kms, PasswordPolicy{MinLength: 8})
}

func TestCredentialService_Register_Success(t *testing.T) {
	repo := newMockCredentialRepository()
	svc := newTestService(t, repo, nil)

	md, err := svc.Register(context.Background(), " Alice@Example.com", "correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.Subject != "alice@example.com" {
		t.Errorf("want subject alice@example.com, got %s", md.Subject)
	}
	if md.Scheme != passhash.CurrentScheme {
		t.Errorf("want scheme %s, got %s", passhash.CurrentScheme, md.Scheme)
	}

	stored := repo.creds["alice@example.com"]
	if stored == nil {
		t.Fatal("want stored credential, got nil")
	}
	if stored.Salt == "" || stored.PasswordHash == "" {
		t.Error("want salt and hash to be stored")
	}
	if stored.Sealed {
		t.Error("want unsealed hash without KMS")
	}
}

func TestCredentialService_Register_AlreadyExists(t *testing.T) {
	repo := newMockCredentialRepository()
	svc := newTestService(t, repo, nil)

	if _, err := svc.Register(context.Background(), "alice@example.com", "password-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.Register(context.Background(), "ALICE@example.com", "password-2")
	if !errors.Is(err, domain.ErrCredentialAlreadyExists) {
		t.Errorf("want ErrCredentialAlreadyExists, got %v", err)
	}
}

func TestCredentialService_Register_PolicyViolation(t *testing.T) {
	svc := newTestService(t, newMockCredentialRepository(), nil)

	for _, pw := range []string{"", "short", strings.Repeat("x", 1025)} {
		_, err := svc.Register(context.Background(), "alice@example.com", pw)
		if !errors.Is(err, domain.ErrPasswordPolicy) {
			t.Errorf("password len %d: want ErrPasswordPolicy, got %v", len(pw), err)
		}
	}
}

func TestCredentialService_Register_InvalidSubject(t *testing.T) {
	svc := newTestService(t, newMockCredentialRepository(), nil)

	_, err := svc.Register(context.Background(), "not a subject", "password-1")
	if !errors.Is(err, domain.ErrInvalidSubject) {
		t.Errorf("want ErrInvalidSubject, got %v", err)
	}
}

func TestCredentialService_Register_RepositoryError(t *testing.T) {
	repo := newMockCredentialRepository()
	repo.createErr = errors.New("connection refused")
	svc := newTestService(t, repo, nil)

	_, err := svc.Register(context.Background(), "alice@example.com", "password-1")
	if err == nil || !strings.Contains(err.Error(), "creating credential") {
		t.Errorf("want wrapped create error, got %v", err)
	}
}

func TestCredentialService_Verify(t *testing.T) {
	repo := newMockCredentialRepository()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice@example.com", "correct-horse-battery-staple"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := svc.Verify(ctx, "alice@example.com", "correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("want valid=true for correct password")
	}

	ok, err = svc.Verify(ctx, "alice@example.com", "wrong")
	if err != nil {
		t.Fatalf("wrong password must not be an error, got %v", err)
	}
	if ok {
		t.Error("want valid=false for wrong password")
	}
	if repo.replaced != 0 {
		t.Errorf("want no rehash for current scheme, got %d", repo.replaced)
	}
}

func TestCredentialService_Verify_NotFound(t *testing.T) {
	svc := newTestService(t, newMockCredentialRepository(), nil)

	_, err := svc.Verify(context.Background(), "nobody@example.com", "password-1")
	if !errors.Is(err, domain.ErrCredentialNotFound) {
		t.Errorf("want ErrCredentialNotFound, got %v", err)
	}
}

func TestCredentialService_Verify_MalformedRecord(t *testing.T) {
	repo := newMockCredentialRepository()
	repo.creds["alice@example.com"] = &domain.Credential{
		ID:           "cred-1",
		Subject:      "alice@example.com",
		PasswordHash: "%%%",
		Salt:         "AAECAwQFBgcICQoLDA0ODw==",
		Scheme:       passhash.CurrentScheme,
	}
	svc := newTestService(t, repo, nil)

	_, err := svc.Verify(context.Background(), "alice@example.com", "password-1")
	if !errors.Is(err, passhash.ErrMalformedInput) {
		t.Errorf("want ErrMalformedInput, got %v", err)
	}
}

func TestCredentialService_Verify_UpgradesLegacyScheme(t *testing.T) {
	repo := newMockCredentialRepository()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	legacySalt := "bGVnYWN5LXNhbHQtdGV4dA=="
	legacyHash, err := newTestHasher(t).HashPasswordWithScheme(passhash.SchemePBKDF2SHA512V0, "admin-password", passhash.Salt(legacySalt))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Import(ctx, "admin@example.com", string(legacyHash), legacySalt, "pbkdf2-sha512-v0"); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	ok, err := svc.Verify(ctx, "admin@example.com", "admin-password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("want legacy credential to verify")
	}

	stored := repo.creds["admin@example.com"]
	if stored.Scheme != passhash.CurrentScheme {
		t.Errorf("want scheme upgraded to %s, got %s", passhash.CurrentScheme, stored.Scheme)
	}
	if string(stored.Salt) == legacySalt {
		t.Error("want a fresh salt after upgrade")
	}

	ok, err = svc.Verify(ctx, "admin@example.com", "admin-password")
	if err != nil || !ok {
		t.Errorf("want upgraded credential to verify, got ok=%v err=%v", ok, err)
	}
}

func TestCredentialService_Verify_UpgradeFailureStillSucceeds(t *testing.T) {
	repo := newMockCredentialRepository()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	legacyHash, _ := newTestHasher(t).HashPasswordWithScheme(passhash.SchemePBKDF2SHA512V0, "admin-password", "abcdef0123456789")
	if _, err := svc.Import(ctx, "admin@example.com", string(legacyHash), "abcdef0123456789", "pbkdf2-sha512-v0"); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	repo.replaceErr = errors.New("deadlock")

	ok, err := svc.Verify(ctx, "admin@example.com", "admin-password")
	if err != nil || !ok {
		t.Errorf("want ok=true err=nil, got ok=%v err=%v", ok, err)
	}
}

func TestCredentialService_ChangePassword(t *testing.T) {
	repo := newMockCredentialRepository()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice@example.com", "old-password"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	oldSalt := repo.creds["alice@example.com"].Salt

	if err := svc.ChangePassword(ctx, "alice@example.com", "old-password", "new-password"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.creds["alice@example.com"].Salt == oldSalt {
		t.Error("want a fresh salt after password change")
	}

	if ok, _ := svc.Verify(ctx, "alice@example.com", "old-password"); ok {
		t.Error("want old password to be rejected")
	}
	if ok, _ := svc.Verify(ctx, "alice@example.com", "new-password"); !ok {
		t.Error("want new password to be accepted")
	}
}

func TestCredentialService_ChangePassword_WrongCurrent(t *testing.T) {
	repo := newMockCredentialRepository()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice@example.com", "old-password"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := svc.ChangePassword(ctx, "alice@example.com", "not-the-password", "new-password")
	if !errors.Is(err, domain.ErrInvalidPassword) {
		t.Errorf("want ErrInvalidPassword, got %v", err)
	}
	if repo.replaced != 0 {
		t.Error("want secret to be untouched")
	}
}

func TestCredentialService_ResetPassword(t *testing.T) {
	repo := newMockCredentialRepository()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice@example.com", "old-password"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.ResetPassword(ctx, "alice@example.com", "reset-password"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok, _ := svc.Verify(ctx, "alice@example.com", "reset-password"); !ok {
		t.Error("want reset password to be accepted")
	}

	err := svc.ResetPassword(ctx, "nobody@example.com", "reset-password")
	if !errors.Is(err, domain.ErrCredentialNotFound) {
		t.Errorf("want ErrCredentialNotFound, got %v", err)
	}
}

func TestCredentialService_Import_Malformed(t *testing.T) {
	svc := newTestService(t, newMockCredentialRepository(), nil)
	ctx := context.Background()

	_, err := svc.Import(ctx, "alice@example.com", "%%%", "AAECAwQFBgcICQoLDA0ODw==", "")
	if !errors.Is(err, passhash.ErrMalformedInput) {
		t.Errorf("want ErrMalformedInput for bad hash, got %v", err)
	}

	_, err = svc.Import(ctx, "alice@example.com", "aGFzaA==", "AAECAwQFBgcICQoLDA0ODw==", "md5")
	if !errors.Is(err, passhash.ErrMalformedInput) {
		t.Errorf("want ErrMalformedInput for unknown scheme, got %v", err)
	}
}

func TestCredentialService_Sealed(t *testing.T) {
	repo := newMockCredentialRepository()
	svc := newTestService(t, repo, &mockKMSClient{})
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice@example.com", "correct-horse"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := repo.creds["alice@example.com"]
	if !stored.Sealed {
		t.Error("want sealed hash with KMS configured")
	}

	ok, err := svc.Verify(ctx, "alice@example.com", "correct-horse")
	if err != nil || !ok {
		t.Errorf("want sealed credential to verify, got ok=%v err=%v", ok, err)
	}
}

func TestCredentialService_Sealed_WithoutKMS(t *testing.T) {
	repo := newMockCredentialRepository()
	sealedSvc := newTestService(t, repo, &mockKMSClient{})
	ctx := context.Background()

	if _, err := sealedSvc.Register(ctx, "alice@example.com", "correct-horse"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	plainSvc := newTestService(t, repo, nil)
	if _, err := plainSvc.Verify(ctx, "alice@example.com", "correct-horse"); err == nil {
		t.Error("want error when sealed credential is read without KMS")
	}
}

func TestCredentialService_Sealed_EncryptError(t *testing.T) {
	svc := newTestService(t, newMockCredentialRepository(), &mockKMSClient{encryptErr: errors.New("permission denied")})

	_, err := svc.Register(context.Background(), "alice@example.com", "correct-horse")
	if err == nil {
		t.Error("want error when KMS encryption fails")
	}
}

func TestCredentialService_ListAndDelete(t *testing.T) {
	repo := newMockCredentialRepository()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	for _, s := range []string{"carol@example.com", "alice@example.com"} {
		if _, err := svc.Register(ctx, s, "password-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 || list[0].Subject != "alice@example.com" {
		t.Errorf("want 2 credentials sorted by subject, got %+v", list)
	}

	if err := svc.Delete(ctx, "alice@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Describe(ctx, "alice@example.com"); !errors.Is(err, domain.ErrCredentialNotFound) {
		t.Errorf("want ErrCredentialNotFound after delete, got %v", err)
	}
}
