// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"credential-service/internal/domain"
	"credential-service/pkg/passhash"
)

// CredentialModel はgorm用のモデル定義。
type CredentialModel struct {
	ID           string    `gorm:"type:char(36);primaryKey"`
	Subject      string    `gorm:"type:varchar(254);not null;uniqueIndex:uk_subject"`
	PasswordHash string    `gorm:"type:varchar(1024);not null"`
	Salt         string    `gorm:"type:varchar(255);not null"`
	Scheme       string    `gorm:"type:varchar(32);not null;default:'pbkdf2-sha512-v1'"`
	Sealed       bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"type:datetime(6);not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (CredentialModel) TableName() string {
	return "credentials"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *CredentialModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

func (m *CredentialModel) toDomain() *domain.Credential {
	return &domain.Credential{
		ID:           m.ID,
		Subject:      m.Subject,
		PasswordHash: passhash.PasswordHash(m.PasswordHash),
		Salt:         passhash.Salt(m.Salt),
		Scheme:       passhash.Scheme(m.Scheme),
		Sealed:       m.Sealed,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// CredentialRepository は認証情報のデータアクセスを提供する。
type CredentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository は新しいCredentialRepositoryを生成する。
func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// ExistsBySubject は指定されたサブジェクトの認証情報が存在するか確認する。
func (r *CredentialRepository) ExistsBySubject(ctx context.Context, subject string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&CredentialModel{}).
		Where("subject = ?", subject).
		Count(&count).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to count credentials by subject",
			"operation", "exists_by_subject",
			"subject", subject,
			"error", err,
		)
		return false, err
	}
	return count > 0, nil
}

// Create は新しい認証情報を保存する。
func (r *CredentialRepository) Create(ctx context.Context, cred *domain.Credential) error {
	model := &CredentialModel{
		ID:           cred.ID,
		Subject:      cred.Subject,
		PasswordHash: string(cred.PasswordHash),
		Salt:         string(cred.Salt),
		Scheme:       string(cred.Scheme),
		Sealed:       cred.Sealed,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrCredentialAlreadyExists
		}
		slog.ErrorContext(ctx, "failed to create credential",
			"operation", "create",
			"subject", cred.Subject,
			"error", err,
		)
		return err
	}
	cred.ID = model.ID
	cred.CreatedAt = model.CreatedAt
	cred.UpdatedAt = model.UpdatedAt
	return nil
}

// FindBySubject は指定されたサブジェクトの認証情報を取得する。存在しない場合は nil を返す。
func (r *CredentialRepository) FindBySubject(ctx context.Context, subject string) (*domain.Credential, error) {
	var model CredentialModel
	err := r.db.WithContext(ctx).
		Where("subject = ?", subject).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find credential",
			"operation", "find_by_subject",
			"subject", subject,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// FindAll は全認証情報をサブジェクト順に取得する。
func (r *CredentialRepository) FindAll(ctx context.Context) ([]*domain.Credential, error) {
	var models []CredentialModel
	err := r.db.WithContext(ctx).
		Order("subject ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find all credentials",
			"operation", "find_all",
			"error", err,
		)
		return nil, err
	}

	creds := make([]*domain.Credential, len(models))
	for i := range models {
		creds[i] = models[i].toDomain()
	}
	return creds, nil
}

// ReplaceSecret はハッシュ・ソルト・スキームを1回の UPDATE でまとめて置き換える。
func (r *CredentialRepository) ReplaceSecret(ctx context.Context, id string, hash passhash.PasswordHash, salt passhash.Salt, scheme passhash.Scheme, sealed bool) error {
	res := r.db.WithContext(ctx).
		Model(&CredentialModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"password_hash": string(hash),
			"salt":          string(salt),
			"scheme":        string(scheme),
			"sealed":        sealed,
		})
	if res.Error != nil {
		slog.ErrorContext(ctx, "failed to replace secret",
			"operation", "replace_secret",
			"id", id,
			"error", res.Error,
		)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrCredentialNotFound
	}
	return nil
}

// Delete は指定されたIDの認証情報を削除する。
func (r *CredentialRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&CredentialModel{})
	if res.Error != nil {
		slog.ErrorContext(ctx, "failed to delete credential",
			"operation", "delete",
			"id", id,
			"error", res.Error,
		)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrCredentialNotFound
	}
	return nil
}
