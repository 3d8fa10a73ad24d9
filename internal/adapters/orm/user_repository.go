package orm

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"identityguard/internal/apperr"
	"identityguard/internal/domain"
)

// UserRepository is the GORM-backed adapters.UserStore reference
// implementation. Account creation/credential management live outside this
// module (spec §1); this repository only reads and flips the
// device-fingerprinting opt-out flag DeviceFingerprint.Manager depends on.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a UserRepository over db.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID implements adapters.UserStore.
func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.New(apperr.UserNotFound, "user not found")
		}
		return nil, err
	}
	return &user, nil
}

// SetDeviceFingerprintingEnabled implements adapters.UserStore.
func (r *UserRepository) SetDeviceFingerprintingEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	result := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("device_fingerprinting_enabled", enabled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.New(apperr.UserNotFound, "user not found")
	}
	return nil
}
