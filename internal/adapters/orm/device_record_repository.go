package orm

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"identityguard/internal/apperr"
	"identityguard/internal/domain"
)

// DeviceRecordRepository is the GORM-backed adapters.DeviceRecordStore.
type DeviceRecordRepository struct {
	db *gorm.DB
}

// NewDeviceRecordRepository constructs a repository bound to db.
func NewDeviceRecordRepository(db *gorm.DB) *DeviceRecordRepository {
	return &DeviceRecordRepository{db: db}
}

// FindByUserAndFingerprint returns nil, apperr(DeviceNotFound) when absent.
func (r *DeviceRecordRepository) FindByUserAndFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (*domain.DeviceRecord, error) {
	var record domain.DeviceRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND fingerprint = ?", userID, fingerprint).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.DeviceNotFound, "no device record for this fingerprint")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "query device record")
	}
	return &record, nil
}

// FindByID returns nil, apperr(DeviceNotFound) when absent.
func (r *DeviceRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.DeviceRecord, error) {
	var record domain.DeviceRecord
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.DeviceNotFound, "no device record with this id")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "query device record")
	}
	return &record, nil
}

// ListByUser returns every device record for userID, newest-used first.
func (r *DeviceRecordRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.DeviceRecord, error) {
	var records []domain.DeviceRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_used_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list device records")
	}
	return records, nil
}

// CountActiveByUser enforces the MAX_DEVICES_PER_USER invariant at the
// store boundary (spec §3 invariant 5).
func (r *DeviceRecordRepository) CountActiveByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.DeviceRecord{}).
		Where("user_id = ? AND active = ?", userID, true).
		Count(&count).Error
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "count active device records")
	}
	return int(count), nil
}

// Save upserts record by primary key.
func (r *DeviceRecordRepository) Save(ctx context.Context, record *domain.DeviceRecord) error {
	if err := r.db.WithContext(ctx).Save(record).Error; err != nil {
		return apperr.Wrap(apperr.Internal, err, "save device record")
	}
	return nil
}

// Delete hard-deletes a device record (spec §3: "except on explicit
// administrative delete").
func (r *DeviceRecordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&domain.DeviceRecord{}, "id = ?", id).Error; err != nil {
		return apperr.Wrap(apperr.Internal, err, "delete device record")
	}
	return nil
}
