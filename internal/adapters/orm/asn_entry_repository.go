package orm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"identityguard/internal/apperr"
	"identityguard/internal/domain"
)

// AsnEntryRepository is the GORM-backed adapters.AsnEntryStore.
type AsnEntryRepository struct {
	db *gorm.DB
}

// NewAsnEntryRepository constructs a repository bound to db.
func NewAsnEntryRepository(db *gorm.DB) *AsnEntryRepository {
	return &AsnEntryRepository{db: db}
}

// Find returns nil, apperr(Internal) only on real
// errors; a miss is reported as (nil, nil) so callers can fall through the
// AsnResolver pipeline without a sentinel error.
func (r *AsnEntryRepository) Find(ctx context.Context, ip string) (*domain.AsnEntry, error) {
	var entry domain.AsnEntry
	err := r.db.WithContext(ctx).First(&entry, "ip = ?", ip).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "query asn entry")
	}
	return &entry, nil
}

// Upsert inserts or refreshes the row for entry.IP.
func (r *AsnEntryRepository) Upsert(ctx context.Context, entry domain.AsnEntry) error {
	err := r.db.WithContext(ctx).
		Where("ip = ?", entry.IP).
		Assign(domain.AsnEntry{ASN: entry.ASN, LastModifiedAt: entry.LastModifiedAt}).
		FirstOrCreate(&entry).Error
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "upsert asn entry")
	}
	return nil
}

// DeleteStale removes rows older than threshold within a single transaction
// so concurrent lookups never observe a partial deletion (spec §4.3.2).
func (r *AsnEntryRepository) DeleteStale(ctx context.Context, threshold time.Duration, now time.Time) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("last_modified_at < ?", now.Add(-threshold)).Delete(&domain.AsnEntry{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, err, "delete stale asn entries")
	}
	return removed, nil
}
