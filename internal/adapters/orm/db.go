// Package orm provides GORM-backed reference implementations of the
// DeviceRecordStore and AsnEntryStore interfaces (spec §4.10/§6 C11),
// exercised against SQLite in tests and Postgres in production via
// gorm.io/driver/postgres.
package orm

import (
	"identityguard/internal/domain"

	"gorm.io/gorm"
)

// AutoMigrate creates/updates the tables identityguard owns. Production
// deployments should prefer the golang-migrate migrations under
// migrations/ instead; this exists for tests and local experimentation.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.User{}, &domain.DeviceRecord{}, &domain.AsnEntry{})
}
