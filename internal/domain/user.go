package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the surface the authentication/risk core consumes (spec §3). The
// full account record — password hashes, consent, OAuth client links — lives
// outside this module's scope.
type User struct {
	ID                         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sub                        string    `gorm:"uniqueIndex;column:sub"` // external WebAuthn/OIDC identity
	Email                      string    `gorm:"uniqueIndex;column:email"`
	Authorities                []string  `gorm:"-"` // populated by the authority store, not persisted here
	DeviceFingerprintingEnabled bool     `gorm:"column:device_fingerprinting_enabled;default:true"`
	Enabled                    bool      `gorm:"default:true"`
	NonLocked                  bool      `gorm:"column:non_locked;default:true"`
	NonExpired                 bool      `gorm:"column:non_expired;default:true"`
	CredentialsNonExpired      bool      `gorm:"column:credentials_non_expired;default:true"`
	CreatedAt                  time.Time
}

// TableName overrides GORM's pluralization.
func (User) TableName() string { return "users" }

// BeforeCreate assigns a UUIDv7 identity when the caller left ID unset,
// mirroring the teacher's domain-model hook idiom.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		u.ID = id
	}
	return nil
}

// AccountNonRestricted reports whether the account's static flags permit
// authentication to proceed at all (does not evaluate risk).
func (u User) AccountNonRestricted() bool {
	return u.Enabled && u.NonLocked && u.NonExpired && u.CredentialsNonExpired
}
