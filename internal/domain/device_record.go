package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeviceRecord tracks one (userId, fingerprint) pairing across its trust
// lifecycle (spec §3, §4.7). Invariants enforced by the device package, not
// by this struct:
//
//  1. Active ⇒ DeactivatedAt is zero; ¬Active ⇒ DeactivatedAt is set.
//  2. Trusted ⇒ Active.
//  3. FailedAttempts ∈ [0, MaxFailedAttempts]; reaching the max deactivates.
//  4. UpdateCount is strictly monotonic per record.
//  5. A user has at most MaxDevicesPerUser records with Active = true.
type DeviceRecord struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID          uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_user_fingerprint;index:idx_user_active"`
	Fingerprint     string    `gorm:"uniqueIndex:idx_user_fingerprint"`
	Active          bool      `gorm:"index:idx_user_active"`
	Trusted         bool
	FailedAttempts  int
	DeactivatedAt   *time.Time

	LastUsedAt      time.Time `gorm:"index"`
	LastKnownIP     string
	LastKnownCountry string
	Location        *GeoLocation `gorm:"embedded;embeddedPrefix:location_"`
	BrowserInfo     string
	DeviceName      string
	Source          string
	UpdateCount     int
}

// TableName overrides GORM's pluralization to match spec §6's persisted layout.
func (DeviceRecord) TableName() string { return "user_device_fingerprint" }

// BeforeCreate assigns a UUIDv7 identity when unset.
func (d *DeviceRecord) BeforeCreate(_ *gorm.DB) error {
	if d.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		d.ID = id
	}
	return nil
}

// State names the three-state device lifecycle (spec §4.7.4).
type State string

const (
	StateActiveUntrusted State = "ACTIVE_UNTRUSTED"
	StateActiveTrusted   State = "ACTIVE_TRUSTED"
	StateInactive        State = "INACTIVE"
)

// CurrentState derives the record's state from its Active/Trusted fields.
func (d DeviceRecord) CurrentState() State {
	switch {
	case !d.Active:
		return StateInactive
	case d.Trusted:
		return StateActiveTrusted
	default:
		return StateActiveUntrusted
	}
}

// DeviceView is the read-only projection returned by ListDevices (spec §6).
type DeviceView struct {
	ID            uuid.UUID
	Fingerprint   string
	Active        bool
	Trusted       bool
	IsCurrent     bool
	LastUsedAt    time.Time
	LastKnownIP   string
	Country       string
	DeviceName    string
	Source        string
}
