// Package adapters defines the thin interfaces identityguard's core depends
// on for persistence, alerting, and the MaxMind database (spec §4.10/§6 C11).
// Concrete implementations live in internal/adapters/orm and are supplied by
// the host application — the core never imports a specific driver directly.
package adapters

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"

	"identityguard/internal/domain"
)

// DeviceRecordStore persists per-user device records (spec §3 DeviceRecord).
type DeviceRecordStore interface {
	FindByUserAndFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (*domain.DeviceRecord, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.DeviceRecord, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.DeviceRecord, error)
	CountActiveByUser(ctx context.Context, userID uuid.UUID) (int, error)
	Save(ctx context.Context, record *domain.DeviceRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserStore resolves the surface of User the core consumes (spec §3 User).
// Account creation/credential management lives outside this module's scope.
type UserStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	SetDeviceFingerprintingEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
}

// IPPolicy classifies a client IP for the blocklist/suspicious-heuristics
// checks DeviceFingerprint.Register and Validate run before doing any other
// work (spec §4.7.2 step 2).
type IPPolicy interface {
	Blocklisted(ctx context.Context, ip string) (bool, error)
	Suspicious(ctx context.Context, ip string) (bool, error)
}

// AsnEntryStore persists the durable ASN cache row (spec §3 AsnEntry, §4.3).
type AsnEntryStore interface {
	Find(ctx context.Context, ip string) (*domain.AsnEntry, error)
	Upsert(ctx context.Context, entry domain.AsnEntry) error
	DeleteStale(ctx context.Context, threshold time.Duration, now time.Time) (int64, error)
}

// KeyValueCache is the subset of a distributed cache backend the rate
// limiter and cache layer can share when deployed across multiple processes.
// The in-process implementations in internal/ratelimit and internal/cache do
// not require it; it exists for hosts that want a shared Redis-backed tier.
type KeyValueCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// AlertTransport delivers a SecurityAlert to whatever out-of-band channel
// the host wires up (email, pager, webhook). Out of scope per spec §1; the
// core only needs this narrow contract.
type AlertTransport interface {
	Send(ctx context.Context, alert domain.SecurityAlert) error
}

// MaxMindReader is the subset of oschwald/geoip2-golang's *geoip2.Reader
// methods the geo and ASN resolvers depend on, so they can be mocked without
// a real .mmdb file in unit tests.
type MaxMindReader interface {
	City(ip net.IP) (*CityRecord, error)
	ASN(ip net.IP) (*ASNRecord, error)
	Close() error
}

// CityRecord mirrors the subset of geoip2.City fields GeoResolver projects.
type CityRecord struct {
	CountryCode     string
	CountryName     string
	City            string
	PostalCode      string
	Latitude        float64
	Longitude       float64
	TimeZone        string
	SubdivisionCode string
	SubdivisionName string
}

// ASNRecord mirrors the subset of geoip2.ASN fields AsnResolver projects.
type ASNRecord struct {
	AutonomousSystemNumber uint32
}
