// Package magic collects the named defaults referenced across identityguard
// so no component inlines a bare numeric literal that config can override.
package magic

import "time"

// Device-fingerprint defaults (spec §3, §4.7, §6).
const (
	DefaultMaxDevicesPerUser  = 5
	DefaultMaxFailedAttempts  = 5
	DefaultHistoryMax         = 50
	FallbackFingerprintPrefix = "fallback_"
)

// Rate limiter defaults (spec §4.1, §6).
const (
	DefaultRateLimitWindow       = 60 * time.Second
	DefaultRateLimitPerIP        = 5
	DefaultPurgeThreshold        = 10_000
	DefaultExternalRatePerSecond = 10
)

// ASN resolver defaults (spec §4.3).
const (
	DefaultStaleThreshold = 30 * 24 * time.Hour
	DNSTimeout            = 1 * time.Second
	WHOISTimeout          = 3 * time.Second
	GeoDBTimeout          = 100 * time.Millisecond
	CymruASNZone          = "origin.asn.cymru.com"
	DefaultWHOISServer    = "whois.radb.net:43"
	DefaultDNSResolver    = "8.8.8.8:53"
)

// Geo/risk defaults (spec §4.6).
const (
	EarthRadiusKM             = 6371.0
	DefaultTimeWindow         = 24 * time.Hour
	DefaultImpossibleSpeedKMH = 1100.0
	// DefaultSuspiciousDistanceKM is a reserved knob: the spec's source declares it
	// but never acts on it. It is parsed into config but not validated and not consulted by risk.Engine.
	DefaultSuspiciousDistanceKM = 500.0
	DefaultVPNReputationScore   = 30
)

// Cache defaults (spec §4.2).
const (
	CacheNameASN              = "asn"
	CacheNameGeoLocation      = "geolocation"
	CacheNameLocationHistory  = "location_history"
	DefaultASNCacheTTL        = 6 * time.Hour
	DefaultGeoCacheTTL        = 6 * time.Hour
	DefaultLocationHistoryTTL = 30 * 24 * time.Hour
)

// Circuit breaker defaults.
const (
	DefaultBreakerFailureThreshold = 5
	DefaultBreakerOpenDuration     = 30 * time.Second
	DefaultBreakerHalfOpenProbes   = 1
)

// Audit sink defaults (spec §4.9).
const DefaultAuditQueueCapacity = 1024

// UNKNOWN sentinel country code (spec §3).
const UnknownCountryCode = "XX"

// Shutdown/admin defaults for the demonstration daemon.
const ShutdownTimeout = 15 * time.Second
