package domain

import "time"

// AsnEntry is the durable cache row backing AsnResolver's second pipeline
// stage (spec §3, §4.3). Unique by IP.
type AsnEntry struct {
	IP             string `gorm:"primaryKey;column:ip"`
	ASN            uint32 `gorm:"column:asn"`
	LastModifiedAt time.Time `gorm:"column:last_modified_at;index"`
}

// TableName overrides GORM's pluralization.
func (AsnEntry) TableName() string { return "asn_entry" }

// IsStale reports whether the entry is older than threshold relative to now.
func (e AsnEntry) IsStale(now time.Time, threshold time.Duration) bool {
	return e.LastModifiedAt.Before(now.Add(-threshold))
}
