package asn

import (
	"context"
	"net"

	"identityguard/internal/adapters"
	"identityguard/internal/apperr"
)

// GeoIPStage resolves ASN from the local MaxMind ASN database — the fastest
// stage in the chain, tried first (spec §4.3.1).
type GeoIPStage struct {
	reader adapters.MaxMindReader
}

// NewGeoIPStage constructs a stage reading from reader.
func NewGeoIPStage(reader adapters.MaxMindReader) *GeoIPStage {
	return &GeoIPStage{reader: reader}
}

func (s *GeoIPStage) Name() string { return "geoip2" }

func (s *GeoIPStage) Lookup(_ context.Context, ip string) (uint32, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return 0, apperr.New(apperr.IPInvalid, "not a valid ip address")
	}

	record, err := s.reader.ASN(parsed)
	if err != nil || record == nil || record.AutonomousSystemNumber == 0 {
		return 0, apperr.Wrap(apperr.ExternalUnavailable, err, "geoip2 asn database miss")
	}
	return record.AutonomousSystemNumber, nil
}
