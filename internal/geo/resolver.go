// Package geo implements GeoResolver (spec §4.4 C5): IP → GeoLocation via
// the local MaxMind City database, opportunistically enriched with ASN.
package geo

import (
	"context"
	"log/slog"
	"net"

	"identityguard/internal/adapters"
	"identityguard/internal/domain"
)

// AsnLookup is the subset of asn.Resolver GeoResolver depends on, kept
// narrow so geo never imports the asn package's external-chain machinery
// directly.
type AsnLookup interface {
	LookupAsn(ctx context.Context, ip string) (uint32, error)
}

// Resolver is the GeoResolver component.
type Resolver struct {
	reader adapters.MaxMindReader
	asn    AsnLookup
	logger *slog.Logger
}

// NewResolver constructs a Resolver reading from reader, enriching with asn
// when non-nil. asn may be nil if ASN enrichment is not configured.
func NewResolver(reader adapters.MaxMindReader, asn AsnLookup, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{reader: reader, asn: asn, logger: logger}
}

// Lookup resolves ip to a GeoLocation. Invalid IP strings and database
// misses both yield domain.UnknownLocation rather than an error (spec §4.4).
func (r *Resolver) Lookup(ctx context.Context, ip string) domain.GeoLocation {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return domain.UnknownLocation
	}

	city, err := r.reader.City(parsed)
	if err != nil || city == nil || city.CountryCode == "" {
		return domain.UnknownLocation
	}

	loc := domain.GeoLocation{
		CountryCode:     city.CountryCode,
		CountryName:     city.CountryName,
		City:            city.City,
		PostalCode:      city.PostalCode,
		Latitude:        city.Latitude,
		Longitude:       city.Longitude,
		TimeZone:        city.TimeZone,
		SubdivisionCode: city.SubdivisionCode,
		SubdivisionName: city.SubdivisionName,
	}

	if r.asn == nil {
		return loc
	}

	asn, err := r.asn.LookupAsn(ctx, ip)
	if err != nil {
		r.logger.Debug("asn enrichment failed, returning geolocation without asn", slog.String("ip", ip), slog.Any("error", err))
		return loc
	}
	return loc.WithASN(asn)
}
