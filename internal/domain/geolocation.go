package domain

import "identityguard/internal/magic"

// GeoLocation is an immutable value resolved from an IP address. Either all of
// CountryCode/Latitude/Longitude are populated, or the value equals
// UnknownLocation. Enrichment (attaching ASN) never mutates a GeoLocation in
// place — it returns a new value via WithASN.
type GeoLocation struct {
	CountryCode      string
	CountryName      string
	City             string
	PostalCode       string
	Latitude         float64
	Longitude        float64
	TimeZone         string
	SubdivisionCode  string
	SubdivisionName  string
	ASN              *uint32
}

// UnknownLocation is the sentinel value for an unresolvable IP (spec §3).
var UnknownLocation = GeoLocation{CountryCode: magic.UnknownCountryCode}

// IsUnknown reports whether g is the UNKNOWN sentinel.
func (g GeoLocation) IsUnknown() bool {
	return g.CountryCode == magic.UnknownCountryCode && g.Latitude == 0 && g.Longitude == 0 && !g.HasASN()
}

// HasCoordinates reports whether g carries a usable latitude/longitude pair.
// It checks only that CountryCode is set and not the UNKNOWN code, relying on
// the type's invariant that a resolved country comes with coordinates.
func (g GeoLocation) HasCoordinates() bool {
	return g.CountryCode != "" && g.CountryCode != magic.UnknownCountryCode
}

// HasASN reports whether g has been enriched with an ASN.
func (g GeoLocation) HasASN() bool {
	return g.ASN != nil
}

// WithASN returns a copy of g enriched with asn. g itself is never mutated.
func (g GeoLocation) WithASN(asn uint32) GeoLocation {
	cp := g
	cp.ASN = &asn
	return cp
}
