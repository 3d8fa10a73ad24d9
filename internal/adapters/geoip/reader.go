// Package geoip provides the production adapters.MaxMindReader backed by a
// local .mmdb database file via oschwald/geoip2-golang (spec §4.10/§6 C11).
package geoip

import (
	"net"

	"github.com/oschwald/geoip2-golang"

	"identityguard/internal/adapters"
)

// Reader wraps a geoip2.Reader opened against a City+ASN (or GeoLite2-City
// + GeoLite2-ASN) database pair.
type Reader struct {
	city *geoip2.Reader
	asn  *geoip2.Reader
}

// Open reads the City database at cityDBPath and, if asnDBPath is
// non-empty, the ASN database at asnDBPath. Both databases are memory
// mapped by geoip2-golang; Close releases both.
func Open(cityDBPath, asnDBPath string) (*Reader, error) {
	city, err := geoip2.Open(cityDBPath)
	if err != nil {
		return nil, err
	}

	var asnReader *geoip2.Reader
	if asnDBPath != "" {
		asnReader, err = geoip2.Open(asnDBPath)
		if err != nil {
			city.Close()
			return nil, err
		}
	}

	return &Reader{city: city, asn: asnReader}, nil
}

// City implements adapters.MaxMindReader.
func (r *Reader) City(ip net.IP) (*adapters.CityRecord, error) {
	record, err := r.city.City(ip)
	if err != nil {
		return nil, err
	}

	rec := &adapters.CityRecord{
		CountryCode: record.Country.IsoCode,
		CountryName: record.Country.Names["en"],
		City:        record.City.Names["en"],
		PostalCode:  record.Postal.Code,
		Latitude:    record.Location.Latitude,
		Longitude:   record.Location.Longitude,
		TimeZone:    record.Location.TimeZone,
	}
	if len(record.Subdivisions) > 0 {
		rec.SubdivisionCode = record.Subdivisions[0].IsoCode
		rec.SubdivisionName = record.Subdivisions[0].Names["en"]
	}
	return rec, nil
}

// ASN implements adapters.MaxMindReader. Returns nil, nil when no ASN
// database was configured — callers must fall through to the external
// resolver chain in that case.
func (r *Reader) ASN(ip net.IP) (*adapters.ASNRecord, error) {
	if r.asn == nil {
		return nil, nil
	}
	record, err := r.asn.ASN(ip)
	if err != nil {
		return nil, err
	}
	return &adapters.ASNRecord{AutonomousSystemNumber: record.AutonomousSystemNumber}, nil
}

// Close releases both underlying mmaps.
func (r *Reader) Close() error {
	if r.asn != nil {
		if err := r.asn.Close(); err != nil {
			return err
		}
	}
	return r.city.Close()
}
