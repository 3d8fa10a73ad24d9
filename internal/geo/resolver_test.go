package geo_test

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"identityguard/internal/adapters"
	"identityguard/internal/geo"
)

type fakeReader struct {
	city *adapters.CityRecord
	err  error
}

func (f fakeReader) City(net.IP) (*adapters.CityRecord, error) { return f.city, f.err }
func (f fakeReader) ASN(net.IP) (*adapters.ASNRecord, error)   { return nil, nil }
func (f fakeReader) Close() error                              { return nil }

type fakeAsnLookup struct {
	asn uint32
	err error
}

func (f fakeAsnLookup) LookupAsn(context.Context, string) (uint32, error) { return f.asn, f.err }

func TestResolver_Lookup_InvalidIPIsUnknown(t *testing.T) {
	t.Parallel()

	r := geo.NewResolver(fakeReader{}, nil, nil)
	loc := r.Lookup(context.Background(), "not-an-ip")
	require.True(t, loc.IsUnknown())
}

func TestResolver_Lookup_DatabaseMissIsUnknown(t *testing.T) {
	t.Parallel()

	r := geo.NewResolver(fakeReader{err: errors.New("not found")}, nil, nil)
	loc := r.Lookup(context.Background(), "203.0.113.1")
	require.True(t, loc.IsUnknown())
}

func TestResolver_Lookup_ProjectsFields(t *testing.T) {
	t.Parallel()

	city := &adapters.CityRecord{
		CountryCode: "US",
		CountryName: "United States",
		City:        "Springfield",
		Latitude:    39.1,
		Longitude:   -94.5,
	}
	r := geo.NewResolver(fakeReader{city: city}, nil, nil)

	loc := r.Lookup(context.Background(), "203.0.113.1")
	require.False(t, loc.IsUnknown())
	require.Equal(t, "US", loc.CountryCode)
	require.Equal(t, "Springfield", loc.City)
	require.False(t, loc.HasASN())
}

func TestResolver_Lookup_EnrichesWithAsnOnSuccess(t *testing.T) {
	t.Parallel()

	city := &adapters.CityRecord{CountryCode: "US", Latitude: 1, Longitude: 1}
	r := geo.NewResolver(fakeReader{city: city}, fakeAsnLookup{asn: 64512}, nil)

	loc := r.Lookup(context.Background(), "203.0.113.1")
	require.True(t, loc.HasASN())
	require.Equal(t, uint32(64512), *loc.ASN)
}

func TestResolver_Lookup_SwallowsAsnEnrichmentFailure(t *testing.T) {
	t.Parallel()

	city := &adapters.CityRecord{CountryCode: "US", Latitude: 1, Longitude: 1}
	r := geo.NewResolver(fakeReader{city: city}, fakeAsnLookup{err: errors.New("boom")}, nil)

	loc := r.Lookup(context.Background(), "203.0.113.1")
	require.False(t, loc.IsUnknown())
	require.False(t, loc.HasASN(), "asn enrichment failure must not surface as an error or block the location")
}
