package asn_test

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"identityguard/internal/adapters"
	"identityguard/internal/asn"
)

type fakeReader struct {
	asn *adapters.ASNRecord
	err error
}

func (f fakeReader) City(net.IP) (*adapters.CityRecord, error) { return nil, nil }
func (f fakeReader) ASN(net.IP) (*adapters.ASNRecord, error)   { return f.asn, f.err }
func (f fakeReader) Close() error                              { return nil }

func TestGeoIPStage_Lookup(t *testing.T) {
	t.Parallel()

	stage := asn.NewGeoIPStage(fakeReader{asn: &adapters.ASNRecord{AutonomousSystemNumber: 64512}})
	result, err := stage.Lookup(context.Background(), "203.0.113.1")
	require.NoError(t, err)
	require.Equal(t, uint32(64512), result)
}

func TestGeoIPStage_Lookup_Miss(t *testing.T) {
	t.Parallel()

	stage := asn.NewGeoIPStage(fakeReader{err: errors.New("not found")})
	_, err := stage.Lookup(context.Background(), "203.0.113.1")
	require.Error(t, err)
}

func TestGeoIPStage_Lookup_InvalidIP(t *testing.T) {
	t.Parallel()

	stage := asn.NewGeoIPStage(fakeReader{})
	_, err := stage.Lookup(context.Background(), "not-an-ip")
	require.Error(t, err)
}
