package asn_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"identityguard/internal/asn"
	"identityguard/internal/domain"
)

func TestSweeper_SweepOnceDeletesStaleRows(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	now := time.Now()
	store.entries["stale"] = domain.AsnEntry{IP: "stale", ASN: 1, LastModifiedAt: now.Add(-60 * 24 * time.Hour)}
	store.entries["fresh"] = domain.AsnEntry{IP: "fresh", ASN: 2, LastModifiedAt: now}

	sweeper := asn.NewSweeper(store, 30*24*time.Hour, nil)
	removed, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	_, ok := store.entries["stale"]
	require.False(t, ok)
	_, ok = store.entries["fresh"]
	require.True(t, ok)
}

func TestSweeper_StartAndStop(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sweeper := asn.NewSweeper(store, time.Hour, nil)

	require.NoError(t, sweeper.Start("@every 1h"))
	sweeper.Stop()
}
