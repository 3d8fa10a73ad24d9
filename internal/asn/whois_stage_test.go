package asn_test

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"identityguard/internal/asn"
)

// fakeWHOISServer starts a one-shot TCP listener that replies with body to
// the first connection, mimicking a real WHOIS server closely enough to
// exercise WHOISStage's parsing without a network dependency.
func fakeWHOISServer(t *testing.T, body string) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		_, _ = reader.ReadString('\n')
		_, _ = conn.Write([]byte(body))
	}()

	return listener.Addr().String()
}

func TestWHOISStage_ParsesOriginLine(t *testing.T) {
	t.Parallel()

	addr := fakeWHOISServer(t, "route: 203.0.113.0/24\norigin:   AS64512\nsource: TEST\n")
	stage := asn.NewWHOISStage(addr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := stage.Lookup(ctx, "203.0.113.1")
	require.NoError(t, err)
	require.Equal(t, uint32(64512), result)
}

func TestWHOISStage_NoOriginLine(t *testing.T) {
	t.Parallel()

	addr := fakeWHOISServer(t, "route: 203.0.113.0/24\nsource: TEST\n")
	stage := asn.NewWHOISStage(addr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := stage.Lookup(ctx, "203.0.113.1")
	require.Error(t, err)
}

func TestWHOISStage_RejectsInvalidIP(t *testing.T) {
	t.Parallel()

	stage := asn.NewWHOISStage("127.0.0.1:1")
	_, err := stage.Lookup(context.Background(), "not-an-ip")
	require.Error(t, err)
}
