package asn

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"

	"identityguard/internal/apperr"
	"identityguard/internal/magic"
)

// originLinePattern matches a WHOIS response line of the form
// "origin: AS64512" (spec §4.3.1 stage 3), case-insensitively and tolerant
// of extra whitespace.
var originLinePattern = regexp.MustCompile(`(?i)origin:\s*AS(\d+)`)

// WHOISStage resolves ASN via a raw WHOIS query over TCP/43 — the slowest,
// last-resort stage in the chain (spec §4.3.1 stage 3). This is the one
// stage with no library in the example corpus to lean on: WHOIS is a
// line-oriented plaintext protocol with no structured client worth adopting,
// so it is hand-rolled directly on net.Dial (see DESIGN.md).
type WHOISStage struct {
	server string
}

// NewWHOISStage constructs a stage querying server (host:port), defaulting
// to magic.DefaultWHOISServer when server is empty.
func NewWHOISStage(server string) *WHOISStage {
	if server == "" {
		server = magic.DefaultWHOISServer
	}
	return &WHOISStage{server: server}
}

func (s *WHOISStage) Name() string { return "whois" }

func (s *WHOISStage) Lookup(ctx context.Context, ip string) (uint32, error) {
	if net.ParseIP(ip) == nil {
		return 0, apperr.New(apperr.IPInvalid, "not a valid ip address")
	}

	dialer := net.Dialer{Timeout: magic.WHOISTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.server)
	if err != nil {
		return 0, apperr.Wrap(apperr.ExternalUnavailable, err, "whois dial failed")
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(magic.WHOISTimeout))
	}

	if _, err := fmt.Fprintf(conn, "%s\r\n", ip); err != nil {
		return 0, apperr.Wrap(apperr.ExternalUnavailable, err, "whois write failed")
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if m := originLinePattern.FindStringSubmatch(scanner.Text()); m != nil {
			asn, err := strconv.ParseUint(m[1], 10, 32)
			if err != nil {
				continue
			}
			return uint32(asn), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, apperr.Wrap(apperr.ExternalUnavailable, err, "whois read failed")
	}
	return 0, apperr.New(apperr.ExternalUnavailable, "whois response contained no origin line")
}
