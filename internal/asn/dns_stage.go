package asn

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"identityguard/internal/apperr"
	"identityguard/internal/magic"
)

// DNSStage resolves ASN via a reverse-DNS TXT lookup against the
// origin.asn.cymru.com zone (spec §4.3.1 stage 2), parsing the
// "ASN | prefix | country | registry | date" response format.
type DNSStage struct {
	client *dns.Client
	server string
	zone   string
}

// NewDNSStage constructs a stage querying server (host:port) for the zone.
func NewDNSStage(server string) *DNSStage {
	return &DNSStage{
		client: &dns.Client{Timeout: magic.DNSTimeout},
		server: server,
		zone:   magic.CymruASNZone,
	}
}

func (s *DNSStage) Name() string { return "cymru-dns" }

func (s *DNSStage) Lookup(ctx context.Context, ip string) (uint32, error) {
	reversed, err := reverseIPv4(ip)
	if err != nil {
		return 0, err
	}

	msg := new(dns.Msg)
	msg.SetQuestion(reversed+"."+s.zone+".", dns.TypeTXT)

	resp, _, err := s.client.ExchangeContext(ctx, msg, s.server)
	if err != nil {
		return 0, apperr.Wrap(apperr.ExternalUnavailable, err, "cymru dns exchange failed")
	}
	if resp == nil || len(resp.Answer) == 0 {
		return 0, apperr.New(apperr.ExternalUnavailable, "cymru dns returned no answer")
	}

	for _, rr := range resp.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok || len(txt.Txt) == 0 {
			continue
		}
		asn, err := parseCymruTXT(txt.Txt[0])
		if err == nil {
			return asn, nil
		}
	}
	return 0, apperr.New(apperr.ExternalUnavailable, "cymru dns answer did not contain a parseable asn")
}

// reverseIPv4 reverses the octets of an IPv4 address for the cymru zone
// query ("1.2.3.4" -> "4.3.2.1"). Non-IPv4 addresses are rejected; the
// cymru service has a separate (unimplemented) IPv6 zone.
func reverseIPv4(ip string) (string, error) {
	parsed := net.ParseIP(ip).To4()
	if parsed == nil {
		return "", apperr.New(apperr.IPInvalid, "cymru lookup requires an ipv4 address")
	}
	parts := strings.Split(parsed.String(), ".")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "."), nil
}

// parseCymruTXT extracts the leading ASN field from a cymru TXT record of
// the form "ASN | prefix | country | registry | date".
func parseCymruTXT(txt string) (uint32, error) {
	fields := strings.Split(txt, "|")
	if len(fields) == 0 {
		return 0, apperr.New(apperr.ExternalUnavailable, "empty cymru txt record")
	}
	asn, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 32)
	if err != nil {
		return 0, apperr.Wrap(apperr.ExternalUnavailable, err, "cymru txt record did not start with an asn")
	}
	return uint32(asn), nil
}
