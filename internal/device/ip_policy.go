package device

import (
	"context"
	"net"
)

// StaticIPPolicy is a minimal adapters.IPPolicy backed by a configured CIDR
// blocklist and an explicit suspicious-IP set. Spec §4.7.2 step 2 names the
// two checks but leaves their data source to the host; this reference
// implementation is intentionally simple — a real deployment might back
// Suspicious with a threat-intel feed.
type StaticIPPolicy struct {
	blockedNets []*net.IPNet
	suspicious  map[string]struct{}
}

// NewStaticIPPolicy constructs a policy from CIDR blocklist strings (invalid
// entries are skipped) and an explicit suspicious-IP set.
func NewStaticIPPolicy(blockedCIDRs []string, suspiciousIPs []string) *StaticIPPolicy {
	p := &StaticIPPolicy{suspicious: make(map[string]struct{}, len(suspiciousIPs))}
	for _, cidr := range blockedCIDRs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		p.blockedNets = append(p.blockedNets, ipNet)
	}
	for _, ip := range suspiciousIPs {
		p.suspicious[ip] = struct{}{}
	}
	return p
}

// Blocklisted reports whether ip falls within any configured CIDR block.
// A malformed ip is reported as not blocked — spec §4.7.2 only rejects on
// blocklist/heuristic hits, logging but not rejecting malformed IPs.
func (p *StaticIPPolicy) Blocklisted(_ context.Context, ip string) (bool, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false, nil
	}
	for _, n := range p.blockedNets {
		if n.Contains(parsed) {
			return true, nil
		}
	}
	return false, nil
}

// Suspicious reports whether ip is on the explicit suspicious set.
func (p *StaticIPPolicy) Suspicious(_ context.Context, ip string) (bool, error) {
	_, ok := p.suspicious[ip]
	return ok, nil
}
