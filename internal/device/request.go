package device

import (
	"net"
	"strings"
)

// Request carries the request-derived signals DeviceFingerprint consumes,
// decoupled from net/http so the fingerprint function stays pure and
// testable without standing up a real HTTP server (spec §1: HTTP plumbing
// is out of scope).
type Request struct {
	Headers    map[string]string
	RemoteAddr string
}

// ipHeaderPriority is the fixed priority list of headers scanned for the
// client IP before falling back to the transport peer address (spec §4.7.1).
var ipHeaderPriority = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
}

// ClientIP resolves the request's client IP by scanning ipHeaderPriority in
// order, skipping blank values and the literal "unknown", then falling back
// to RemoteAddr. X-Forwarded-For's first hop is used when the header
// carries a comma-separated chain.
func (r Request) ClientIP() string {
	for _, name := range ipHeaderPriority {
		v := strings.TrimSpace(r.header(name))
		if v == "" || strings.EqualFold(v, "unknown") {
			continue
		}
		if name == "X-Forwarded-For" {
			if idx := strings.Index(v, ","); idx >= 0 {
				v = strings.TrimSpace(v[:idx])
			}
		}
		return v
	}
	return stripPort(r.RemoteAddr)
}

func (r Request) header(name string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// stripPort removes a trailing ":port" from a host:port remote address,
// leaving bare IPs (and malformed values) untouched.
func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// Platform classifies a User-Agent string into a coarse platform bucket by
// substring match (spec §4.7.1).
type Platform string

const (
	PlatformWindows Platform = "Windows"
	PlatformMacOS   Platform = "macOS"
	PlatformLinux   Platform = "Linux"
	PlatformAndroid Platform = "Android"
	PlatformIOS     Platform = "iOS"
	PlatformOther   Platform = "Other"
)

// ClassifyPlatform derives a Platform from a User-Agent string.
func ClassifyPlatform(userAgent string) Platform {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "windows"):
		return PlatformWindows
	case strings.Contains(ua, "android"):
		// Checked before "linux": Android user agents also contain "Linux".
		return PlatformAndroid
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ios"):
		return PlatformIOS
	case strings.Contains(ua, "mac"):
		return PlatformMacOS
	case strings.Contains(ua, "linux"):
		return PlatformLinux
	default:
		return PlatformOther
	}
}
