package device

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"identityguard/internal/magic"
)

// signalHeaders names every header (beyond the derived platform and client
// IP) the fingerprint function folds in (spec §4.7.1).
var signalHeaders = []string{
	"User-Agent",
	"Accept-Language",
	"Accept",
	"Accept-Encoding",
	"Sec-Fetch-Site",
	"Sec-Fetch-Mode",
	"Sec-Ch-Ua-Platform",
}

// Generator computes stable device fingerprints from request signals.
type Generator struct {
	salt string
}

// NewGenerator constructs a Generator appending salt to every digest input.
func NewGenerator(salt string) *Generator {
	return &Generator{salt: salt}
}

// Generate collects client IP, User-Agent-derived platform, and the
// remaining signal headers into sorted "k:v" pairs, joins them with "|",
// appends the salt, and hashes with SHA-256 into an unpadded URL-safe
// base64 digest (spec §4.7.1). Collection is deterministic: identical
// signals always produce the identical digest. If no signal was present at
// all, returns a random, uncacheable "fallback_"-prefixed value.
func (g *Generator) Generate(req Request) (string, error) {
	signals := map[string]string{}

	if ip := req.ClientIP(); ip != "" {
		signals["ip"] = ip
	}
	if ua := req.header("User-Agent"); ua != "" {
		signals["platform"] = string(ClassifyPlatform(ua))
		signals["user-agent"] = ua
	}
	for _, name := range signalHeaders[1:] {
		if v := strings.TrimSpace(req.header(name)); v != "" {
			signals[strings.ToLower(name)] = v
		}
	}

	if len(signals) == 0 {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", err
		}
		return magic.FallbackFingerprintPrefix + id.String(), nil
	}

	keys := make([]string, 0, len(signals))
	for k := range signals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s:%s", k, signals[k]))
	}

	input := strings.Join(pairs, "|") + g.salt
	digest := sha256.Sum256([]byte(input))
	return base64.RawURLEncoding.EncodeToString(digest[:]), nil
}
