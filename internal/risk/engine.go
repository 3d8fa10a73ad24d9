// Package risk implements RiskEngine (spec §4.6 C7): combines GeoResolver,
// LocationHistory, and a set of policy tables into a single RiskResult per
// authentication attempt.
package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"identityguard/internal/adapters"
	"identityguard/internal/domain"
	"identityguard/internal/history"
	"identityguard/internal/magic"
)

// GeoLookup is the subset of geo.Resolver the engine depends on.
type GeoLookup interface {
	Lookup(ctx context.Context, ip string) domain.GeoLocation
}

// Config holds the risk engine's policy tables and thresholds, all
// overridable from the layered config (spec §6).
type Config struct {
	TimeWindow             time.Duration
	ImpossibleSpeedKMH     float64
	KnownVPNASNs           map[uint32]struct{}
	VPNReputationThreshold int
	HighRiskCountries      map[string]struct{}
}

// DefaultConfig returns the spec's documented defaults with empty policy
// tables; callers populate KnownVPNASNs/HighRiskCountries from config.
func DefaultConfig() Config {
	return Config{
		TimeWindow:             magic.DefaultTimeWindow,
		ImpossibleSpeedKMH:     magic.DefaultImpossibleSpeedKMH,
		VPNReputationThreshold: magic.DefaultVPNReputationScore,
		KnownVPNASNs:           map[uint32]struct{}{},
		HighRiskCountries:      map[string]struct{}{},
	}
}

// ReputationLookup optionally scores an ASN's VPN/proxy reputation; nil
// disables the secondary VPN check (spec §4.6: "optional secondary check").
type ReputationLookup interface {
	Reputation(ctx context.Context, asn uint32) (int, error)
}

// Engine is the RiskEngine component.
type Engine struct {
	geo         GeoLookup
	history     *history.Store
	alerts      adapters.AlertTransport
	config      Config
	reputation  ReputationLookup
	now         func() time.Time
}

// NewEngine constructs an Engine. alerts and reputation may be nil.
func NewEngine(geo GeoLookup, hist *history.Store, alerts adapters.AlertTransport, reputation ReputationLookup, config Config) *Engine {
	return &Engine{
		geo:        geo,
		history:    hist,
		alerts:     alerts,
		config:     config,
		reputation: reputation,
		now:        time.Now,
	}
}

// Verify runs the full risk evaluation algorithm for a single authentication
// attempt from ip on behalf of userID (spec §4.6).
func (e *Engine) Verify(ctx context.Context, ip, userID string) (domain.RiskResult, error) {
	loc := e.geo.Lookup(ctx, ip)
	if loc.IsUnknown() {
		return domain.RiskResult{Risk: domain.RiskMedium, Alerts: []string{"location_unknown"}}, nil
	}

	hist, err := e.history.Get(ctx, userID)
	if err != nil {
		return domain.RiskResult{}, err
	}

	result := domain.LowRisk()
	result = e.checkImpossibleTravel(ctx, result, loc, hist, userID)
	result = e.checkVPNRisk(ctx, result, loc)
	result = e.checkCountryRisk(result, loc)

	// Appended even on HIGH (spec §4.6).
	if _, err := e.history.Append(ctx, userID, loc); err != nil {
		return domain.RiskResult{}, err
	}

	return result, nil
}

// VerifyStepUp runs Verify and relaxes a HIGH verdict by one tier when
// method is a strong possession factor, matching spec.md §1's step-up-auth
// intent (a login via WebAuthn or TOTP trusts the device more readily than
// one via a bare password). Verify's own signature and algorithm are
// untouched; this is an additive wrapper for callers that know the
// authentication method used.
func (e *Engine) VerifyStepUp(ctx context.Context, ip, userID string, method domain.AuthMethod) (domain.RiskResult, error) {
	result, err := e.Verify(ctx, ip, userID)
	if err != nil {
		return result, err
	}
	if method.StrongPossessionFactor() && result.Risk == domain.RiskHigh {
		result.Risk = domain.RiskMedium
		result.Alerts = append(result.Alerts, "downgraded_strong_factor:"+string(method))
	}
	return result, nil
}

// checkImpossibleTravel flags HIGH when the implied velocity between the
// user's last known location and loc exceeds ImpossibleSpeedKMH.
func (e *Engine) checkImpossibleTravel(ctx context.Context, result domain.RiskResult, loc domain.GeoLocation, hist domain.LocationHistory, userID string) domain.RiskResult {
	last, ok := hist.Last()
	if !ok || !last.Location.HasCoordinates() || !loc.HasCoordinates() {
		return result
	}

	elapsed := e.now().Sub(last.Timestamp)
	if elapsed > e.config.TimeWindow {
		return result
	}

	distance, ok := haversineKM(last.Location.Latitude, last.Location.Longitude, loc.Latitude, loc.Longitude)
	if !ok {
		return result
	}

	var speed float64
	if elapsed <= time.Second {
		speed = math.Inf(1)
	} else {
		speed = distance / elapsed.Hours()
	}

	if speed <= e.config.ImpossibleSpeedKMH {
		return result
	}

	result = result.Raise(domain.RiskHigh, "impossible_travel")
	if e.alerts != nil {
		_ = e.alerts.Send(ctx, domain.SecurityAlert{
			UserID:      userID,
			Severity:    domain.SeverityHigh,
			Reason:      "impossible_travel",
			DistanceKM:  distance,
			SpeedKMH:    speed,
			Elapsed:     elapsed,
			FromCity:    last.Location.City,
			FromCountry: last.Location.CountryCode,
			ToCity:      loc.City,
			ToCountry:   loc.CountryCode,
			At:          e.now(),
		})
	}
	return result
}

// checkVPNRisk flags at least MEDIUM for a known VPN ASN, and also at least
// MEDIUM when an optional external reputation lookup scores the ASN below
// VPNReputationThreshold (spec §4.6).
func (e *Engine) checkVPNRisk(ctx context.Context, result domain.RiskResult, loc domain.GeoLocation) domain.RiskResult {
	if !loc.HasASN() {
		return result
	}
	asn := *loc.ASN

	if _, known := e.config.KnownVPNASNs[asn]; known {
		result = result.Raise(domain.RiskMedium, fmt.Sprintf("vpn_asn:%d", asn))
	}

	if e.reputation != nil {
		score, err := e.reputation.Reputation(ctx, asn)
		if err == nil && score < e.config.VPNReputationThreshold {
			result = result.Raise(domain.RiskMedium, fmt.Sprintf("vpn_reputation:%d", asn))
		}
	}
	return result
}

// checkCountryRisk flags at least MEDIUM when loc's country is on the
// configured high-risk list (spec §4.6).
func (e *Engine) checkCountryRisk(result domain.RiskResult, loc domain.GeoLocation) domain.RiskResult {
	if _, risky := e.config.HighRiskCountries[loc.CountryCode]; risky {
		result = result.Raise(domain.RiskMedium, "country_risk:"+loc.CountryCode)
	}
	return result
}

// haversineKM computes the great-circle distance in kilometers between two
// coordinate pairs. Returns ok=false when any coordinate is non-finite or
// out of range (spec §4.6 distance validation), in which case the caller
// must skip impossible-travel evaluation rather than treat distance as 0
// meaningfully — we still return 0 for convenience, matching spec wording.
func haversineKM(lat1, lon1, lat2, lon2 float64) (float64, bool) {
	for _, v := range []float64{lat1, lat2} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < -90 || v > 90 {
			return 0, false
		}
	}
	for _, v := range []float64{lon1, lon2} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < -180 || v > 180 {
			return 0, false
		}
	}

	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return magic.EarthRadiusKM * c, true
}
