// Package device implements DeviceFingerprint (spec §4.7 C8): the stable
// fingerprint function plus the per-user device-record lifecycle — register,
// validate, verify, trust/untrust, revoke, and the enable/disable opt-out.
package device

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"identityguard/internal/adapters"
	"identityguard/internal/apperr"
	"identityguard/internal/audit"
	"identityguard/internal/domain"
	"identityguard/internal/magic"
	"identityguard/internal/ratelimit"
)

// RiskVerifier is the subset of risk.Engine the manager depends on.
type RiskVerifier interface {
	Verify(ctx context.Context, ip, userID string) (domain.RiskResult, error)
}

// StepUpRiskVerifier is a RiskVerifier that also knows how to relax its
// verdict for a strong possession factor (risk.Engine.VerifyStepUp). A
// Manager only exercises the step-up path when its configured risk
// implements this — a plain RiskVerifier still works for Register/Validate.
type StepUpRiskVerifier interface {
	RiskVerifier
	VerifyStepUp(ctx context.Context, ip, userID string, method domain.AuthMethod) (domain.RiskResult, error)
}

// LocationResolver is the subset of geo.Resolver the manager depends on to
// enrich a device record's location/lastKnownCountry fields (spec §4.7.2
// step 7). RiskResult itself carries no location (spec §3's RiskResult is
// strictly {risk, alerts}), so Register resolves location separately rather
// than widening RiskResult's shape.
type LocationResolver interface {
	Lookup(ctx context.Context, ip string) domain.GeoLocation
}

// Manager is the DeviceFingerprint component.
type Manager struct {
	generator *Generator
	store     adapters.DeviceRecordStore
	users     adapters.UserStore
	ipPolicy  adapters.IPPolicy
	limiter   ratelimit.Limiter
	risk      RiskVerifier
	webAuthn  WebAuthnVerifier
	locator   LocationResolver
	sink      *audit.Sink
	maxDevices int
	maxFailed  int
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures optional Manager behavior not needed by every caller.
type Option func(*Manager)

// WithWebAuthnVerifier attaches the host's passkey-assertion verifier so
// VerifyWebAuthn becomes usable; without it, VerifyWebAuthn always fails.
func WithWebAuthnVerifier(v WebAuthnVerifier) Option {
	return func(m *Manager) { m.webAuthn = v }
}

// WithLocationResolver attaches the geo resolver Register uses to enrich a
// device record's location/lastKnownCountry (spec §4.7.2 step 7). Without
// it those fields are left untouched on registration.
func WithLocationResolver(l LocationResolver) Option {
	return func(m *Manager) { m.locator = l }
}

// WithMaxDevices overrides the default per-user device cap (spec §6
// device.max-per-user).
func WithMaxDevices(n int) Option {
	return func(m *Manager) { m.maxDevices = n }
}

// WithMaxFailedAttempts overrides the default failed-attempt threshold
// before a device record is deactivated (spec §6 device.max-failed-attempts).
func WithMaxFailedAttempts(n int) Option {
	return func(m *Manager) { m.maxFailed = n }
}

// NewManager constructs a Manager. sink may be nil to disable audit
// emission (e.g. in tests that don't care about it).
func NewManager(generator *Generator, store adapters.DeviceRecordStore, users adapters.UserStore, ipPolicy adapters.IPPolicy, limiter ratelimit.Limiter, risk RiskVerifier, sink *audit.Sink, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		generator:  generator,
		store:      store,
		users:      users,
		ipPolicy:   ipPolicy,
		limiter:    limiter,
		risk:       risk,
		sink:       sink,
		maxDevices: magic.DefaultMaxDevicesPerUser,
		maxFailed:  magic.DefaultMaxFailedAttempts,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// VerifyWebAuthn runs the host-supplied passkey assertion verifier and, on
// success, re-scores risk via VerifyStepUp so a WebAuthn login is trusted
// more readily than a bare password (spec.md §1). Returns an apperr.Internal
// error when no verifier was configured — callers should check
// WithWebAuthnVerifier was supplied before relying on this.
func (m *Manager) VerifyWebAuthn(ctx context.Context, userID uuid.UUID, ip string, response []byte) (domain.RiskResult, error) {
	if m.webAuthn == nil {
		return domain.RiskResult{}, apperr.New(apperr.Internal, "no webauthn verifier configured")
	}

	if _, err := m.webAuthn.Verify(ctx, userID, response); err != nil {
		return domain.RiskResult{}, apperr.New(apperr.Internal, "webauthn assertion failed")
	}

	if m.risk == nil {
		return domain.LowRisk(), nil
	}
	if stepUp, ok := m.risk.(StepUpRiskVerifier); ok {
		return stepUp.VerifyStepUp(ctx, ip, userID.String(), domain.AuthMethodWebAuthn)
	}
	return m.risk.Verify(ctx, ip, userID.String())
}

func (m *Manager) audit(actor, action, target, ip string, details map[string]string) {
	if m.sink == nil {
		return
	}
	m.sink.Emit(domain.AuditEvent{Actor: actor, Action: action, Target: target, Details: details, IP: ip, At: m.now()})
}

// checkIP admits the caller via the rate limiter keyed by ip and rejects
// blocklisted/suspicious IPs (spec §4.7.2 steps 1-2). Malformed IPs are not
// rejected here — callers rely on net.ParseIP failing further downstream
// (e.g. in the geo/asn resolvers) where it degrades to UNKNOWN rather than
// an error. Rejections are audited per spec §7's "reject, audit" policy;
// actor may be blank when the caller hasn't resolved a user id yet.
func (m *Manager) checkIP(ctx context.Context, actor, ip string) error {
	if m.limiter != nil {
		decision, err := m.limiter.TryAcquire(ctx, ip)
		if err != nil {
			return apperr.Wrap(apperr.RateLimiterUnavailable, err, "rate limiter unavailable")
		}
		if !decision.Allowed {
			m.audit(actor, "RATE_LIMIT_DENIED", ip, ip, nil)
			return apperr.New(apperr.RateLimit, "too many attempts from this ip")
		}
	}

	if m.ipPolicy != nil {
		blocked, err := m.ipPolicy.Blocklisted(ctx, ip)
		if err != nil {
			return apperr.Wrap(apperr.Internal, err, "ip blocklist check failed")
		}
		if blocked {
			m.audit(actor, "IP_BLOCKED", ip, ip, nil)
			return apperr.New(apperr.IPBlocked, "ip is blocklisted")
		}

		suspicious, err := m.ipPolicy.Suspicious(ctx, ip)
		if err != nil {
			return apperr.Wrap(apperr.Internal, err, "ip suspicion check failed")
		}
		if suspicious {
			m.audit(actor, "IP_SUSPICIOUS", ip, ip, nil)
			return apperr.New(apperr.IPSuspicious, "ip tripped suspicious-activity heuristics")
		}
	}
	return nil
}

// Register implements spec §4.7.2: admits via rate limit and IP policy,
// validates the user, enforces the per-user device cap, upserts the
// (userId, fingerprint) record, enriches it from the risk engine, and
// audits the outcome.
func (m *Manager) Register(ctx context.Context, userID uuid.UUID, user *domain.User, req Request) (*domain.DeviceRecord, error) {
	ip := req.ClientIP()
	if err := m.checkIP(ctx, userID.String(), ip); err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.New(apperr.UserNotFound, "unknown user")
	}
	if !user.DeviceFingerprintingEnabled {
		return nil, apperr.New(apperr.FingerprintingDisabled, "user has disabled device fingerprinting")
	}

	fingerprint, err := m.generator.Generate(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "fingerprint generation failed")
	}

	existing, err := m.store.FindByUserAndFingerprint(ctx, userID, fingerprint)
	if err != nil && !apperr.Is(err, apperr.DeviceNotFound) {
		return nil, err
	}

	isNew := existing == nil
	if isNew {
		count, err := m.store.CountActiveByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if count >= m.maxDevices {
			m.audit(userID.String(), "MAX_DEVICES_REJECTED", "", ip, nil)
			return nil, apperr.New(apperr.MaxDevices, "user has reached the maximum number of active devices")
		}

		existing = &domain.DeviceRecord{
			UserID:      userID,
			Fingerprint: fingerprint,
			Active:      true,
			Trusted:     false,
		}
	}

	existing.LastUsedAt = m.now()
	existing.LastKnownIP = ip
	existing.FailedAttempts = 0
	existing.BrowserInfo = req.header("User-Agent")
	existing.UpdateCount++

	if m.risk != nil {
		result, err := m.risk.Verify(ctx, ip, userID.String())
		if err == nil && result.Risk >= domain.RiskMedium {
			existing.Trusted = false
		}
	}

	if m.locator != nil {
		if loc := m.locator.Lookup(ctx, ip); !loc.IsUnknown() {
			existing.Location = &loc
			existing.LastKnownCountry = loc.CountryCode
		}
	}

	if err := m.store.Save(ctx, existing); err != nil {
		return nil, err
	}

	action := "DEVICE_UPDATED"
	if isNew {
		action = "NEW_DEVICE_REGISTERED"
	}
	m.audit(userID.String(), action, existing.ID.String(), ip, map[string]string{"fingerprint": fingerprint})

	return existing, nil
}

// Validate implements spec §4.7.3: requires an existing active record,
// re-runs IP checks, and refreshes usage telemetry.
func (m *Manager) Validate(ctx context.Context, userID uuid.UUID, fingerprint string, req Request) (*domain.DeviceRecord, error) {
	ip := req.ClientIP()
	if err := m.checkIP(ctx, userID.String(), ip); err != nil {
		return nil, err
	}

	record, err := m.store.FindByUserAndFingerprint(ctx, userID, fingerprint)
	if err != nil {
		return nil, err
	}
	if !record.Active {
		return nil, apperr.New(apperr.DeviceInactive, "device record is not active")
	}

	record.LastUsedAt = m.now()
	record.LastKnownIP = ip
	record.FailedAttempts = 0
	record.UpdateCount++

	if err := m.store.Save(ctx, record); err != nil {
		return nil, err
	}

	m.audit(userID.String(), "DEVICE_VALIDATED", record.ID.String(), ip, nil)
	return record, nil
}

// Verify implements spec §4.7.3: recomputes the current fingerprint and,
// if it differs from tokenFingerprint, falls back to matching any active
// record for the user before raising DEVICE_MISMATCH.
func (m *Manager) Verify(ctx context.Context, userID uuid.UUID, tokenFingerprint string, req Request) (*domain.DeviceRecord, error) {
	current, err := m.generator.Generate(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "fingerprint generation failed")
	}

	if tokenFingerprint == current {
		return m.store.FindByUserAndFingerprint(ctx, userID, current)
	}

	record, err := m.store.FindByUserAndFingerprint(ctx, userID, current)
	if err != nil || !record.Active {
		m.audit(userID.String(), "DEVICE_MISMATCH", current, req.ClientIP(), nil)
		return nil, apperr.New(apperr.DeviceMismatch, "presented fingerprint does not match any active device")
	}

	record.LastUsedAt = m.now()
	if err := m.store.Save(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Trust flips a device record's trusted flag to true.
func (m *Manager) Trust(ctx context.Context, userID uuid.UUID, fingerprint string) error {
	return m.setTrust(ctx, userID, fingerprint, true)
}

// Untrust flips a device record's trusted flag to false.
func (m *Manager) Untrust(ctx context.Context, userID uuid.UUID, fingerprint string) error {
	return m.setTrust(ctx, userID, fingerprint, false)
}

func (m *Manager) setTrust(ctx context.Context, userID uuid.UUID, fingerprint string, trusted bool) error {
	record, err := m.store.FindByUserAndFingerprint(ctx, userID, fingerprint)
	if err != nil {
		return err
	}
	record.Trusted = trusted
	record.LastUsedAt = m.now()
	return m.store.Save(ctx, record)
}

// MarkSuspicious increments failedAttempts and deactivates the record once
// it reaches maxFailed (spec §4.7.3, §3 invariant 3).
func (m *Manager) MarkSuspicious(ctx context.Context, userID uuid.UUID, fingerprint string) error {
	record, err := m.store.FindByUserAndFingerprint(ctx, userID, fingerprint)
	if err != nil {
		return err
	}

	record.FailedAttempts++
	if record.FailedAttempts >= m.maxFailed {
		m.deactivate(record)
	}

	if err := m.store.Save(ctx, record); err != nil {
		return err
	}
	m.audit(userID.String(), "DEVICE_MARKED_SUSPICIOUS", record.ID.String(), record.LastKnownIP, nil)
	return nil
}

func (m *Manager) deactivate(record *domain.DeviceRecord) {
	record.Active = false
	record.Trusted = false
	now := m.now()
	record.DeactivatedAt = &now
}

// Revoke deactivates a single device record by id.
func (m *Manager) Revoke(ctx context.Context, userID, deviceID uuid.UUID) error {
	record, err := m.store.FindByID(ctx, deviceID)
	if err != nil {
		return err
	}
	if record.UserID != userID {
		return apperr.New(apperr.DeviceNotFound, "device does not belong to this user")
	}
	m.deactivate(record)
	if err := m.store.Save(ctx, record); err != nil {
		return err
	}
	m.audit(userID.String(), "DEVICE_REVOKED", record.ID.String(), record.LastKnownIP, nil)
	return nil
}

// RevokeAllExcept deactivates every active device of userID except the one
// matching keepFingerprint.
func (m *Manager) RevokeAllExcept(ctx context.Context, userID uuid.UUID, keepFingerprint string) error {
	records, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	for i := range records {
		record := &records[i]
		if !record.Active || record.Fingerprint == keepFingerprint {
			continue
		}
		m.deactivate(record)
		if err := m.store.Save(ctx, record); err != nil {
			return err
		}
	}
	m.audit(userID.String(), "DEVICE_REVOKE_ALL_EXCEPT", keepFingerprint, "", nil)
	return nil
}

// Disable sets the user's fingerprinting flag off and deactivates every
// active device in one logical batch (spec §4.7.3).
func (m *Manager) Disable(ctx context.Context, userID uuid.UUID) error {
	if err := m.users.SetDeviceFingerprintingEnabled(ctx, userID, false); err != nil {
		return err
	}

	records, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	for i := range records {
		record := &records[i]
		if !record.Active {
			continue
		}
		m.deactivate(record)
		if err := m.store.Save(ctx, record); err != nil {
			return err
		}
	}
	m.audit(userID.String(), "DEVICE_FINGERPRINTING_DISABLED", userID.String(), "", nil)
	return nil
}

// Enable sets the user's fingerprinting flag on; previously deactivated
// records remain inactive (spec §4.7.3).
func (m *Manager) Enable(ctx context.Context, userID uuid.UUID) error {
	if err := m.users.SetDeviceFingerprintingEnabled(ctx, userID, true); err != nil {
		return err
	}
	m.audit(userID.String(), "DEVICE_FINGERPRINTING_ENABLED", userID.String(), "", nil)
	return nil
}

// ListDevices returns the read-only projection of every device record for
// userID, marking isCurrent against currentFingerprint (spec §6).
func (m *Manager) ListDevices(ctx context.Context, userID uuid.UUID, currentFingerprint string) ([]domain.DeviceView, error) {
	records, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]domain.DeviceView, 0, len(records))
	for _, r := range records {
		views = append(views, domain.DeviceView{
			ID:          r.ID,
			Fingerprint: r.Fingerprint,
			Active:      r.Active,
			Trusted:     r.Trusted,
			IsCurrent:   r.Fingerprint == currentFingerprint,
			LastUsedAt:  r.LastUsedAt,
			LastKnownIP: r.LastKnownIP,
			Country:     r.LastKnownCountry,
			DeviceName:  r.DeviceName,
			Source:      r.Source,
		})
	}
	return views, nil
}
