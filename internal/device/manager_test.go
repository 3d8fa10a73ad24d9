package device_test

import (
	"context"
	"sync"
	"testing"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"identityguard/internal/apperr"
	"identityguard/internal/device"
	"identityguard/internal/domain"
)

// fakeWebAuthnVerifier is a trivial device.WebAuthnVerifier double that
// either always succeeds or always fails, based on allow.
type fakeWebAuthnVerifier struct{ allow bool }

func (f fakeWebAuthnVerifier) Verify(context.Context, uuid.UUID, []byte) (*webauthn.Credential, error) {
	if !f.allow {
		return nil, apperr.New(apperr.Internal, "assertion rejected")
	}
	return &webauthn.Credential{}, nil
}

// fakeStepUpRisk is a device.StepUpRiskVerifier double recording which
// method VerifyStepUp was called with.
type fakeStepUpRisk struct{ lastMethod domain.AuthMethod }

func (f *fakeStepUpRisk) Verify(context.Context, string, string) (domain.RiskResult, error) {
	return domain.RiskResult{Risk: domain.RiskHigh}, nil
}

func (f *fakeStepUpRisk) VerifyStepUp(_ context.Context, _, _ string, method domain.AuthMethod) (domain.RiskResult, error) {
	f.lastMethod = method
	return domain.RiskResult{Risk: domain.RiskMedium}, nil
}

// fakeLocationResolver is a device.LocationResolver double returning a fixed
// location for every IP.
type fakeLocationResolver struct{ loc domain.GeoLocation }

func (f fakeLocationResolver) Lookup(context.Context, string) domain.GeoLocation { return f.loc }

// fakeDeviceStore is an in-memory adapters.DeviceRecordStore double.
type fakeDeviceStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*domain.DeviceRecord
}

func newFakeDeviceStore() *fakeDeviceStore {
	return &fakeDeviceStore{records: map[uuid.UUID]*domain.DeviceRecord{}}
}

func (s *fakeDeviceStore) FindByUserAndFingerprint(_ context.Context, userID uuid.UUID, fingerprint string) (*domain.DeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.UserID == userID && r.Fingerprint == fingerprint {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.DeviceNotFound, "not found")
}

func (s *fakeDeviceStore) FindByID(_ context.Context, id uuid.UUID) (*domain.DeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, apperr.New(apperr.DeviceNotFound, "not found")
	}
	cp := *r
	return &cp, nil
}

func (s *fakeDeviceStore) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.DeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DeviceRecord
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeDeviceStore) CountActiveByUser(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.records {
		if r.UserID == userID && r.Active {
			count++
		}
	}
	return count, nil
}

func (s *fakeDeviceStore) Save(_ context.Context, record *domain.DeviceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == uuid.Nil {
		record.ID = uuid.Must(uuid.NewV7())
	}
	cp := *record
	s.records[record.ID] = &cp
	return nil
}

func (s *fakeDeviceStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// fakeUserStore is an in-memory adapters.UserStore double.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newFakeUserStore(users ...*domain.User) *fakeUserStore {
	s := &fakeUserStore{users: map[uuid.UUID]*domain.User{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperr.New(apperr.UserNotFound, "not found")
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUserStore) SetDeviceFingerprintingEnabled(_ context.Context, id uuid.UUID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return apperr.New(apperr.UserNotFound, "not found")
	}
	u.DeviceFingerprintingEnabled = enabled
	return nil
}

// allowAllIPPolicy and allowAllLimiter let tests that aren't exercising IP
// rejection bypass those checks entirely.
type allowAllIPPolicy struct{}

func (allowAllIPPolicy) Blocklisted(context.Context, string) (bool, error) { return false, nil }
func (allowAllIPPolicy) Suspicious(context.Context, string) (bool, error)  { return false, nil }

func newManager(t *testing.T, store *fakeDeviceStore, users *fakeUserStore) *device.Manager {
	t.Helper()
	gen := device.NewGenerator("test-salt")
	return device.NewManager(gen, store, users, allowAllIPPolicy{}, nil, nil, nil, nil)
}

func testRequest() device.Request {
	return device.Request{
		Headers:    map[string]string{"User-Agent": "Mozilla/5.0 (Windows NT 10.0)", "Accept-Language": "en-US"},
		RemoteAddr: "203.0.113.5:54321",
	}
}

func TestManager_Register_NewDeviceIsActiveAndUntrusted(t *testing.T) {
	t.Parallel()

	store := newFakeDeviceStore()
	userID := uuid.Must(uuid.NewV7())
	users := newFakeUserStore(&domain.User{ID: userID, DeviceFingerprintingEnabled: true})
	mgr := newManager(t, store, users)

	record, err := mgr.Register(context.Background(), userID, &domain.User{ID: userID, DeviceFingerprintingEnabled: true}, testRequest())
	require.NoError(t, err)
	require.True(t, record.Active)
	require.False(t, record.Trusted)
	require.Equal(t, 1, record.UpdateCount)
}

func TestManager_Register_IsIdempotentForSameFingerprint(t *testing.T) {
	t.Parallel()

	store := newFakeDeviceStore()
	userID := uuid.Must(uuid.NewV7())
	users := newFakeUserStore(&domain.User{ID: userID, DeviceFingerprintingEnabled: true})
	mgr := newManager(t, store, users)
	user := &domain.User{ID: userID, DeviceFingerprintingEnabled: true}

	first, err := mgr.Register(context.Background(), userID, user, testRequest())
	require.NoError(t, err)

	second, err := mgr.Register(context.Background(), userID, user, testRequest())
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID, "same signals must resolve to the same device record")
	require.Equal(t, 2, second.UpdateCount)

	count, err := store.CountActiveByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, 1, count, "re-registering must not create a duplicate record")
}

func TestManager_Register_RejectsWhenFingerprintingDisabled(t *testing.T) {
	t.Parallel()

	store := newFakeDeviceStore()
	userID := uuid.Must(uuid.NewV7())
	users := newFakeUserStore(&domain.User{ID: userID, DeviceFingerprintingEnabled: false})
	mgr := newManager(t, store, users)

	_, err := mgr.Register(context.Background(), userID, &domain.User{ID: userID, DeviceFingerprintingEnabled: false}, testRequest())
	require.True(t, apperr.Is(err, apperr.FingerprintingDisabled))
}

func TestManager_Register_RejectsAtMaxDevices(t *testing.T) {
	t.Parallel()

	store := newFakeDeviceStore()
	userID := uuid.Must(uuid.NewV7())
	users := newFakeUserStore(&domain.User{ID: userID, DeviceFingerprintingEnabled: true})
	mgr := newManager(t, store, users)
	user := &domain.User{ID: userID, DeviceFingerprintingEnabled: true}

	for i := 0; i < 5; i++ {
		req := device.Request{
			Headers:    map[string]string{"User-Agent": "agent"},
			RemoteAddr: "10.0.0." + string(rune('1'+i)) + ":1",
		}
		_, err := mgr.Register(context.Background(), userID, user, req)
		require.NoError(t, err)
	}

	sixth := device.Request{Headers: map[string]string{"User-Agent": "agent"}, RemoteAddr: "10.0.0.9:1"}
	_, err := mgr.Register(context.Background(), userID, user, sixth)
	require.True(t, apperr.Is(err, apperr.MaxDevices))
}

func TestManager_Validate_RejectsInactiveDevice(t *testing.T) {
	t.Parallel()

	store := newFakeDeviceStore()
	userID := uuid.Must(uuid.NewV7())
	users := newFakeUserStore(&domain.User{ID: userID, DeviceFingerprintingEnabled: true})
	mgr := newManager(t, store, users)
	user := &domain.User{ID: userID, DeviceFingerprintingEnabled: true}

	record, err := mgr.Register(context.Background(), userID, user, testRequest())
	require.NoError(t, err)

	require.NoError(t, mgr.Revoke(context.Background(), userID, record.ID))

	_, err = mgr.Validate(context.Background(), userID, record.Fingerprint, testRequest())
	require.True(t, apperr.Is(err, apperr.DeviceInactive))
}

func TestManager_Verify_MismatchWhenNoActiveRecordMatches(t *testing.T) {
	t.Parallel()

	store := newFakeDeviceStore()
	userID := uuid.Must(uuid.NewV7())
	users := newFakeUserStore(&domain.User{ID: userID, DeviceFingerprintingEnabled: true})
	mgr := newManager(t, store, users)

	_, err := mgr.Verify(context.Background(), userID, "stale-token-fingerprint", testRequest())
	require.True(t, apperr.Is(err, apperr.DeviceMismatch))
}

func TestManager_MarkSuspicious_DeactivatesAtMaxFailedAttempts(t *testing.T) {
	t.Parallel()

	store := newFakeDeviceStore()
	userID := uuid.Must(uuid.NewV7())
	users := newFakeUserStore(&domain.User{ID: userID, DeviceFingerprintingEnabled: true})
	mgr := newManager(t, store, users)
	user := &domain.User{ID: userID, DeviceFingerprintingEnabled: true}

	record, err := mgr.Register(context.Background(), userID, user, testRequest())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, mgr.MarkSuspicious(context.Background(), userID, record.Fingerprint))
	}

	updated, err := store.FindByUserAndFingerprint(context.Background(), userID, record.Fingerprint)
	require.NoError(t, err)
	require.False(t, updated.Active)
	require.False(t, updated.Trusted)
	require.NotNil(t, updated.DeactivatedAt)
}

func TestManager_RevokeAllExcept_KeepsOnlyNamedFingerprint(t *testing.T) {
	t.Parallel()

	store := newFakeDeviceStore()
	userID := uuid.Must(uuid.NewV7())
	users := newFakeUserStore(&domain.User{ID: userID, DeviceFingerprintingEnabled: true})
	mgr := newManager(t, store, users)
	user := &domain.User{ID: userID, DeviceFingerprintingEnabled: true}

	keep, err := mgr.Register(context.Background(), userID, user, testRequest())
	require.NoError(t, err)

	other := device.Request{Headers: map[string]string{"User-Agent": "other-agent"}, RemoteAddr: "198.51.100.9:1"}
	_, err = mgr.Register(context.Background(), userID, user, other)
	require.NoError(t, err)

	require.NoError(t, mgr.RevokeAllExcept(context.Background(), userID, keep.Fingerprint))

	views, err := mgr.ListDevices(context.Background(), userID, keep.Fingerprint)
	require.NoError(t, err)

	activeCount := 0
	for _, v := range views {
		if v.Active {
			activeCount++
			require.True(t, v.IsCurrent)
		}
	}
	require.Equal(t, 1, activeCount)
}

func TestManager_DisableThenEnable_DeactivatesButDoesNotReactivate(t *testing.T) {
	t.Parallel()

	store := newFakeDeviceStore()
	userID := uuid.Must(uuid.NewV7())
	userRecord := &domain.User{ID: userID, DeviceFingerprintingEnabled: true}
	users := newFakeUserStore(userRecord)
	mgr := newManager(t, store, users)

	record, err := mgr.Register(context.Background(), userID, userRecord, testRequest())
	require.NoError(t, err)

	require.NoError(t, mgr.Disable(context.Background(), userID))

	updated, err := store.FindByUserAndFingerprint(context.Background(), userID, record.Fingerprint)
	require.NoError(t, err)
	require.False(t, updated.Active)

	require.NoError(t, mgr.Enable(context.Background(), userID))

	stillInactive, err := store.FindByUserAndFingerprint(context.Background(), userID, record.Fingerprint)
	require.NoError(t, err)
	require.False(t, stillInactive.Active, "re-enabling fingerprinting must not resurrect deactivated records")

	u, err := users.FindByID(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, u.DeviceFingerprintingEnabled)
}

func TestManager_Trust_RequiresExistingRecord(t *testing.T) {
	t.Parallel()

	store := newFakeDeviceStore()
	userID := uuid.Must(uuid.NewV7())
	users := newFakeUserStore(&domain.User{ID: userID, DeviceFingerprintingEnabled: true})
	mgr := newManager(t, store, users)

	err := mgr.Trust(context.Background(), userID, "unknown-fingerprint")
	require.True(t, apperr.Is(err, apperr.DeviceNotFound))
}

func TestManager_Trust_Untrust_RoundTrip(t *testing.T) {
	t.Parallel()

	store := newFakeDeviceStore()
	userID := uuid.Must(uuid.NewV7())
	user := &domain.User{ID: userID, DeviceFingerprintingEnabled: true}
	users := newFakeUserStore(user)
	mgr := newManager(t, store, users)

	record, err := mgr.Register(context.Background(), userID, user, testRequest())
	require.NoError(t, err)

	require.NoError(t, mgr.Trust(context.Background(), userID, record.Fingerprint))
	trusted, err := store.FindByUserAndFingerprint(context.Background(), userID, record.Fingerprint)
	require.NoError(t, err)
	require.True(t, trusted.Trusted)

	require.NoError(t, mgr.Untrust(context.Background(), userID, record.Fingerprint))
	untrusted, err := store.FindByUserAndFingerprint(context.Background(), userID, record.Fingerprint)
	require.NoError(t, err)
	require.False(t, untrusted.Trusted)
}

func TestManager_VerifyWebAuthn_NoVerifierConfigured(t *testing.T) {
	t.Parallel()

	mgr := newManager(t, newFakeDeviceStore(), newFakeUserStore())
	_, err := mgr.VerifyWebAuthn(context.Background(), uuid.Must(uuid.NewV7()), "203.0.113.5", []byte("assertion"))
	require.True(t, apperr.Is(err, apperr.Internal))
}

func TestManager_VerifyWebAuthn_RejectsFailedAssertion(t *testing.T) {
	t.Parallel()

	gen := device.NewGenerator("test-salt")
	mgr := device.NewManager(gen, newFakeDeviceStore(), newFakeUserStore(), allowAllIPPolicy{}, nil, nil, nil, nil,
		device.WithWebAuthnVerifier(fakeWebAuthnVerifier{allow: false}))

	_, err := mgr.VerifyWebAuthn(context.Background(), uuid.Must(uuid.NewV7()), "203.0.113.5", []byte("assertion"))
	require.Error(t, err)
}

func TestManager_VerifyWebAuthn_DowngradesRiskViaStepUp(t *testing.T) {
	t.Parallel()

	gen := device.NewGenerator("test-salt")
	risk := &fakeStepUpRisk{}
	mgr := device.NewManager(gen, newFakeDeviceStore(), newFakeUserStore(), allowAllIPPolicy{}, nil, risk, nil, nil,
		device.WithWebAuthnVerifier(fakeWebAuthnVerifier{allow: true}))

	result, err := mgr.VerifyWebAuthn(context.Background(), uuid.Must(uuid.NewV7()), "203.0.113.5", []byte("assertion"))
	require.NoError(t, err)
	require.Equal(t, domain.RiskMedium, result.Risk)
	require.Equal(t, domain.AuthMethodWebAuthn, risk.lastMethod)
}

func TestManager_Register_EnrichesLocationFromResolver(t *testing.T) {
	t.Parallel()

	store := newFakeDeviceStore()
	userID := uuid.Must(uuid.NewV7())
	user := &domain.User{ID: userID, DeviceFingerprintingEnabled: true}
	users := newFakeUserStore(user)

	gen := device.NewGenerator("test-salt")
	loc := domain.GeoLocation{CountryCode: "DE", Latitude: 52.5, Longitude: 13.4}
	mgr := device.NewManager(gen, store, users, allowAllIPPolicy{}, nil, nil, nil, nil,
		device.WithLocationResolver(fakeLocationResolver{loc: loc}))

	record, err := mgr.Register(context.Background(), userID, user, testRequest())
	require.NoError(t, err)
	require.Equal(t, "DE", record.LastKnownCountry)
	require.NotNil(t, record.Location)
	require.Equal(t, loc, *record.Location)
}

func TestManager_Register_WithoutLocationResolverLeavesLocationUnset(t *testing.T) {
	t.Parallel()

	store := newFakeDeviceStore()
	userID := uuid.Must(uuid.NewV7())
	user := &domain.User{ID: userID, DeviceFingerprintingEnabled: true}
	users := newFakeUserStore(user)
	mgr := newManager(t, store, users)

	record, err := mgr.Register(context.Background(), userID, user, testRequest())
	require.NoError(t, err)
	require.Empty(t, record.LastKnownCountry)
	require.Nil(t, record.Location)
}

func TestManager_WithMaxDevicesOverridesDefaultCap(t *testing.T) {
	t.Parallel()

	store := newFakeDeviceStore()
	userID := uuid.Must(uuid.NewV7())
	user := &domain.User{ID: userID, DeviceFingerprintingEnabled: true}
	users := newFakeUserStore(user)

	gen := device.NewGenerator("test-salt")
	mgr := device.NewManager(gen, store, users, allowAllIPPolicy{}, nil, nil, nil, nil, device.WithMaxDevices(1))

	_, err := mgr.Register(context.Background(), userID, user, testRequest())
	require.NoError(t, err)

	second := device.Request{Headers: map[string]string{"User-Agent": "other-agent"}, RemoteAddr: "198.51.100.9:1"}
	_, err = mgr.Register(context.Background(), userID, user, second)
	require.True(t, apperr.Is(err, apperr.MaxDevices))
}

func TestManager_WithMaxFailedAttemptsOverridesDefaultThreshold(t *testing.T) {
	t.Parallel()

	store := newFakeDeviceStore()
	userID := uuid.Must(uuid.NewV7())
	user := &domain.User{ID: userID, DeviceFingerprintingEnabled: true}
	users := newFakeUserStore(user)

	gen := device.NewGenerator("test-salt")
	mgr := device.NewManager(gen, store, users, allowAllIPPolicy{}, nil, nil, nil, nil, device.WithMaxFailedAttempts(2))

	record, err := mgr.Register(context.Background(), userID, user, testRequest())
	require.NoError(t, err)

	require.NoError(t, mgr.MarkSuspicious(context.Background(), userID, record.Fingerprint))
	require.NoError(t, mgr.MarkSuspicious(context.Background(), userID, record.Fingerprint))

	updated, err := store.FindByUserAndFingerprint(context.Background(), userID, record.Fingerprint)
	require.NoError(t, err)
	require.False(t, updated.Active, "record must deactivate at the overridden threshold, not the default of 5")
}
