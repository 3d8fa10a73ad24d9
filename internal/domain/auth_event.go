package domain

// AuthMethod enumerates how a principal proved their identity for a given
// login. Supplements spec.md's device/risk core with the closed set of
// authentication surfaces named in spec §1 Purpose, without implementing any
// of their cryptography (WebAuthn ceremony verification stays out of scope;
// see spec §1).
type AuthMethod string

const (
	AuthMethodPassword  AuthMethod = "PASSWORD"
	AuthMethodOTPEmail  AuthMethod = "OTP_EMAIL"
	AuthMethodOTPSMS    AuthMethod = "OTP_SMS"
	AuthMethodTOTP      AuthMethod = "TOTP"
	AuthMethodWebAuthn  AuthMethod = "WEBAUTHN"
	AuthMethodSocialOIDC AuthMethod = "SOCIAL_OIDC"
)

// StrongPossessionFactor reports whether method is evidence of possession of
// a bound credential (hardware key, platform authenticator) strong enough to
// lower device suspicion on its own, independent of the risk score.
func (m AuthMethod) StrongPossessionFactor() bool {
	return m == AuthMethodWebAuthn || m == AuthMethodTOTP
}

// AuthEvent is a tagged variant describing one authentication attempt's
// outcome, replacing the teacher's object-oriented hierarchy of
// AuthenticationProvider/AuthenticationSuccessHandler classes (spec §9) with
// a single value threaded through pure transformations.
type AuthEvent struct {
	UserID string
	Method AuthMethod
	IP     string
	Succeeded bool
}
