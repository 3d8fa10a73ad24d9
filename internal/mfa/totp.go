// Package mfa validates the one-time-token auxiliary AuthMethod named in
// spec.md §1 Purpose (TOTP only), a standalone check for the risk-scored
// login path as an auxiliary factor rather than a full identity provider.
// Nothing in this module calls it.
package mfa

import (
	"github.com/pquerna/otp/totp"
)

// VerifyTOTP checks a submitted passcode against the user's base32 TOTP
// secret using the standard 30-second, 6-digit RFC 6238 parameters. It does
// not manage secret provisioning/enrollment; that lives outside this
// module, same as credential storage (spec.md §1).
func VerifyTOTP(secret, passcode string) bool {
	if secret == "" || passcode == "" {
		return false
	}
	return totp.Validate(passcode, secret)
}
