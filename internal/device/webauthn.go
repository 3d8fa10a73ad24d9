package device

import (
	"context"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// WebAuthnVerifier is the boundary the risk-scored login path trusts for
// passkey assertions (spec.md §1 Purpose). The cryptographic ceremony
// itself — challenge generation, attestation/assertion verification,
// relying-party configuration — is out of scope for this module; a host
// embedding identityguard supplies the concrete implementation. Manager uses
// only the verifier's success or failure to feed risk.Engine.VerifyStepUp
// with AuthMethodWebAuthn; the returned credential is not linked to a
// DeviceRecord.
type WebAuthnVerifier interface {
	Verify(ctx context.Context, userID uuid.UUID, response []byte) (*webauthn.Credential, error)
}
