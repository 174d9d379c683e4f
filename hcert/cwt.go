package hcert

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// CWT claim keys (RFC 8392) and the HCERT container labels published by
// the EU DCC specification. These are the only places the reserved
// labels appear; the struct tags below must match them.
const (
	ClaimKeyIssuer     = 1
	ClaimKeyExpiration = 4
	ClaimKeyIssuedAt   = 6
	ClaimKeyHCert      = -260
	HCertKeyEUDCCV1    = 1
)

// Claims is the CWT claims map carried as the COSE_Sign1 payload.
// Every claim is optional at the structural level; which absences are
// acceptable is decided by the verify algorithm, not the codec.
type Claims struct {
	Issuer     string             `cbor:"1,keyasint,omitempty"`
	Expiration *int64             `cbor:"4,keyasint,omitempty"`
	IssuedAt   *int64             `cbor:"6,keyasint,omitempty"`
	HCert      *HealthCertificate `cbor:"-260,keyasint,omitempty"`
}

// HealthCertificate is the HCERT container claim. The EU DCC v1
// payload sits at map key 1 and is kept opaque; its field schema is the
// business of the layer above.
type HealthCertificate struct {
	EUDCCV1 cbor.RawMessage `cbor:"1,keyasint,omitempty"`
}

// DecodeClaims decodes a CWT claims map. Structural corruption surfaces
// as ErrMalformedClaims; missing optional claims populate as absent.
func DecodeClaims(payload []byte) (*Claims, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty claims payload", ErrMalformedClaims)
	}
	var claims Claims
	if err := cbor.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClaims, err)
	}
	return &claims, nil
}

// Encode serializes the claims map; deterministic inverse of
// DecodeClaims.
func (c *Claims) Encode() ([]byte, error) {
	return cbor.Marshal(c)
}

// ExpirationTime returns the expiration claim, or nil when no expiry is
// asserted.
func (c *Claims) ExpirationTime() *time.Time {
	return numericDate(c.Expiration)
}

// IssuedAtTime returns the issued-at claim, or nil when absent.
func (c *Claims) IssuedAtTime() *time.Time {
	return numericDate(c.IssuedAt)
}

// DCCPayload returns the embedded DCC bytes, or nil when the HCERT
// claim is absent.
func (c *Claims) DCCPayload() []byte {
	if c.HCert == nil || len(c.HCert.EUDCCV1) == 0 {
		return nil
	}
	return c.HCert.EUDCCV1
}

func numericDate(v *int64) *time.Time {
	if v == nil {
		return nil
	}
	t := time.Unix(*v, 0)
	return &t
}
