package hcert

import (
	"crypto"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/veraison/go-cose"
)

// Signer produces signed DCCs: the inverse of Verifier, composed from
// the same codecs plus a private signing key.
type Signer struct {
	signer cose.Signer
	alg    cose.Algorithm
	kid    []byte
}

// NewSigner wraps the private key for the given COSE algorithm. The kid
// is placed in the protected header of every signed object; nil means
// no kid is asserted. ErrUnsupportedAlgorithm is returned when no
// implementation exists for the algorithm/key combination.
func NewSigner(key crypto.Signer, alg cose.Algorithm, kid []byte) (*Signer, error) {
	signer, err := cose.NewSigner(alg, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedAlgorithm, err)
	}
	return &Signer{signer: signer, alg: alg, kid: kid}, nil
}

// Sign builds a CWT embedding the DCC payload at the reserved HCERT
// label and signs it as a COSE_Sign1 object. A zero issuedAt defaults
// to now; a zero expiration asserts no expiry.
func (s *Signer) Sign(dccPayload []byte, issuer string, issuedAt, expiration time.Time) ([]byte, error) {
	if len(dccPayload) == 0 {
		return nil, fmt.Errorf("%w: empty DCC payload", ErrSigningFailure)
	}
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}

	iat := issuedAt.Unix()
	claims := Claims{
		Issuer:   issuer,
		IssuedAt: &iat,
		HCert:    &HealthCertificate{EUDCCV1: dccPayload},
	}
	if !expiration.IsZero() {
		exp := expiration.Unix()
		claims.Expiration = &exp
	}

	payload, err := claims.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}

	headers := cose.Headers{
		Protected: cose.ProtectedHeader{
			cose.HeaderLabelAlgorithm: s.alg,
		},
	}
	if s.kid != nil {
		headers.Protected[cose.HeaderLabelKeyID] = s.kid
	}

	signed, err := cose.Sign1(rand.Reader, s.signer, headers, payload, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}
	return signed, nil
}
