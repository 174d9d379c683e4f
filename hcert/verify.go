package hcert

import (
	"crypto"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/veraison/go-cose"
)

// CertificateProvider returns the ordered candidate public keys to try
// for a given issuer country code and key identifier; either argument
// may be empty/nil. Ordering and trust policy are entirely the
// provider's responsibility - the engine tries the candidates exactly
// in the order returned.
type CertificateProvider func(issuer string, kid []byte) []crypto.PublicKey

// Clock supplies "now" for the expiration check. It is an explicit
// parameter on Verify rather than engine state, so deterministic tests
// can run concurrently with simulated times.
type Clock func() time.Time

// VerificationResult is produced only on full success.
type VerificationResult struct {
	// Payload is the DCC bytes embedded in the verified CWT.
	Payload []byte

	// SignerKey is the candidate key that verified the signature.
	SignerKey crypto.PublicKey

	// KeyID is the kid from the envelope header, nil when absent.
	KeyID []byte

	// Issuer is the CWT issuer country code, empty when absent.
	Issuer string

	IssuedAt   *time.Time
	Expiration *time.Time
}

type VerifierOption func(*Verifier)

// WithDefaultAlgorithm sets the algorithm assumed when the protected
// header does not name one.
func WithDefaultAlgorithm(alg cose.Algorithm) VerifierOption {
	return func(v *Verifier) {
		v.defaultAlg = alg
	}
}

// WithLogger directs per-candidate trace output to the given logger.
func WithLogger(logger *log.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// Verifier checks signed DCCs. It holds no mutable state; a single
// instance may be used from any number of goroutines, provided the
// providers and clocks passed to Verify are themselves safe for
// concurrent reads.
type Verifier struct {
	defaultAlg cose.Algorithm
	logger     *log.Logger
}

func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify decodes the signed CWT, resolves candidate keys through the
// provider, attempts signature verification against each candidate in
// order and applies the temporal validity check. The expiration claim
// is only consulted after a signature over it has verified; an
// unverified expiry cannot be trusted.
//
// A nil clock means the process real-time clock.
func (v *Verifier) Verify(signed []byte, provider CertificateProvider, clock Clock) (*VerificationResult, error) {
	if provider == nil {
		return nil, errors.New("certificateProvider must be supplied")
	}
	if clock == nil {
		clock = time.Now
	}

	obj, err := DecodeCoseSign1(signed)
	if err != nil {
		return nil, err
	}

	claims, err := DecodeClaims(obj.Payload())
	if err != nil {
		return nil, err
	}

	kid := obj.KeyIdentifier()
	issuer := claims.Issuer
	if kid == nil && issuer == "" {
		return nil, ErrMissingIdentifier
	}

	alg, err := obj.Algorithm()
	if err != nil {
		if v.defaultAlg == 0 {
			return nil, fmt.Errorf("%w: no signature algorithm in protected header", ErrMalformedSignedObject)
		}
		alg = v.defaultAlg
	}

	keys := provider(issuer, kid)
	if len(keys) == 0 {
		return nil, ErrNoCertificatesFound
	}

	var signerKey crypto.PublicKey
	for _, key := range keys {
		v.logger.Printf("attempting DCC signature verification using public key %T", key)

		if err := obj.VerifySignature(key, alg); err != nil {
			if errors.Is(err, ErrSignatureMismatch) {
				v.logger.Printf("DCC signature verification failed using public key %T - %v", key, err)
				continue
			}
			return nil, err
		}
		signerKey = key
		break
	}
	if signerKey == nil {
		return nil, ErrAllCandidatesFailed
	}

	if exp := claims.ExpirationTime(); exp != nil {
		if clock().After(*exp) {
			return nil, fmt.Errorf("%w at %s", ErrExpired, exp.UTC().Format(time.RFC3339))
		}
	} else {
		v.logger.Printf("signed HCERT did not contain an expiration time - assuming it is valid")
	}

	payload := claims.DCCPayload()
	if payload == nil {
		return nil, ErrMissingPayload
	}

	return &VerificationResult{
		Payload:    payload,
		SignerKey:  signerKey,
		KeyID:      kid,
		Issuer:     issuer,
		IssuedAt:   claims.IssuedAtTime(),
		Expiration: claims.ExpirationTime(),
	}, nil
}
