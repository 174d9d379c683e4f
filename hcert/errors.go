package hcert

import "errors"

// Terminal error kinds surfaced by the verify and sign operations. Each
// call ends in exactly one of these (or success); callers discriminate
// with errors.Is.
var (
	// ErrMalformedSignedObject means the outer COSE_Sign1 envelope could
	// not be decoded, or names no usable signature algorithm.
	ErrMalformedSignedObject = errors.New("malformed COSE_Sign1 object")

	// ErrMalformedClaims means the CWT claims map inside the payload is
	// structurally corrupt.
	ErrMalformedClaims = errors.New("malformed CWT claims")

	// ErrMissingIdentifier means the object carries neither a key
	// identifier nor an issuer, so no trust anchor can be selected.
	ErrMissingIdentifier = errors.New("signed object does not contain key identifier or issuer - cannot find certificate")

	// ErrNoCertificatesFound means the certificate provider returned an
	// empty candidate set.
	ErrNoCertificatesFound = errors.New("no signer certificates could be found")

	// ErrAllCandidatesFailed means every candidate key failed plain
	// signature verification.
	ErrAllCandidatesFailed = errors.New("signature verification failed for all attempted certificates")

	// ErrExpired means the signature verified but the expiration claim
	// is in the past.
	ErrExpired = errors.New("signed certificate has expired")

	// ErrMissingPayload means the claims decoded but carry no DCC
	// payload.
	ErrMissingPayload = errors.New("no DCC payload available in CWT")

	// ErrUnsupportedAlgorithm is returned by the sign path when the
	// requested algorithm is not implemented.
	ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")

	// ErrSigningFailure is returned by the sign path on an underlying
	// cryptographic failure.
	ErrSigningFailure = errors.New("signing operation failed")
)

// ErrSignatureMismatch marks a plain per-key verification failure. The
// verify loop recovers from it locally and tries the next candidate; it
// is never the terminal error of a Verify call.
var ErrSignatureMismatch = errors.New("signature did not verify")
