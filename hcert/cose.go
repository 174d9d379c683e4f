// Package hcert verifies and creates Digital Covid Certificates: CWT
// claims signed with COSE_Sign1 per the EU DCC / HCERT specification.
package hcert

import (
	"crypto"
	"errors"
	"fmt"

	"github.com/veraison/go-cose"
)

// CoseSign1 is a decoded COSE_Sign1 envelope: protected header,
// unprotected header, payload and signature. The payload and signature
// are opaque until a verification key has been chosen. The object is
// immutable once decoded.
type CoseSign1 struct {
	msg    cose.UntaggedSign1Message
	tagged bool
}

// DecodeCoseSign1 decodes a COSE_Sign1 structure. Both the tagged form
// (CBOR tag 18) and the bare four-element array are accepted; some
// issuers leave the tag off. Structural problems (wrong element count,
// wrong element types, truncated input) surface as
// ErrMalformedSignedObject. A structurally valid object that is merely
// semantically incomplete (e.g. no key identifier) decodes fine.
func DecodeCoseSign1(data []byte) (*CoseSign1, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedSignedObject)
	}

	var tagged cose.Sign1Message
	if err := tagged.UnmarshalCBOR(data); err == nil {
		return &CoseSign1{msg: cose.UntaggedSign1Message(tagged), tagged: true}, nil
	}

	var msg cose.UntaggedSign1Message
	if err := msg.UnmarshalCBOR(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignedObject, err)
	}
	return &CoseSign1{msg: msg}, nil
}

// Encode serializes the object back to its wire form. It is the inverse
// of DecodeCoseSign1 for any object produced by it: the tagged/untagged
// form of the input is preserved.
func (c *CoseSign1) Encode() ([]byte, error) {
	if c.tagged {
		msg := cose.Sign1Message(c.msg)
		return msg.MarshalCBOR()
	}
	return c.msg.MarshalCBOR()
}

// Payload returns the raw CWT claims bytes carried by the envelope.
func (c *CoseSign1) Payload() []byte {
	return c.msg.Payload
}

// KeyIdentifier returns the kid hinting which key signed the object.
// The protected header takes precedence over the unprotected one; nil
// means no kid is present in either.
func (c *CoseSign1) KeyIdentifier() []byte {
	if kid := headerKeyID(c.msg.Headers.Protected); kid != nil {
		return kid
	}
	return headerKeyID(c.msg.Headers.Unprotected)
}

func headerKeyID(hdr map[interface{}]interface{}) []byte {
	v, ok := hdr[cose.HeaderLabelKeyID]
	if !ok {
		return nil
	}
	kid, ok := v.([]byte)
	if !ok || len(kid) == 0 {
		return nil
	}
	return kid
}

// Algorithm returns the signature algorithm named in the protected
// header.
func (c *CoseSign1) Algorithm() (cose.Algorithm, error) {
	return c.msg.Headers.Protected.Algorithm()
}

// VerifySignature checks the signature over the canonical Sig_structure
// (protected header + payload) using the given public key and
// algorithm. A plain signature mismatch, or a key unusable for the
// algorithm, means "this key did not verify" and is reported as
// ErrSignatureMismatch; it is up to the caller whether to try another
// key. Any other verification failure is a structural problem with the
// object itself.
func (c *CoseSign1) VerifySignature(pub crypto.PublicKey, alg cose.Algorithm) error {
	verifier, err := cose.NewVerifier(alg, pub)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}
	if err := c.msg.Verify(nil, verifier); err != nil {
		if errors.Is(err, cose.ErrVerification) {
			return fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
		}
		return fmt.Errorf("%w: %v", ErrMalformedSignedObject, err)
	}
	return nil
}
