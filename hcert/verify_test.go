package hcert

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

var testDCCPayload = func() []byte {
	payload, err := cbor.Marshal(map[string]interface{}{
		"ver": "1.0.0",
		"nam": map[string]interface{}{"fnt": "LINDSTROEM", "gnt": "KARL<MAARTEN"},
		"dob": "1969-11-29",
	})
	if err != nil {
		panic(err)
	}
	return payload
}()

func newTestKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return key
}

func newTestSigner(t *testing.T, key *ecdsa.PrivateKey, kid []byte) *Signer {
	t.Helper()
	signer, err := NewSigner(key, cose.AlgorithmES256, kid)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}
	return signer
}

func providerReturning(keys ...crypto.PublicKey) CertificateProvider {
	return func(issuer string, kid []byte) []crypto.PublicKey {
		return keys
	}
}

func fixedClock(now time.Time) Clock {
	return func() time.Time { return now }
}

func TestVerifyRoundTrip(t *testing.T) {
	now := time.Now()
	expire := now.Add(30 * 24 * time.Hour)
	key := newTestKey(t)
	signer := newTestSigner(t, key, []byte{0xca, 0xfe, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06})

	signed, err := signer.Sign(testDCCPayload, "SE", now, expire)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	result, err := NewVerifier().Verify(signed, providerReturning(&key.PublicKey), fixedClock(now))
	if err != nil {
		t.Fatalf("failed to verify: %v", err)
	}

	if !bytes.Equal(result.Payload, testDCCPayload) {
		t.Errorf("payload mismatch: got %x, want %x", result.Payload, testDCCPayload)
	}
	if result.Issuer != "SE" {
		t.Errorf("issuer = %q, want SE", result.Issuer)
	}
	if result.Expiration == nil || result.Expiration.Unix() != expire.Unix() {
		t.Errorf("expiration = %v, want %v", result.Expiration, expire)
	}
	if result.IssuedAt == nil || result.IssuedAt.Unix() != now.Unix() {
		t.Errorf("issuedAt = %v, want %v", result.IssuedAt, now)
	}
	if !bytes.Equal(result.KeyID, []byte{0xca, 0xfe, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06}) {
		t.Errorf("keyID = %x", result.KeyID)
	}
	pub, ok := result.SignerKey.(*ecdsa.PublicKey)
	if !ok || !pub.Equal(&key.PublicKey) {
		t.Errorf("signerKey does not match the signing key")
	}
}

// rawSign1 mirrors the COSE_Sign1 array for tamper tests.
type rawSign1 struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected map[interface{}]interface{}
	Payload     []byte
	Signature   []byte
}

func retag(t *testing.T, raw rawSign1) []byte {
	t.Helper()
	data, err := cbor.Marshal(cbor.Tag{Number: 18, Content: raw})
	if err != nil {
		t.Fatalf("failed to re-marshal: %v", err)
	}
	return data
}

func TestVerifyTamperSensitivity(t *testing.T) {
	now := time.Now()
	key := newTestKey(t)
	signer := newTestSigner(t, key, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	signed, err := signer.Sign(testDCCPayload, "SE", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	var tag cbor.RawTag
	if err := cbor.Unmarshal(signed, &tag); err != nil {
		t.Fatalf("failed to strip tag: %v", err)
	}

	t.Run("tampered signature", func(t *testing.T) {
		var raw rawSign1
		if err := cbor.Unmarshal(tag.Content, &raw); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		raw.Signature[0] ^= 0x01

		_, err := NewVerifier().Verify(retag(t, raw), providerReturning(&key.PublicKey), fixedClock(now))
		if !errors.Is(err, ErrAllCandidatesFailed) {
			t.Errorf("error = %v, want ErrAllCandidatesFailed", err)
		}
	})

	t.Run("tampered payload", func(t *testing.T) {
		var raw rawSign1
		if err := cbor.Unmarshal(tag.Content, &raw); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		// rewrite a claim so the structure stays valid but the signed
		// bytes change
		claims, err := DecodeClaims(raw.Payload)
		if err != nil {
			t.Fatalf("failed to decode claims: %v", err)
		}
		claims.Issuer = "XX"
		raw.Payload, err = claims.Encode()
		if err != nil {
			t.Fatalf("failed to re-encode claims: %v", err)
		}

		_, err = NewVerifier().Verify(retag(t, raw), providerReturning(&key.PublicKey), fixedClock(now))
		if !errors.Is(err, ErrAllCandidatesFailed) {
			t.Errorf("error = %v, want ErrAllCandidatesFailed", err)
		}
	})
}

func TestVerifyExpired(t *testing.T) {
	now := time.Now()
	key := newTestKey(t)
	signer := newTestSigner(t, key, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	signed, err := signer.Sign(testDCCPayload, "SE", now.Add(-time.Hour), now.Add(-time.Second))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	_, err = NewVerifier().Verify(signed, providerReturning(&key.PublicKey), fixedClock(now))
	if !errors.Is(err, ErrExpired) {
		t.Errorf("error = %v, want ErrExpired", err)
	}
}

func TestVerifyMissingExpirationTolerated(t *testing.T) {
	now := time.Now()
	key := newTestKey(t)
	signer := newTestSigner(t, key, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	signed, err := signer.Sign(testDCCPayload, "SE", now, time.Time{})
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	var trace bytes.Buffer
	verifier := NewVerifier(WithLogger(log.New(&trace, "", 0)))

	result, err := verifier.Verify(signed, providerReturning(&key.PublicKey), fixedClock(now))
	if err != nil {
		t.Fatalf("failed to verify: %v", err)
	}
	if result.Expiration != nil {
		t.Errorf("expiration = %v, want absent", result.Expiration)
	}
	if !strings.Contains(trace.String(), "expiration") {
		t.Errorf("expected a missing-expiration notice in the log, got %q", trace.String())
	}
}

func TestVerifyCandidateOrdering(t *testing.T) {
	now := time.Now()
	key := newTestKey(t)
	wrongKey := newTestKey(t)
	signer := newTestSigner(t, key, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	signed, err := signer.Sign(testDCCPayload, "SE", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	var trace bytes.Buffer
	verifier := NewVerifier(WithLogger(log.New(&trace, "", 0)))

	result, err := verifier.Verify(signed, providerReturning(&wrongKey.PublicKey, &key.PublicKey), fixedClock(now))
	if err != nil {
		t.Fatalf("failed to verify: %v", err)
	}

	pub, ok := result.SignerKey.(*ecdsa.PublicKey)
	if !ok || !pub.Equal(&key.PublicKey) {
		t.Errorf("signerKey is not the second (correct) candidate")
	}
	if !strings.Contains(trace.String(), "verification failed") {
		t.Errorf("expected a failed-attempt trace for the first candidate, got %q", trace.String())
	}
}

func TestVerifySkipsIncompatibleKey(t *testing.T) {
	now := time.Now()
	key := newTestKey(t)
	signer := newTestSigner(t, key, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	signed, err := signer.Sign(testDCCPayload, "SE", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	// a key the algorithm cannot use is a per-candidate failure, not a
	// fatal one
	edKey, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	result, err := NewVerifier().Verify(signed, providerReturning(edKey, &key.PublicKey), fixedClock(now))
	if err != nil {
		t.Fatalf("failed to verify: %v", err)
	}
	pub, ok := result.SignerKey.(*ecdsa.PublicKey)
	if !ok || !pub.Equal(&key.PublicKey) {
		t.Errorf("signerKey is not the compatible candidate")
	}
}

func TestVerifyEmptyCandidates(t *testing.T) {
	now := time.Now()
	key := newTestKey(t)
	signer := newTestSigner(t, key, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	signed, err := signer.Sign(testDCCPayload, "SE", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	calls := 0
	provider := func(issuer string, kid []byte) []crypto.PublicKey {
		calls++
		return nil
	}

	_, err = NewVerifier().Verify(signed, provider, fixedClock(now))
	if !errors.Is(err, ErrNoCertificatesFound) {
		t.Errorf("error = %v, want ErrNoCertificatesFound", err)
	}
	if calls != 1 {
		t.Errorf("provider called %d times, want 1", calls)
	}
}

func TestVerifyMissingIdentifier(t *testing.T) {
	now := time.Now()
	key := newTestKey(t)
	signer := newTestSigner(t, key, nil) // no kid

	signed, err := signer.Sign(testDCCPayload, "", now, now.Add(time.Hour)) // no issuer
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	provider := func(issuer string, kid []byte) []crypto.PublicKey {
		t.Fatalf("provider must not be called when no identifier is present")
		return nil
	}

	_, err = NewVerifier().Verify(signed, provider, fixedClock(now))
	if !errors.Is(err, ErrMissingIdentifier) {
		t.Errorf("error = %v, want ErrMissingIdentifier", err)
	}
}

func TestVerifyMissingPayload(t *testing.T) {
	now := time.Now()
	key := newTestKey(t)

	coseSigner, err := cose.NewSigner(cose.AlgorithmES256, key)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}

	claims := Claims{Issuer: "SE"} // no HCERT claim
	payload, err := claims.Encode()
	if err != nil {
		t.Fatalf("failed to encode claims: %v", err)
	}

	headers := cose.Headers{
		Protected: cose.ProtectedHeader{cose.HeaderLabelAlgorithm: cose.AlgorithmES256},
	}
	signed, err := cose.Sign1(rand.Reader, coseSigner, headers, payload, nil)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	_, err = NewVerifier().Verify(signed, providerReturning(&key.PublicKey), fixedClock(now))
	if !errors.Is(err, ErrMissingPayload) {
		t.Errorf("error = %v, want ErrMissingPayload", err)
	}
}

func TestVerifyMalformedInput(t *testing.T) {
	_, err := NewVerifier().Verify([]byte{0x01, 0x02, 0x03}, providerReturning(), nil)
	if !errors.Is(err, ErrMalformedSignedObject) {
		t.Errorf("error = %v, want ErrMalformedSignedObject", err)
	}
}

func TestVerifyMalformedClaims(t *testing.T) {
	key := newTestKey(t)

	coseSigner, err := cose.NewSigner(cose.AlgorithmES256, key)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}
	headers := cose.Headers{
		Protected: cose.ProtectedHeader{cose.HeaderLabelAlgorithm: cose.AlgorithmES256},
	}
	// payload is a truncated CBOR map
	signed, err := cose.Sign1(rand.Reader, coseSigner, headers, []byte{0xa1}, nil)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	_, err = NewVerifier().Verify(signed, providerReturning(&key.PublicKey), nil)
	if !errors.Is(err, ErrMalformedClaims) {
		t.Errorf("error = %v, want ErrMalformedClaims", err)
	}
}

func TestVerifyConcurrent(t *testing.T) {
	now := time.Now()
	key := newTestKey(t)
	signer := newTestSigner(t, key, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	signed, err := signer.Sign(testDCCPayload, "SE", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	verifier := NewVerifier()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		expectExpired := i%2 == 0
		wg.Add(1)
		go func() {
			defer wg.Done()

			clock := fixedClock(now)
			if expectExpired {
				clock = fixedClock(now.Add(2 * time.Hour))
			}
			_, err := verifier.Verify(signed, providerReturning(&key.PublicKey), clock)
			if expectExpired && !errors.Is(err, ErrExpired) {
				t.Errorf("error = %v, want ErrExpired", err)
			}
			if !expectExpired && err != nil {
				t.Errorf("failed to verify: %v", err)
			}
		}()
	}
	wg.Wait()
}
