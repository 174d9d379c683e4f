package pki

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kokukuma/hcert-verifier/hcert"
	"github.com/kokukuma/hcert-verifier/pkg/hash"
)

// KeyIdentifier derives the DCC kid of a document signing certificate:
// the first 8 bytes of the SHA-256 digest over the DER encoding.
func KeyIdentifier(cert *x509.Certificate) ([]byte, error) {
	digest, err := hash.Digest(cert.Raw, "SHA-256")
	if err != nil {
		return nil, err
	}
	return digest[:8], nil
}

// KeyStoreEntry is the display form of a trusted certificate.
type KeyStoreEntry struct {
	KID      string    `json:"kid"`
	Country  string    `json:"country"`
	Subject  string    `json:"subject"`
	NotAfter time.Time `json:"not_after"`
}

type trustedCert struct {
	kid     []byte
	country string
	cert    *x509.Certificate
}

// KeyStore holds the trusted document signing certificates, indexed by
// kid and issuer country. Lookups see the certificates in insertion
// order. Add and the provider may be used concurrently.
type KeyStore struct {
	mu    sync.RWMutex
	certs []trustedCert
}

func NewKeyStore() *KeyStore {
	return &KeyStore{}
}

// Add registers a certificate under the given issuer country code. An
// empty country falls back to the certificate's subject country.
func (s *KeyStore) Add(country string, cert *x509.Certificate) error {
	kid, err := KeyIdentifier(cert)
	if err != nil {
		return err
	}
	if country == "" && len(cert.Subject.Country) > 0 {
		country = cert.Subject.Country[0]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.certs = append(s.certs, trustedCert{kid: kid, country: country, cert: cert})
	return nil
}

// Certificates returns the trusted certificates in insertion order.
func (s *KeyStore) Certificates() []*x509.Certificate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	certs := make([]*x509.Certificate, 0, len(s.certs))
	for _, tc := range s.certs {
		certs = append(certs, tc.cert)
	}
	return certs
}

// Entries lists kid and country per trusted certificate, for display.
func (s *KeyStore) Entries() []KeyStoreEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]KeyStoreEntry, 0, len(s.certs))
	for _, tc := range s.certs {
		entries = append(entries, KeyStoreEntry{
			KID:      fmt.Sprintf("%x", tc.kid),
			Country:  tc.country,
			Subject:  tc.cert.Subject.String(),
			NotAfter: tc.cert.NotAfter,
		})
	}
	return entries
}

// Provider returns the candidate keys for an (issuer, kid) pair. A kid
// match wins outright; without one every certificate of the issuer
// country is offered, in insertion order.
func (s *KeyStore) Provider() hcert.CertificateProvider {
	return func(issuer string, kid []byte) []crypto.PublicKey {
		s.mu.RLock()
		defer s.mu.RUnlock()

		var keys []crypto.PublicKey
		if kid != nil {
			for _, tc := range s.certs {
				if bytes.Equal(tc.kid, kid) {
					keys = append(keys, tc.cert.PublicKey)
				}
			}
			if len(keys) > 0 {
				return keys
			}
		}
		if issuer != "" {
			for _, tc := range s.certs {
				if tc.country == issuer {
					keys = append(keys, tc.cert.PublicKey)
				}
			}
		}
		return keys
	}
}

// LoadKeyStore builds a KeyStore from every .pem certificate found in
// the directory. Files that fail to parse are skipped with a log line,
// matching how lookup treats unusable candidates.
func LoadKeyStore(dirPath string) (*KeyStore, error) {
	files, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	store := NewKeyStore()
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".pem") {
			continue
		}
		cert, err := LoadCertificate(filepath.Join(dirPath, file.Name()))
		if err != nil {
			log.Printf("failed to load certificate %s: %v", file.Name(), err)
			continue
		}
		if err := store.Add("", cert); err != nil {
			log.Printf("failed to register certificate %s: %v", file.Name(), err)
		}
	}
	return store, nil
}
