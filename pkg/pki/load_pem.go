// Package pki loads signer credentials and document signing
// certificates, and exposes them as a certificate provider for the
// hcert verifier.
package pki

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

func LoadPrivateKey(dataPath string) (*ecdsa.PrivateKey, error) {
	pemBytes, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != "EC PRIVATE KEY" {
		return nil, fmt.Errorf("failed to decode PEM block containing private key")
	}

	return x509.ParseECPrivateKey(block.Bytes)
}

func LoadCertificate(dataPath string) (*x509.Certificate, error) {
	pemBytes, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("failed to decode PEM block containing certificate")
	}

	return x509.ParseCertificate(block.Bytes)
}
