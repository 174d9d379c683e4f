package cryptoroot

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"
)

func createCSCACertificate(key *ecdsa.PrivateKey, country string) (*x509.Certificate, error) {
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName: "Demo CSCA",
			Country:    []string{country},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(10, 0, 0), // Valid for 10 years
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            1,
		SubjectKeyId:          subjectKeyID(&key.PublicKey),
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(derBytes)
}

func createDSCCertificate(key *ecdsa.PrivateKey, country string, parent *x509.Certificate, parentKey *ecdsa.PrivateKey) (*x509.Certificate, error) {
	template := x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject: pkix.Name{
			CommonName: "Demo Document Signing Certificate",
			Country:    []string{country},
		},
		NotBefore:      time.Now(),
		NotAfter:       time.Now().AddDate(2, 0, 0), // Valid for 2 years
		KeyUsage:       x509.KeyUsageDigitalSignature,
		IsCA:           false,
		SubjectKeyId:   subjectKeyID(&key.PublicKey),
		AuthorityKeyId: subjectKeyID(&parentKey.PublicKey),
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, parent, &key.PublicKey, parentKey)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(derBytes)
}

func subjectKeyID(pub *ecdsa.PublicKey) []byte {
	b := elliptic.Marshal(pub.Curve, pub.X, pub.Y)
	sum := sha1.Sum(b)
	return sum[:]
}
