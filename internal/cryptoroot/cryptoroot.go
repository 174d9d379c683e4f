// Package cryptoroot generates the demo signing credentials: a CSCA
// root and a document signing certificate (DSC) issued under it. Both
// are persisted as PEM next to the binary so restarts keep the same
// trust anchors.
package cryptoroot

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"fmt"
	"os"
)

const cryptoRootDir = "internal/cryptoroot/pem"

var (
	cscaKeyPath  = fmt.Sprintf("%s/cscaKey.pem", cryptoRootDir)
	cscaCertPath = fmt.Sprintf("%s/cscaCert.pem", cryptoRootDir)
	dscKeyPath   = fmt.Sprintf("%s/dscKey.pem", cryptoRootDir)
	dscCertPath  = fmt.Sprintf("%s/dscCert.pem", cryptoRootDir)
)

func fileExists(filename string) bool {
	_, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil
}

// GenSignerCredentials returns the DSC private key and certificate for
// the given issuer country, creating and persisting the CSCA and DSC on
// first use.
func GenSignerCredentials(country string) (*ecdsa.PrivateKey, *x509.Certificate, error) {
	if fileExists(dscKeyPath) && fileExists(dscCertPath) {
		dscKey, err := readPEMKey(dscKeyPath)
		if err != nil {
			return nil, nil, err
		}
		dscCert, err := readPEMCertificate(dscCertPath)
		if err != nil {
			return nil, nil, err
		}
		return dscKey, dscCert, nil
	}

	if err := os.MkdirAll(cryptoRootDir, 0o755); err != nil {
		return nil, nil, err
	}

	cscaKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	cscaCert, err := createCSCACertificate(cscaKey, country)
	if err != nil {
		return nil, nil, err
	}
	if err := writePEMKey(cscaKey, cscaKeyPath); err != nil {
		return nil, nil, err
	}
	if err := writePEMCertificate(cscaCert, cscaCertPath); err != nil {
		return nil, nil, err
	}

	dscKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	dscCert, err := createDSCCertificate(dscKey, country, cscaCert, cscaKey)
	if err != nil {
		return nil, nil, err
	}
	if err := writePEMKey(dscKey, dscKeyPath); err != nil {
		return nil, nil, err
	}
	if err := writePEMCertificate(dscCert, dscCertPath); err != nil {
		return nil, nil, err
	}

	return dscKey, dscCert, nil
}
