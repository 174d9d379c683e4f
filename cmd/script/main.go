// Offline round trip: sign a sample credential, frame it as a QR code,
// scan it back and verify it against the generated trust anchors.
package main

import (
	"crypto"
	"fmt"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/kokukuma/hcert-verifier/hcert"
	"github.com/kokukuma/hcert-verifier/internal/cryptoroot"
	"github.com/kokukuma/hcert-verifier/pkg/pki"
	"github.com/kokukuma/hcert-verifier/transport"
	"github.com/kokukuma/hcert-verifier/transport/barcode"
	"github.com/veraison/go-cose"
)

const qrPath = "hcert-demo.png"

func main() {
	dscKey, dscCert, err := cryptoroot.GenSignerCredentials("UT")
	if err != nil {
		panic("failed to create signer credentials: " + err.Error())
	}

	kid, err := pki.KeyIdentifier(dscCert)
	if err != nil {
		panic("failed to derive kid: " + err.Error())
	}

	signer, err := hcert.NewSigner(dscKey, cose.AlgorithmES256, kid)
	if err != nil {
		panic("failed to create signer: " + err.Error())
	}

	payload, err := cbor.Marshal(sampleCredential())
	if err != nil {
		panic("failed to encode credential: " + err.Error())
	}

	signed, err := signer.Sign(payload, "UT", time.Now(), time.Now().AddDate(0, 0, 30))
	if err != nil {
		panic("failed to sign: " + err.Error())
	}

	qr, err := transport.Serialize(signed)
	if err != nil {
		panic("failed to serialize: " + err.Error())
	}
	fmt.Println(qr)

	png, err := barcode.Create(qr, 256)
	if err != nil {
		panic("failed to create barcode: " + err.Error())
	}
	if err := os.WriteFile(qrPath, png, 0o644); err != nil {
		panic("failed to write barcode: " + err.Error())
	}
	fmt.Println("wrote", qrPath)

	// scan it back and verify
	scanned, err := barcode.Decode(png)
	if err != nil {
		panic("failed to decode barcode: " + err.Error())
	}
	raw, err := transport.Deserialize(scanned)
	if err != nil {
		panic("failed to deserialize: " + err.Error())
	}

	provider := func(issuer string, kid []byte) []crypto.PublicKey {
		return []crypto.PublicKey{dscCert.PublicKey}
	}
	result, err := hcert.NewVerifier().Verify(raw, provider, nil)
	if err != nil {
		panic("failed to verify: " + err.Error())
	}
	spew.Dump(result)
}

func sampleCredential() map[string]interface{} {
	return map[string]interface{}{
		"ver": "1.0.0",
		"nam": map[string]interface{}{
			"fn":  "Lindström",
			"fnt": "LINDSTROEM",
			"gn":  "Karl Mårten",
			"gnt": "KARL<MAARTEN",
		},
		"dob": "1969-11-29",
		"v": []interface{}{
			map[string]interface{}{
				"tg": "840539006",
				"vp": "1119349007",
				"mp": "EU/1/20/1507",
				"ma": "ORG-100030215",
				"dn": 1,
				"sd": 2,
				"dt": "2021-04-02",
				"co": "UT",
				"is": "Demo Issuer",
				"ci": uuid.New().String(),
			},
		},
	}
}
