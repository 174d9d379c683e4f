package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/kokukuma/hcert-verifier/hcert"
	"github.com/kokukuma/hcert-verifier/internal/cryptoroot"
	"github.com/kokukuma/hcert-verifier/pkg/pki"
	"github.com/kokukuma/hcert-verifier/transport"
	"github.com/kokukuma/hcert-verifier/transport/barcode"
	"github.com/veraison/go-cose"
)

var (
	issuerCountry = os.Getenv("ISSUER_COUNTRY")
	dscCertsDir   = os.Getenv("DSC_CERTS_DIR")
)

const defaultValidityDays = 30

func NewServer() *Server {
	if issuerCountry == "" {
		issuerCountry = "UT"
	}

	dscKey, dscCert, err := cryptoroot.GenSignerCredentials(issuerCountry)
	if err != nil {
		panic("failed to create signer credentials: " + err.Error())
	}

	kid, err := pki.KeyIdentifier(dscCert)
	if err != nil {
		panic("failed to derive key identifier: " + err.Error())
	}

	signer, err := hcert.NewSigner(dscKey, cose.AlgorithmES256, kid)
	if err != nil {
		panic("failed to create signer: " + err.Error())
	}

	store := pki.NewKeyStore()
	if err := store.Add(issuerCountry, dscCert); err != nil {
		panic("failed to register signer certificate: " + err.Error())
	}
	if dscCertsDir != "" {
		extra, err := pki.LoadKeyStore(dscCertsDir)
		if err != nil {
			panic("failed to load trusted certificates: " + err.Error())
		}
		for _, cert := range extra.Certificates() {
			if err := store.Add("", cert); err != nil {
				log.Printf("failed to register trusted certificate: %v", err)
			}
		}
	}

	return &Server{
		signer:       signer,
		verifier:     hcert.NewVerifier(hcert.WithLogger(log.Default())),
		store:        store,
		transactions: NewTransactions(),
	}
}

type Server struct {
	signer       *hcert.Signer
	verifier     *hcert.Verifier
	store        *pki.KeyStore
	transactions *Transactions
}

type IssueRequest struct {
	Credential   map[string]interface{} `json:"credential"`
	Issuer       string                 `json:"issuer,omitempty"`
	ValidityDays int                    `json:"validity_days,omitempty"`
}

type IssueResponse struct {
	TransactionID string `json:"transaction_id"`
	QR            string `json:"qr"`
	BarcodePNG    string `json:"barcode_png,omitempty"`
	Error         string `json:"error,omitempty"`
}

type VerifyRequest struct {
	Data  string `json:"data,omitempty"`
	Image string `json:"image,omitempty"`
}

type VerifyResponse struct {
	TransactionID string      `json:"transaction_id,omitempty"`
	Issuer        string      `json:"issuer,omitempty"`
	KID           string      `json:"kid,omitempty"`
	IssuedAt      *time.Time  `json:"issued_at,omitempty"`
	Expiration    *time.Time  `json:"expiration,omitempty"`
	Credential    *Credential `json:"credential,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// IssueCredential signs the posted credential value, frames it for a
// barcode and returns the HC1 string plus a rendered QR code.
func (s *Server) IssueCredential(w http.ResponseWriter, r *http.Request) {
	req := IssueRequest{}
	if err := parseJSON(r, &req); err != nil {
		jsonErrorResponse(w, fmt.Errorf("failed to parse request: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Credential) == 0 {
		jsonErrorResponse(w, errors.New("credential must be supplied"), http.StatusBadRequest)
		return
	}

	payload, err := encodeCredential(req.Credential)
	if err != nil {
		jsonErrorResponse(w, fmt.Errorf("failed to encode credential: %v", err), http.StatusBadRequest)
		return
	}

	issuer := req.Issuer
	if issuer == "" {
		issuer = issuerCountry
	}
	days := req.ValidityDays
	if days <= 0 {
		days = defaultValidityDays
	}

	signed, err := s.signer.Sign(payload, issuer, time.Time{}, time.Now().AddDate(0, 0, days))
	if err != nil {
		jsonErrorResponse(w, fmt.Errorf("failed to sign credential: %v", err), http.StatusInternalServerError)
		return
	}

	qr, err := transport.Serialize(signed)
	if err != nil {
		jsonErrorResponse(w, fmt.Errorf("failed to serialize credential: %v", err), http.StatusInternalServerError)
		return
	}

	png, err := barcode.Create(qr, 256)
	if err != nil {
		jsonErrorResponse(w, fmt.Errorf("failed to create barcode: %v", err), http.StatusInternalServerError)
		return
	}

	id := s.transactions.Record("issue", issuer, "ok")
	jsonResponse(w, IssueResponse{
		TransactionID: id,
		QR:            qr,
		BarcodePNG:    base64.StdEncoding.EncodeToString(png),
	}, http.StatusOK)
}

// VerifyCredential accepts either barcode text or a base64 QR image,
// verifies the signed CWT against the trusted certificates and returns
// the decoded credential with its provenance.
func (s *Server) VerifyCredential(w http.ResponseWriter, r *http.Request) {
	req := VerifyRequest{}
	if err := parseJSON(r, &req); err != nil {
		jsonErrorResponse(w, fmt.Errorf("failed to parseJSON: %v", err), http.StatusBadRequest)
		return
	}

	data := req.Data
	if data == "" && req.Image != "" {
		img, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			jsonErrorResponse(w, fmt.Errorf("failed to decode image: %v", err), http.StatusBadRequest)
			return
		}
		data, err = barcode.Decode(img)
		if err != nil {
			jsonErrorResponse(w, fmt.Errorf("failed to read barcode: %v", err), http.StatusBadRequest)
			return
		}
	}
	if data == "" {
		jsonErrorResponse(w, errors.New("data or image must be supplied"), http.StatusBadRequest)
		return
	}

	signed, err := transport.Deserialize(data)
	if err != nil {
		jsonErrorResponse(w, fmt.Errorf("failed to deserialize barcode content: %v", err), http.StatusBadRequest)
		return
	}

	result, err := s.verifier.Verify(signed, s.store.Provider(), nil)
	if err != nil {
		s.transactions.Record("verify", "", err.Error())
		jsonErrorResponse(w, fmt.Errorf("failed to verify credential: %v", err), http.StatusBadRequest)
		return
	}
	spew.Dump(result)

	cred, err := decodeCredential(result.Payload)
	if err != nil {
		jsonErrorResponse(w, fmt.Errorf("failed to decode credential: %v", err), http.StatusBadRequest)
		return
	}

	id := s.transactions.Record("verify", result.Issuer, "ok")
	jsonResponse(w, VerifyResponse{
		TransactionID: id,
		Issuer:        result.Issuer,
		KID:           fmt.Sprintf("%x", result.KeyID),
		IssuedAt:      result.IssuedAt,
		Expiration:    result.Expiration,
		Credential:    cred,
	}, http.StatusOK)
}

// ListCertificatesHandler returns the trusted certificates.
func (s *Server) ListCertificatesHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.store.Entries(), http.StatusOK)
}

func parseJSON(r *http.Request, v interface{}) error {
	if r == nil || r.Body == nil {
		return errors.New("No request given")
	}

	defer r.Body.Close()
	defer io.Copy(io.Discard, r.Body)

	return json.NewDecoder(r.Body).Decode(v)
}

func jsonResponse(w http.ResponseWriter, d interface{}, c int) {
	dj, err := json.Marshal(d)
	if err != nil {
		http.Error(w, "Error creating JSON response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(c)
	fmt.Fprintf(w, "%s", dj)
}

func jsonErrorResponse(w http.ResponseWriter, e error, c int) {
	var resp VerifyResponse
	resp.Error = e.Error()
	dj, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Error creating JSON response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(c)
	fmt.Fprintf(w, "%s", dj)
}
