package server

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/mitchellh/mapstructure"
)

// Credential is the display form of the EU DCC v1 payload. The core
// treats the payload as opaque bytes; this mapping exists only so the
// API can show something human-readable.
type Credential struct {
	Version      string             `mapstructure:"ver" json:"ver"`
	Name         PersonName         `mapstructure:"nam" json:"nam"`
	DateOfBirth  string             `mapstructure:"dob" json:"dob"`
	Vaccinations []VaccinationEntry `mapstructure:"v" json:"v,omitempty"`
	Tests        []TestEntry        `mapstructure:"t" json:"t,omitempty"`
	Recoveries   []RecoveryEntry    `mapstructure:"r" json:"r,omitempty"`
}

type PersonName struct {
	FamilyName         string `mapstructure:"fn" json:"fn,omitempty"`
	StandardisedFamily string `mapstructure:"fnt" json:"fnt"`
	GivenName          string `mapstructure:"gn" json:"gn,omitempty"`
	StandardisedGiven  string `mapstructure:"gnt" json:"gnt,omitempty"`
}

type VaccinationEntry struct {
	Target        string `mapstructure:"tg" json:"tg"`
	Vaccine       string `mapstructure:"vp" json:"vp"`
	Product       string `mapstructure:"mp" json:"mp"`
	Manufacturer  string `mapstructure:"ma" json:"ma"`
	DoseNumber    int    `mapstructure:"dn" json:"dn"`
	SeriesDoses   int    `mapstructure:"sd" json:"sd"`
	Date          string `mapstructure:"dt" json:"dt"`
	Country       string `mapstructure:"co" json:"co"`
	Issuer        string `mapstructure:"is" json:"is"`
	CertificateID string `mapstructure:"ci" json:"ci"`
}

type TestEntry struct {
	Target        string `mapstructure:"tg" json:"tg"`
	Type          string `mapstructure:"tt" json:"tt"`
	SampleTime    string `mapstructure:"sc" json:"sc"`
	Result        string `mapstructure:"tr" json:"tr"`
	Country       string `mapstructure:"co" json:"co"`
	Issuer        string `mapstructure:"is" json:"is"`
	CertificateID string `mapstructure:"ci" json:"ci"`
}

type RecoveryEntry struct {
	Target        string `mapstructure:"tg" json:"tg"`
	FirstResult   string `mapstructure:"fr" json:"fr"`
	ValidFrom     string `mapstructure:"df" json:"df"`
	ValidUntil    string `mapstructure:"du" json:"du"`
	Country       string `mapstructure:"co" json:"co"`
	Issuer        string `mapstructure:"is" json:"is"`
	CertificateID string `mapstructure:"ci" json:"ci"`
}

// decMode decodes CBOR maps to map[string]interface{} so mapstructure
// can traverse them; DCC payload keys are all text strings.
var decMode, _ = cbor.DecOptions{
	DefaultMapType: reflect.TypeOf(map[string]interface{}{}),
}.DecMode()

func decodeCredential(payload []byte) (*Credential, error) {
	var raw map[string]interface{}
	if err := decMode.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DCC payload: %v", err)
	}

	var cred Credential
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cred,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to map DCC payload: %v", err)
	}
	return &cred, nil
}

func encodeCredential(credential map[string]interface{}) ([]byte, error) {
	return cbor.Marshal(credential)
}
