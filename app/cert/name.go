package cert

import (
	"crypto/x509/pkix"

	"github.com/botsman/psd2cert/app/eidas"
)

// Configuration describes the subject of a certificate to request and,
// for PSD2 certificates, the eIDAS information to assert.
type Configuration struct {
	CN        string             `yaml:"cn" json:"cn"`
	OU        string             `yaml:"ou" json:"ou"`
	O         string             `yaml:"o" json:"o"`
	L         string             `yaml:"l" json:"l"`
	ST        string             `yaml:"st" json:"st"`
	C         string             `yaml:"c" json:"c"`
	OI        string             `yaml:"oi" json:"oi"`
	EidasInfo *eidas.Information `yaml:"eidas" json:"eidas,omitempty"`
}

func appendIfSet(values []string, v string) []string {
	if v == "" {
		return values
	}
	return append(values, v)
}

// NewName builds the subject name. Empty fields are left out; the
// organization identifier falls back to the one in EidasInfo.
func NewName(conf Configuration) pkix.Name {
	name := pkix.Name{
		CommonName:         conf.CN,
		OrganizationalUnit: appendIfSet(nil, conf.OU),
		Organization:       appendIfSet(nil, conf.O),
		Locality:           appendIfSet(nil, conf.L),
		Province:           appendIfSet(nil, conf.ST),
		Country:            appendIfSet(nil, conf.C),
	}
	oi := conf.OI
	if oi == "" && conf.EidasInfo != nil {
		oi = conf.EidasInfo.OrganisationID
	}
	if oi != "" {
		name.ExtraNames = append(name.ExtraNames, pkix.AttributeTypeAndValue{Type: OIDOrganizationIdentifier, Value: oi})
	}
	return name
}
