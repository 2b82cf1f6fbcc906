// Package eidas decodes and builds the qCStatements certificate extension
// of EU qualified certificates (ETSI EN 319 412-5) and the related
// authority information access extension.
package eidas

import (
	"encoding/asn1"
	"fmt"
	"strings"

	"github.com/botsman/psd2cert/app/certerr"
	"github.com/botsman/psd2cert/app/models"
)

// CertType is the eIDAS certificate type asserted by the QcType statement.
type CertType int

const (
	ESIGN CertType = iota + 1 // electronic signatures
	ESEAL                     // electronic seals
	WEB                       // website authentication
)

type certTypeInfo struct {
	certType CertType
	code     string
	oid      asn1.ObjectIdentifier
}

// id-etsi-qct-* ::= { id-etsi-qcs-QcType n }
var certTypeTable = []certTypeInfo{
	{ESIGN, "ESIGN", asn1.ObjectIdentifier{0, 4, 0, 1862, 1, 6, 1}},
	{ESEAL, "ESEAL", asn1.ObjectIdentifier{0, 4, 0, 1862, 1, 6, 2}},
	{WEB, "WEB", asn1.ObjectIdentifier{0, 4, 0, 1862, 1, 6, 3}},
}

func CertTypes() []CertType {
	res := make([]CertType, 0, len(certTypeTable))
	for _, i := range certTypeTable {
		res = append(res, i.certType)
	}
	return res
}

func (t CertType) info() (certTypeInfo, bool) {
	for _, i := range certTypeTable {
		if i.certType == t {
			return i, true
		}
	}
	return certTypeInfo{}, false
}

func (t CertType) OID() string {
	i, ok := t.info()
	if !ok {
		return ""
	}
	return i.oid.String()
}

func (t CertType) ObjectIdentifier() asn1.ObjectIdentifier {
	i, ok := t.info()
	if !ok {
		return nil
	}
	return i.oid
}

func (t CertType) String() string {
	i, ok := t.info()
	if !ok {
		return fmt.Sprintf("CertType(%d)", int(t))
	}
	return i.code
}

func (t CertType) Valid() bool {
	_, ok := t.info()
	return ok
}

// Usage maps the type onto the PSD2 certificate usage it corresponds to.
func (t CertType) Usage() models.CertUsage {
	switch t {
	case WEB:
		return models.QWAC
	case ESEAL:
		return models.QSEAL
	case ESIGN:
		return models.QESIGN
	default:
		return models.UNKNOWN
	}
}

func (t CertType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid eIDAS certificate type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *CertType) UnmarshalText(text []byte) error {
	ct, err := ParseCertType(string(text))
	if err != nil {
		return err
	}
	*t = ct
	return nil
}

// LookupCertType resolves a dotted QcType OID. Comparison is exact.
func LookupCertType(oid string) (CertType, error) {
	for _, i := range certTypeTable {
		if i.oid.String() == oid {
			return i.certType, nil
		}
	}
	return 0, certerr.Unrecognized("eIDAS certificate type", oid)
}

// ParseCertType resolves a type name such as "eseal", ignoring case.
func ParseCertType(name string) (CertType, error) {
	for _, i := range certTypeTable {
		if strings.EqualFold(i.code, name) {
			return i.certType, nil
		}
	}
	return 0, fmt.Errorf("unknown eIDAS certificate type %q", name)
}
