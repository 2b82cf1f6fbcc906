package cert

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"

	"github.com/botsman/psd2cert/app/certerr"
)

var (
	OIDOrganizationIdentifier = asn1.ObjectIdentifier{2, 5, 4, 97}
	OIDOrganizationalUnit     = asn1.ObjectIdentifier{2, 5, 4, 11}
	OIDCommonName             = asn1.ObjectIdentifier{2, 5, 4, 3}
	OIDSerialNumber           = asn1.ObjectIdentifier{2, 5, 4, 5}
)

type RdnField int

const (
	Subject RdnField = iota
	Issuer
)

func (f RdnField) String() string {
	switch f {
	case Subject:
		return "subject"
	case Issuer:
		return "issuer"
	default:
		return fmt.Sprintf("RdnField(%d)", int(f))
	}
}

func attributes(name pkix.Name) []pkix.AttributeTypeAndValue {
	if len(name.Names) > 0 {
		return name.Names
	}
	// not parsed from DER, fall back to the typed fields
	var res []pkix.AttributeTypeAndValue
	for _, rdn := range name.ToRDNSequence() {
		res = append(res, rdn...)
	}
	return res
}

// FindRdn returns the value of the first attribute of type oid in name.
func FindRdn(name pkix.Name, oid asn1.ObjectIdentifier) (any, bool) {
	for _, atv := range attributes(name) {
		if atv.Type.Equal(oid) {
			return atv.Value, true
		}
	}
	return nil, false
}

// GetOrganizationIdentifier returns the organizationIdentifier of name, or
// its first OU for issuers that predate the attribute.
func GetOrganizationIdentifier(name pkix.Name) (string, error) {
	value, ok := FindRdn(name, OIDOrganizationIdentifier)
	if !ok {
		value, ok = FindRdn(name, OIDOrganizationalUnit)
	}
	if !ok {
		return "", certerr.ErrNoOrganizationIdentifier
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: attribute value %v is not a string", certerr.ErrMalformedOrganizationIdentifier, value)
	}
	return s, nil
}

// GetRdnAsString returns the first attribute of type oid in the subject or
// issuer of c.
func GetRdnAsString(c *x509.Certificate, field RdnField, oid asn1.ObjectIdentifier) (string, error) {
	var name pkix.Name
	switch field {
	case Subject:
		name = c.Subject
	case Issuer:
		name = c.Issuer
	default:
		return "", fmt.Errorf("unrecognised RDN field %s", field)
	}
	value, ok := FindRdn(name, oid)
	if !ok {
		return "", fmt.Errorf("%w: %s not found in %s", certerr.ErrNoSuchRdn, oid, field)
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: malformed %s in %s", certerr.ErrNoSuchRdn, oid, field)
	}
	return s, nil
}

// Extension returns the raw extension oid of c.
func Extension(c *x509.Certificate, oid asn1.ObjectIdentifier) (pkix.Extension, bool) {
	for _, ext := range c.Extensions {
		if ext.Id.Equal(oid) {
			return ext, true
		}
	}
	return pkix.Extension{}, false
}
