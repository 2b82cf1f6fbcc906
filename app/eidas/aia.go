package eidas

import (
	"bytes"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/botsman/psd2cert/app/certerr"
)

var (
	OIDAuthorityInfoAccess = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 1}
	OIDAccessOCSP          = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1}
	OIDAccessCAIssuers     = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 2}
)

// GeneralName uniformResourceIdentifier [6] IA5String
var uriTag = cbasn1.Tag(6).ContextSpecific()

// AccessDescription is one entry of the authorityInfoAccess extension. URI
// is set for uniformResourceIdentifier locations, other GeneralName forms
// are kept in Raw.
type AccessDescription struct {
	Method asn1.ObjectIdentifier
	URI    string
	Raw    []byte
}

// AuthorityInformationAccess is
//
//	AuthorityInfoAccessSyntax ::= SEQUENCE SIZE (1..MAX) OF AccessDescription
type AuthorityInformationAccess struct {
	Descriptions []AccessDescription
}

func (a *AuthorityInformationAccess) AddURI(method asn1.ObjectIdentifier, uri string) *AuthorityInformationAccess {
	a.Descriptions = append(a.Descriptions, AccessDescription{Method: method, URI: uri})
	return a
}

func (a *AuthorityInformationAccess) uris(method asn1.ObjectIdentifier) []string {
	var res []string
	for _, d := range a.Descriptions {
		if d.Method.Equal(method) && d.URI != "" {
			res = append(res, d.URI)
		}
	}
	return res
}

func (a *AuthorityInformationAccess) CAIssuers() []string {
	return a.uris(OIDAccessCAIssuers)
}

func (a *AuthorityInformationAccess) OCSP() []string {
	return a.uris(OIDAccessOCSP)
}

// CAIssuerURL returns the first caIssuers URI.
func (a *AuthorityInformationAccess) CAIssuerURL() (string, bool) {
	urls := a.CAIssuers()
	if len(urls) == 0 {
		return "", false
	}
	return urls[0], true
}

func (a *AuthorityInformationAccess) Marshal(b *cryptobyte.Builder) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, d := range a.Descriptions {
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(d.Method)
				if d.Raw != nil {
					b.AddBytes(d.Raw)
					return
				}
				b.AddASN1(uriTag, func(b *cryptobyte.Builder) {
					b.AddBytes([]byte(d.URI))
				})
			})
		}
	})
}

func (a *AuthorityInformationAccess) MarshalASN1() ([]byte, error) {
	if len(a.Descriptions) == 0 {
		return nil, fmt.Errorf("authority information access needs at least one access description")
	}
	b := cryptobyte.NewBuilder(nil)
	a.Marshal(b)
	return b.Bytes()
}

func (a *AuthorityInformationAccess) Extension() (pkix.Extension, error) {
	value, err := a.MarshalASN1()
	if err != nil {
		return pkix.Extension{}, err
	}
	return pkix.Extension{Id: OIDAuthorityInfoAccess, Value: value}, nil
}

func ParseAuthorityInformationAccess(der []byte) (*AuthorityInformationAccess, error) {
	input := cryptobyte.String(der)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, certerr.Malformed("authority information access is not a SEQUENCE")
	}
	a := &AuthorityInformationAccess{}
	for !seq.Empty() {
		var desc cryptobyte.String
		var method asn1.ObjectIdentifier
		if !seq.ReadASN1(&desc, cbasn1.SEQUENCE) || !desc.ReadASN1ObjectIdentifier(&method) {
			return nil, certerr.Malformed("invalid access description")
		}
		var location cryptobyte.String
		var tag cbasn1.Tag
		if !desc.ReadAnyASN1Element(&location, &tag) || !desc.Empty() {
			return nil, certerr.Malformed("invalid access location for %s", method)
		}
		d := AccessDescription{Method: method}
		if tag == uriTag {
			var uri cryptobyte.String
			if !location.ReadASN1(&uri, uriTag) {
				return nil, certerr.Malformed("invalid URI for %s", method)
			}
			d.URI = string(uri)
		} else {
			d.Raw = bytes.Clone(location)
		}
		a.Descriptions = append(a.Descriptions, d)
	}
	return a, nil
}

// ParseAuthorityInformationAccessExtension finds and decodes the
// authorityInfoAccess extension. It reports false if the extension is absent.
func ParseAuthorityInformationAccessExtension(exts []pkix.Extension) (*AuthorityInformationAccess, bool, error) {
	for _, ext := range exts {
		if !ext.Id.Equal(OIDAuthorityInfoAccess) {
			continue
		}
		a, err := ParseAuthorityInformationAccess(ext.Value)
		if err != nil {
			return nil, false, fmt.Errorf("authorityInfoAccess extension: %w", err)
		}
		return a, true, nil
	}
	return nil, false, nil
}
