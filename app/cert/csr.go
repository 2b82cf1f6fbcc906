package cert

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"errors"

	"github.com/botsman/psd2cert/app/eidas"
)

// AddEidasExtensionsToCSR requests the authorityInfoAccess and qCStatements
// extensions for certType. They end up in the extensionRequest attribute.
func AddEidasExtensionsToCSR(tmpl *x509.CertificateRequest, certType eidas.CertType, info *eidas.Information) error {
	if info == nil {
		return errors.New("no eIDAS information")
	}
	exts, err := info.Extensions(certType)
	if err != nil {
		return err
	}
	tmpl.ExtraExtensions = append(tmpl.ExtraExtensions, exts...)
	return nil
}

// CreateCSR returns a DER encoded PKCS#10 request for conf signed with key.
func CreateCSR(conf Configuration, certType eidas.CertType, key crypto.Signer) ([]byte, error) {
	tmpl := &x509.CertificateRequest{Subject: NewName(conf)}
	if conf.EidasInfo != nil {
		if err := AddEidasExtensionsToCSR(tmpl, certType, conf.EidasInfo); err != nil {
			return nil, err
		}
	}
	return x509.CreateCertificateRequest(rand.Reader, tmpl, key)
}
