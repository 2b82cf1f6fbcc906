// Package cert loads certificates and extracts the PSD2 facts a TPP
// certificate carries: organization identifier, roles, competent authority
// and issuer access information.
package cert

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"strings"

	"github.com/botsman/psd2cert/app/certerr"
)

const (
	certPrefix    = "-----BEGIN CERTIFICATE-----"
	certSuffix    = "-----END CERTIFICATE-----"
	pemLineLength = 64
)

// FormatCertContent rebuilds a single PEM certificate from content that may
// lack the armour or have broken line wrapping, e.g. a certificate pasted
// into a JSON body or an HTTP header.
func FormatCertContent(content []byte) ([]byte, error) {
	contentString := string(content)
	contentString = strings.Replace(contentString, certPrefix, "", 1)
	contentString = strings.Replace(contentString, certSuffix, "", 1)
	contentString = strings.ReplaceAll(contentString, "\n", "")
	contentString = strings.ReplaceAll(contentString, " ", "")
	contentString = strings.ReplaceAll(contentString, "\r", "")
	contentString = strings.ReplaceAll(contentString, "\t", "")
	if contentString == "" {
		return nil, errors.New("empty certificate content")
	}
	var buffer bytes.Buffer
	buffer.WriteString(certPrefix)
	buffer.WriteString("\n")
	for i := 0; i < len(contentString); i += pemLineLength {
		end := min(i+pemLineLength, len(contentString))
		buffer.WriteString(contentString[i:end])
		buffer.WriteString("\n")
	}
	buffer.WriteString(certSuffix)
	return buffer.Bytes(), nil
}

func isPEM(data []byte) bool {
	return bytes.Contains(data, []byte("-----BEGIN"))
}

// ParseCert parses a single certificate given as DER, PEM or bare base64.
func ParseCert(data []byte) (*x509.Certificate, error) {
	if len(data) > 0 && data[0] == 0x30 {
		if c, err := x509.ParseCertificate(data); err == nil {
			return c, nil
		}
	}
	data = bytes.TrimSpace(data)
	if isPEM(data) {
		if p, _ := pem.Decode(data); p != nil && p.Type == "CERTIFICATE" {
			return x509.ParseCertificate(p.Bytes)
		}
	}
	data, err := FormatCertContent(data)
	if err != nil {
		return nil, err
	}
	p, _ := pem.Decode(data)
	if p == nil {
		return nil, errors.New("error parsing certificate")
	}
	return x509.ParseCertificate(p.Bytes)
}

// ParseCerts parses a chain, end-entity first. data is either a PEM bundle
// or concatenated DER certificates; anything else is handed to ParseCert.
func ParseCerts(data []byte) ([]*x509.Certificate, error) {
	if len(data) > 0 && data[0] == 0x30 {
		if chain, err := x509.ParseCertificates(data); err == nil && len(chain) > 0 {
			return chain, nil
		}
	}
	if isPEM(data) && bytes.Count(data, []byte(certPrefix)) > 1 {
		var chain []*x509.Certificate
		rest := data
		for {
			var p *pem.Block
			p, rest = pem.Decode(rest)
			if p == nil {
				break
			}
			if p.Type != "CERTIFICATE" {
				continue
			}
			c, err := x509.ParseCertificate(p.Bytes)
			if err != nil {
				return nil, err
			}
			chain = append(chain, c)
		}
		if len(chain) == 0 {
			return nil, certerr.ErrEmptyChain
		}
		return chain, nil
	}
	c, err := ParseCert(data)
	if err != nil {
		return nil, err
	}
	return []*x509.Certificate{c}, nil
}

func GetSha256(c *x509.Certificate) string {
	checksum := sha256.Sum256(c.Raw)
	return hex.EncodeToString(checksum[:])
}

// GetSha1 is the lower case hex SHA-1 thumbprint of the certificate.
func GetSha1(c *x509.Certificate) string {
	checksum := sha1.Sum(c.Raw)
	return hex.EncodeToString(checksum[:])
}

// SubjectHash hashes the raw subject of the end-entity certificate. Two
// certificates issued to the same subject share the hash.
func SubjectHash(chain []*x509.Certificate) (string, bool) {
	if len(chain) == 0 || chain[0] == nil {
		return "", false
	}
	checksum := sha256.Sum256(chain[0].RawSubject)
	return hex.EncodeToString(checksum[:]), true
}
