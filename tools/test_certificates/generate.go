package main

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/botsman/psd2cert/app/cert"
	"github.com/botsman/psd2cert/app/eidas"
)

type Profile struct {
	CA           cert.Configuration `yaml:"ca"`
	ValidityDays int                `yaml:"validity_days"`
	Certificates []CertProfile      `yaml:"certificates"`
}

type CertProfile struct {
	Name    string             `yaml:"name"`
	Type    eidas.CertType     `yaml:"type"`
	Subject cert.Configuration `yaml:"subject"`
}

func ParseProfile(data []byte) (*Profile, error) {
	p := &Profile{ValidityDays: 365}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if len(p.Certificates) == 0 {
		return nil, errors.New("profile has no certificates")
	}
	for i, c := range p.Certificates {
		if c.Name == "" {
			return nil, fmt.Errorf("certificate %d has no name", i)
		}
		if !c.Type.Valid() {
			return nil, fmt.Errorf("certificate %s has no type", c.Name)
		}
		if c.Subject.EidasInfo == nil {
			return nil, fmt.Errorf("certificate %s has no eidas information", c.Name)
		}
	}
	return p, nil
}

type issuer struct {
	cert *x509.Certificate
	key  crypto.Signer
}

func serialNumber() (*big.Int, error) {
	return rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
}

func newCA(conf cert.Configuration, notBefore, notAfter time.Time) (*issuer, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	serial, err := serialNumber()
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               cert.NewName(conf),
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		return nil, err
	}
	c, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &issuer{cert: c, key: key}, nil
}

func keyUsage(t eidas.CertType) (x509.KeyUsage, []x509.ExtKeyUsage) {
	switch t {
	case eidas.WEB:
		return x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment, []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}
	case eidas.ESEAL:
		return x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment, nil
	default:
		return x509.KeyUsageContentCommitment, nil
	}
}

// issue goes through a CSR the same way a TPP would request the certificate.
func (ca *issuer) issue(p CertProfile, notBefore, notAfter time.Time) (*x509.Certificate, *ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	csrDER, err := cert.CreateCSR(p.Subject, p.Type, key)
	if err != nil {
		return nil, nil, err
	}
	csr, err := x509.ParseCertificateRequest(csrDER)
	if err != nil {
		return nil, nil, err
	}
	if err := csr.CheckSignature(); err != nil {
		return nil, nil, err
	}
	serial, err := serialNumber()
	if err != nil {
		return nil, nil, err
	}
	ku, eku := keyUsage(p.Type)
	tmpl := &x509.Certificate{
		SerialNumber:    serial,
		RawSubject:      csr.RawSubject,
		NotBefore:       notBefore,
		NotAfter:        notAfter,
		KeyUsage:        ku,
		ExtKeyUsage:     eku,
		ExtraExtensions: csr.Extensions,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.cert, csr.PublicKey, ca.key)
	if err != nil {
		return nil, nil, err
	}
	c, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, err
	}
	return c, key, nil
}

func writePEM(path string, blocks ...*pem.Block) error {
	var out []byte
	for _, b := range blocks {
		out = append(out, pem.EncodeToMemory(b)...)
	}
	return os.WriteFile(path, out, 0o600)
}

func certBlock(c *x509.Certificate) *pem.Block {
	return &pem.Block{Type: "CERTIFICATE", Bytes: c.Raw}
}

// Generate writes ca.pem and, per certificate, <name>.pem (chain) and
// <name>.key. It returns the written paths.
func Generate(p *Profile, outDir string) ([]string, error) {
	notBefore := time.Now().Add(-time.Hour)
	notAfter := notBefore.AddDate(0, 0, p.ValidityDays)
	ca, err := newCA(p.CA, notBefore, notAfter)
	if err != nil {
		return nil, fmt.Errorf("failed to create CA: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	caPath := filepath.Join(outDir, "ca.pem")
	if err := writePEM(caPath, certBlock(ca.cert)); err != nil {
		return nil, err
	}
	files := []string{caPath}
	for _, cp := range p.Certificates {
		c, key, err := ca.issue(cp, notBefore, notAfter)
		if err != nil {
			return nil, fmt.Errorf("failed to issue %s: %w", cp.Name, err)
		}
		keyDER, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			return nil, err
		}
		certPath := filepath.Join(outDir, cp.Name+".pem")
		keyPath := filepath.Join(outDir, cp.Name+".key")
		if err := writePEM(certPath, certBlock(c), certBlock(ca.cert)); err != nil {
			return nil, err
		}
		if err := writePEM(keyPath, &pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}); err != nil {
			return nil, err
		}
		files = append(files, certPath, keyPath)
	}
	return files, nil
}
