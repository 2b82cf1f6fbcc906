package cert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/botsman/psd2cert/app/eidas"
	"github.com/botsman/psd2cert/app/psd2"
)

// getTestDataPath returns the absolute path to a file or directory in testdata, relative to this test file.
func getTestDataPath(relPath string) string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "testdata", relPath)
}

func readTestData(t *testing.T, name string) []byte {
	t.Helper()
	content, err := os.ReadFile(getTestDataPath(name))
	if err != nil {
		t.Fatalf("Couldn't read %s: %v\n", name, err)
	}
	return content
}

// newTestCert issues a certificate for tmpl. Without a parent it is self-signed.
func newTestCert(t *testing.T, tmpl *x509.Certificate, parent *x509.Certificate, parentKey *ecdsa.PrivateKey) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	assert.NilError(t, err)
	if tmpl.SerialNumber == nil {
		tmpl.SerialNumber = big.NewInt(time.Now().UnixNano())
	}
	if tmpl.NotBefore.IsZero() {
		tmpl.NotBefore = time.Now().Add(-time.Hour)
		tmpl.NotAfter = time.Now().Add(24 * time.Hour)
	}
	if parent == nil {
		parent, parentKey = tmpl, key
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, &key.PublicKey, parentKey)
	assert.NilError(t, err)
	c, err := x509.ParseCertificate(der)
	assert.NilError(t, err)
	return c, key
}

func orgIDName(cn, orgID string) pkix.Name {
	return pkix.Name{
		CommonName: cn,
		Country:    []string{"GB"},
		ExtraNames: []pkix.AttributeTypeAndValue{{Type: OIDOrganizationIdentifier, Value: orgID}},
	}
}

func qcExtension(t *testing.T, build func(q *eidas.QCStatements)) pkix.Extension {
	t.Helper()
	q := eidas.NewQCStatements()
	build(q)
	ext, err := q.Extension()
	assert.NilError(t, err)
	return ext
}

func testStatement() *psd2.QcStatement {
	return psd2.NewQcStatement(psd2.NewRolesOfPsp(psd2.PSP_AI, psd2.PSP_PI), "Financial Conduct Authority", "GB-FCA")
}
