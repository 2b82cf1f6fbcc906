package verify

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/botsman/psd2cert/app/cert"
	"github.com/botsman/psd2cert/app/dbrepository"
	"github.com/botsman/psd2cert/app/eidas"
	"github.com/botsman/psd2cert/app/models"
	"github.com/botsman/psd2cert/app/psd2"
)

const fixtureOrgID = "PSDFIN-FINFSA-1234567-8"

type mockTppRepository map[string]*models.TPP

func (m mockTppRepository) GetTpp(_ context.Context, id string) (*models.TPP, error) {
	tpp, ok := m[id]
	if !ok {
		return nil, dbrepository.ErrTppNotFound
	}
	return tpp, nil
}

func authorizedTpp() *models.TPP {
	authorized := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.TPP{
		NameLatin:    "Some Company Name",
		OBID:         fixtureOrgID,
		Authority:    "FINFSA",
		Country:      "FI",
		Services:     map[string][]models.Service{"FI": {models.AIS, models.PIS}, "SE": {models.AIS}},
		AuthorizedAt: &authorized,
		Registry:     "EBA",
	}
}

func fixture(t *testing.T) []byte {
	t.Helper()
	_, filename, _, _ := runtime.Caller(0)
	content, err := os.ReadFile(filepath.Join(filepath.Dir(filename), "..", "..", "testdata", "psd2_qseal.pem"))
	if err != nil {
		t.Fatalf("Couldn't read fixture: %v\n", err)
	}
	return content
}

func at(year int, month time.Month, day int) func() time.Time {
	return func() time.Time { return time.Date(year, month, day, 0, 0, 0, 0, time.UTC) }
}

func newRouter(repo dbrepository.TppRepository, opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(opts)
	r := gin.New()
	r.Use(dbrepository.DbMiddleware(repo))
	r.POST("/cert/inspect", h.Inspect)
	r.POST("/tpp/verify", h.Verify)
	return r
}

func post(t *testing.T, r *gin.Engine, path string, certContent []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(VerifyRequest{Cert: certContent})
	if err != nil {
		t.Fatalf("Couldn't marshal request: %v\n", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

// selfSigned returns a PEM certificate for the given subject and extensions.
func selfSigned(t *testing.T, subject pkix.Name, exts ...pkix.Extension) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	assert.NilError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:    big.NewInt(7),
		Subject:         subject,
		NotBefore:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:        time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		ExtraExtensions: exts,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	assert.NilError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func psd2Subject() pkix.Name {
	return pkix.Name{
		CommonName: "app",
		ExtraNames: []pkix.AttributeTypeAndValue{{Type: cert.OIDOrganizationIdentifier, Value: "PSDGB-FCA-791622"}},
	}
}

// psd2Extension asserts a web certificate with the PSD2 statement but no
// QcCompliance.
func psd2Extension(t *testing.T) pkix.Extension {
	t.Helper()
	q := eidas.NewQCStatements()
	assert.NilError(t, q.SetEidasCertificateType(eidas.WEB))
	assert.NilError(t, q.SetPsd2Statement(psd2.NewQcStatement(psd2.NewRolesOfPsp(psd2.PSP_AI), "Financial Conduct Authority", "GB-FCA")))
	ext, err := q.Extension()
	assert.NilError(t, err)
	return ext
}

func TestInspect(t *testing.T) {
	r := newRouter(mockTppRepository{}, Options{})
	resp := post(t, r, "/cert/inspect", fixture(t))
	assert.Assert(t, is.Equal(resp.Code, http.StatusOK), resp.Body.String())

	var summary cert.Summary
	assert.NilError(t, json.Unmarshal(resp.Body.Bytes(), &summary))
	assert.Check(t, summary.IsPsd2)
	assert.Check(t, is.Equal(summary.OrganizationID, fixtureOrgID))
	assert.Check(t, is.Equal(summary.Usage, models.QSEAL))
	assert.Check(t, is.DeepEqual(summary.Roles, []psd2.Role{psd2.PSP_AS, psd2.PSP_PI}))
	assert.Check(t, is.Equal(summary.Sha256, "ef2527a44ccee556b6a5cabde31dda68e45165b2ec2ae67270b17cf01f4e8f1a"))
	assert.Check(t, is.DeepEqual(summary.OCSP, []string{"http://test.company.hu/testca"}))
}

func TestInspectBadRequest(t *testing.T) {
	r := newRouter(mockTppRepository{}, Options{})
	resp := post(t, r, "/cert/inspect", []byte("not a certificate"))
	assert.Check(t, is.Equal(resp.Code, http.StatusBadRequest))
	assert.Check(t, is.Contains(resp.Body.String(), "error"))

	req := httptest.NewRequest(http.MethodPost, "/cert/inspect", bytes.NewReader([]byte("{")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Check(t, is.Equal(w.Code, http.StatusBadRequest))
}

func TestVerify(t *testing.T) {
	r := newRouter(mockTppRepository{fixtureOrgID: authorizedTpp()}, Options{Now: at(2025, time.June, 1)})
	resp := post(t, r, "/tpp/verify", fixture(t))
	assert.Assert(t, is.Equal(resp.Code, http.StatusOK), resp.Body.String())

	var result VerifyResult
	assert.NilError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.Check(t, result.Valid, result.Reason)
	assert.Check(t, is.DeepEqual(result.Scopes, map[string][]models.Scope{"FI": {models.ScopePIS}}))
	assert.Assert(t, result.TPP != nil)
	assert.Check(t, is.Equal(result.TPP.NameLatin, "Some Company Name"))
	assert.Assert(t, result.Certificate != nil)
	assert.Check(t, is.Equal(result.Certificate.Serial, "1"))
}

func TestVerifyInvalid(t *testing.T) {
	withdrawn := authorizedTpp()
	withdrawnAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	withdrawn.WithdrawnAt = &withdrawnAt

	aisOnly := authorizedTpp()
	aisOnly.Services = map[string][]models.Service{"FI": {models.AIS}}

	tests := []struct {
		name   string
		tpp    *models.TPP
		now    func() time.Time
		reason string
	}{
		{"expired", authorizedTpp(), at(2026, time.June, 1), "certificate has expired"},
		{"not yet valid", authorizedTpp(), at(2024, time.June, 1), "certificate is not yet valid"},
		{"withdrawn", withdrawn, at(2025, time.June, 1), "tpp is not authorised"},
		{"no common scope", aisOnly, at(2025, time.June, 1), "no certificate role is authorised for the tpp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(mockTppRepository{fixtureOrgID: tt.tpp}, Options{Now: tt.now})
			resp := post(t, r, "/tpp/verify", fixture(t))
			assert.Assert(t, is.Equal(resp.Code, http.StatusOK), resp.Body.String())
			var result VerifyResult
			assert.NilError(t, json.Unmarshal(resp.Body.Bytes(), &result))
			assert.Check(t, !result.Valid)
			assert.Check(t, is.Equal(result.Reason, tt.reason))
		})
	}
}

func TestVerifyUnknownTpp(t *testing.T) {
	r := newRouter(mockTppRepository{}, Options{})
	resp := post(t, r, "/tpp/verify", fixture(t))
	assert.Check(t, is.Equal(resp.Code, http.StatusNotFound))
}

func TestVerifyNormalisedOrganizationID(t *testing.T) {
	subject := pkix.Name{
		CommonName: "app",
		ExtraNames: []pkix.AttributeTypeAndValue{{Type: cert.OIDOrganizationIdentifier, Value: "PSDGB-FCA-791-622"}},
	}
	tpp := authorizedTpp()
	tpp.OBID = "PSDGB-FCA-791622"
	tpp.Services = map[string][]models.Service{"GB": {models.AIS}}
	r := newRouter(mockTppRepository{"PSDGB-FCA-791622": tpp}, Options{Now: at(2026, time.June, 1)})

	resp := post(t, r, "/tpp/verify", selfSigned(t, subject, psd2Extension(t)))
	assert.Assert(t, is.Equal(resp.Code, http.StatusOK), resp.Body.String())
	var result VerifyResult
	assert.NilError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.Check(t, result.Valid, result.Reason)
	assert.Check(t, is.DeepEqual(result.Scopes, map[string][]models.Scope{"GB": {models.ScopeAIS}}))
	assert.Assert(t, result.Certificate.OrganizationIDParts != nil)
	assert.Check(t, is.Equal(result.Certificate.OrganizationIDParts.NationalID, "791-622"))

	// already normalised identifiers are looked up once
	resp = post(t, r, "/tpp/verify", selfSigned(t, psd2Subject(), psd2Extension(t)))
	assert.Check(t, is.Equal(resp.Code, http.StatusOK))
	resp = post(t, newRouter(mockTppRepository{}, Options{}), "/tpp/verify", selfSigned(t, subject, psd2Extension(t)))
	assert.Check(t, is.Equal(resp.Code, http.StatusNotFound))
}

func TestVerifyNotPsd2(t *testing.T) {
	r := newRouter(mockTppRepository{}, Options{})
	resp := post(t, r, "/tpp/verify", selfSigned(t, psd2Subject()))
	assert.Check(t, is.Equal(resp.Code, http.StatusBadRequest))
	assert.Check(t, is.Contains(resp.Body.String(), "not a PSD2 certificate"))
}

func TestVerifyRequireEUQualified(t *testing.T) {
	certContent := selfSigned(t, psd2Subject(), psd2Extension(t))

	// accepted as PSD2, then not found in the empty register
	r := newRouter(mockTppRepository{}, Options{})
	resp := post(t, r, "/tpp/verify", certContent)
	assert.Check(t, is.Equal(resp.Code, http.StatusNotFound))

	r = newRouter(mockTppRepository{}, Options{RequireEUQualified: true})
	resp = post(t, r, "/tpp/verify", certContent)
	assert.Check(t, is.Equal(resp.Code, http.StatusBadRequest))
}

func TestVerifyWithoutOrganizationID(t *testing.T) {
	r := newRouter(mockTppRepository{}, Options{})
	resp := post(t, r, "/tpp/verify", selfSigned(t, pkix.Name{CommonName: "app"}, psd2Extension(t)))
	assert.Check(t, is.Equal(resp.Code, http.StatusBadRequest))
	assert.Check(t, is.Contains(resp.Body.String(), "organization identifier"))
}

func TestIntersectScopes(t *testing.T) {
	tests := []struct {
		name     string
		scopes   []models.Scope
		services map[string][]models.Service
		want     map[string][]models.Scope
	}{
		{
			name:     "per country",
			scopes:   []models.Scope{models.ScopeAIS, models.ScopePIS},
			services: map[string][]models.Service{"FI": {models.PIS}, "SE": {models.AIS, models.PIS}, "DE": {models.CBPII}},
			want:     map[string][]models.Scope{"FI": {models.ScopePIS}, "SE": {models.ScopeAIS, models.ScopePIS}},
		},
		{
			name:     "ASPSP has no service",
			scopes:   []models.Scope{models.ScopeASPSP},
			services: map[string][]models.Service{"FI": {models.AIS, models.PIS, models.CBPII}},
			want:     map[string][]models.Scope{},
		},
		{
			name:     "no services",
			scopes:   []models.Scope{models.ScopeAIS},
			services: nil,
			want:     map[string][]models.Scope{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Check(t, is.DeepEqual(IntersectScopes(tt.scopes, tt.services), tt.want))
		})
	}
}
