// Package verify serves the certificate inspection and TPP verification
// endpoints.
package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/botsman/psd2cert/app/cert"
	"github.com/botsman/psd2cert/app/dbrepository"
	"github.com/botsman/psd2cert/app/models"
)

type VerifyRequest struct {
	Cert []byte `json:"cert"`
}

type VerifyResult struct {
	Certificate *cert.Summary             `json:"cert"`
	TPP         *models.TPP               `json:"tpp"`
	Valid       bool                      `json:"valid"`
	Scopes      map[string][]models.Scope `json:"scopes"`
	Reason      string                    `json:"reason,omitempty"`
}

type Options struct {
	// RequireEUQualified makes a certificate without QcCompliance count as
	// not a PSD2 certificate.
	RequireEUQualified bool
	// Now defaults to time.Now.
	Now func() time.Time
}

type Handler struct {
	opts Options
}

func NewHandler(opts Options) *Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Handler{opts: opts}
}

func abort(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{
		"error": err.Error(),
	})
}

func bindCertInfo(c *gin.Context) (*cert.Psd2CertInfo, bool) {
	var req VerifyRequest
	if err := c.BindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return nil, false
	}
	chain, err := cert.ParseCerts(req.Cert)
	if err != nil {
		abort(c, http.StatusBadRequest, fmt.Errorf("couldn't parse certificate: %w", err))
		return nil, false
	}
	info, err := cert.NewPsd2CertInfo(chain)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return nil, false
	}
	return info, true
}

// Inspect returns the summary of the posted certificate.
func (h *Handler) Inspect(c *gin.Context) {
	info, ok := bindCertInfo(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, info.Summary())
}

func (h *Handler) isPsd2(info *cert.Psd2CertInfo) bool {
	if h.opts.RequireEUQualified {
		return info.IsQualifiedPsd2Cert()
	}
	return info.IsPsd2Cert()
}

// Verify checks the posted PSD2 certificate against the TPP register.
func (h *Handler) Verify(c *gin.Context) {
	// 1. Parse the certificate
	// 2. Extract the TPP ID
	// 3. Query the database for the TPP
	// 4. Check the certificate validity period and the TPP authorisation
	// 5. Intersect the TPP's services with the certificate's scopes
	info, ok := bindCertInfo(c)
	if !ok {
		return
	}
	if !h.isPsd2(info) {
		abort(c, http.StatusBadRequest, errors.New("not a PSD2 certificate"))
		return
	}
	orgID, ok := info.OrganizationID()
	if !ok {
		abort(c, http.StatusBadRequest, errors.New("certificate has no organization identifier"))
		return
	}
	log := logrus.WithField("organizationId", orgID)

	repo, err := dbrepository.FromContext(c)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	tpp, err := lookupTpp(c, repo, info)
	if errors.Is(err, dbrepository.ErrTppNotFound) {
		log.Info("tpp not found")
		abort(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		log.WithError(err).Error("tpp lookup failed")
		abort(c, http.StatusInternalServerError, err)
		return
	}

	summary := info.Summary()
	result := VerifyResult{
		Certificate: &summary,
		TPP:         tpp,
		Scopes:      IntersectScopes(info.Scopes(), tpp.Services),
	}
	result.Valid, result.Reason = h.evaluate(info, tpp, result.Scopes)
	log.WithField("valid", result.Valid).Debug("tpp verified")
	c.JSON(http.StatusOK, result)
}

// lookupTpp queries the register with the organization identifier as
// written in the certificate, then with its national reference stripped of
// spaces and dashes, the form registers key PSD identifiers by.
func lookupTpp(ctx context.Context, repo dbrepository.TppRepository, info *cert.Psd2CertInfo) (*models.TPP, error) {
	orgID, _ := info.OrganizationID()
	tpp, err := repo.GetTpp(ctx, orgID)
	if !errors.Is(err, dbrepository.ErrTppNotFound) {
		return tpp, err
	}
	id, perr := info.ParsedOrganizationID()
	if perr != nil || !id.IsPSD() {
		return nil, err
	}
	normalised := cert.NewOrganizationID(id.NationalID, id.Country, id.NCA).String()
	if normalised == orgID {
		return nil, err
	}
	logrus.WithField("organizationId", orgID).Debugf("retrying tpp lookup as %s", normalised)
	return repo.GetTpp(ctx, normalised)
}

func (h *Handler) evaluate(info *cert.Psd2CertInfo, tpp *models.TPP, scopes map[string][]models.Scope) (bool, string) {
	now := h.opts.Now()
	c := info.Certificates()[0]
	switch {
	case now.Before(c.NotBefore):
		return false, "certificate is not yet valid"
	case now.After(c.NotAfter):
		return false, "certificate has expired"
	case !tpp.IsAuthorized(now):
		return false, "tpp is not authorised"
	case len(scopes) == 0:
		return false, "no certificate role is authorised for the tpp"
	}
	return true, ""
}

// IntersectScopes keeps, per country, the certificate scopes the TPP holds
// a service for. Countries left without a scope are omitted.
func IntersectScopes(certScopes []models.Scope, services map[string][]models.Service) map[string][]models.Scope {
	res := make(map[string][]models.Scope)
	for country, granted := range services {
		for _, scope := range certScopes {
			service, ok := scope.Service()
			if !ok || !slices.Contains(granted, service) {
				continue
			}
			if !slices.Contains(res[country], scope) {
				res[country] = append(res[country], scope)
			}
		}
	}
	return res
}
