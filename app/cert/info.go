package cert

import (
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/botsman/psd2cert/app/certerr"
	"github.com/botsman/psd2cert/app/eidas"
	"github.com/botsman/psd2cert/app/models"
	"github.com/botsman/psd2cert/app/psd2"
)

// Psd2CertInfo exposes the PSD2 facts of a certificate chain. The first
// certificate of the chain is the end-entity certificate. It is read-only
// once built and safe for concurrent use.
type Psd2CertInfo struct {
	chain          []*x509.Certificate
	statements     *eidas.QCStatements
	psd2Statement  *psd2.QcStatement
	aia            *eidas.AuthorityInformationAccess
	organizationID string
}

// NewPsd2CertInfo decodes the qCStatements and authorityInfoAccess
// extensions of the end-entity certificate. Missing extensions are not an
// error, malformed ones are. A certificate without any extension has no
// derived facts, not even an organization identifier. A missing organization
// identifier is tolerated and reported by OrganizationID.
func NewPsd2CertInfo(chain []*x509.Certificate) (*Psd2CertInfo, error) {
	if len(chain) == 0 || chain[0] == nil {
		return nil, certerr.ErrEmptyChain
	}
	c := chain[0]
	info := &Psd2CertInfo{chain: slices.Clone(chain)}

	if len(c.Extensions) > 0 {
		q, ok, err := eidas.ParseQCStatementsExtension(c.Extensions)
		if err != nil {
			return nil, err
		}
		if ok {
			info.statements = q
			stmt, _, err := q.Psd2Statement()
			if err != nil {
				return nil, fmt.Errorf("PSD2 statement: %w", err)
			}
			info.psd2Statement = stmt
		}
		aia, ok, err := eidas.ParseAuthorityInformationAccessExtension(c.Extensions)
		if err != nil {
			return nil, err
		}
		if ok {
			info.aia = aia
		}

		orgID, err := GetOrganizationIdentifier(c.Subject)
		if err != nil {
			logrus.WithError(err).WithField("subject", c.Subject.String()).Debug("no usable organization identifier")
		} else {
			info.organizationID = orgID
		}
	}
	return info, nil
}

// IsPsd2Cert reports whether the certificate asserts an eIDAS certificate
// type and a PSD2 statement. QcCompliance is not required: some issuers
// leave it out of otherwise valid PSD2 certificates. A certificate type that
// cannot be resolved makes the certificate a non-PSD2 one.
func (p *Psd2CertInfo) IsPsd2Cert() bool {
	if p.statements == nil || p.psd2Statement == nil {
		return false
	}
	_, ok, err := p.statements.EidasCertificateType()
	if err != nil {
		logrus.WithError(err).WithField("subject", p.chain[0].Subject.String()).Debug("unresolved eIDAS certificate type")
		return false
	}
	return ok
}

// IsQualifiedPsd2Cert is the stricter reading of ETSI TS 119 495: the
// certificate must be EU qualified and carry a PSD2 statement.
func (p *Psd2CertInfo) IsQualifiedPsd2Cert() bool {
	return p.statements != nil && p.statements.IsEUQualifiedCert() && p.psd2Statement != nil
}

func (p *Psd2CertInfo) IsEUQualifiedCert() bool {
	return p.statements != nil && p.statements.IsEUQualifiedCert()
}

func (p *Psd2CertInfo) OrganizationID() (string, bool) {
	return p.organizationID, p.organizationID != ""
}

// ParsedOrganizationID splits the organization identifier into scheme,
// country, NCA and national reference.
func (p *Psd2CertInfo) ParsedOrganizationID() (OrganizationID, error) {
	if p.organizationID == "" {
		return OrganizationID{}, certerr.ErrNoOrganizationIdentifier
	}
	return ParseOrganizationID(p.organizationID)
}

// ApplicationID is the subject common name.
func (p *Psd2CertInfo) ApplicationID() (string, error) {
	return GetRdnAsString(p.chain[0], Subject, OIDCommonName)
}

func (p *Psd2CertInfo) EidasCertType() (eidas.CertType, bool, error) {
	if p.statements == nil {
		return 0, false, nil
	}
	return p.statements.EidasCertificateType()
}

func (p *Psd2CertInfo) Psd2Statement() (*psd2.QcStatement, bool) {
	return p.psd2Statement, p.psd2Statement != nil
}

func (p *Psd2CertInfo) QCStatements() (*eidas.QCStatements, bool) {
	return p.statements, p.statements != nil
}

func (p *Psd2CertInfo) QCStatement(oid asn1.ObjectIdentifier) (eidas.Statement, bool) {
	if p.statements == nil {
		return eidas.Statement{}, false
	}
	return p.statements.Statement(oid)
}

func (p *Psd2CertInfo) AuthorityAccessInfo() (*eidas.AuthorityInformationAccess, bool) {
	return p.aia, p.aia != nil
}

func (p *Psd2CertInfo) CAIssuerURL() (string, bool) {
	if p.aia == nil {
		return "", false
	}
	return p.aia.CAIssuerURL()
}

func (p *Psd2CertInfo) Certificates() []*x509.Certificate {
	return slices.Clone(p.chain)
}

func (p *Psd2CertInfo) SubjectHash() (string, bool) {
	return SubjectHash(p.chain)
}

// Roles returns the PSD2 roles, nil when there is no PSD2 statement.
func (p *Psd2CertInfo) Roles() []psd2.Role {
	if p.psd2Statement == nil {
		return nil
	}
	return p.psd2Statement.Roles().Roles()
}

func (p *Psd2CertInfo) Scopes() []models.Scope {
	roles := p.Roles()
	if roles == nil {
		return nil
	}
	scopes := make([]models.Scope, 0, len(roles))
	for _, role := range roles {
		scopes = append(scopes, role.Scope())
	}
	return scopes
}

// Usage derives the certificate usage from the eIDAS type, or from the key
// usage when no type is asserted.
func (p *Psd2CertInfo) Usage() models.CertUsage {
	if t, ok, err := p.EidasCertType(); err == nil && ok {
		return t.Usage()
	}
	c := p.chain[0]
	switch {
	case c.KeyUsage&x509.KeyUsageContentCommitment != 0:
		return models.QSEAL
	case c.KeyUsage&x509.KeyUsageKeyEncipherment != 0:
		return models.QWAC
	default:
		return models.UNKNOWN
	}
}

func (p *Psd2CertInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Psd2CertInfo{subject=%q, psd2=%t", p.chain[0].Subject.String(), p.IsPsd2Cert())
	if id, ok := p.OrganizationID(); ok {
		fmt.Fprintf(&sb, ", organizationId=%q", id)
	}
	if p.psd2Statement != nil {
		fmt.Fprintf(&sb, ", statement=%s", p.psd2Statement)
	}
	sb.WriteString("}")
	return sb.String()
}

// Summary is a JSON friendly snapshot of a Psd2CertInfo.
type Summary struct {
	Subject             string              `json:"subject"`
	Issuer              string              `json:"issuer"`
	Serial              string              `json:"serial"`
	Sha256              string              `json:"sha256"`
	Sha1                string              `json:"sha1"`
	SubjectHash         string              `json:"subjectHash"`
	NotBefore           time.Time           `json:"notBefore"`
	NotAfter            time.Time           `json:"notAfter"`
	IsPsd2              bool                `json:"isPsd2"`
	EUQualified         bool                `json:"euQualified"`
	SSCD                bool                `json:"sscd,omitempty"`
	CertType            string              `json:"certType,omitempty"`
	Usage               models.CertUsage    `json:"usage"`
	OrganizationID      string              `json:"organizationId,omitempty"`
	OrganizationIDParts *OrganizationID     `json:"organizationIdParts,omitempty"`
	ApplicationID       string              `json:"applicationId,omitempty"`
	Roles               []psd2.Role         `json:"roles,omitempty"`
	Scopes              []models.Scope      `json:"scopes,omitempty"`
	NCA                 *psd2.NCA           `json:"nca,omitempty"`
	CAIssuers           []string            `json:"caIssuers,omitempty"`
	OCSP                []string            `json:"ocsp,omitempty"`
	CRLs                []string            `json:"crls,omitempty"`
	QCStatements        []string            `json:"qcStatements,omitempty"`
	RetentionPeriod     *int                `json:"retentionPeriod,omitempty"`
	PDSLocations        []eidas.PDSLocation `json:"pdsLocations,omitempty"`
	Errors              []string            `json:"errors,omitempty"`
}

func (p *Psd2CertInfo) Summary() Summary {
	c := p.chain[0]
	s := Summary{
		Subject:     c.Subject.String(),
		Issuer:      c.Issuer.String(),
		Serial:      c.SerialNumber.String(),
		Sha256:      GetSha256(c),
		Sha1:        GetSha1(c),
		NotBefore:   c.NotBefore,
		NotAfter:    c.NotAfter,
		IsPsd2:      p.IsPsd2Cert(),
		EUQualified: p.IsEUQualifiedCert(),
		Usage:       p.Usage(),
		Roles:       p.Roles(),
		Scopes:      p.Scopes(),
		CRLs:        c.CRLDistributionPoints,
	}
	s.SubjectHash, _ = p.SubjectHash()
	s.OrganizationID, _ = p.OrganizationID()
	if parts, err := p.ParsedOrganizationID(); err == nil {
		s.OrganizationIDParts = &parts
	}
	if appID, err := p.ApplicationID(); err == nil {
		s.ApplicationID = appID
	}
	if t, ok, err := p.EidasCertType(); err != nil {
		s.Errors = append(s.Errors, err.Error())
	} else if ok {
		s.CertType = t.String()
	}
	if p.psd2Statement != nil {
		nca := p.psd2Statement.NCA()
		s.NCA = &nca
	}
	if p.aia != nil {
		s.CAIssuers = p.aia.CAIssuers()
		s.OCSP = p.aia.OCSP()
	}
	if p.statements != nil {
		s.QCStatements = p.statements.OIDs()
		s.SSCD = p.statements.HasSSCD()
		if years, ok, err := p.statements.RetentionPeriod(); err != nil {
			s.Errors = append(s.Errors, err.Error())
		} else if ok {
			s.RetentionPeriod = &years
		}
		if locs, err := p.statements.PDSLocations(); err != nil {
			s.Errors = append(s.Errors, err.Error())
		} else {
			s.PDSLocations = locs
		}
	}
	return s
}
