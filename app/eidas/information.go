package eidas

import (
	"crypto/x509/pkix"
	"fmt"

	"github.com/botsman/psd2cert/app/psd2"
)

// Information holds what an issuer needs to produce the eIDAS extensions
// of a PSD2 certificate for a TPP.
type Information struct {
	Roles           []psd2.Role `yaml:"roles" json:"roles"`
	CAIssuerCertURL string      `yaml:"ca_issuer_cert_url" json:"caIssuerCertUrl"`
	OCSPURI         string      `yaml:"ocsp_uri" json:"ocspUri"`
	OrganisationID  string      `yaml:"organisation_id" json:"organisationId"`
	NCAName         string      `yaml:"nca_name" json:"ncaName"`
	NCAId           string      `yaml:"nca_id" json:"ncaId"`
}

func (i *Information) AddRole(role psd2.Role) *Information {
	i.Roles = append(i.Roles, role)
	return i
}

// QCStatements builds the qCStatements asserted for certType: legal person
// semantics, QcCompliance, QcType and the PSD2 statement.
func (i *Information) QCStatements(certType CertType) (*QCStatements, error) {
	q := NewQCStatements()
	if err := q.AddStatement(OIDSemanticsIdLegal); err != nil {
		return nil, err
	}
	if err := q.AddStatement(OIDQcCompliance); err != nil {
		return nil, err
	}
	if err := q.SetEidasCertificateType(certType); err != nil {
		return nil, err
	}
	stmt := psd2.NewQcStatement(psd2.NewRolesOfPsp(i.Roles...), i.NCAName, i.NCAId)
	if err := q.SetPsd2Statement(stmt); err != nil {
		return nil, err
	}
	return q.Freeze(), nil
}

// Extensions returns the non-critical authorityInfoAccess and qCStatements
// extensions.
func (i *Information) Extensions(certType CertType) ([]pkix.Extension, error) {
	if i.CAIssuerCertURL == "" || i.OCSPURI == "" {
		return nil, fmt.Errorf("CA issuer URL and OCSP URI are required")
	}
	aia := &AuthorityInformationAccess{}
	aia.AddURI(OIDAccessCAIssuers, i.CAIssuerCertURL).AddURI(OIDAccessOCSP, i.OCSPURI)
	aiaExt, err := aia.Extension()
	if err != nil {
		return nil, err
	}

	q, err := i.QCStatements(certType)
	if err != nil {
		return nil, err
	}
	qcExt, err := q.Extension()
	if err != nil {
		return nil, err
	}
	return []pkix.Extension{aiaExt, qcExt}, nil
}
