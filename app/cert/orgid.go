package cert

import (
	"fmt"
	"strings"

	"github.com/botsman/psd2cert/app/certerr"
)

const psdScheme = "PSD"

// OrganizationID is a structured organizationIdentifier (ETSI EN 319 412-1
// 5.1.4): a three letter scheme, a two letter country code and a reference.
// For the PSD scheme the reference is "<NCA>-<authorisation number>".
type OrganizationID struct {
	Scheme     string `json:"scheme"`
	Country    string `json:"country"`
	NCA        string `json:"nca,omitempty"`
	NationalID string `json:"nationalId"`
}

// NewOrganizationID builds the PSD identifier of a register entry. Spaces
// and dashes are dropped from the national reference, so "0111027-9" at
// FI/FINFSA becomes PSDFI-FINFSA-01110279.
func NewOrganizationID(natRef, country, nca string) OrganizationID {
	natRef = strings.NewReplacer(" ", "", "-", "").Replace(natRef)
	return OrganizationID{Scheme: psdScheme, Country: country, NCA: nca, NationalID: natRef}
}

func isUpperAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return s != ""
}

func ParseOrganizationID(s string) (OrganizationID, error) {
	if len(s) < 6 || s[5] != '-' || !isUpperAlpha(s[:3]) || !isUpperAlpha(s[3:5]) {
		return OrganizationID{}, fmt.Errorf("%w: %q", certerr.ErrMalformedOrganizationIdentifier, s)
	}
	id := OrganizationID{Scheme: s[:3], Country: s[3:5]}
	rest := s[6:]
	if id.Scheme != psdScheme {
		id.NationalID = rest
		return id, nil
	}
	nca, ref, ok := strings.Cut(rest, "-")
	if !ok || nca == "" {
		return OrganizationID{}, fmt.Errorf("%w: %q has no NCA part", certerr.ErrMalformedOrganizationIdentifier, s)
	}
	id.NCA = nca
	id.NationalID = ref
	return id, nil
}

func (o OrganizationID) IsPSD() bool {
	return o.Scheme == psdScheme
}

func (o OrganizationID) String() string {
	if o.IsPSD() {
		return o.Scheme + o.Country + "-" + o.NCA + "-" + o.NationalID
	}
	return o.Scheme + o.Country + "-" + o.NationalID
}
