// Package psd2 encodes and decodes the PSD2 QC statement defined in
// ETSI TS 119 495: the roles of the payment service provider and the
// National Competent Authority that authorised it.
package psd2

import (
	"encoding/asn1"
	"fmt"

	"github.com/botsman/psd2cert/app/certerr"
	"github.com/botsman/psd2cert/app/models"
)

// Role is a PSD2 role of a payment service provider.
type Role int

const (
	PSP_AS Role = iota + 1
	PSP_PI
	PSP_AI
	PSP_IC
)

type roleInfo struct {
	role Role
	code string
	oid  asn1.ObjectIdentifier
	name string
}

// id-psd2-role ::= { itu-t(0) identified-organization(4) etsi(0) psd2(19495) id-psd2-role(1) }
var roleTable = []roleInfo{
	{PSP_AS, "PSP_AS", asn1.ObjectIdentifier{0, 4, 0, 19495, 1, 1}, "Account Servicing"},
	{PSP_PI, "PSP_PI", asn1.ObjectIdentifier{0, 4, 0, 19495, 1, 2}, "Payment Initiation"},
	{PSP_AI, "PSP_AI", asn1.ObjectIdentifier{0, 4, 0, 19495, 1, 3}, "Account Information"},
	{PSP_IC, "PSP_IC", asn1.ObjectIdentifier{0, 4, 0, 19495, 1, 4}, "Card Based Payment Instruments"},
}

// Roles returns every known role in OID order.
func Roles() []Role {
	res := make([]Role, 0, len(roleTable))
	for _, r := range roleTable {
		res = append(res, r.role)
	}
	return res
}

func (r Role) info() (roleInfo, bool) {
	for _, i := range roleTable {
		if i.role == r {
			return i, true
		}
	}
	return roleInfo{}, false
}

// OID returns the dotted object identifier of the role.
func (r Role) OID() string {
	i, ok := r.info()
	if !ok {
		return ""
	}
	return i.oid.String()
}

func (r Role) ObjectIdentifier() asn1.ObjectIdentifier {
	i, ok := r.info()
	if !ok {
		return nil
	}
	return i.oid
}

// Name returns the canonical display name written into the role entry.
func (r Role) Name() string {
	i, ok := r.info()
	if !ok {
		return ""
	}
	return i.name
}

func (r Role) String() string {
	i, ok := r.info()
	if !ok {
		return fmt.Sprintf("Role(%d)", int(r))
	}
	return i.code
}

func (r Role) Valid() bool {
	_, ok := r.info()
	return ok
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid PSD2 role %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRoleName(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// Scope maps the role onto the open banking scope it grants.
func (r Role) Scope() models.Scope {
	switch r {
	case PSP_AI:
		return models.ScopeAIS
	case PSP_PI:
		return models.ScopePIS
	case PSP_IC:
		return models.ScopeCBPII
	case PSP_AS:
		return models.ScopeASPSP
	default:
		return models.ScopeUnknown
	}
}

// LookupRole resolves a dotted OID. Comparison is exact.
func LookupRole(oid string) (Role, error) {
	for _, i := range roleTable {
		if i.oid.String() == oid {
			return i.role, nil
		}
	}
	return 0, certerr.Unrecognized("PSD2 role", oid)
}

// ParseRoleName resolves a role code such as "PSP_AI".
func ParseRoleName(code string) (Role, error) {
	for _, i := range roleTable {
		if i.code == code {
			return i.role, nil
		}
	}
	return 0, fmt.Errorf("unknown PSD2 role %q", code)
}
