package models

import (
	"time"
)

type CertUsage string

const (
	QWAC    CertUsage = "QWAC"
	QSEAL   CertUsage = "QSEAL"
	QESIGN  CertUsage = "QESIGN"
	UNKNOWN CertUsage = "UNKNOWN"
)

type Service string

const (
	AIS   Service = "AIS"
	PIS   Service = "PIS"
	CBPII Service = "CBPII"
)

type TPP struct {
	NameLatin    string               `bson:"name_latin" json:"name_latin"`
	NameNative   string               `bson:"name_native" json:"name_native"`
	Id           string               `bson:"id" json:"id"`
	OBID         string               `bson:"ob_id" json:"ob_id"`
	Authority    string               `bson:"authority" json:"authority"`
	Country      string               `bson:"country" json:"country"`
	Services     map[string][]Service `bson:"services" json:"services"`
	AuthorizedAt *time.Time           `bson:"authorized_at" json:"authorized_at,omitempty"`
	WithdrawnAt  *time.Time           `bson:"withdrawn_at" json:"withdrawn_at,omitempty"`
	Type         string               `bson:"type" json:"type"`
	CreatedAt    time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at" json:"updated_at"`
	Registry     string               `bson:"registry" json:"registry"`
}

// IsAuthorized reports whether the TPP currently holds an authorisation that
// has not been withdrawn.
func (t *TPP) IsAuthorized(now time.Time) bool {
	if t.AuthorizedAt == nil || t.AuthorizedAt.After(now) {
		return false
	}
	return t.WithdrawnAt == nil || t.WithdrawnAt.After(now)
}

type Scope string

const (
	ScopeAIS     Scope = "AIS"
	ScopePIS     Scope = "PIS"
	ScopeCBPII   Scope = "CBPII"
	ScopeASPSP   Scope = "ASPSP"
	ScopeUnknown Scope = "UNKNOWN"
)

// Service returns the register service a scope is authorised by. ASPSP has
// no register service.
func (s Scope) Service() (Service, bool) {
	switch s {
	case ScopeAIS:
		return AIS, true
	case ScopePIS:
		return PIS, true
	case ScopeCBPII:
		return CBPII, true
	default:
		return "", false
	}
}
