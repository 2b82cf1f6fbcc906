// Package certerr holds the error kinds shared by the QC statement codecs
// and the certificate extraction helpers.
package certerr

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyStatementList              = errors.New("empty QC statement list")
	ErrMalformedStatement              = errors.New("malformed QC statement")
	ErrUnrecognizedOid                 = errors.New("unrecognized object identifier")
	ErrNoOrganizationIdentifier        = errors.New("no organization identifier in certificate")
	ErrMalformedOrganizationIdentifier = errors.New("malformed organization identifier")
	ErrNoSuchRdn                       = errors.New("no such RDN in certificate field")
	ErrEmptyChain                      = errors.New("certificate chain is empty")
	ErrFrozen                          = errors.New("QC statements are read-only")
)

// OIDError reports an object identifier that is not part of a fixed vocabulary.
type OIDError struct {
	Vocabulary string
	OID        string
}

func (e *OIDError) Error() string {
	return fmt.Sprintf("%s: %s %q", ErrUnrecognizedOid, e.Vocabulary, e.OID)
}

func (e *OIDError) Unwrap() error {
	return ErrUnrecognizedOid
}

func Unrecognized(vocabulary, oid string) error {
	return &OIDError{Vocabulary: vocabulary, OID: oid}
}

// Malformed wraps ErrMalformedStatement with a description of what was expected.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedStatement, fmt.Sprintf(format, args...))
}
