package eidas

import (
	"bytes"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/botsman/psd2cert/app/certerr"
	"github.com/botsman/psd2cert/app/psd2"
)

var (
	OIDQCStatements       = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 1, 3}
	OIDQcCompliance       = asn1.ObjectIdentifier{0, 4, 0, 1862, 1, 1}
	OIDQcRetentionPeriod  = asn1.ObjectIdentifier{0, 4, 0, 1862, 1, 3}
	OIDQcSSCD             = asn1.ObjectIdentifier{0, 4, 0, 1862, 1, 4}
	OIDQcPDS              = asn1.ObjectIdentifier{0, 4, 0, 1862, 1, 5}
	OIDQcType             = asn1.ObjectIdentifier{0, 4, 0, 1862, 1, 6}
	OIDSemanticsIdNatural = asn1.ObjectIdentifier{0, 4, 0, 194121, 1, 1}
	OIDSemanticsIdLegal   = asn1.ObjectIdentifier{0, 4, 0, 194121, 1, 2}
)

// Statement is a single QC statement:
//
//	QCStatement ::= SEQUENCE {
//	    statementId   OBJECT IDENTIFIER,
//	    statementInfo ANY DEFINED BY statementId OPTIONAL }
//
// Value holds the DER of statementInfo and is nil when it is absent.
type Statement struct {
	ID    asn1.ObjectIdentifier
	Value []byte
}

func (s Statement) HasValue() bool {
	return s.Value != nil
}

// TypedStatement is a statement that knows its own identifier and encoding,
// such as *psd2.QcStatement.
type TypedStatement interface {
	StatementID() asn1.ObjectIdentifier
	MarshalASN1() ([]byte, error)
}

// QCStatements is the content of the qCStatements extension, keyed by
// statement OID. It is built with the Add/Set methods and becomes read-only
// after Freeze. Sets returned by ParseQCStatements are already frozen. The
// zero value is an empty set ready to use.
type QCStatements struct {
	statements map[string]Statement
	frozen     bool
}

func NewQCStatements() *QCStatements {
	return &QCStatements{statements: make(map[string]Statement)}
}

// Freeze makes the set read-only. Later mutations fail with certerr.ErrFrozen.
func (q *QCStatements) Freeze() *QCStatements {
	q.frozen = true
	return q
}

func (q *QCStatements) Frozen() bool {
	return q.frozen
}

func (q *QCStatements) put(id asn1.ObjectIdentifier, value []byte) error {
	if q.frozen {
		return certerr.ErrFrozen
	}
	if len(id) == 0 {
		return certerr.Malformed("statement without identifier")
	}
	if q.statements == nil {
		q.statements = make(map[string]Statement)
	}
	q.statements[id.String()] = Statement{ID: slices.Clone(id), Value: value}
	return nil
}

// AddStatement inserts a statement without statement info, such as
// QcCompliance.
func (q *QCStatements) AddStatement(id asn1.ObjectIdentifier) error {
	return q.put(id, nil)
}

// AddStatementValue inserts or replaces a statement. value must be exactly
// one DER element.
func (q *QCStatements) AddStatementValue(id asn1.ObjectIdentifier, value []byte) error {
	input := cryptobyte.String(value)
	var element cryptobyte.String
	var tag cbasn1.Tag
	if !input.ReadAnyASN1Element(&element, &tag) || !input.Empty() {
		return certerr.Malformed("statement info of %s is not a single DER element", id)
	}
	return q.put(id, bytes.Clone(value))
}

// AddTypedStatement inserts or replaces the statement under its own OID.
func (q *QCStatements) AddTypedStatement(s TypedStatement) error {
	value, err := s.MarshalASN1()
	if err != nil {
		return err
	}
	return q.AddStatementValue(s.StatementID(), value)
}

func (q *QCStatements) SetPsd2Statement(stmt *psd2.QcStatement) error {
	return q.AddTypedStatement(stmt)
}

// SetEidasCertificateType writes the QcType statement:
//
//	QcType ::= SEQUENCE OF OBJECT IDENTIFIER
func (q *QCStatements) SetEidasCertificateType(t CertType) error {
	if !t.Valid() {
		return fmt.Errorf("invalid eIDAS certificate type %d", int(t))
	}
	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(t.ObjectIdentifier())
	})
	value, err := b.Bytes()
	if err != nil {
		return err
	}
	return q.put(OIDQcType, value)
}

// AddRetentionPeriod writes QcRetentionPeriod, the number of years
// registration data is kept after the certificate expires.
func (q *QCStatements) AddRetentionPeriod(years int) error {
	if years < 0 {
		return fmt.Errorf("retention period must be non-negative, got %d", years)
	}
	b := cryptobyte.NewBuilder(nil)
	b.AddASN1Int64(int64(years))
	value, err := b.Bytes()
	if err != nil {
		return err
	}
	return q.put(OIDQcRetentionPeriod, value)
}

// PDSLocation is a PKI disclosure statement location:
//
//	PdsLocation ::= SEQUENCE {
//	    url      IA5String,
//	    language PrintableString (SIZE(2)) }
type PDSLocation struct {
	URL      string `json:"url" yaml:"url"`
	Language string `json:"language" yaml:"language"`
}

func (q *QCStatements) AddPDSLocations(locations []PDSLocation) error {
	if len(locations) == 0 {
		return fmt.Errorf("QcPDS requires at least one location")
	}
	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for i, loc := range locations {
			if loc.URL == "" || len(loc.Language) != 2 {
				b.SetError(fmt.Errorf("QcPDS location %d: need a URL and a two letter language, got %q/%q", i, loc.URL, loc.Language))
				return
			}
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1(cbasn1.IA5String, func(b *cryptobyte.Builder) { b.AddBytes([]byte(loc.URL)) })
				b.AddASN1(cbasn1.PrintableString, func(b *cryptobyte.Builder) { b.AddBytes([]byte(loc.Language)) })
			})
		}
	})
	value, err := b.Bytes()
	if err != nil {
		return err
	}
	return q.put(OIDQcPDS, value)
}

// Statement returns the statement stored under id.
func (q *QCStatements) Statement(id asn1.ObjectIdentifier) (Statement, bool) {
	s, ok := q.statements[id.String()]
	if !ok {
		return Statement{}, false
	}
	return Statement{ID: slices.Clone(s.ID), Value: bytes.Clone(s.Value)}, true
}

func (q *QCStatements) Has(id asn1.ObjectIdentifier) bool {
	_, ok := q.statements[id.String()]
	return ok
}

// OIDs returns the statement identifiers in encoding order.
func (q *QCStatements) OIDs() []string {
	return slices.Sorted(maps.Keys(q.statements))
}

func (q *QCStatements) Len() int {
	return len(q.statements)
}

func (q *QCStatements) Equal(other *QCStatements) bool {
	if q == nil || other == nil {
		return q == other
	}
	return maps.EqualFunc(q.statements, other.statements, func(a, b Statement) bool {
		return a.ID.Equal(b.ID) && bytes.Equal(a.Value, b.Value)
	})
}

func (q *QCStatements) String() string {
	parts := make([]string, 0, len(q.statements))
	for _, key := range q.OIDs() {
		s := q.statements[key]
		if s.HasValue() {
			parts = append(parts, key+"="+hex.EncodeToString(s.Value))
		} else {
			parts = append(parts, key)
		}
	}
	return "QCStatements{" + strings.Join(parts, ", ") + "}"
}

// IsEUQualifiedCert reports whether the QcCompliance statement is present.
func (q *QCStatements) IsEUQualifiedCert() bool {
	return q.Has(OIDQcCompliance)
}

func (q *QCStatements) HasSSCD() bool {
	return q.Has(OIDQcSSCD)
}

func (q *QCStatements) IsLegalPersonSemantics() bool {
	return q.Has(OIDSemanticsIdLegal)
}

// EidasCertificateType returns the type named by the QcType statement. A
// QcType statement naming an unknown type is an error wrapping
// certerr.ErrUnrecognizedOid, distinct from the statement being absent.
func (q *QCStatements) EidasCertificateType() (CertType, bool, error) {
	s, ok := q.statements[OIDQcType.String()]
	if !ok {
		return 0, false, nil
	}
	input := cryptobyte.String(s.Value)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) {
		return 0, false, certerr.Malformed("QcType is not a SEQUENCE")
	}
	var oid asn1.ObjectIdentifier
	if !seq.ReadASN1ObjectIdentifier(&oid) {
		return 0, false, certerr.Malformed("QcType does not start with an OBJECT IDENTIFIER")
	}
	t, err := LookupCertType(oid.String())
	if err != nil {
		return 0, false, err
	}
	return t, true, nil
}

// Psd2Statement decodes the PSD2 statement if present.
func (q *QCStatements) Psd2Statement() (*psd2.QcStatement, bool, error) {
	s, ok := q.statements[psd2.OID.String()]
	if !ok {
		return nil, false, nil
	}
	if !s.HasValue() {
		return nil, false, certerr.Malformed("PSD2 statement has no statement info")
	}
	stmt, err := psd2.ParseQcStatement(s.Value)
	if err != nil {
		return nil, false, err
	}
	return stmt, true, nil
}

// RetentionPeriod returns the QcRetentionPeriod in years if present.
func (q *QCStatements) RetentionPeriod() (int, bool, error) {
	s, ok := q.statements[OIDQcRetentionPeriod.String()]
	if !ok {
		return 0, false, nil
	}
	input := cryptobyte.String(s.Value)
	var years int
	if !input.ReadASN1Integer(&years) || !input.Empty() {
		return 0, false, certerr.Malformed("QcRetentionPeriod is not an INTEGER")
	}
	return years, true, nil
}

// PDSLocations returns the QcPDS locations, or nil if the statement is absent.
func (q *QCStatements) PDSLocations() ([]PDSLocation, error) {
	s, ok := q.statements[OIDQcPDS.String()]
	if !ok {
		return nil, nil
	}
	input := cryptobyte.String(s.Value)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) {
		return nil, certerr.Malformed("QcPDS is not a SEQUENCE")
	}
	var res []PDSLocation
	for !seq.Empty() {
		var loc, url, lang cryptobyte.String
		if !seq.ReadASN1(&loc, cbasn1.SEQUENCE) {
			return nil, certerr.Malformed("invalid QcPDS location")
		}
		var tag cbasn1.Tag
		if !loc.ReadAnyASN1(&url, &tag) {
			return nil, certerr.Malformed("invalid QcPDS location URL")
		}
		// some issuers encode the URL as a UTF8String
		switch tag {
		case cbasn1.IA5String, cbasn1.UTF8String:
		default:
			return nil, certerr.Malformed("QcPDS location URL has tag %d", int(tag))
		}
		if !loc.ReadASN1(&lang, cbasn1.PrintableString) || !loc.Empty() {
			return nil, certerr.Malformed("invalid QcPDS location language")
		}
		res = append(res, PDSLocation{URL: string(url), Language: string(lang)})
	}
	return res, nil
}

// Marshal writes QCStatements ::= SEQUENCE OF QCStatement, ordered by the
// dotted OID string so that equal sets encode to equal bytes.
func (q *QCStatements) Marshal(b *cryptobyte.Builder) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, key := range q.OIDs() {
			s := q.statements[key]
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(s.ID)
				if s.HasValue() {
					b.AddBytes(s.Value)
				}
			})
		}
	})
}

func (q *QCStatements) MarshalASN1() ([]byte, error) {
	b := cryptobyte.NewBuilder(nil)
	q.Marshal(b)
	return b.Bytes()
}

// Extension returns the set as a non-critical qCStatements extension.
func (q *QCStatements) Extension() (pkix.Extension, error) {
	if q.Len() == 0 {
		return pkix.Extension{}, certerr.ErrEmptyStatementList
	}
	value, err := q.MarshalASN1()
	if err != nil {
		return pkix.Extension{}, err
	}
	return pkix.Extension{Id: OIDQCStatements, Value: value}, nil
}

// ParseQCStatements decodes the value of a qCStatements extension. When an
// OID occurs more than once the last statement wins.
func ParseQCStatements(der []byte) (*QCStatements, error) {
	input := cryptobyte.String(der)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) {
		return nil, certerr.Malformed("QC statements are not a SEQUENCE")
	}
	if !input.Empty() {
		return nil, certerr.Malformed("trailing data after QC statements")
	}
	if seq.Empty() {
		return nil, certerr.ErrEmptyStatementList
	}
	q := NewQCStatements()
	for !seq.Empty() {
		var item cryptobyte.String
		if !seq.ReadASN1(&item, cbasn1.SEQUENCE) {
			return nil, certerr.Malformed("QC statement is not a SEQUENCE")
		}
		var id asn1.ObjectIdentifier
		if !item.ReadASN1ObjectIdentifier(&id) {
			return nil, certerr.Malformed("missing identifier")
		}
		var value []byte
		if !item.Empty() {
			var element cryptobyte.String
			var tag cbasn1.Tag
			if !item.ReadAnyASN1Element(&element, &tag) {
				return nil, certerr.Malformed("invalid statement info for %s", id)
			}
			if !item.Empty() {
				return nil, certerr.Malformed("QC statement %s has more than two elements", id)
			}
			value = bytes.Clone(element)
		}
		if err := q.put(id, value); err != nil {
			return nil, err
		}
	}
	return q.Freeze(), nil
}

// ParseQCStatementsExtension finds and decodes the qCStatements extension.
// It reports false if the extension is absent.
func ParseQCStatementsExtension(exts []pkix.Extension) (*QCStatements, bool, error) {
	for _, ext := range exts {
		if !ext.Id.Equal(OIDQCStatements) {
			continue
		}
		q, err := ParseQCStatements(ext.Value)
		if err != nil {
			return nil, false, fmt.Errorf("qCStatements extension: %w", err)
		}
		return q, true, nil
	}
	return nil, false, nil
}
