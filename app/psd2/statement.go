package psd2

import (
	"encoding/asn1"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/botsman/psd2cert/app/certerr"
)

// OID identifies the PSD2 QC statement (id-etsi-psd2-qcStatement).
var OID = asn1.ObjectIdentifier{0, 4, 0, 19495, 2}

// QcStatement is the statement info of the PSD2 QC statement:
//
//	PSD2QcType ::= SEQUENCE {
//	    rolesOfPSP RolesOfPSP,
//	    nCAName    NCAName,
//	    nCAId      NCAId }
//
// A QcStatement is immutable once constructed.
type QcStatement struct {
	roles   *RolesOfPsp
	ncaName string
	ncaId   string
}

type NCA struct {
	Country string `json:"country"`
	Name    string `json:"name"`
	Id      string `json:"id"`
}

func NewQcStatement(roles *RolesOfPsp, ncaName, ncaId string) *QcStatement {
	if roles == nil {
		roles = &RolesOfPsp{}
	}
	return &QcStatement{roles: roles.Clone(), ncaName: ncaName, ncaId: ncaId}
}

// StatementID is the key the statement is stored under in the QC statements.
func (q *QcStatement) StatementID() asn1.ObjectIdentifier {
	return OID
}

func (q *QcStatement) Roles() *RolesOfPsp {
	return q.roles.Clone()
}

func (q *QcStatement) NCAName() string {
	return q.ncaName
}

func (q *QcStatement) NCAId() string {
	return q.ncaId
}

// NCA returns the competent authority. The NCA id starts with the ISO 3166
// country code of the authority, e.g. "FI-FINFSA".
func (q *QcStatement) NCA() NCA {
	nca := NCA{Name: q.ncaName, Id: q.ncaId}
	if len(q.ncaId) >= 2 {
		nca.Country = q.ncaId[:2]
	}
	return nca
}

func (q *QcStatement) Equal(other *QcStatement) bool {
	if q == nil || other == nil {
		return q == other
	}
	return q.ncaName == other.ncaName && q.ncaId == other.ncaId && q.roles.Equal(other.roles)
}

func (q *QcStatement) String() string {
	return fmt.Sprintf("Psd2QcStatement{ncaName=%q, ncaId=%q, roles=%s}", q.ncaName, q.ncaId, q.roles)
}

func (q *QcStatement) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Roles []Role `json:"roles"`
		NCA   NCA    `json:"nca"`
	}{
		Roles: q.roles.Roles(),
		NCA:   q.NCA(),
	})
}

// Marshal writes the statement. Element order is fixed by the schema.
func (q *QcStatement) Marshal(b *cryptobyte.Builder) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		q.roles.Marshal(b)
		addUTF8String(b, q.ncaName)
		addUTF8String(b, q.ncaId)
	})
}

func (q *QcStatement) MarshalASN1() ([]byte, error) {
	b := cryptobyte.NewBuilder(nil)
	q.Marshal(b)
	return b.Bytes()
}

// ParseQcStatement decodes the DER statement info of a PSD2 QC statement.
func ParseQcStatement(der []byte) (*QcStatement, error) {
	input := cryptobyte.String(der)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) {
		return nil, certerr.Malformed("PSD2 statement is not a SEQUENCE")
	}
	if !input.Empty() {
		return nil, certerr.Malformed("trailing data after PSD2 statement")
	}
	if !seq.PeekASN1Tag(cbasn1.SEQUENCE) {
		return nil, certerr.Malformed("PSD2 statement does not start with roles of PSP")
	}
	roles, err := parseRolesOfPsp(&seq)
	if err != nil {
		return nil, err
	}
	ncaName, err := readDirectoryString(&seq)
	if err != nil {
		return nil, fmt.Errorf("NCA name: %w", err)
	}
	ncaId, err := readDirectoryString(&seq)
	if err != nil {
		return nil, fmt.Errorf("NCA id: %w", err)
	}
	if !seq.Empty() {
		return nil, certerr.Malformed("PSD2 statement has more than three elements")
	}
	return &QcStatement{roles: roles, ncaName: ncaName, ncaId: ncaId}, nil
}
