package psd2

import (
	"encoding/json"
	"testing"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/botsman/psd2cert/app/certerr"
)

func TestQcStatementRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		roles   []Role
		ncaName string
		ncaId   string
	}{
		{"single role", []Role{PSP_AI}, "Avalon Certification Authority Ltd", "AV-11111"},
		{"all roles", Roles(), "Finnish Financial Supervisory Authority", "FI-FINFSA"},
		{"no roles", nil, "Financial Conduct Authority", "GB-FCA"},
		{"non ascii", []Role{PSP_PI}, "Bundesanstalt für Finanzdienstleistungsaufsicht", "DE-BAFIN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := NewQcStatement(NewRolesOfPsp(tt.roles...), tt.ncaName, tt.ncaId)
			der, err := stmt.MarshalASN1()
			assert.NilError(t, err)

			decoded, err := ParseQcStatement(der)
			assert.NilError(t, err)
			assert.Check(t, decoded.Equal(stmt), "got %s want %s", decoded, stmt)
			assert.Check(t, decoded.Roles().Equal(NewRolesOfPsp(tt.roles...)))
			assert.Check(t, is.Equal(decoded.NCAName(), tt.ncaName))
			assert.Check(t, is.Equal(decoded.NCAId(), tt.ncaId))
		})
	}
}

func TestQcStatementIsImmutable(t *testing.T) {
	roles := NewRolesOfPsp(PSP_AI)
	stmt := NewQcStatement(roles, "name", "id")
	roles.AddRole(PSP_PI)
	stmt.Roles().AddRole(PSP_IC)
	assert.Check(t, is.DeepEqual(stmt.Roles().Roles(), []Role{PSP_AI}))
}

func TestQcStatementNCA(t *testing.T) {
	stmt := NewQcStatement(NewRolesOfPsp(PSP_PI), "Finnish Financial Supervisory Authority", "FI-FINFSA")
	assert.Check(t, is.Equal(stmt.NCA(), NCA{Country: "FI", Name: "Finnish Financial Supervisory Authority", Id: "FI-FINFSA"}))
	assert.Check(t, is.Equal(NewQcStatement(nil, "x", "F").NCA().Country, ""))
}

func TestQcStatementJSON(t *testing.T) {
	stmt := NewQcStatement(NewRolesOfPsp(PSP_AI, PSP_PI), "Finnish Financial Supervisory Authority", "FI-FINFSA")
	data, err := json.Marshal(stmt)
	assert.NilError(t, err)
	assert.Check(t, is.Equal(string(data), `{"roles":["PSP_PI","PSP_AI"],"nca":{"country":"FI","name":"Finnish Financial Supervisory Authority","id":"FI-FINFSA"}}`))
}

// The statement info of testdata/psd2_qseal.pem: NCA name and id are
// PrintableStrings and the role names are the role codes rather than the
// canonical names.
func TestParseQcStatementPrintableStrings(t *testing.T) {
	der := []byte{
		0x30, 0x5c,
		0x30, 0x26,
		0x30, 0x11, 0x06, 0x07, 0x04, 0x00, 0x81, 0x98, 0x27, 0x01, 0x01, 0x0c, 0x06, 'P', 'S', 'P', '_', 'P', 'I',
		0x30, 0x11, 0x06, 0x07, 0x04, 0x00, 0x81, 0x98, 0x27, 0x01, 0x02, 0x0c, 0x06, 'P', 'S', 'P', '_', 'A', 'I',
		0x13, 0x27,
	}
	der = append(der, []byte("Finnish Financial Supervisory Authority")...)
	der = append(der, 0x13, 0x09)
	der = append(der, []byte("FI-FINFSA")...)

	stmt, err := ParseQcStatement(der)
	assert.NilError(t, err)
	assert.Check(t, is.DeepEqual(stmt.Roles().Roles(), []Role{PSP_AS, PSP_PI}))
	assert.Check(t, is.Equal(stmt.NCA().Country, "FI"))
}

func TestParseQcStatementErrors(t *testing.T) {
	rolesDER, err := NewRolesOfPsp(PSP_AI).MarshalASN1()
	assert.NilError(t, err)

	build := func(f func(b *cryptobyte.Builder)) []byte {
		b := cryptobyte.NewBuilder(nil)
		b.AddASN1(cbasn1.SEQUENCE, f)
		return b.BytesOrPanic()
	}
	utf8 := func(b *cryptobyte.Builder, s string) {
		b.AddASN1(cbasn1.UTF8String, func(b *cryptobyte.Builder) { b.AddBytes([]byte(s)) })
	}

	tests := []struct {
		name string
		der  []byte
	}{
		{"empty input", nil},
		{"not a sequence", []byte{0x0c, 0x01, 'x'}},
		{"empty sequence", []byte{0x30, 0x00}},
		{"roles only", build(func(b *cryptobyte.Builder) { b.AddBytes(rolesDER) })},
		{"missing nca id", build(func(b *cryptobyte.Builder) {
			b.AddBytes(rolesDER)
			utf8(b, "name")
		})},
		{"roles not a sequence", build(func(b *cryptobyte.Builder) {
			utf8(b, "roles")
			utf8(b, "name")
			utf8(b, "id")
		})},
		{"nca id is an integer", build(func(b *cryptobyte.Builder) {
			b.AddBytes(rolesDER)
			utf8(b, "name")
			b.AddASN1Int64(42)
		})},
		{"extra element", build(func(b *cryptobyte.Builder) {
			b.AddBytes(rolesDER)
			utf8(b, "name")
			utf8(b, "id")
			utf8(b, "extra")
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQcStatement(tt.der)
			assert.Check(t, is.ErrorIs(err, certerr.ErrMalformedStatement))
		})
	}
}
