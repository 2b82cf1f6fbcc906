package psd2

import (
	"encoding/asn1"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/botsman/psd2cert/app/certerr"
)

// RoleOfPsp is a single entry of RolesOfPSP:
//
//	RoleOfPSP ::= SEQUENCE {
//	    roleOfPspOid  RoleOfPspOid,
//	    roleOfPspName RoleOfPspName }
//
// Only the OID carries identity; the name is always the canonical name of
// the role.
type RoleOfPsp struct {
	role Role
}

func NewRoleOfPsp(role Role) RoleOfPsp {
	return RoleOfPsp{role: role}
}

func (r RoleOfPsp) Role() Role {
	return r.role
}

func (r RoleOfPsp) Name() string {
	return r.role.Name()
}

func (r RoleOfPsp) Marshal(b *cryptobyte.Builder) {
	if !r.role.Valid() {
		b.SetError(certerr.Malformed("cannot encode invalid role %d", int(r.role)))
		return
	}
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(r.role.ObjectIdentifier())
		addUTF8String(b, r.role.Name())
	})
}

func (r RoleOfPsp) MarshalASN1() ([]byte, error) {
	b := cryptobyte.NewBuilder(nil)
	r.Marshal(b)
	return b.Bytes()
}

// ParseRoleOfPsp decodes a DER encoded RoleOfPSP entry.
func ParseRoleOfPsp(der []byte) (RoleOfPsp, error) {
	input := cryptobyte.String(der)
	r, err := parseRoleOfPsp(&input)
	if err != nil {
		return RoleOfPsp{}, err
	}
	if !input.Empty() {
		return RoleOfPsp{}, certerr.Malformed("trailing data after role entry")
	}
	return r, nil
}

func parseRoleOfPsp(s *cryptobyte.String) (RoleOfPsp, error) {
	var seq cryptobyte.String
	if !s.ReadASN1(&seq, cbasn1.SEQUENCE) {
		return RoleOfPsp{}, certerr.Malformed("role entry is not a SEQUENCE")
	}
	var oid asn1.ObjectIdentifier
	if !seq.ReadASN1ObjectIdentifier(&oid) {
		return RoleOfPsp{}, certerr.Malformed("role entry has no OBJECT IDENTIFIER")
	}
	// The name is read to validate the shape but is not compared with the
	// canonical one: issuers are known to write their own wording.
	if _, err := readDirectoryString(&seq); err != nil {
		return RoleOfPsp{}, err
	}
	if !seq.Empty() {
		return RoleOfPsp{}, certerr.Malformed("role entry has more than two elements")
	}
	role, err := LookupRole(oid.String())
	if err != nil {
		return RoleOfPsp{}, err
	}
	return RoleOfPsp{role: role}, nil
}

// RolesOfPsp is the set of roles asserted in a PSD2 statement. The zero
// value is an empty set ready to use.
type RolesOfPsp struct {
	roles []Role // sorted by OID, unique
}

func NewRolesOfPsp(roles ...Role) *RolesOfPsp {
	r := &RolesOfPsp{}
	for _, role := range roles {
		r.AddRole(role)
	}
	return r
}

// AddRole inserts role into the set. Adding a role twice is a no-op.
func (r *RolesOfPsp) AddRole(role Role) *RolesOfPsp {
	idx, found := slices.BinarySearchFunc(r.roles, role, compareRoles)
	if !found {
		r.roles = slices.Insert(r.roles, idx, role)
	}
	return r
}

func compareRoles(a, b Role) int {
	return strings.Compare(a.OID(), b.OID())
}

func (r *RolesOfPsp) Has(role Role) bool {
	_, found := slices.BinarySearchFunc(r.roles, role, compareRoles)
	return found
}

func (r *RolesOfPsp) Len() int {
	return len(r.roles)
}

// Roles returns the members ordered by OID.
func (r *RolesOfPsp) Roles() []Role {
	return slices.Clone(r.roles)
}

func (r *RolesOfPsp) RolesOfPsp() []RoleOfPsp {
	res := make([]RoleOfPsp, 0, len(r.roles))
	for _, role := range r.roles {
		res = append(res, NewRoleOfPsp(role))
	}
	return res
}

func (r *RolesOfPsp) Equal(other *RolesOfPsp) bool {
	return slices.Equal(r.roles, other.roles)
}

func (r *RolesOfPsp) Clone() *RolesOfPsp {
	return &RolesOfPsp{roles: slices.Clone(r.roles)}
}

func (r *RolesOfPsp) String() string {
	codes := make([]string, 0, len(r.roles))
	for _, role := range r.roles {
		codes = append(codes, role.String())
	}
	return "[" + strings.Join(codes, ", ") + "]"
}

// Marshal writes RolesOfPSP ::= SEQUENCE OF RoleOfPSP, in OID order.
func (r *RolesOfPsp) Marshal(b *cryptobyte.Builder) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, role := range r.roles {
			NewRoleOfPsp(role).Marshal(b)
		}
	})
}

func (r *RolesOfPsp) MarshalASN1() ([]byte, error) {
	b := cryptobyte.NewBuilder(nil)
	r.Marshal(b)
	return b.Bytes()
}

// ParseRolesOfPsp decodes a DER encoded RolesOfPSP sequence. A single bad
// entry fails the whole set. An empty sequence yields an empty set.
func ParseRolesOfPsp(der []byte) (*RolesOfPsp, error) {
	input := cryptobyte.String(der)
	r, err := parseRolesOfPsp(&input)
	if err != nil {
		return nil, err
	}
	if !input.Empty() {
		return nil, certerr.Malformed("trailing data after roles")
	}
	return r, nil
}

func parseRolesOfPsp(s *cryptobyte.String) (*RolesOfPsp, error) {
	var seq cryptobyte.String
	if !s.ReadASN1(&seq, cbasn1.SEQUENCE) {
		return nil, certerr.Malformed("roles of PSP is not a SEQUENCE")
	}
	roles := &RolesOfPsp{}
	for !seq.Empty() {
		if !seq.PeekASN1Tag(cbasn1.SEQUENCE) {
			return nil, certerr.Malformed("unexpected element in roles of PSP")
		}
		role, err := parseRoleOfPsp(&seq)
		if err != nil {
			return nil, err
		}
		roles.AddRole(role.Role())
	}
	return roles, nil
}

func addUTF8String(b *cryptobyte.Builder, s string) {
	if !utf8.ValidString(s) {
		b.SetError(certerr.Malformed("string %q is not valid UTF-8", s))
		return
	}
	b.AddASN1(cbasn1.UTF8String, func(b *cryptobyte.Builder) {
		b.AddBytes([]byte(s))
	})
}

// readDirectoryString reads a UTF8String. PrintableString is tolerated as
// encoding/asn1 emits it for plain ASCII Go strings.
func readDirectoryString(s *cryptobyte.String) (string, error) {
	var tag cbasn1.Tag
	var value cryptobyte.String
	if !s.ReadAnyASN1(&value, &tag) {
		return "", certerr.Malformed("missing string element")
	}
	switch tag {
	case cbasn1.UTF8String, cbasn1.PrintableString:
	default:
		return "", certerr.Malformed("expected UTF8String, got tag %d", int(tag))
	}
	if !utf8.Valid(value) {
		return "", certerr.Malformed("string is not valid UTF-8")
	}
	return string(value), nil
}
