package types

import "github.com/lethe-lang/lethe/internal/qual"

// QDataType is a reference to a canonical DataType plus the qualifier bits
// that apply to this particular use of it. Two QDataTypes with
// the same Type and Quals are value-equal regardless of where they appear.
type QDataType struct {
	Type  *DataType
	Quals qual.Set
}

// Q constructs a QDataType. The zero value of qual.Set means "no
// qualifiers", matching an unqualified use of Type.
func Q(t *DataType, q qual.Set) QDataType { return QDataType{Type: t, Quals: q} }

// IsConstRef reports whether q is a borrow of a read-only
// location (const + reference together).
func (q QDataType) IsConstRef() bool { return q.Quals.IsConstRef() }

// WordSize rounds q's underlying size up to the VM's word size, the
// unit a call's return-value slot count is computed in (reference
// returns always occupy exactly one word).
func (q QDataType) WordSize(wordBytes int) int {
	if q.Quals.Has(qual.Reference) {
		return 1
	}
	if q.Type == nil || q.Type.Size == 0 {
		return 0
	}
	words := q.Type.Size / wordBytes
	if q.Type.Size%wordBytes != 0 {
		words++
	}
	return words
}

// Equal compares two QDataTypes by canonical type identity and qualifier
// bits, ignoring transient code-gen hint bits (SkipDtor, RefAliased, ...)
// which are not part of a type's identity.
func (q QDataType) Equal(other QDataType) bool {
	const hintMask = qual.SkipDtor | qual.RefAliased | qual.RebuildMemberTypes |
		qual.CanModifyConstant | qual.NonVirt
	return q.Type == other.Type &&
		(q.Quals&^qual.Set(hintMask)) == (other.Quals&^qual.Set(hintMask))
}

// String renders q for diagnostics, e.g. "const ref vec".
func (q QDataType) String() string {
	prefix := ""
	if q.Quals.Has(qual.Const) {
		prefix += "const "
	}
	if q.Quals.Has(qual.Reference) {
		prefix += "ref "
	}
	return prefix + q.Type.String()
}
