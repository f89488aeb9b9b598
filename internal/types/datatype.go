package types

import "fmt"

// ProgramOffset is a byte/word offset into the emitted program; -1
// means "not yet assigned".
type ProgramOffset int

// NoOffset is the sentinel for an unassigned ProgramOffset.
const NoOffset ProgramOffset = -1

// Member is one ordered entry of a composite DataType's member list.
type Member struct {
	Name       string
	Type       *QDataType
	ByteOffset int
	// BitfieldSize/BitfieldShift are non-zero only when Type.Quals has
	// qual.BitField set; CodeGen packs them into a load's immediate as
	// low 16 bits = size, next 16 = shift when reading a bit-field member.
	// It emits no masked bit-field store (BFSTORE).
	BitfieldSize  int
	BitfieldShift int
	// ASTNode is an opaque back-pointer to the declaring AST node, kept as
	// an interface{} here so this package has no dependency on internal/ast.
	ASTNode interface{}
}

// FuncRef describes a function-valued DataType (FuncPtr/Delegate): its
// parameter and return types, independent of any particular declaration.
type FuncRef struct {
	Params   []*QDataType
	Return   *QDataType
	Variadic bool
}

// Complementary indexes the dynamic<->ref and strong<->weak<->raw pairings
// the runtime calls complementary_type/complementary_type2.
type Complementary struct {
	Primary   *DataType // e.g. the dynamic-array or strong-ptr type
	Secondary *DataType // e.g. the array-ref or weak-ptr type
	Tertiary  *DataType // raw-ptr, only meaningful for class pointer families
}

// DataType is the canonical, shared, immutable-after-finalization type
// description. Instances are owned and deduplicated by
// Table; nothing outside this package should construct one directly once a
// Table exists, except Table.intern itself.
type DataType struct {
	Kind Kind
	Size int
	Align int
	Name  string

	BaseType *DataType // inheritance base, struct/class only
	ElemType *DataType // array/pointer element

	ArrayDims []int // static array dimensions, outermost first

	Members []Member

	FuncRef *FuncRef

	Complementary Complementary

	// Program offsets. -1 until TypeGen assigns them.
	FunCtor   ProgramOffset
	FunDtor   ProgramOffset
	FunAssign ProgramOffset
	FunCmp    ProgramOffset
	VtblOffset ProgramOffset
	VtblSize   int
	// VtblNames is slot index -> method name, so a derived class can look
	// up which base slot an override name lands on without re-walking the
	// base's own method declarations.
	VtblNames []string

	// OwnerScope is an opaque back-pointer (interface{} to avoid importing
	// internal/scope, which itself imports internal/ast -> internal/types)
	// to this struct/class's own scope, so ADL can search its member
	// functions (ADL searches
	// the type's own scope). Nil for non-composite kinds.
	OwnerScope interface{}

	// HasDtor is true iff a
	// destructor exists anywhere in the transitive membership or base
	// chain. TypeGen is responsible for the invariant that once this is
	// true, FunDtor >= 0 by the time TypeGen completes.
	HasDtor  bool
	HasCtor  bool
	NoCopy   bool

	// finalized is flipped by Table once layout/vtable synthesis for this
	// type completes; after that point every exported field is read-only
	// by convention (Go can't enforce it, callers must not mutate).
	finalized bool

	// id is this type's canonical interning key within its owning Table.
	id uint64
}

// String renders a human-readable type name for diagnostics.
func (d *DataType) String() string {
	if d == nil {
		return "<nil type>"
	}
	switch d.Kind {
	case StrongPtr:
		return "strong<" + d.ElemType.String() + ">"
	case WeakPtr:
		return "weak<" + d.ElemType.String() + ">"
	case RawPtr:
		return "raw<" + d.ElemType.String() + ">"
	case DynamicArray:
		return "array<" + d.ElemType.String() + ">"
	case ArrayRef:
		return "array_ref<" + d.ElemType.String() + ">"
	case StaticArray:
		s := d.ElemType.String()
		for _, n := range d.ArrayDims {
			s = fmt.Sprintf("%s[%d]", s, n)
		}
		return s
	default:
		if d.Name != "" {
			return d.Name
		}
		return d.Kind.String()
	}
}

// IsFinalized reports whether TypeGen has already computed layout for d.
func (d *DataType) IsFinalized() bool { return d.finalized }

// ID returns d's canonical interning key, stable for the lifetime of the
// owning Table. Used by ConstantPool/CodeGen as a cheap comparison key
// instead of pointer identity when types cross package boundaries in
// debug-info serialization.
func (d *DataType) ID() uint64 { return d.id }
