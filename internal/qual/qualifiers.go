// Package qual defines the qualifier bitset shared by QDataType and AST
// nodes: modifiers the source language attaches to declarations (const,
// virtual, state, ...) plus transient hints the code generator sets and
// clears on itself during a single compilation (skip_dtor, ref_aliased, ...).
package qual

// Qualifier is a single bit in a Set. Values are declared in groups:
// declaration modifiers first, then code-gen hints.
type Qualifier uint64

const (
	Const Qualifier = 1 << iota
	Reference
	Static
	Method
	Ctor
	Dtor
	Native
	Inline
	Virtual
	Override
	Final
	Private
	Protected
	Format
	NoDiscard
	NoCopy
	NoInit
	NoTemp
	State
	Latent
	StateBreak
	ThreadUnsafe
	ThreadCall
	Property
	BitField
	Editable
	Deprecated

	// Transient code-gen hints. Never set by the resolver/parser boundary;
	// only CodeGen reads and writes these on a QDataType it owns.
	SkipDtor
	RefAliased
	RebuildMemberTypes
	CanModifyConstant
	NonVirt
)

// Set is a bitset of Qualifier values.
type Set uint64

// Has reports whether every bit in q is set.
func (s Set) Has(q Qualifier) bool { return Set(q)&s == Set(q) }

// With returns s with q set.
func (s Set) With(q Qualifier) Set { return s | Set(q) }

// Without returns s with q cleared.
func (s Set) Without(q Qualifier) Set { return s &^ Set(q) }

// HasAny reports whether any bit among qs is set.
func (s Set) HasAny(qs ...Qualifier) bool {
	for _, q := range qs {
		if s.Has(q) {
			return true
		}
	}
	return false
}

// IsConstRef reports whether reference+const together mean a
// borrow of a read-only location.
func (s Set) IsConstRef() bool { return s.Has(Const) && s.Has(Reference) }
