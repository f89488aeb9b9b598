// Package scope implements the compiler's scope tree:
// a tree of lexical scopes, each owning its children and holding
// non-owning links to its lexical parent and (for struct/class scopes)
// its inheritance base.
package scope

import (
	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/qual"
	"github.com/lethe-lang/lethe/internal/types"
)

// Kind distinguishes what a Scope represents.
type Kind int

const (
	KindNone Kind = iota
	KindGlobal
	KindNamespace
	KindArgs
	KindLocal
	KindLoop
	KindFunction
	KindSwitch
	KindStruct
	KindClass
)

// LocalVar is one function-local variable slot: its frame offset and
// declared type, used by internal/codegen's genScopeDestructors to know what to tear down on
// scope exit.
type LocalVar struct {
	Offset int
	Type   types.QDataType
}

// Scope is one node of the lexical scope tree.
type Scope struct {
	Parent *Scope // lexical enclosing scope, non-owning
	Base   *Scope // struct/class inheritance base, non-owning

	Kind Kind
	Name string
	// NameAlias supports template instantiation scope naming, distinct
	// from Name so diagnostics can show the source-level template name.
	NameAlias string

	// Node is the AST node this scope corresponds to (KFuncDecl,
	// KStructDecl, KClassDecl, KBlock, KNamespaceDecl, KFor/KWhile/KDo,
	// KSwitch, or nil for the global scope).
	Node *ast.Node

	members   map[string]*ast.Node
	operators []*ast.Node
	labels    map[string]*ast.Node

	scopes      []*Scope            // unnamed children, owned
	namedScopes map[string]*Scope // named children (namespaces, types), owned

	// ChkStkIndex is the function scope's check-stack-opcode patch index;
	// -1 means none.
	ChkStkIndex int

	LocalVars []LocalVar

	breakHandles    []int
	continueHandles []int

	deferred    []deferredEntry
	deferredTop int

	VarOfs      int
	VarSize     int
	MaxVarAlign int
	MaxVarSize  int

	// ResultPtr is the AST node producing this scope's NRVO result slot,
	// if any.
	ResultPtr *ast.Node

	// NeedExtraScope flags a function scope in which a var decl follows
	// other statements, for forcing an extra nested block so later gotos
	// can't jump over the initializer. No pass sets it; it stays false.
	NeedExtraScope bool

	CtorDefined bool
}

// New creates a detached Scope of the given kind.
func New(kind Kind) *Scope {
	return &Scope{
		Kind:        kind,
		members:     make(map[string]*ast.Node),
		labels:      make(map[string]*ast.Node),
		namedScopes: make(map[string]*Scope),
		ChkStkIndex: -1,
	}
}

// Add creates child as a new unnamed sub-scope of s and returns it.
func (s *Scope) Add(kind Kind) *Scope {
	child := New(kind)
	child.Parent = s
	s.scopes = append(s.scopes, child)
	return child
}

// AddNamed creates (or, if name already exists, returns) a named
// sub-scope of s — used for namespaces and struct/class scopes, which
// can be reopened/extended across declarations.
func (s *Scope) AddNamed(name string, kind Kind) *Scope {
	if existing, ok := s.namedScopes[name]; ok {
		return existing
	}
	child := New(kind)
	child.Parent = s
	child.Name = name
	s.namedScopes[name] = child
	return child
}

// Declare registers name -> node as a member of s. It returns false if
// name is already declared directly in s (redeclaration is the caller's
// error to report, with the caller's own diagnostic location).
func (s *Scope) Declare(name string, node *ast.Node) bool {
	if _, dup := s.members[name]; dup {
		return false
	}
	s.members[name] = node
	return true
}

// AddOperator registers an overloaded operator function node in s's
// operator list (struct/class scopes only).
func (s *Scope) AddOperator(node *ast.Node) {
	s.operators = append(s.operators, node)
}

// Operators returns s's own operator overload list (no recursion).
func (s *Scope) Operators() []*ast.Node { return s.operators }

// AddLabel registers a goto label in s (recorded at the nearest enclosing
// function scope per FindLabel's "recurse until function scope" rule).
func (s *Scope) AddLabel(name string, node *ast.Node) bool {
	if _, dup := s.labels[name]; dup {
		return false
	}
	s.labels[name] = node
	return true
}

// NamedScopes returns s's named sub-scope map (namespaces, struct/class
// scopes reachable by name for a scope-resolution chain).
func (s *Scope) NamedScopes() map[string]*Scope { return s.namedScopes }

// Members returns s's own member map (no recursion), for callers outside
// this package that need to enumerate rather than look up a single name
// (e.g. the vtable synthesis pass walking a class's own method list).
func (s *Scope) Members() map[string]*ast.Node { return s.members }

// IsLocal reports whether s is a local/args/loop/function/switch scope
// (as opposed to global, namespace, or composite-type scope).
func (s *Scope) IsLocal() bool {
	switch s.Kind {
	case KindArgs, KindLocal, KindLoop, KindFunction, KindSwitch:
		return true
	}
	return false
}

// IsGlobal reports whether s is the top-level global scope.
func (s *Scope) IsGlobal() bool { return s.Kind == KindGlobal }

// IsComposite reports whether s is a struct or class scope.
func (s *Scope) IsComposite() bool { return s.Kind == KindStruct || s.Kind == KindClass }

// IsBaseOf reports whether s is somewhere in other's base chain.
func (s *Scope) IsBaseOf(other *Scope) bool {
	for b := other.Base; b != nil; b = b.Base {
		if b == s {
			return true
		}
	}
	return false
}

// IsParentOf reports whether s is somewhere in other's lexical-parent
// chain.
func (s *Scope) IsParentOf(other *Scope) bool {
	for p := other.Parent; p != nil; p = p.Parent {
		if p == s {
			return true
		}
	}
	return false
}

// SetBase sets s's inheritance base, rejecting a cycle.
func (s *Scope) SetBase(base *Scope) bool {
	if base == nil {
		s.Base = nil
		return true
	}
	for b := base; b != nil; b = b.Base {
		if b == s {
			return false
		}
	}
	s.Base = base
	return true
}

// FindThis walks s's lexical-parent chain and returns the nearest
// struct/class scope enclosing it (the implicit `this` scope), or nil at
// global scope. allowStatic additionally returns a composite scope
// even when the innermost function is declared static; the const-static
// exclusion still applies separately at resolve time.
func (s *Scope) FindThis(allowStatic bool) *Scope {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.IsComposite() {
			return cur
		}
		if cur.Kind == KindFunction && !allowStatic && cur.Node != nil &&
			cur.Node.Quals.Has(qual.Static) {
			return nil
		}
	}
	return nil
}

// FindFunctionScope walks s's lexical-parent chain and returns the
// nearest enclosing function scope, or nil.
func (s *Scope) FindFunctionScope() *Scope {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Kind == KindFunction {
			return cur
		}
	}
	return nil
}

// AllocVar bumps s's local-variable cursor for a value of type t, 1-byte-
// aligning when alignStack is false,
// and returns the newly allocated offset.
func (s *Scope) AllocVar(t types.QDataType, alignStack bool) int {
	align := 1
	if alignStack && t.Type != nil {
		align = t.Type.Align
		if align < 1 {
			align = 1
		}
	}
	if rem := s.VarOfs % align; rem != 0 {
		s.VarOfs += align - rem
	}
	ofs := s.VarOfs
	size := 0
	if t.Type != nil {
		size = t.Type.Size
	}
	s.VarOfs += size
	s.VarSize += size
	if align > s.MaxVarAlign {
		s.MaxVarAlign = align
	}
	if s.VarOfs > s.MaxVarSize {
		s.MaxVarSize = s.VarOfs
	}
	s.LocalVars = append(s.LocalVars, LocalVar{Offset: ofs, Type: t})
	return ofs
}

// HasDestructors reports whether any local var owned directly by s has a
// type with a destructor, per DataType.HasDtor.
func (s *Scope) HasDestructors() bool {
	for _, v := range s.LocalVars {
		if v.Type.Type != nil && v.Type.Type.HasDtor {
			return true
		}
	}
	return false
}

// AddBreakHandle/AddContinueHandle record a forward-jump patch handle
// (an emitter fixup index) for a break/continue inside this scope, to be
// resolved once the enclosing loop/switch knows its exit/continue target.
func (s *Scope) AddBreakHandle(handle int)    { s.breakHandles = append(s.breakHandles, handle) }
func (s *Scope) AddContinueHandle(handle int) { s.continueHandles = append(s.continueHandles, handle) }

// HasBreakHandles reports whether any break has been recorded in s.
func (s *Scope) HasBreakHandles() bool { return len(s.breakHandles) > 0 }

// BreakHandles/ContinueHandles drain and return the recorded patch
// handles, clearing them so a second fixup pass is a no-op.
func (s *Scope) BreakHandles() []int {
	h := s.breakHandles
	s.breakHandles = nil
	return h
}

func (s *Scope) ContinueHandles() []int {
	h := s.continueHandles
	s.continueHandles = nil
	return h
}
