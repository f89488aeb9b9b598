// Package ast is the compiler's AST representation: a tagged node tree
// where every node carries a uniform set of bookkeeping fields and is
// dispatched on by Kind — a closed enum with per-pass dispatch rather
// than a deep class hierarchy.
//
// Ownership: a Node's Children slice is the only owning reference to its
// children; Parent, Target, ScopeRef and SymScopeRef are plain indices/
// pointers into state owned elsewhere and must never be used to free
// anything. Node trees are built by an external parser or builder (outside this
// module's scope) and handed to this package fully formed.
package ast

import (
	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/qual"
	"github.com/lethe-lang/lethe/internal/types"
)

// Kind is the tag discriminating a Node's concrete shape. The set is closed
// by the language grammar, so a type switch in each pass is
// exhaustive and the compiler can warn on missing cases.
type Kind int

const (
	KInvalid Kind = iota

	// Literals / constants.
	KLitBool
	KLitInt
	KLitUInt
	KLitLong
	KLitULong
	KLitFloat
	KLitDouble
	KLitChar
	KLitName
	KLitString
	KLitNull
	KEnumItem

	// Names and references.
	KIdent
	KScopeRes // a::b::c, collapsed into its target once resolved
	KThis

	// Operators.
	KBinaryOp
	KAssignOp
	KDotOp
	KScopeResOp
	KUnaryPre  // ++x, --x, +x, -x, !x, ~x
	KUnaryPost // x++, x--
	KUnaryRef  // &x
	KUnaryNew  // new T(...)
	KTernary
	KIndex
	KCall

	// Declarations.
	KVarDecl
	KVarDeclList
	KFuncDecl
	KStructDecl
	KClassDecl
	KEnumDecl
	KNamespaceDecl
	KTypeAlias

	// Types (as they appear in declarations, not canonical types).
	KTypeName
	KTypeArray
	KTypeArrayRef
	KTypeAuto
	KTypePointer
	KTypeFuncPtr
	KTypeDelegate

	// Statements.
	KBlock
	KIf
	KFor
	KWhile
	KDo
	KSwitch
	KCase
	KBreak
	KContinue
	KReturn
	KGoto
	KLabel
	KDefer
	KExprStmt
	KInitializerList

	// Program root.
	KProgram
)

// Flags bundles the per-node boolean bookkeeping:
// resolved, referenced, skip_cgen, nrvo, lock, type_gen, res_elem/
// res_slice, push_type/push_type_size, arg1_elem/arg2_elem.
type Flags uint32

const (
	FResolved Flags = 1 << iota
	FReferenced
	FSkipCgen
	FNRVO
	FLock
	FTypeGen
	FResElem
	FResSlice
	FPushType
	FPushTypeSize
	FArg1Elem
	FArg2Elem
)

// ConstValue is the inline numeric constant union
// (i32/u32/i64/u64/f32/f64), plus the string/name payload for those kinds.
type ConstValue struct {
	I64 int64
	U64 uint64
	F64 float64
	Str string
	Set bool // true once a ConstFolder pass has populated this node
}

// Node is one entry of the AST. Concrete shape-specific data lives in the
// Extra field as one of the types in nodes.go; Kind says which one.
type Node struct {
	Kind Kind
	Loc  diag.Location

	Quals qual.Set
	Flags Flags

	// Offset is the stack-frame or global-pool byte offset CodeGen assigns.
	Offset int

	// ScopeRef is the lexical scope enclosing this node; SymScopeRef, when
	// non-nil, overrides lookup (e.g. the right-hand side of a dot
	// operator resolves in the left side's type scope, not lexically).
	// Both are opaque here (declared as interface{}) because internal/ast
	// must not import internal/scope (scope embeds *Node, so the reverse
	// import would cycle); the resolver package recovers the concrete
	// *scope.Scope type.
	ScopeRef    interface{}
	SymScopeRef interface{}

	// Target is this node's resolution result once Resolved: the Node it
	// names (for an identifier or scope-resolution chain) or nil.
	Target *Node

	// ResolvedType is the QDataType this node evaluates to, set once
	// FResolved (and, for some nodes, only fully accurate after TypeGen).
	ResolvedType types.QDataType

	Const ConstValue

	Parent   *Node
	ChildIdx int // this node's index within Parent.Children
	Children []*Node

	Extra interface{}
}

// NewNode allocates a Node of the given kind with extra as its payload.
// Children, if any, must be attached with AddChild so ChildIdx/Parent stay
// consistent.
func NewNode(kind Kind, loc diag.Location, extra interface{}) *Node {
	return &Node{Kind: kind, Loc: loc, Extra: extra}
}

// AddChild appends child to n.Children, taking ownership of it and fixing
// up its back-pointers.
func (n *Node) AddChild(child *Node) {
	if child == nil {
		return
	}
	child.Parent = n
	child.ChildIdx = len(n.Children)
	n.Children = append(n.Children, child)
}

// IsResolved reports whether a prior Resolver pass has already settled
// this node.
func (n *Node) IsResolved() bool { return n.Flags&FResolved != 0 }

// MarkResolved sets the resolved flag. By the resolver's contract this
// must never be cleared except by a controlled rewrite (see Collapse).
func (n *Node) MarkResolved() { n.Flags |= FResolved }

// Collapse destructively rewrites a scope-resolution chain node in place
// once its rightmost symbol is known: n's Kind/Extra become the resolved
// target's, its children are replaced by the target's, and it is marked
// resolved. This is the one sanctioned exception to "resolved never
// clears", and must not be called reentrantly on a node
// already mid-collapse.
func (n *Node) Collapse(target *Node) {
	n.Kind = target.Kind
	n.Extra = target.Extra
	n.Target = target
	n.Children = target.Children
	n.ResolvedType = target.ResolvedType
	n.Const = target.Const
	n.MarkResolved()
}

// Clone copies n and, recursively, its Children, for template
// instantiation and inline-expansion contexts that need a separate
// copy of a declaration body. The copy is shallow below that: the Extra
// payload and other pointer fields are shared with the original.
// Parent/ChildIdx of the returned root are
// zeroed; the caller attaches it with AddChild.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Parent = nil
	cp.ChildIdx = 0
	cp.Children = nil
	for _, c := range n.Children {
		cp.AddChild(c.Clone())
	}
	return &cp
}
