// Package resolver implements the fixed-point name-resolution driver:
// a DFS over the program root, repeated until no node reports "more
// work to do", with one stateful driver struct and a Kind-dispatch
// resolve step per node.
package resolver

import (
	"fmt"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/qual"
	"github.com/lethe-lang/lethe/internal/scope"
	"github.com/lethe-lang/lethe/internal/types"
	"go.uber.org/zap"
)

// maxAutoLock is the recursion guard for detecting
// `auto x = x`.
const maxAutoLock = 100

// maxPasses bounds the fixed-point loop so a resolver bug (a node that
// perpetually reports More without ever converging) fails loudly instead
// of hanging the compiler.
const maxPasses = 256

// result is what a single node's resolve attempt reports back to the
// driver for this pass.
type result int

const (
	resultDone result = iota
	resultMore
	resultFailed
)

// Resolver drives the fixed-point resolution loop over one compilation
// unit's AST.
type Resolver struct {
	types *types.Table
	diags *diag.Sink
	log   *zap.SugaredLogger

	global *scope.Scope

	// adlScopes holds the per-primitive synthetic scopes (
	// __int, __uint, __long, __ulong, __float, __double, __name,
	// __string) that ADL additionally searches.
	adlScopes map[types.Kind]*scope.Scope
}

// New creates a Resolver over the given global scope, populating the ADL
// synthetic primitive scopes as direct unnamed children of it.
func New(t *types.Table, global *scope.Scope, diags *diag.Sink, log *zap.SugaredLogger) *Resolver {
	r := &Resolver{types: t, diags: diags, log: log, global: global, adlScopes: make(map[types.Kind]*scope.Scope)}
	for _, k := range []types.Kind{types.Int, types.UInt, types.Long, types.ULong, types.Float, types.Double, types.Name, types.String} {
		r.adlScopes[k] = global.AddNamed("__"+k.String(), scope.KindNamespace)
	}
	return r
}

// ADLScope returns the synthetic scope ADL consults for primitive kind k,
// or nil if k has none.
func (r *Resolver) ADLScope(k types.Kind) *scope.Scope { return r.adlScopes[k] }

// Run drives the fixed-point loop over root until a pass makes no
// progress or a hard failure occurs. It returns the number of passes
// actually run, for diagnostics/tests.
func (r *Resolver) Run(root *ast.Node) (passes int, err error) {
	for passes = 1; passes <= maxPasses; passes++ {
		progressed := false
		failed := false
		ast.Walk(root, func(n *ast.Node) bool {
			if n.IsResolved() {
				return true
			}
			switch r.resolveOne(n) {
			case resultMore:
				progressed = true
			case resultFailed:
				failed = true
			case resultDone:
				progressed = true
			}
			// Keep descending regardless; children may resolve
			// independently of their parent's own state this pass.
			return true
		})
		if failed && r.diags.HasErrors() {
			return passes, r.diags.Err()
		}
		if !progressed {
			return passes, nil
		}
	}
	return passes, fmt.Errorf("resolver: did not converge after %d passes", maxPasses)
}

// resolveOne attempts to resolve a single node without recursing into
// children (Run's Walk already does that); it returns resultDone once n
// is fully resolved, resultMore if n made partial progress, or
// resultFailed if it emitted a fatal diagnostic.
func (r *Resolver) resolveOne(n *ast.Node) result {
	switch n.Kind {
	case ast.KIdent:
		return r.resolveIdent(n)
	case ast.KScopeResOp:
		return r.resolveScopeRes(n)
	case ast.KDotOp:
		return r.resolveDotOp(n)
	case ast.KCall:
		return r.resolveCall(n)
	case ast.KVarDecl:
		return r.resolveVarDecl(n)
	case ast.KTypeName:
		return r.resolveTypeName(n)
	default:
		// Nodes with no resolve-specific behavior are considered resolved
		// once every child is (Walk visits children independently, so by
		// the time this node is revisited in a later pass its children's
		// FResolved bits already reflect that).
		for _, c := range n.Children {
			if !c.IsResolved() {
				return resultMore
			}
		}
		for _, c := range ast.PayloadChildren(n) {
			if !c.IsResolved() {
				return resultMore
			}
		}
		n.MarkResolved()
		return resultDone
	}
}

func (r *Resolver) nodeScope(n *ast.Node) *scope.Scope {
	if n.SymScopeRef != nil {
		if s, ok := n.SymScopeRef.(*scope.Scope); ok {
			return s
		}
	}
	if n.ScopeRef != nil {
		if s, ok := n.ScopeRef.(*scope.Scope); ok {
			return s
		}
	}
	return r.global
}

func (r *Resolver) resolveIdent(n *ast.Node) result {
	id, ok := n.Extra.(*ast.Ident)
	if !ok {
		return resultFailed
	}
	s := r.nodeScope(n)
	target, _ := s.FindSymbolFull(id.Name, false)
	if target == nil {
		r.diags.Error(diag.KindUnknownSymbol, n.Loc, "unknown symbol %q", id.Name)
		return resultFailed
	}
	if !target.IsResolved() && target != n {
		// The symbol exists but its own declaration hasn't resolved yet
		// (e.g. a forward reference to a later global); wait for it.
		return resultMore
	}
	n.Target = target
	n.ResolvedType = target.ResolvedType
	n.MarkResolved()
	return resultDone
}

// resolveScopeRes resolves a::b::c by walking each path segment through
// nested named scopes, then collapsing the chain into its
// target with the destructive in-place rewrite.
func (r *Resolver) resolveScopeRes(n *ast.Node) result {
	sr, ok := n.Extra.(*ast.ScopeResOp)
	if !ok || len(sr.Path) == 0 {
		return resultFailed
	}
	cur := r.nodeScope(n)
	var target *ast.Node
	for i, seg := range sr.Path {
		if i == len(sr.Path)-1 {
			t, _ := cur.FindSymbolFull(seg, false)
			if t == nil {
				r.diags.Error(diag.KindUnknownSymbol, n.Loc, "unknown symbol %q in scope-resolution chain", seg)
				return resultFailed
			}
			target = t
			break
		}
		sub, ok := cur.NamedScopes()[seg]
		if !ok {
			r.diags.Error(diag.KindUnknownSymbol, n.Loc, "unknown scope %q", seg)
			return resultFailed
		}
		cur = sub
	}
	if !target.IsResolved() {
		return resultMore
	}
	n.Collapse(target)
	return resultDone
}

// resolveDotOp resolves left.Name by consulting the base chain of the
// left-hand side's static type only, and caches a property
// getter/setter member if Name carries the property qualifier.
func (r *Resolver) resolveDotOp(n *ast.Node) result {
	if len(n.Children) != 1 {
		return resultFailed
	}
	left := n.Children[0]
	if !left.IsResolved() {
		return resultMore
	}
	dot, ok := n.Extra.(*ast.DotOp)
	if !ok {
		return resultFailed
	}
	lt := left.ResolvedType.Type
	if lt == nil || (lt.Kind != types.Struct && lt.Kind != types.Class) {
		r.diags.Error(diag.KindIncompatibleTypes, n.Loc, "dot operator requires a struct or class left-hand side")
		return resultFailed
	}
	member := findMember(lt, dot.Name)
	if member == nil {
		r.diags.Error(diag.KindUnknownSymbol, n.Loc, "no member %q on type %s", dot.Name, lt.Name)
		return resultFailed
	}
	n.ResolvedType = *member.Type
	if getter := findMember(lt, "__get_"+dot.Name); getter != nil {
		if gn, ok := getter.ASTNode.(*ast.Node); ok {
			dot.PropertyGetter = gn
		}
	}
	if setter := findMember(lt, "__set_"+dot.Name); setter != nil {
		if sn, ok := setter.ASTNode.(*ast.Node); ok {
			dot.PropertySetter = sn
		}
	}
	n.MarkResolved()
	return resultDone
}

func findMember(dt *types.DataType, name string) *types.Member {
	for cur := dt; cur != nil; cur = cur.BaseType {
		for i := range cur.Members {
			if cur.Members[i].Name == name {
				return &cur.Members[i]
			}
		}
	}
	return nil
}

// resolveCall resolves a call's callee and arguments, then — if the
// callee is a plain (non-scoped, non-virtual) identifier that didn't
// resolve via ordinary scope lookup — attempts ADL.
func (r *Resolver) resolveCall(n *ast.Node) result {
	if len(n.Children) == 0 {
		return resultFailed
	}
	callee := n.Children[0]
	args := n.Children[1:]
	for _, a := range args {
		if !a.IsResolved() {
			return resultMore
		}
	}
	call, ok := n.Extra.(*ast.Call)
	if !ok {
		return resultFailed
	}
	if callee.Kind == ast.KIdent && call.ResolvedFunc == nil {
		ident := callee.Extra.(*ast.Ident)
		candidates := r.collectADLCandidates(r.nodeScope(n), ident.Name, args)
		switch len(candidates) {
		case 0:
			if !callee.IsResolved() {
				return resultMore
			}
		case 1:
			call.ResolvedFunc = candidates[0]
			// Settle the callee identifier too, so later passes don't
			// report it as an unknown symbol: its resolution IS the ADL
			// result.
			callee.Target = call.ResolvedFunc
			callee.ResolvedType = call.ResolvedFunc.ResolvedType
			callee.MarkResolved()
		default:
			r.diags.Error(diag.KindAmbiguousCall, n.Loc, "ambiguous call to %q: %d candidates fit", ident.Name, len(candidates))
			return resultFailed
		}
	}
	if call.ResolvedFunc != nil {
		fd := call.ResolvedFunc.Extra.(*ast.FuncDecl)
		call.IsLatentCall = call.ResolvedFunc.Quals.Has(qual.Latent)
		call.IsStateCall = call.ResolvedFunc.Quals.Has(qual.State)
		n.ResolvedType = types.Q(typeOrVoid(r.types, fd.ReturnType), 0)
	}
	n.MarkResolved()
	return resultDone
}

func typeOrVoid(t *types.Table, typeNode *ast.Node) *types.DataType {
	if typeNode == nil {
		return t.Builtin(types.Void)
	}
	return typeNode.ResolvedType.Type
}

// resolveTypeName resolves a bare named type reference against the type
// table. Composite types are pre-declared (layout comes later, but the
// canonical DataType already exists), so a miss that still has a visible
// declaration node means "wait", and a miss with nothing visible is an
// unknown symbol.
func (r *Resolver) resolveTypeName(n *ast.Node) result {
	tn, ok := n.Extra.(*ast.TypeName)
	if !ok {
		return resultFailed
	}
	if dt := r.types.Lookup(tn.Name); dt != nil {
		n.ResolvedType = types.Q(dt, 0)
		n.MarkResolved()
		return resultDone
	}
	if decl, _ := r.nodeScope(n).FindSymbolFull(tn.Name, false); decl != nil {
		return resultMore
	}
	r.diags.Error(diag.KindUnknownSymbol, n.Loc, "unknown type %q", tn.Name)
	return resultFailed
}

// resolveVarDecl handles `auto` inference and the recursive-auto guard.
func (r *Resolver) resolveVarDecl(n *ast.Node) result {
	vd, ok := n.Extra.(*ast.VarDecl)
	if !ok {
		return resultFailed
	}
	if !vd.IsAuto {
		if vd.Init != nil && !vd.Init.IsResolved() {
			return resultMore
		}
		if vd.TypeNode != nil {
			if !vd.TypeNode.IsResolved() {
				return resultMore
			}
			n.ResolvedType = vd.TypeNode.ResolvedType
		}
		n.MarkResolved()
		return resultDone
	}
	if vd.Init == nil {
		r.diags.Error(diag.KindIllegalExpression, n.Loc, "auto declaration %q requires an initializer", vd.Name)
		return resultFailed
	}
	if !vd.Init.IsResolved() {
		if vd.LockAuto() > maxAutoLock {
			r.diags.Error(diag.KindRecursiveAuto, n.Loc, "recursive auto declaration %q", vd.Name)
			return resultFailed
		}
		return resultMore
	}
	n.ResolvedType = vd.Init.ResolvedType
	n.MarkResolved()
	return resultDone
}
