package resolver

import (
	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/qual"
	"github.com/lethe-lang/lethe/internal/scope"
	"github.com/lethe-lang/lethe/internal/types"
)

// collectADLCandidates implements argument-dependent lookup: for a
// non-virtual, non-scoped call to name with the given (already resolved)
// arguments, look up name in each argument's own type scope and in the
// per-primitive synthetic scope, then keep only candidates that pass
// the candidate-fitness check. The lexical scope s is also searched directly
// first (ordinary, non-ADL lookup), since a locally visible function
// always wins over an ADL candidate and must not be reported as
// ambiguous against one.
func (r *Resolver) collectADLCandidates(s *scope.Scope, name string, args []*ast.Node) []*ast.Node {
	if direct, _ := s.FindSymbolFull(name, false); direct != nil && direct.Kind == ast.KFuncDecl {
		return []*ast.Node{direct}
	}

	seen := make(map[*ast.Node]bool)
	var candidates []*ast.Node
	consider := func(scopes ...*scope.Scope) {
		for _, sc := range scopes {
			if sc == nil {
				continue
			}
			if n, ok := sc.Members()[name]; ok && n.Kind == ast.KFuncDecl && !seen[n] {
				if fits(n, args) {
					seen[n] = true
					candidates = append(candidates, n)
				}
			}
		}
	}

	for _, a := range args {
		if a.ResolvedType.Type == nil {
			continue
		}
		t := a.ResolvedType.Type
		if t.Kind.IsComposite() {
			if ownScope, ok := t.OwnerScope.(*scope.Scope); ok {
				consider(ownScope)
			}
		}
		if primKind, ok := adlPrimitiveKind(t.Kind); ok {
			consider(r.adlScopes[primKind])
		}
	}
	return candidates
}

// adlPrimitiveKind maps a DataType kind onto the eight
// synthetic ADL scope names, also folding small-integer-promotion
// sources onto __int.
func adlPrimitiveKind(k types.Kind) (types.Kind, bool) {
	switch {
	case k.PromotesToInt():
		return types.Int, true
	case k == types.Int, k == types.UInt, k == types.Long, k == types.ULong,
		k == types.Float, k == types.Double, k == types.Name, k == types.String:
		return k, true
	default:
		return types.Void, false
	}
}

// fits implements the ADL candidate fitness check: argument count
// within [non-default-count(A), len(A)], and each position either an
// exact type-node match, a reference parameter requiring an exact kind
// match, small-integer-promotion compatible, or an array-ref/dynamic-
// array pair over the same element kind.
func fits(candidate *ast.Node, callArgs []*ast.Node) bool {
	fd, ok := candidate.Extra.(*ast.FuncDecl)
	if !ok {
		return false
	}
	nonDefault := 0
	for _, p := range fd.Params {
		if !p.HasDefault {
			nonDefault++
		}
	}
	if len(callArgs) > len(fd.Params) || len(callArgs) < nonDefault {
		return false
	}
	for i, arg := range callArgs {
		p := fd.Params[i]
		pt := paramType(p)
		at := arg.ResolvedType
		if pt.Type == nil || at.Type == nil {
			return false
		}
		if pt.Quals.Has(qual.Reference) {
			if pt.Type.Kind != at.Type.Kind {
				return false
			}
			continue
		}
		if pt.Type.Kind == at.Type.Kind {
			continue
		}
		if pt.Type.Kind.IsInteger() && at.Type.Kind.IsInteger() && at.Type.Kind.PromotesToInt() {
			continue
		}
		if isArrayRefOrDynamic(pt.Type) && isArrayRefOrDynamic(at.Type) && pt.Type.ElemType != nil &&
			at.Type.ElemType != nil && pt.Type.ElemType.Kind == at.Type.ElemType.Kind {
			continue
		}
		return false
	}
	return true
}

func isArrayRefOrDynamic(t *types.DataType) bool {
	return t.Kind == types.ArrayRef || t.Kind == types.DynamicArray
}

// paramType resolves a Param's declared type node into a QDataType. A
// param whose TypeNode hasn't reached TypeGen yet simply has a nil Type,
// which fits() already treats as a non-match.
func paramType(p ast.Param) types.QDataType {
	if p.TypeNode == nil {
		return types.QDataType{}
	}
	return p.TypeNode.ResolvedType
}
