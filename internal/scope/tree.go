package scope

import (
	"strings"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/qual"
)

// FindSymbol looks up name directly in s's own member map; if chainBase,
// it also walks s's inheritance base chain; if chainParent, it also walks
// s's lexical-parent chain. Neither chain is followed unless requested,
// the non-recursive default.
func (s *Scope) FindSymbol(name string, chainBase, chainParent bool) *ast.Node {
	for cur := s; cur != nil; {
		if n, ok := cur.members[name]; ok {
			return n
		}
		if chainBase && cur.Base != nil {
			if n := cur.Base.FindSymbol(name, true, false); n != nil {
				return n
			}
		}
		if chainParent {
			cur = cur.Parent
			continue
		}
		break
	}
	return nil
}

// FindSymbolFull performs the full recursive scan: walk s's base chain
// at every lexical level, then its lexical parent, until found or the
// global scope is exhausted. It
// returns the scope the symbol was actually found in alongside the node,
// since callers need it to compute e.g. a member's base-relative offset.
func (s *Scope) FindSymbolFull(name string, baseOnly bool) (node *ast.Node, owner *Scope) {
	for cur := s; cur != nil; cur = cur.Parent {
		if n, ok := cur.members[name]; ok {
			return n, cur
		}
		for b := cur.Base; b != nil; b = b.Base {
			if n, ok := b.members[name]; ok {
				return n, b
			}
		}
		if baseOnly {
			break
		}
	}
	return nil, nil
}

// FindLabel walks s's lexical-parent chain up to (and including) the
// nearest enclosing function scope looking for a goto label; labels
// never escape their function.
func (s *Scope) FindLabel(name string) *ast.Node {
	for cur := s; cur != nil; cur = cur.Parent {
		if n, ok := cur.labels[name]; ok {
			return n
		}
		if cur.Kind == KindFunction {
			break
		}
	}
	return nil
}

// FindOperator scans s's own operator list (no recursion) for an
// overload matching name. match is
// supplied by the resolver since operator-signature fitness depends on
// QDataType details this package doesn't otherwise need to know about.
func (s *Scope) FindOperator(name string, match func(*ast.Node) bool) *ast.Node {
	for _, op := range s.operators {
		if match(op) {
			_ = name // name is carried by the caller's match closure / op's own Extra
			return op
		}
	}
	return nil
}

// GetFullScopeName renders s's qualified name by walking up to the
// global scope and joining each named scope's Name with "::", outermost
// first.
func (s *Scope) GetFullScopeName() string {
	var parts []string
	for cur := s; cur != nil && cur.Parent != nil; cur = cur.Parent {
		if cur.Name != "" {
			parts = append([]string{cur.Name}, parts...)
		}
	}
	return strings.Join(parts, "::")
}

// IsConstMethod reports whether s's nearest enclosing function scope is a
// const method (const-this propagates into member access
// resolution).
func (s *Scope) IsConstMethod() bool {
	fn := s.FindFunctionScope()
	if fn == nil || fn.Node == nil {
		return false
	}
	return fn.Node.Quals.Has(qual.Const)
}
