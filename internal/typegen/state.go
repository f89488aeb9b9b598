package typegen

import (
	"fmt"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/qual"
)

// SynthesizeStateInheritance runs after a class's
// own VtblGen completes, any nested `state class` that exists in the
// base but not in the derived class is synthesized on the derived class
// too, sharing ctor/dtor/layout with the outer class and overlaying only
// the vtable slots where the base's state differs from the base itself.
func (g *Gen) SynthesizeStateInheritance(derivedDecl *ast.Node, baseDecl *ast.Node) error {
	dcd := derivedDecl.Extra.(*ast.CompositeDecl)
	baseStates := stateChildren(baseDecl)
	if len(baseStates) == 0 {
		return nil
	}

	derivedStates := stateChildren(derivedDecl)
	for _, baseStateDecl := range baseStates {
		bsd := baseStateDecl.Extra.(*ast.CompositeDecl)
		if _, exists := derivedStates[bsd.Name]; exists {
			continue
		}
		synthesized := synthesizeSharedState(derivedDecl, baseStateDecl)
		derivedDecl.AddChild(synthesized)

		scd := synthesized.Extra.(*ast.CompositeDecl)
		scd.Resolved.Size = dcd.Resolved.Size
		scd.Resolved.Align = dcd.Resolved.Align
		scd.Resolved.FunCtor = dcd.Resolved.FunCtor
		scd.Resolved.FunDtor = dcd.Resolved.FunDtor

		// Start from the outer class's own vtable (every slot the derived
		// class already overrides), then overlay any slot name unique to
		// the base state class itself, preserving that slot's index.
		outerVtbl := append([]string(nil), dcd.Resolved.VtblNames...)
		for j, bsName := range bsd.Resolved.VtblNames {
			if j >= len(outerVtbl) {
				outerVtbl = append(outerVtbl, bsName)
			} else if outerVtbl[j] == "" {
				outerVtbl[j] = bsName
			}
		}
		scd.Resolved.VtblNames = outerVtbl
		scd.Resolved.VtblSize = len(outerVtbl)

		scd.Resolved.Name = scd.Name
		if err := g.types.RegisterSynthesized(scd.Resolved); err != nil {
			return err
		}
	}
	return nil
}

func stateChildren(decl *ast.Node) map[string]*ast.Node {
	out := make(map[string]*ast.Node)
	cd := decl.Extra.(*ast.CompositeDecl)
	for _, m := range cd.Members {
		if m.Kind == ast.KClassDecl {
			if inner, ok := m.Extra.(*ast.CompositeDecl); ok && inner.IsState {
				out[inner.Name] = m
			}
		}
	}
	return out
}

// synthesizeSharedState clones baseStateDecl's method set onto a new
// state-qualified node with its own CompositeDecl. It does not attach or
// register the clone: its caller, SynthesizeStateInheritance, parents it
// under outerDecl and registers it in the global class-type table.
func synthesizeSharedState(outerDecl *ast.Node, baseStateDecl *ast.Node) *ast.Node {
	clone := baseStateDecl.Clone()
	clone.Quals = clone.Quals.With(qual.State)
	if baseCD, ok := baseStateDecl.Extra.(*ast.CompositeDecl); ok {
		// Node.Clone shallow-copies Extra, so give the clone its own
		// CompositeDecl (and DataType) rather than sharing the base state
		// class's, since SynthesizeStateInheritance mutates both.
		cloneCD := *baseCD
		cloneCD.Name = fmt.Sprintf("%s.%s", outerDeclName(outerDecl), baseCD.Name)
		if baseCD.Resolved != nil {
			resolvedCopy := *baseCD.Resolved
			cloneCD.Resolved = &resolvedCopy
		}
		clone.Extra = &cloneCD
	}
	return clone
}

func outerDeclName(decl *ast.Node) string {
	if cd, ok := decl.Extra.(*ast.CompositeDecl); ok {
		return cd.Name
	}
	return ""
}
