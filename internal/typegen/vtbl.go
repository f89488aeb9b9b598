package typegen

import (
	"fmt"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/qual"
	"github.com/lethe-lang/lethe/internal/scope"
	"github.com/lethe-lang/lethe/internal/types"
)

// vtblSlot is one entry of a class's synthesized vtable: the method that
// currently occupies it (the most-derived override seen so far).
type vtblSlot struct {
	name   string
	method *ast.Node
}

// vtable is the working synthesis state for one class, discarded once
// BuildVtable finishes; only the final slot names/count persist, copied
// onto the DataType.
type vtable struct {
	slots []vtblSlot
}

func (v *vtable) find(name string) (int, bool) {
	for i, s := range v.slots {
		if s.name == name {
			return i, true
		}
	}
	return -1, false
}

// BuildVtable synthesizes cd's vtable: inherit the base vtable by
// value, slot 0 is always the destructor, then for each virtual or
// override method that is not final, static or a constructor, in
// declaration order, either
// override an existing base slot (exact signature match) or allocate a
// new one.
func (g *Gen) BuildVtable(decl *ast.Node) error {
	cd := decl.Extra.(*ast.CompositeDecl)
	dt := cd.Resolved

	v := &vtable{}
	if dt.BaseType != nil && dt.BaseType.VtblSize > 0 {
		v.slots = make([]vtblSlot, dt.BaseType.VtblSize)
		for i, name := range dt.BaseType.VtblNames {
			v.slots[i] = vtblSlot{name: name}
		}
	} else {
		v.slots = []vtblSlot{{name: "__dtor"}} // slot 0 is always the dtor
	}

	for _, m := range cd.Members {
		if m.Kind != ast.KFuncDecl {
			continue
		}
		fd := m.Extra.(*ast.FuncDecl)
		if m.Quals.Has(qual.Final) || m.Quals.Has(qual.Static) || m.Quals.Has(qual.Ctor) {
			continue
		}
		if !m.Quals.Has(qual.Virtual) && !m.Quals.Has(qual.Override) {
			continue
		}
		if m.Quals.Has(qual.Inline) {
			g.diags.Warn(diag.KindInlineIgnoredVirtual, decl.Loc, "inline ignored on virtual method %q", fd.Name)
		}
		idx, existed := v.find(fd.Name)
		if existed {
			// An inherited slot only carries its name; recover the base's
			// declaring node through the base chain's scopes for the
			// signature check.
			baseMethod := v.slots[idx].method
			if baseMethod == nil {
				baseMethod = findBaseMethod(dt.BaseType, fd.Name)
			}
			if baseMethod != nil && !signaturesMatch(baseMethod, m) {
				g.diags.Error(diag.KindVirtualSignatureMismatch, m.Loc,
					"method %q does not match base signature", fd.Name)
				return fmt.Errorf("signature mismatch for %q", fd.Name)
			}
			if !m.Quals.Has(qual.Override) {
				g.diags.Warn(diag.KindMissingOverride, m.Loc, "method %q overrides a base slot without `override`", fd.Name)
			}
			v.slots[idx] = vtblSlot{name: fd.Name, method: m}
			fd.VtblIndex = idx
			continue
		}
		if m.Quals.Has(qual.Override) {
			g.diags.Error(diag.KindOverrideWithoutBase, m.Loc, "method %q declared `override` with no base slot", fd.Name)
			return fmt.Errorf("override without base for %q", fd.Name)
		}
		idx = len(v.slots)
		v.slots = append(v.slots, vtblSlot{name: fd.Name, method: m})
		fd.VtblIndex = idx
	}

	dt.VtblSize = len(v.slots)
	dt.VtblNames = make([]string, len(v.slots))
	for i, s := range v.slots {
		dt.VtblNames[i] = s.name
	}
	return nil
}

// findBaseMethod walks the base chain's scopes for name's declaring
// function node.
func findBaseMethod(base *types.DataType, name string) *ast.Node {
	for cur := base; cur != nil; cur = cur.BaseType {
		sc, ok := cur.OwnerScope.(*scope.Scope)
		if !ok || sc == nil {
			continue
		}
		if n, found := sc.Members()[name]; found && n.Kind == ast.KFuncDecl {
			return n
		}
	}
	return nil
}

func signaturesMatch(base, derived *ast.Node) bool {
	if base == nil || derived == nil {
		return base == derived
	}
	bd, ok1 := base.Extra.(*ast.FuncDecl)
	dd, ok2 := derived.Extra.(*ast.FuncDecl)
	if !ok1 || !ok2 {
		return false
	}
	if len(bd.Params) != len(dd.Params) {
		return false
	}
	for i := range bd.Params {
		bt, dtp := bd.Params[i].TypeNode, dd.Params[i].TypeNode
		if bt == nil || dtp == nil {
			return false
		}
		if !bt.ResolvedType.Equal(dtp.ResolvedType) {
			return false
		}
	}
	if bd.ReturnType == nil || dd.ReturnType == nil {
		return bd.ReturnType == dd.ReturnType
	}
	if !bd.ReturnType.ResolvedType.Equal(dd.ReturnType.ResolvedType) {
		return false
	}
	// Receiver const-ness must also match exactly.
	return base.Quals.Has(qual.Const) == derived.Quals.Has(qual.Const)
}
