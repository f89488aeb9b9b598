// Package typegen computes struct/class layout, synthesizes vtables,
// pointer families and array types, and handles state-class
// inheritance, running once Resolve has converged and before CodeGen.
package typegen

import (
	"fmt"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/qual"
	"github.com/lethe-lang/lethe/internal/scope"
	"github.com/lethe-lang/lethe/internal/types"
)

// maxClassAlign is the object-heap alignment ceiling for classes.
const maxClassAlign = 16

// Gen drives the TypeGen phase over a Table and a set of composite
// declarations collected from the resolved AST.
type Gen struct {
	types    *types.Table
	diags    *diag.Sink
	wordSize int
}

// New creates a Gen. wordSize is the VM's native word size in bytes (used
// for pointer/array-header sizing).
func New(t *types.Table, diags *diag.Sink, wordSize int) *Gen {
	return &Gen{types: t, diags: diags, wordSize: wordSize}
}

// LayoutComposite computes a struct/class's member offsets and aggregate
// size/align. decl must be a KStructDecl/KClassDecl
// node whose Resolved DataType has already been declared (but not yet
// finalized) via Table.DeclareStruct.
func (g *Gen) LayoutComposite(decl *ast.Node, declScope *scope.Scope) error {
	cd, ok := decl.Extra.(*ast.CompositeDecl)
	if !ok {
		return fmt.Errorf("typegen: LayoutComposite called on non-composite node")
	}
	dt := cd.Resolved
	if dt == nil {
		return fmt.Errorf("typegen: %q has no declared DataType", cd.Name)
	}
	dt.OwnerScope = declScope

	if cd.BaseName != "" {
		base := g.types.Lookup(cd.BaseName)
		if base == nil {
			g.diags.Error(diag.KindUnknownSymbol, decl.Loc, "unknown base type %q", cd.BaseName)
			return fmt.Errorf("unknown base %q", cd.BaseName)
		}
		dt.BaseType = base
		if base.Kind.IsComposite() && (decl.Quals.Has(qual.Private) || decl.Quals.Has(qual.Protected)) {
			g.diags.Warn(diag.KindPrivateProtectedInherit, decl.Loc, "private/protected inheritance from %q", cd.BaseName)
		}
	}

	offset := 0
	maxAlign := 1
	if dt.BaseType != nil {
		offset = dt.BaseType.Size
		maxAlign = dt.BaseType.Align
		dt.HasDtor = dt.BaseType.HasDtor
		dt.HasCtor = dt.BaseType.HasCtor
	}

	nativeCount, scriptCount := 0, 0
	for _, m := range cd.Members {
		if m.Kind != ast.KVarDecl {
			continue // methods don't contribute to layout here
		}
		vd := m.Extra.(*ast.VarDecl)
		if vd.TypeNode == nil || vd.TypeNode.ResolvedType.Type == nil {
			return fmt.Errorf("typegen: member %q has no resolved type", vd.Name)
		}
		mt := vd.TypeNode.ResolvedType
		if m.Quals.Has(qual.Static) {
			continue // statics don't occupy instance layout
		}
		if m.Quals.Has(qual.Native) {
			nativeCount++
		} else {
			scriptCount++
		}
		align := mt.Type.Align
		if align < 1 {
			align = 1
		}
		if rem := offset % align; rem != 0 {
			offset += align - rem
		}
		if align > maxAlign {
			maxAlign = align
		}
		dt.Members = append(dt.Members, types.Member{
			Name: vd.Name, Type: &mt, ByteOffset: offset, ASTNode: m,
		})
		offset += mt.Type.Size
		if mt.Type.HasDtor && !m.Quals.Has(qual.NoCopy) {
			dt.HasDtor = true
		}
		if m.Quals.Has(qual.Ctor) {
			dt.HasCtor = true
		}
	}
	if nativeCount > 0 && scriptCount > 0 {
		g.diags.Error(diag.KindNativeLayoutMismatch, decl.Loc,
			"type %q mixes native and script members in one aggregate", cd.Name)
		return fmt.Errorf("mixed native/script members in %q", cd.Name)
	}
	if dt.Kind == types.Class && maxAlign > maxClassAlign {
		g.diags.Error(diag.KindClassAlignmentTooLarge, decl.Loc,
			"class %q requires %d-byte alignment, exceeds the %d-byte object-heap limit", cd.Name, maxAlign, maxClassAlign)
		return fmt.Errorf("class %q alignment %d exceeds limit", cd.Name, maxAlign)
	}
	if rem := offset % maxAlign; rem != 0 {
		offset += maxAlign - rem
	}
	dt.Size = offset
	dt.Align = maxAlign
	g.types.Finalize(dt)
	return nil
}
