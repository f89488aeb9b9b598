package typegen

import (
	"fmt"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/types"
)

// ResolveArrayType synthesizes the DataType for a KTypeArray or
// KTypeArrayRef node: a static array's dims must already be folded
// positive constants; a dynamic array additionally gets a companion
// array-ref type.
func (g *Gen) ResolveArrayType(n *ast.Node, elem *types.DataType) (*types.DataType, error) {
	switch ta := n.Extra.(type) {
	case *ast.TypeArray:
		if ta.Dynamic {
			dyn, _ := g.types.DynamicArrayOf(elem, g.wordSize)
			return dyn, nil
		}
		dims := make([]int, 0, len(ta.Dims))
		for _, dimNode := range ta.Dims {
			if !dimNode.Const.Set {
				g.diags.Error(diag.KindInvalidTypeSize, n.Loc, "static array dimension must be a folded constant")
				return nil, fmt.Errorf("unfolded array dimension at %s", n.Loc)
			}
			if dimNode.Const.I64 < 1 {
				g.diags.Error(diag.KindInvalidTypeSize, n.Loc, "static array dimension must be >= 1, got %d", dimNode.Const.I64)
				return nil, fmt.Errorf("invalid array dimension %d", dimNode.Const.I64)
			}
			dims = append(dims, int(dimNode.Const.I64))
		}
		dt, err := g.types.StaticArrayOf(elem, dims)
		if err != nil {
			g.diags.Error(diag.KindInvalidTypeSize, n.Loc, "%s", err)
			return nil, err
		}
		return dt, nil
	case *ast.TypeArrayRef:
		_, ref := g.types.DynamicArrayOf(elem, g.wordSize)
		return ref, nil
	default:
		return nil, fmt.Errorf("typegen: ResolveArrayType called on non-array node")
	}
}
