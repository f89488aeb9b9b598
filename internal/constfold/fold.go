// Package constfold implements constant folding: a post-order pass
// applying arithmetic identities, ternary/short-circuit collapse,
// and cross-kind constant conversion, run between Resolve passes and
// before TypeGen.
package constfold

import (
	"strconv"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/types"
)

// Folder drives one ConstFolder pass over a resolved AST.
type Folder struct {
	types *types.Table
	diags *diag.Sink
}

// New creates a Folder.
func New(t *types.Table, diags *diag.Sink) *Folder { return &Folder{types: t, diags: diags} }

// Fold walks root post-order, folding every foldable node in place. It
// returns the number of nodes folded this pass.
func (f *Folder) Fold(root *ast.Node) int {
	count := 0
	ast.WalkPost(root, func(n *ast.Node) {
		if n.Const.Set {
			return
		}
		if f.foldOne(n) {
			count++
		}
	})
	return count
}

func (f *Folder) foldOne(n *ast.Node) bool {
	switch n.Kind {
	case ast.KBinaryOp:
		return f.foldBinary(n)
	case ast.KUnaryPre:
		return f.foldUnary(n)
	case ast.KTernary:
		return f.foldTernary(n)
	case ast.KDotOp:
		return f.foldArraySize(n)
	default:
		return false
	}
}

// constOf returns n's constant value and whether it is set, looking
// through an already-collapsed identifier target.
func constOf(n *ast.Node) (ast.ConstValue, bool) {
	if n.Const.Set {
		return n.Const, true
	}
	if n.Target != nil && n.Target.Const.Set {
		return n.Target.Const, true
	}
	return ast.ConstValue{}, false
}

// foldBinary applies arithmetic identities to a binary
// operator whose operands are both constant, including short-circuit
// collapse for &&/|| when only the left operand is constant.
func (f *Folder) foldBinary(n *ast.Node) bool {
	op, ok := n.Extra.(*ast.BinaryOp)
	if !ok || len(n.Children) != 2 {
		return false
	}
	lhs, lok := constOf(n.Children[0])

	if op.Op == "&&" && lok {
		if lhs.I64 == 0 {
			n.Const = ast.ConstValue{I64: 0, Set: true}
			return true
		}
		if rhs, rok := constOf(n.Children[1]); rok {
			n.Const = ast.ConstValue{I64: boolToI64(rhs.I64 != 0), Set: true}
			return true
		}
		return false
	}
	if op.Op == "||" && lok {
		if lhs.I64 != 0 {
			n.Const = ast.ConstValue{I64: 1, Set: true}
			return true
		}
		if rhs, rok := constOf(n.Children[1]); rok {
			n.Const = ast.ConstValue{I64: boolToI64(rhs.I64 != 0), Set: true}
			return true
		}
		return false
	}

	rhs, rok := constOf(n.Children[1])
	if !lok || !rok {
		return false
	}

	isFloat := n.ResolvedType.Type != nil && n.ResolvedType.Type.Kind.IsFloat()
	if isFloat {
		a, b := asFloat(lhs), asFloat(rhs)
		var r float64
		switch op.Op {
		case "+":
			r = a + b
		case "-":
			r = a - b
		case "*":
			r = a * b
		case "/":
			if b == 0 {
				return false
			}
			r = a / b
		default:
			return false
		}
		n.Const = ast.ConstValue{F64: r, Set: true}
		return true
	}

	a, b := lhs.I64, rhs.I64
	var r int64
	switch op.Op {
	case "+":
		r = a + b // integer arithmetic wraps
	case "-":
		r = a - b
	case "*":
		r = a * b
	case "/":
		if b == 0 {
			return false
		}
		r = a / b
	case "%":
		if b == 0 {
			return false
		}
		r = a % b
	case "<<":
		r = a << uint64(b)
	case ">>":
		r = a >> uint64(b)
	case "&":
		r = a & b
	case "|":
		r = a | b
	case "^":
		r = a ^ b
	case "==":
		r = boolToI64(a == b)
	case "!=":
		r = boolToI64(a != b)
	case "<":
		r = boolToI64(a < b)
	case "<=":
		r = boolToI64(a <= b)
	case ">":
		r = boolToI64(a > b)
	case ">=":
		r = boolToI64(a >= b)
	default:
		return false
	}
	n.Const = ast.ConstValue{I64: r, U64: uint64(r), Set: true}
	return true
}

func boolToI64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func asFloat(c ast.ConstValue) float64 {
	if c.F64 != 0 {
		return c.F64
	}
	return float64(c.I64)
}

// foldUnary applies +/-/~/! to a constant operand.
func (f *Folder) foldUnary(n *ast.Node) bool {
	op, ok := n.Extra.(*ast.UnaryOp)
	if !ok || len(n.Children) != 1 {
		return false
	}
	v, set := constOf(n.Children[0])
	if !set {
		return false
	}
	isFloat := n.ResolvedType.Type != nil && n.ResolvedType.Type.Kind.IsFloat()
	switch op.Op {
	case "+":
		n.Const = v
	case "-":
		if isFloat {
			n.Const = ast.ConstValue{F64: -asFloat(v), Set: true}
		} else {
			n.Const = ast.ConstValue{I64: -v.I64, U64: uint64(-v.I64), Set: true}
		}
	case "~":
		if isFloat {
			return false
		}
		n.Const = ast.ConstValue{I64: ^v.I64, U64: ^v.U64, Set: true}
	case "!":
		n.Const = ast.ConstValue{I64: boolToI64(v.I64 == 0 && !(isFloat && asFloat(v) != 0)), Set: true}
	default:
		return false
	}
	return true
}

// foldTernary collapses `cond ? a : b` to whichever branch the constant
// condition selects.
func (f *Folder) foldTernary(n *ast.Node) bool {
	if len(n.Children) != 3 {
		return false
	}
	cond, set := constOf(n.Children[0])
	if !set {
		return false
	}
	chosen := n.Children[2]
	if cond.I64 != 0 {
		chosen = n.Children[1]
	}
	if v, ok := constOf(chosen); ok {
		n.Const = v
	}
	n.Collapse(chosen)
	return true
}

// foldArraySize folds `arr.size` to a constant int when arr is a static
// array.
func (f *Folder) foldArraySize(n *ast.Node) bool {
	dot, ok := n.Extra.(*ast.DotOp)
	if !ok || dot.Name != "size" || len(n.Children) != 1 {
		return false
	}
	lt := n.Children[0].ResolvedType.Type
	if lt == nil || lt.Kind != types.StaticArray {
		return false
	}
	total := 1
	for _, d := range lt.ArrayDims {
		total *= d
	}
	n.Const = ast.ConstValue{I64: int64(total), U64: uint64(total), Set: true}
	return true
}

// ConvertConst converts a constant value of kind `from` to kind `to`,
// reporting a precision-loss warning at loc unless the target is bool,
// a conversion that
// changes the observable value warns unless the target is bool.
func (f *Folder) ConvertConst(v ast.ConstValue, from, to types.Kind, loc diag.Location) ast.ConstValue {
	switch {
	case to == types.Bool:
		return ast.ConstValue{I64: boolToI64(v.I64 != 0 || v.F64 != 0), Set: true}
	case from == types.String || from == types.Name || to == types.String || to == types.Name:
		return f.convertStringLike(v, from, to, loc)
	case to.IsFloat():
		out := ast.ConstValue{F64: asFloat(v), Set: true}
		if from.IsInteger() && int64(out.F64) != v.I64 {
			f.diags.Warn(diag.KindPrecisionLoss, loc, "conversion from %s to %s loses precision", from, to)
		}
		return out
	case to.IsInteger():
		var i int64
		if from.IsFloat() {
			i = int64(asFloat(v))
			if float64(i) != asFloat(v) {
				f.diags.Warn(diag.KindPrecisionLoss, loc, "conversion from %s to %s loses precision", from, to)
			}
		} else {
			i = v.I64
			if truncated, lost := narrow(i, to); lost {
				f.diags.Warn(diag.KindPrecisionLoss, loc, "conversion from %s to %s out of range", from, to)
				i = truncated
			}
		}
		return ast.ConstValue{I64: i, U64: uint64(i), Set: true}
	default:
		return v
	}
}

func (f *Folder) convertStringLike(v ast.ConstValue, from, to types.Kind, loc diag.Location) ast.ConstValue {
	switch {
	case from == types.Name && to == types.String, from == types.String && to == types.Name:
		return ast.ConstValue{Str: v.Str, Set: true}
	case from.IsNumeric() && to == types.String:
		if from.IsFloat() {
			return ast.ConstValue{Str: strconv.FormatFloat(asFloat(v), 'g', -1, 64), Set: true}
		}
		return ast.ConstValue{Str: strconv.FormatInt(v.I64, 10), Set: true}
	case from == types.String && to.IsNumeric():
		if to.IsFloat() {
			n, err := strconv.ParseFloat(v.Str, 64)
			if err != nil {
				f.diags.Warn(diag.KindPrecisionLoss, loc, "string %q does not parse as %s", v.Str, to)
			}
			return ast.ConstValue{F64: n, Set: true}
		}
		n, err := strconv.ParseInt(v.Str, 10, 64)
		if err != nil {
			f.diags.Warn(diag.KindPrecisionLoss, loc, "string %q does not parse as %s", v.Str, to)
		}
		return ast.ConstValue{I64: n, U64: uint64(n), Set: true}
	default:
		return v
	}
}

// narrow clamps i to to's bit width, reporting whether the value changed.
func narrow(i int64, to types.Kind) (int64, bool) {
	var bits int
	var signed bool
	switch to {
	case types.SByte:
		bits, signed = 8, true
	case types.Byte, types.Bool:
		bits, signed = 8, false
	case types.Short:
		bits, signed = 16, true
	case types.UShort, types.Char:
		bits, signed = 16, false
	case types.Int:
		bits, signed = 32, true
	case types.UInt:
		bits, signed = 32, false
	default:
		return i, false
	}
	if signed {
		min := -(int64(1) << (bits - 1))
		max := int64(1)<<(bits-1) - 1
		if i < min || i > max {
			shift := uint(64 - bits)
			return i << shift >> shift, true
		}
		return i, false
	}
	mask := uint64(1)<<bits - 1
	u := uint64(i)
	if u&^mask != 0 {
		return int64(u & mask), true
	}
	return i, false
}

