package constfold

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/asttest"
	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/types"
)

func newFolder(t *testing.T) (*Folder, *types.Table, *diag.Sink) {
	t.Helper()
	tbl := types.NewTable()
	sink := diag.NewSink(nil, nil)
	return New(tbl, sink), tbl, sink
}

type binCase struct {
	name string
	op   string
	l, r int64
	want int64
}

var binCases = []binCase{
	{"add", "+", 2, 3, 5},
	{"sub", "-", 2, 3, -1},
	{"mul", "*", 6, 7, 42},
	{"div", "/", 125, 3, 41},
	{"mod", "%", 125, 3, 2},
	{"shl", "<<", 1, 4, 16},
	{"shr", ">>", 16, 2, 4},
	{"and", "&", 6, 3, 2},
	{"or", "|", 6, 3, 7},
	{"xor", "^", 6, 3, 5},
	{"eq", "==", 4, 4, 1},
	{"ne", "!=", 4, 4, 0},
	{"lt", "<", 3, 4, 1},
	{"le", "<=", 4, 4, 1},
	{"gt", ">", 3, 4, 0},
	{"ge", ">=", 3, 4, 0},
}

func TestFoldBinary(t *testing.T) {
	for _, tc := range binCases {
		t.Run(tc.name, func(t *testing.T) {
			f, tbl, _ := newFolder(t)
			n := asttest.Bin(tc.op, asttest.IntLit(tbl, tc.l), asttest.IntLit(tbl, tc.r))
			n.ResolvedType = types.Q(tbl.Builtin(types.Int), 0)

			require.Equal(t, 1, f.Fold(n))
			require.True(t, n.Const.Set)
			require.Equal(t, tc.want, n.Const.I64)
		})
	}
}

func TestFoldBinaryFloat(t *testing.T) {
	f, tbl, _ := newFolder(t)
	n := asttest.Bin("*", asttest.FloatLit(tbl, 2.5), asttest.FloatLit(tbl, 4))
	n.ResolvedType = types.Q(tbl.Builtin(types.Double), 0)
	require.Equal(t, 1, f.Fold(n))
	require.Equal(t, 10.0, n.Const.F64)
}

func TestFoldDivisionByZeroNotFolded(t *testing.T) {
	f, tbl, _ := newFolder(t)
	n := asttest.Bin("/", asttest.IntLit(tbl, 1), asttest.IntLit(tbl, 0))
	n.ResolvedType = types.Q(tbl.Builtin(types.Int), 0)
	require.Equal(t, 0, f.Fold(n))
	require.False(t, n.Const.Set)
}

func TestFoldIntegerWraps(t *testing.T) {
	f, tbl, _ := newFolder(t)
	const maxI64 = int64(^uint64(0) >> 1)
	n := asttest.Bin("+", asttest.IntLit(tbl, maxI64), asttest.IntLit(tbl, 1))
	n.ResolvedType = types.Q(tbl.Builtin(types.Long), 0)
	require.Equal(t, 1, f.Fold(n))
	require.Equal(t, -maxI64-1, n.Const.I64)
}

func TestShortCircuit(t *testing.T) {
	f, tbl, _ := newFolder(t)

	// false && <non-constant> folds to 0 without looking right.
	rhs := asttest.Ident("x")
	n := asttest.Bin("&&", asttest.IntLit(tbl, 0), rhs)
	require.Equal(t, 1, f.Fold(n))
	require.Equal(t, int64(0), n.Const.I64)

	// true || <non-constant> folds to 1.
	n2 := asttest.Bin("||", asttest.IntLit(tbl, 5), asttest.Ident("y"))
	require.Equal(t, 1, f.Fold(n2))
	require.Equal(t, int64(1), n2.Const.I64)

	// true && <non-constant> must not fold.
	n3 := asttest.Bin("&&", asttest.IntLit(tbl, 1), asttest.Ident("z"))
	require.Equal(t, 0, f.Fold(n3))
}

func TestFoldUnary(t *testing.T) {
	cases := []struct {
		op   string
		in   int64
		want int64
	}{
		{"-", 5, -5},
		{"~", 0, -1},
		{"!", 0, 1},
		{"!", 3, 0},
		{"+", 9, 9},
	}
	for _, tc := range cases {
		f, tbl, _ := newFolder(t)
		n := asttest.Un(tc.op, asttest.IntLit(tbl, tc.in))
		n.ResolvedType = types.Q(tbl.Builtin(types.Int), 0)
		require.Equal(t, 1, f.Fold(n), tc.op)
		require.Equal(t, tc.want, n.Const.I64, tc.op)
	}
}

func TestFoldTernaryCollapse(t *testing.T) {
	f, tbl, _ := newFolder(t)
	n := asttest.Ternary(asttest.IntLit(tbl, 1), asttest.IntLit(tbl, 10), asttest.IntLit(tbl, 20))
	require.GreaterOrEqual(t, f.Fold(n), 1)
	require.Equal(t, ast.KLitInt, n.Kind)
	require.Equal(t, int64(10), n.Const.I64)

	n2 := asttest.Ternary(asttest.IntLit(tbl, 0), asttest.IntLit(tbl, 10), asttest.IntLit(tbl, 20))
	require.GreaterOrEqual(t, f.Fold(n2), 1)
	require.Equal(t, int64(20), n2.Const.I64)
}

func TestFoldStaticArraySize(t *testing.T) {
	f, tbl, _ := newFolder(t)
	arr, err := tbl.StaticArrayOf(tbl.Builtin(types.Int), []int{2, 5})
	require.NoError(t, err)

	base := asttest.Ident("a")
	base.ResolvedType = types.Q(arr, 0)
	base.MarkResolved()
	dot := ast.NewNode(ast.KDotOp, asttest.Loc, &ast.DotOp{Name: "size"})
	dot.AddChild(base)

	require.Equal(t, 1, f.Fold(dot))
	require.Equal(t, int64(10), dot.Const.I64)
}

// Folding is idempotent: a second pass over an already-folded tree finds
// nothing to do.
func TestFoldIdempotent(t *testing.T) {
	f, tbl, _ := newFolder(t)
	n := asttest.Bin("+", asttest.Bin("*", asttest.IntLit(tbl, 2), asttest.IntLit(tbl, 3)), asttest.IntLit(tbl, 4))
	n.ResolvedType = types.Q(tbl.Builtin(types.Int), 0)
	n.Children[0].ResolvedType = types.Q(tbl.Builtin(types.Int), 0)

	require.Greater(t, f.Fold(n), 0)
	first := n.Const
	require.Equal(t, 0, f.Fold(n))
	require.Equal(t, first, n.Const)
	require.Equal(t, int64(10), n.Const.I64)
}

func TestConvertConstNarrowWarns(t *testing.T) {
	f, _, sink := newFolder(t)
	v := ast.ConstValue{I64: 40000, Set: true}
	out := f.ConvertConst(v, types.Int, types.Short, asttest.Loc)

	require.Equal(t, int64(-25536), out.I64)
	require.Len(t, sink.Warnings(), 1)
	require.Equal(t, diag.KindPrecisionLoss, sink.Warnings()[0].Kind)
	require.Equal(t, asttest.Loc, sink.Warnings()[0].Loc)
}

func TestConvertConstInRangeSilent(t *testing.T) {
	f, _, sink := newFolder(t)
	out := f.ConvertConst(ast.ConstValue{I64: 1000, Set: true}, types.Int, types.Short, asttest.Loc)
	require.Equal(t, int64(1000), out.I64)
	require.Empty(t, sink.Warnings())
}

func TestConvertConstToBoolNeverWarns(t *testing.T) {
	f, _, sink := newFolder(t)
	out := f.ConvertConst(ast.ConstValue{I64: 40000, Set: true}, types.Int, types.Bool, asttest.Loc)
	require.Equal(t, int64(1), out.I64)
	require.Empty(t, sink.Warnings())
}

func TestConvertConstFloatToIntWarns(t *testing.T) {
	f, _, sink := newFolder(t)
	out := f.ConvertConst(ast.ConstValue{F64: 2.5, Set: true}, types.Double, types.Int, asttest.Loc)
	require.Equal(t, int64(2), out.I64)
	require.Len(t, sink.Warnings(), 1)
}

func TestConvertConstStringLike(t *testing.T) {
	f, _, _ := newFolder(t)

	out := f.ConvertConst(ast.ConstValue{I64: 42, Set: true}, types.Int, types.String, asttest.Loc)
	require.Equal(t, "42", out.Str)

	out = f.ConvertConst(ast.ConstValue{Str: "17", Set: true}, types.String, types.Int, asttest.Loc)
	require.Equal(t, int64(17), out.I64)

	out = f.ConvertConst(ast.ConstValue{Str: "id", Set: true}, types.Name, types.String, asttest.Loc)
	require.Equal(t, "id", out.Str)
}
