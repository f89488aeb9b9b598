package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/asttest"
	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/emit"
	"github.com/lethe-lang/lethe/internal/qual"
	"github.com/lethe-lang/lethe/internal/scope"
	"github.com/lethe-lang/lethe/internal/types"
)

const wordSize = 8

func newCodegen(t *testing.T) (*Codegen, *types.Table, *diag.Sink) {
	t.Helper()
	tbl := types.NewTable()
	sink := diag.NewSink(nil, nil)
	return New(tbl, sink, zap.NewNop().Sugar(), wordSize), tbl, sink
}

func disasm(c *Codegen) string {
	return strings.Join(emit.Disasm(c.Words().Bytes()), "\n")
}

func TestCodegenLiteralPushes(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	lit := asttest.IntLit(tbl, 41)
	require.NoError(t, c.Codegen(lit))
	require.Equal(t, 1, c.depth())
	require.Contains(t, disasm(c), "pushi")
}

func TestCodegenLargeLiteralUsesPool(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	lit := asttest.IntLit(tbl, 1<<30)
	require.NoError(t, c.Codegen(lit))
	require.Contains(t, disasm(c), "pushc")
	require.Greater(t, c.ConstPool().Len(), 0)
}

func TestCodegenBinaryBalanced(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	n := asttest.Bin("+", asttest.IntLit(tbl, 2), asttest.IntLit(tbl, 3))
	n.ResolvedType = types.Q(tbl.Builtin(types.Int), 0)

	before := c.depth()
	require.NoError(t, c.Codegen(n))
	require.Equal(t, before+1, c.depth()) // two pushes collapse to one result
	d := disasm(c)
	require.Contains(t, d, "add")
}

func TestCodegenLogicalNot(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	n := asttest.Un("!", asttest.IntLit(tbl, 5))
	n.ResolvedType = types.Q(tbl.Builtin(types.Bool), 0)
	require.NoError(t, c.Codegen(n))
	require.Equal(t, 1, c.depth())

	// CEQ is a two-operand compare everywhere else; logical not supplies
	// the explicit false operand rather than underflowing it.
	d := emit.Disasm(c.Words().Bytes())
	require.Len(t, d, 3)
	require.Contains(t, d[0], "pushi")
	require.Contains(t, d[0], "5")
	require.Contains(t, d[1], "pushi")
	require.Contains(t, d[1], "0")
	require.Contains(t, d[2], "ceq")
}

func TestCodegenExprStmtPopsResidual(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	stmt := asttest.ExprStmt(asttest.IntLit(tbl, 9))
	before := c.depth()
	require.NoError(t, c.Codegen(stmt))
	require.True(t, c.StackBalanced(before))
	require.Contains(t, disasm(c), "pop")
}

func TestCodegenIfPlacesAllLabels(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	cond := asttest.IntLit(tbl, 1)
	then := asttest.Block(asttest.ExprStmt(asttest.IntLit(tbl, 1)))
	els := asttest.Block(asttest.ExprStmt(asttest.IntLit(tbl, 2)))
	require.NoError(t, c.Codegen(asttest.If(cond, then, els)))

	require.Empty(t, c.Words().Unresolved())
	d := disasm(c)
	require.Contains(t, d, "jz")
	require.Contains(t, d, "jmp")
}

func TestCodegenWhileLoop(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	body := asttest.Block(asttest.ExprStmt(asttest.IntLit(tbl, 0)))
	loop := asttest.While(asttest.IntLit(tbl, 1), body)
	before := c.depth()
	require.NoError(t, c.Codegen(loop))
	require.True(t, c.StackBalanced(before))
	require.Empty(t, c.Words().Unresolved())
	require.Contains(t, disasm(c), "jnz")
}

func TestCodegenTernary(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	n := asttest.Ternary(asttest.IntLit(tbl, 1), asttest.IntLit(tbl, 10), asttest.IntLit(tbl, 20))
	n.ResolvedType = types.Q(tbl.Builtin(types.Int), 0)
	require.NoError(t, c.Codegen(n))
	require.Equal(t, 1, c.depth())
	require.Empty(t, c.Words().Unresolved())
}

func TestCodegenVoidFuncEmitsRet(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	fn := asttest.Func("noop", nil, asttest.Block(asttest.ExprStmt(asttest.IntLit(tbl, 1))))
	require.NoError(t, c.codegenFunc(fn))
	require.Contains(t, disasm(c), "ret")
	require.Contains(t, c.Funcs(), "noop")
}

func TestCodegenFlowErrorNonVoid(t *testing.T) {
	c, tbl, sink := newCodegen(t)
	intT := asttest.TypeName(tbl.Builtin(types.Int))
	// Only the then-branch returns; the else path falls off the end.
	body := asttest.Block(asttest.If(asttest.IntLit(tbl, 1), asttest.Ret(asttest.IntLit(tbl, 1)), nil))
	fn := asttest.Func("bad", intT, body)

	require.Error(t, c.codegenFunc(fn))
	require.Contains(t, sink.Err().Error(), string(diag.KindNotAllPathsReturn))
}

func TestCodegenFlowAcceptsIfElseReturn(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	intT := asttest.TypeName(tbl.Builtin(types.Int))
	body := asttest.Block(asttest.If(asttest.IntLit(tbl, 1),
		asttest.Ret(asttest.IntLit(tbl, 1)),
		asttest.Ret(asttest.IntLit(tbl, 2))))
	fn := asttest.Func("good", intT, body)
	require.NoError(t, c.codegenFunc(fn))
}

func TestCodegenDeprecatedCallWarns(t *testing.T) {
	c, tbl, sink := newCodegen(t)
	old := asttest.Func("legacy", nil, nil)
	old.Quals = old.Quals.With(qual.Native).With(qual.Deprecated)
	old.MarkResolved()

	call := asttest.Call(old)
	call.ResolvedType = types.Q(tbl.Builtin(types.Void), 0)
	require.NoError(t, c.Codegen(call))

	require.Len(t, sink.Warnings(), 1)
	require.Equal(t, diag.KindDeprecatedCall, sink.Warnings()[0].Kind)
	require.Contains(t, disasm(c), "calln")
}

func TestCodegenNativeCallArgsRightToLeft(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	intT := asttest.TypeName(tbl.Builtin(types.Int))
	div := asttest.Func("div", intT, nil,
		ast.Param{Name: "a", TypeNode: intT}, ast.Param{Name: "b", TypeNode: intT})
	div.Quals = div.Quals.With(qual.Native)
	div.MarkResolved()

	call := asttest.Call(div, asttest.IntLit(tbl, 125), asttest.IntLit(tbl, 3))
	call.ResolvedType = types.Q(tbl.Builtin(types.Int), 0)
	require.NoError(t, c.Codegen(call))

	d := emit.Disasm(c.Words().Bytes())
	// Right-to-left: 3 is pushed before 125.
	require.Contains(t, d[0], "pushi")
	require.Contains(t, d[0], "3")
	require.Contains(t, d[1], "125")
	require.Contains(t, d[2], "calln")
	require.Equal(t, []string{"div"}, c.ConstPool().NativeFuncs)
}

func TestCodegenVirtualCallUsesSlot(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	m := asttest.Func("walk", nil, nil)
	m.Quals = m.Quals.With(qual.Virtual)
	m.Extra.(*ast.FuncDecl).VtblIndex = 2
	m.MarkResolved()

	call := asttest.Call(m)
	call.ResolvedType = types.Q(tbl.Builtin(types.Void), 0)
	require.NoError(t, c.Codegen(call))
	require.Contains(t, disasm(c), "callv")
}

func TestCodegenScopeDestructors(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	res, err := tbl.DeclareStruct("res", false)
	require.NoError(t, err)
	res.Size, res.Align, res.HasDtor = 8, 8, true
	res.FunDtor = 100

	s := scope.New(scope.KindLocal)
	s.AllocVar(types.Q(res, 0), true)
	s.AllocVar(types.Q(tbl.Builtin(types.Int), 0), true) // no dtor, skipped

	block := asttest.Block()
	block.ScopeRef = s
	require.NoError(t, c.Codegen(block))

	d := disasm(c)
	require.Equal(t, 1, strings.Count(d, "dtor"))
}

func TestCodegenSkipDtorSuppressesTeardown(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	res, err := tbl.DeclareStruct("res", false)
	require.NoError(t, err)
	res.Size, res.Align, res.HasDtor = 8, 8, true
	res.FunDtor = 100

	s := scope.New(scope.KindLocal)
	s.AllocVar(types.Q(res, qual.Set(0).With(qual.SkipDtor)), true)

	block := asttest.Block()
	block.ScopeRef = s
	require.NoError(t, c.Codegen(block))
	require.NotContains(t, disasm(c), "dtor")
}

func TestCodegenDeferRunsAtScopeExit(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	s := scope.New(scope.KindLocal)

	deferred := ast.NewNode(ast.KDefer, asttest.Loc, &ast.Defer{})
	deferred.AddChild(asttest.ExprStmt(asttest.IntLit(tbl, 7)))
	deferred.ScopeRef = s

	block := asttest.Block(deferred)
	block.ScopeRef = s
	require.NoError(t, c.Codegen(block))

	// The deferred statement's push shows up once, at scope exit.
	require.Equal(t, 1, strings.Count(disasm(c), "pushi"))
}

func TestEmitConvNumeric(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	n := asttest.IntLit(tbl, 1)
	require.NoError(t, c.Codegen(n))
	from := types.Q(tbl.Builtin(types.Int), 0)
	to := types.Q(tbl.Builtin(types.Double), 0)
	require.NoError(t, c.EmitConv(n, from, to))

	require.Contains(t, disasm(c), "conv")
	require.Same(t, tbl.Builtin(types.Double), c.top().Type)
}

func TestEmitConvArrayRefWrap(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	dyn, ref := tbl.DynamicArrayOf(tbl.Builtin(types.Int), wordSize)
	n := asttest.Ident("xs")
	n.ResolvedType = types.Q(dyn, 0)
	c.push(n.ResolvedType)

	require.NoError(t, c.EmitConv(n, types.Q(dyn, 0), types.Q(ref, 0)))
	require.Contains(t, disasm(c), "wrapref")
	require.Same(t, ref, c.top().Type)
}

func TestEmitConvRejectsIncompatible(t *testing.T) {
	c, tbl, sink := newCodegen(t)
	cls, err := tbl.DeclareStruct("Actor", true)
	require.NoError(t, err)
	n := asttest.IntLit(tbl, 1)
	c.push(n.ResolvedType)

	err = c.EmitConv(n, types.Q(tbl.Builtin(types.Int), 0), types.Q(cls, 0))
	require.Error(t, err)
	require.True(t, sink.HasErrors())
}

func TestEmitConvPointerUpcast(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	base, err := tbl.DeclareStruct("Base", true)
	require.NoError(t, err)
	der, err := tbl.DeclareStruct("Der", true)
	require.NoError(t, err)
	der.BaseType = base

	ds, _, _, err := tbl.PointerFamily(der, wordSize)
	require.NoError(t, err)
	bs, _, _, err := tbl.PointerFamily(base, wordSize)
	require.NoError(t, err)

	n := asttest.Ident("p")
	c.push(types.Q(ds, 0))
	require.NoError(t, c.EmitConv(n, types.Q(ds, 0), types.Q(bs, 0)))
	require.Same(t, bs, c.top().Type)

	// Downcast has no implicit conversion.
	c.push(types.Q(bs, 0))
	require.Error(t, c.EmitConv(n, types.Q(bs, 0), types.Q(ds, 0)))
}

func TestCodegenBigEndianAdjust(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	c.SetBigEndian(true)

	shortT := asttest.TypeName(tbl.Builtin(types.Short))
	fn := asttest.Func("peek", nil, nil, ast.Param{Name: "v", TypeNode: shortT})
	fn.Quals = fn.Quals.With(qual.Native)
	fn.MarkResolved()

	arg := asttest.IntLit(tbl, 1)
	arg.ResolvedType = types.Q(tbl.Builtin(types.Short), 0)
	call := asttest.Call(fn, arg)
	call.ResolvedType = types.Q(tbl.Builtin(types.Void), 0)
	require.NoError(t, c.Codegen(call))
	require.Contains(t, disasm(c), "bswap16")
}
