package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/asttest"
	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/qual"
	"github.com/lethe-lang/lethe/internal/types"
)

func TestMain(m *testing.M) {
	if err := Init(); err != nil {
		panic(err)
	}
	code := m.Run()
	if err := Done(); err != nil {
		panic(err)
	}
	os.Exit(code)
}

func TestInitTwiceRejected(t *testing.T) {
	require.Error(t, Init()) // TestMain already initialized
}

// buildDivProgram assembles the AST equivalent of
//
//	native int div(int a, int b);
//	void main() { div(125, 3); }
func buildDivProgram(tbl *types.Table) (*ast.Node, *ast.Node) {
	intT := asttest.TypeName(tbl.Builtin(types.Int))
	div := asttest.Func("div", intT, nil,
		asttest.ParamOf(tbl, "a", types.Int),
		asttest.ParamOf(tbl, "b", types.Int))
	div.Quals = div.Quals.With(qual.Native)

	call := ast.NewNode(ast.KCall, asttest.Loc, &ast.Call{})
	call.AddChild(asttest.Ident("div"))
	call.AddChild(asttest.IntLit(tbl, 125))
	call.AddChild(asttest.IntLit(tbl, 3))

	main := asttest.Func("main", nil, asttest.Block(asttest.ExprStmt(call)))
	return asttest.Program(div, main), call
}

func newLinkedEngine(t *testing.T, opts Options) (*Engine, *Program) {
	t.Helper()
	eng, err := New(opts, nil)
	require.NoError(t, err)
	require.NoError(t, eng.BindNativeFunction("div", []int{4, 4}, 4))

	tbl := types.NewTable()
	root, _ := buildDivProgram(tbl)
	require.NoError(t, eng.CompileAST(root, "main.lethe", []byte("native int div(int a, int b); void main() { div(125, 3); }")))

	prog, err := eng.Link()
	require.NoError(t, err)
	return eng, prog
}

func TestLinkProducesSymbolsAndNatives(t *testing.T) {
	_, prog := newLinkedEngine(t, Options{})

	_, err := prog.EntryPC("main")
	require.NoError(t, err)
	require.Equal(t, []string{"div"}, prog.NativeFuncs)
	require.NotEmpty(t, prog.Code)

	_, err = prog.EntryPC("missing")
	require.Error(t, err)
}

func TestLinkIsIdempotent(t *testing.T) {
	eng, prog := newLinkedEngine(t, Options{})
	again, err := eng.Link()
	require.NoError(t, err)
	require.Same(t, prog, again)

	// No more units once linked.
	require.Error(t, eng.CompileAST(asttest.Program(), "late.lethe", nil))
}

func TestLinkNothingToDo(t *testing.T) {
	eng, err := New(Options{}, nil)
	require.NoError(t, err)
	_, err = eng.Link()
	require.Error(t, err)
}

func TestLinkReportsResolveErrors(t *testing.T) {
	eng, err := New(Options{}, nil)
	require.NoError(t, err)

	var seen []diag.Diagnostic
	eng.SetDiagnosticCallback(func(d diag.Diagnostic) { seen = append(seen, d) })

	root := asttest.Program(asttest.ExprStmt(asttest.Ident("nope")))
	require.NoError(t, eng.CompileAST(root, "bad.lethe", nil))
	_, err = eng.Link()
	require.Error(t, err)
	require.NotEmpty(t, seen)
	require.Equal(t, diag.KindUnknownSymbol, seen[0].Kind)
	require.Equal(t, "test.lethe", seen[0].Loc.File)
}

func TestLinkTypeGenComposite(t *testing.T) {
	eng, err := New(Options{}, nil)
	require.NoError(t, err)

	tbl := types.NewTable()
	decl := asttest.Composite("vec", "", false,
		asttest.Var("x", asttest.TypeName(tbl.Builtin(types.Float)), nil),
		asttest.Var("y", asttest.TypeName(tbl.Builtin(types.Float)), nil),
		asttest.Var("z", asttest.TypeName(tbl.Builtin(types.Float)), nil),
	)
	root := asttest.Program(decl)
	require.NoError(t, eng.CompileAST(root, "vec.lethe", nil))
	_, err = eng.Link()
	require.NoError(t, err)

	dt := decl.Extra.(*ast.CompositeDecl).Resolved
	require.NotNil(t, dt)
	require.Equal(t, 12, dt.Size)
	require.Equal(t, 4, dt.Members[1].ByteOffset)
}

func TestLinkClassDescriptors(t *testing.T) {
	eng, err := New(Options{}, nil)
	require.NoError(t, err)

	tbl := types.NewTable()
	decl := asttest.Composite("Actor", "", true,
		asttest.Var("hp", asttest.TypeName(tbl.Builtin(types.Int)), nil))
	root := asttest.Program(decl)
	require.NoError(t, eng.CompileAST(root, "actor.lethe", nil))
	prog, err := eng.Link()
	require.NoError(t, err)

	require.Len(t, prog.Classes, 1)
	require.Equal(t, "Actor", prog.Classes[0].Name)
	require.Equal(t, 1, prog.Classes[0].VtblSize) // dtor slot only
}

func TestLinkRecursiveBaseRejected(t *testing.T) {
	eng, err := New(Options{}, nil)
	require.NoError(t, err)

	a := asttest.Composite("A", "B", true)
	b := asttest.Composite("B", "A", true)
	root := asttest.Program(a, b)
	require.NoError(t, eng.CompileAST(root, "cycle.lethe", nil))
	_, err = eng.Link()
	require.Error(t, err)
}

func TestLinkUsesCache(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.db")

	_, first := newLinkedEngine(t, Options{CachePath: cachePath})

	// A fresh engine over byte-identical sources links from the cache.
	eng2, err := New(Options{CachePath: cachePath}, nil)
	require.NoError(t, err)
	tbl := types.NewTable()
	root, _ := buildDivProgram(tbl)
	require.NoError(t, eng2.CompileAST(root, "main.lethe", []byte("native int div(int a, int b); void main() { div(125, 3); }")))
	second, err := eng2.Link()
	require.NoError(t, err)

	require.Equal(t, first.Code, second.Code)
	require.Equal(t, first.Symbols, second.Symbols)
	require.Equal(t, first.NativeFuncs, second.NativeFuncs)
}

func TestMetricsCollect(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	eng, err := New(Options{}, nil)
	require.NoError(t, err)
	eng.SetMetrics(m)

	tbl := types.NewTable()
	root, _ := buildDivProgram(tbl)
	require.NoError(t, eng.BindNativeFunction("div", []int{4, 4}, 4))
	require.NoError(t, eng.CompileAST(root, "main.lethe", nil))
	_, err = eng.Link()
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["lethe_compiles_total"])
	require.True(t, names["lethe_pass_duration_seconds"])
}

func TestLinkEmitsDebugInfo(t *testing.T) {
	eng, err := New(Options{EmitDebugInfo: true}, nil)
	require.NoError(t, err)
	require.NoError(t, eng.BindNativeFunction("div", []int{4, 4}, 4))
	tbl := types.NewTable()
	root, _ := buildDivProgram(tbl)
	require.NoError(t, eng.CompileAST(root, "main.lethe", nil))
	prog, err := eng.Link()
	require.NoError(t, err)

	require.NotNil(t, prog.Debug)
	require.Equal(t, []string{"main.lethe"}, prog.Debug.Documents)
	pc, _ := prog.EntryPC("main")
	p, ok := prog.Debug.Lookup(pc)
	require.True(t, ok)
	require.Equal(t, asttest.Loc.Line, p.Line)
}

func TestCompileBufferRequiresParser(t *testing.T) {
	eng, err := New(Options{}, nil)
	require.NoError(t, err)
	require.Error(t, eng.CompileBuffer([]byte("void main() {}"), "main.lethe"))

	eng.SetParser(func(source []byte, name string) (*ast.Node, error) {
		return asttest.Program(), nil
	})
	require.NoError(t, eng.CompileBuffer([]byte("void main() {}"), "main.lethe"))
}
