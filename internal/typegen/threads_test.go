package typegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/asttest"
	"github.com/lethe-lang/lethe/internal/qual"
	"github.com/lethe-lang/lethe/internal/types"
)

func callTo(target *ast.Node) *ast.Node {
	return asttest.ExprStmt(asttest.Call(target))
}

func TestThreadUnsafePropagatesUp(t *testing.T) {
	g, tbl, _ := newGen(t)
	void := asttest.TypeName(tbl.Builtin(types.Void))

	unsafe := asttest.Func("touchGlobals", void, asttest.Block())
	unsafe.Quals = unsafe.Quals.With(qual.ThreadUnsafe)

	mid := asttest.Func("mid", void, asttest.Block(callTo(unsafe)))
	top := asttest.Func("top", void, asttest.Block(callTo(mid)))

	root := asttest.Program(unsafe, mid, top)
	require.NoError(t, g.PropagateThreadSafety(root))

	require.True(t, mid.Quals.Has(qual.ThreadUnsafe))
	require.True(t, top.Quals.Has(qual.ThreadUnsafe))
}

func TestThreadCallRejectsUnsafeReach(t *testing.T) {
	g, tbl, sink := newGen(t)
	void := asttest.TypeName(tbl.Builtin(types.Void))

	unsafe := asttest.Func("touchGlobals", void, asttest.Block())
	unsafe.Quals = unsafe.Quals.With(qual.ThreadUnsafe)
	mid := asttest.Func("mid", void, asttest.Block(callTo(unsafe)))

	entry := asttest.Func("tick", void, asttest.Block(callTo(mid)))
	entry.Quals = entry.Quals.With(qual.ThreadCall)

	root := asttest.Program(unsafe, mid, entry)
	require.Error(t, g.PropagateThreadSafety(root))
	require.True(t, sink.HasErrors())
}

func TestThreadCallCleanGraphPasses(t *testing.T) {
	g, tbl, _ := newGen(t)
	void := asttest.TypeName(tbl.Builtin(types.Void))

	helper := asttest.Func("helper", void, asttest.Block())
	entry := asttest.Func("tick", void, asttest.Block(callTo(helper)))
	entry.Quals = entry.Quals.With(qual.ThreadCall)

	root := asttest.Program(helper, entry)
	require.NoError(t, g.PropagateThreadSafety(root))
	require.False(t, entry.Quals.Has(qual.ThreadUnsafe))
}
