package codegen

import (
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/require"

	"github.com/lethe-lang/lethe/internal/asttest"
	"github.com/lethe-lang/lethe/internal/emit"
	"github.com/lethe-lang/lethe/internal/types"
)

// requireDisasm compares the emitted stream against a golden listing,
// printing a unified diff (and the offending AST) on mismatch.
func requireDisasm(t *testing.T, c *Codegen, want []string, tree interface{}) {
	t.Helper()
	got := emit.Disasm(c.Words().Bytes())
	if len(got) == len(want) {
		match := true
		for i := range got {
			if !strings.Contains(got[i], want[i]) {
				match = false
				break
			}
		}
		if match {
			return
		}
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        want,
		B:        got,
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	})
	t.Fatalf("disassembly mismatch:\n%s\nAST:\n%s", diff, spew.Sdump(tree))
}

func TestGoldenBinaryExpression(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	n := asttest.Bin("*", asttest.IntLit(tbl, 6), asttest.IntLit(tbl, 7))
	n.ResolvedType = types.Q(tbl.Builtin(types.Int), 0)
	require.NoError(t, c.Codegen(n))

	requireDisasm(t, c, []string{"pushi", "pushi", "mul"}, n)
}

func TestGoldenIfElse(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	n := asttest.If(asttest.IntLit(tbl, 1),
		asttest.Block(asttest.ExprStmt(asttest.IntLit(tbl, 10))),
		asttest.Block(asttest.ExprStmt(asttest.IntLit(tbl, 20))))
	require.NoError(t, c.Codegen(n))

	requireDisasm(t, c, []string{
		"pushi", // cond
		"jz",
		"pushi", // then
		"pop",
		"jmp",
		"pushi", // else
		"pop",
	}, n)
}

func TestGoldenWhile(t *testing.T) {
	c, tbl, _ := newCodegen(t)
	loop := asttest.While(asttest.IntLit(tbl, 1),
		asttest.Block(asttest.ExprStmt(asttest.IntLit(tbl, 0))))
	require.NoError(t, c.Codegen(loop))

	requireDisasm(t, c, []string{
		"jmp",   // enter at the condition
		"pushi", // body
		"pop",
		"pushi", // cond
		"jnz",
	}, loop)
}
