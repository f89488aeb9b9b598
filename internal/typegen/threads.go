package typegen

import (
	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/qual"
)

// PropagateThreadSafety enforces the thread_call rule: a
// function marked thread_call must transitively call only functions not
// marked thread_unsafe. The pass first propagates thread_unsafe up
// through the call graph to a fixed point (a caller of an unsafe
// function is itself unsafe), then validates every thread_call function
// against the propagated bits at each of its call sites.
func (g *Gen) PropagateThreadSafety(root *ast.Node) error {
	funcs := collectFuncs(root)

	for changed := true; changed; {
		changed = false
		for _, fn := range funcs {
			if fn.Quals.Has(qual.ThreadUnsafe) {
				continue
			}
			if callsUnsafe(fn) != nil {
				fn.Quals = fn.Quals.With(qual.ThreadUnsafe)
				changed = true
			}
		}
	}

	for _, fn := range funcs {
		if !fn.Quals.Has(qual.ThreadCall) {
			continue
		}
		if site := callsUnsafe(fn); site != nil {
			fd := fn.Extra.(*ast.FuncDecl)
			callee := site.Extra.(*ast.Call).ResolvedFunc.Extra.(*ast.FuncDecl)
			g.diags.Error(diag.KindIllegalExpression, site.Loc,
				"thread_call function %q calls thread_unsafe function %q", fd.Name, callee.Name)
			return errThreadCall(fd.Name, callee.Name)
		}
	}
	return nil
}

func collectFuncs(root *ast.Node) []*ast.Node {
	var out []*ast.Node
	ast.Walk(root, func(n *ast.Node) bool {
		if n.Kind == ast.KFuncDecl {
			out = append(out, n)
		}
		return true
	})
	return out
}

// callsUnsafe returns the first call site within fn's body whose resolved
// callee carries thread_unsafe, or nil.
func callsUnsafe(fn *ast.Node) *ast.Node {
	fd := fn.Extra.(*ast.FuncDecl)
	if fd.Body == nil {
		return nil
	}
	return ast.Find(fd.Body, func(n *ast.Node) bool {
		if n.Kind != ast.KCall {
			return false
		}
		call, ok := n.Extra.(*ast.Call)
		return ok && call.ResolvedFunc != nil && call.ResolvedFunc.Quals.Has(qual.ThreadUnsafe)
	})
}

type threadCallError struct{ caller, callee string }

func (e *threadCallError) Error() string {
	return "thread_call function " + e.caller + " reaches thread_unsafe function " + e.callee
}

func errThreadCall(caller, callee string) error { return &threadCallError{caller, callee} }
