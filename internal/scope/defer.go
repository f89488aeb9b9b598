package scope

import "github.com/lethe-lang/lethe/internal/ast"

// deferredEntry is one statement queued by a `defer` inside this scope,
// run in reverse order when the scope is exited normally or via an early
// return/break.
type deferredEntry struct {
	stmt *ast.Node
}

// PushDeferred records stmt as the next deferred statement owned by s.
func (s *Scope) PushDeferred(stmt *ast.Node) {
	s.deferred = append(s.deferred, deferredEntry{stmt: stmt})
}

// DeferredStatements returns s's own deferred statements in LIFO (run)
// order, i.e. reverse declaration order.
func (s *Scope) DeferredStatements() []*ast.Node {
	out := make([]*ast.Node, len(s.deferred))
	for i, e := range s.deferred {
		out[len(s.deferred)-1-i] = e.stmt
	}
	return out
}

// DeferredTop returns the deferred-statement count recorded by the last
// ResetDeferredTop call (0 before any). genScopeDestructors in
// internal/codegen does not consult it and emits every deferred
// statement of the scope.
func (s *Scope) DeferredTop() int { return s.deferredTop }

// ResetDeferredTop sets the checkpoint to the current deferred count.
func (s *Scope) ResetDeferredTop() { s.deferredTop = len(s.deferred) }
