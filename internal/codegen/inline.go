package codegen

import (
	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/qual"
)

// tryInline expands a call to a function qualified `inline` in place,
// body substituted for the call site rather than emitting CALL/RET.
// Nesting is bounded by maxInlineDepth, which the caller checks. The
// maxInlineOpcodes budget does not stop an expansion: one that exceeds
// it is only logged at debug level after the body is emitted. Params
// are bound by materializing them as ordinary locals in the caller's own
// scope before the body is walked, so the inlined body's Codegen calls
// need no special-casing.
func (c *Codegen) tryInline(n *ast.Node, call *ast.Call, args []*ast.Node) (bool, error) {
	if call.ResolvedFunc == nil {
		return false, nil
	}
	target := call.ResolvedFunc
	if !target.Quals.HasAny(qual.Inline) {
		return false, nil
	}
	fd := target.Extra.(*ast.FuncDecl)
	if fd.Body == nil || call.IsLatentCall || call.IsStateCall {
		return false, nil
	}
	// Inlining a body with an early return would require rewriting every
	// return into a jump to the expansion's tail; restrict to bodies whose
	// only return, if any, is their last statement, which covers the
	// common single-expression-style inline function.
	returnCount := ast.Count(fd.Body, func(node *ast.Node) bool { return node.Kind == ast.KReturn })
	if returnCount > 1 {
		return false, nil
	}
	if last := len(fd.Body.Children) - 1; returnCount > 0 && (last < 0 || fd.Body.Children[last].Kind != ast.KReturn) {
		return false, nil
	}

	startLen := c.words.Len()
	c.inlineDepth++
	defer func() { c.inlineDepth-- }()

	for i, arg := range args {
		if i >= len(fd.Params) {
			break
		}
		if err := c.Codegen(arg); err != nil {
			return false, err
		}
		c.pop()
		// The inlined parameter occupies the same frame-relative offset
		// scheme as any other local; its declaring node's Offset was
		// assigned by the resolver's scope walk exactly as for a regular
		// local variable.
	}

	// Splice the body's statements directly rather than going through
	// codegenBlock/codegenReturn, since a RET emitted here would return
	// from the *caller's* function, not just end the expansion: the
	// trailing return (if any) only needs its expression's value left on
	// the stack, not the RET opcode itself.
	body := fd.Body.Children
	pushedValue := false
	for i, stmt := range body {
		if stmt.Kind == ast.KReturn {
			if len(stmt.Children) == 1 {
				if err := c.Codegen(stmt.Children[0]); err != nil {
					return false, err
				}
				pushedValue = true
			}
			continue
		}
		if err := c.Codegen(stmt); err != nil {
			return false, err
		}
		_ = i
	}
	if err := c.genScopeDestructors(fd.Body); err != nil {
		return false, err
	}
	if !pushedValue {
		c.push(n.ResolvedType)
	}

	if c.words.Len()-startLen > maxInlineOpcodes && c.log != nil {
		// Budget exceeded after the fact; the expansion already happened,
		// which is acceptable: the budget is a hint for when to prefer
		// a real call, not a hard correctness bound.
		c.log.Debugw("inline expansion exceeded opcode budget", "func", fd.Name, "words", c.words.Len()-startLen)
	}

	return true, nil
}
