package codegen

import (
	"fmt"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/emit"
	"github.com/lethe-lang/lethe/internal/scope"
)

func (c *Codegen) codegenIf(n *ast.Node) error {
	f := n.Extra.(*ast.If)
	if err := c.Codegen(f.Cond); err != nil {
		return err
	}
	c.pop()
	elseLabel := c.words.NewLabel()
	if _, err := c.words.EmitJumpTo(emit.JZ, elseLabel, c.resolvedLabels); err != nil {
		return err
	}
	if err := c.Codegen(f.Then); err != nil {
		return err
	}
	if f.Else != nil {
		endLabel := c.words.NewLabel()
		if _, err := c.words.EmitJumpTo(emit.JMP, endLabel, c.resolvedLabels); err != nil {
			return err
		}
		if err := c.words.PlaceLabel(elseLabel, c.resolvedLabels); err != nil {
			return err
		}
		if err := c.Codegen(f.Else); err != nil {
			return err
		}
		return c.words.PlaceLabel(endLabel, c.resolvedLabels)
	}
	return c.words.PlaceLabel(elseLabel, c.resolvedLabels)
}

// loopFrame is one entry of the active loop/switch nesting: the
// statement label naming it (empty for unlabelled statements) and the
// emitter labels its break/continue jump to. continueLabel is 0 for
// switch frames, which cannot be continued.
type loopFrame struct {
	name          string
	breakLabel    int
	continueLabel int
}

// findLoopFrame resolves a labelled break/continue to the enclosing
// frame naming it, innermost first.
func (c *Codegen) findLoopFrame(name string) (loopFrame, bool) {
	for i := len(c.loops) - 1; i >= 0; i-- {
		if c.loops[i].name == name {
			return c.loops[i], true
		}
	}
	return loopFrame{}, false
}

// codegenLoop handles KFor/KWhile/KDo uniformly by normalizing into
// (init, cond, post, body, isDo, noBreak).
func (c *Codegen) codegenLoop(n *ast.Node) error {
	var init, cond, post, body, noBreak *ast.Node
	isDo := false
	switch n.Kind {
	case ast.KFor:
		f := n.Extra.(*ast.For)
		init, cond, post, body, noBreak = f.Init, f.Cond, f.Post, f.Body, f.NoBreak
	case ast.KWhile:
		w := n.Extra.(*ast.While)
		cond, body = w.Cond, w.Body
	case ast.KDo:
		d := n.Extra.(*ast.Do)
		cond, body, isDo = d.Cond, d.Body, true
	}

	if init != nil {
		if err := c.Codegen(init); err != nil {
			return err
		}
	}

	startLabel := c.words.NewLabel()
	condLabel := c.words.NewLabel()
	endLabel := c.words.NewLabel()
	continueLabel := c.words.NewLabel()

	prevFor, prevBreak, prevCont := c.currentFor, c.breakTarget, c.continueTarget
	c.currentFor, c.breakTarget, c.continueTarget = fmt.Sprintf("L%d", startLabel), endLabel, continueLabel
	c.loops = append(c.loops, loopFrame{name: c.pendingLoopLabel, breakLabel: endLabel, continueLabel: continueLabel})
	c.pendingLoopLabel = ""
	defer func() {
		c.currentFor, c.breakTarget, c.continueTarget = prevFor, prevBreak, prevCont
		c.loops = c.loops[:len(c.loops)-1]
	}()

	if !isDo {
		if _, err := c.words.EmitJumpTo(emit.JMP, condLabel, c.resolvedLabels); err != nil {
			return err
		}
	}
	if err := c.words.PlaceLabel(startLabel, c.resolvedLabels); err != nil {
		return err
	}
	if err := c.Codegen(body); err != nil {
		return err
	}
	if err := c.words.PlaceLabel(continueLabel, c.resolvedLabels); err != nil {
		return err
	}
	if post != nil {
		if err := c.codegenExprStmtInline(post); err != nil {
			return err
		}
	}
	if err := c.words.PlaceLabel(condLabel, c.resolvedLabels); err != nil {
		return err
	}
	if cond != nil {
		if err := c.Codegen(cond); err != nil {
			return err
		}
		c.pop()
		if _, err := c.words.EmitJumpTo(emit.JNZ, startLabel, c.resolvedLabels); err != nil {
			return err
		}
	} else {
		if _, err := c.words.EmitJumpTo(emit.JMP, startLabel, c.resolvedLabels); err != nil {
			return err
		}
	}
	if noBreak != nil {
		if err := c.Codegen(noBreak); err != nil {
			return err
		}
	}
	return c.words.PlaceLabel(endLabel, c.resolvedLabels)
}

// codegenExprStmtInline runs a bare expression (a for-loop's post clause)
// and drops any residual value, same as codegenExprStmt but without
// requiring a KExprStmt wrapper node.
func (c *Codegen) codegenExprStmtInline(n *ast.Node) error {
	before := c.depth()
	if err := c.Codegen(n); err != nil {
		return err
	}
	if c.depth() > before {
		c.pop()
		if _, err := c.words.Emit(emit.POP, 0); err != nil {
			return err
		}
	}
	return nil
}

func (c *Codegen) codegenSwitch(n *ast.Node) error {
	sw := n.Extra.(*ast.Switch)
	hasTag := sw.Tag != nil
	if hasTag {
		// The tag stays on the VM stack through the dispatch chain; its
		// mirror entry is dropped where the chain emits the no-match POP.
		if err := c.Codegen(sw.Tag); err != nil {
			return err
		}
	}
	endLabel := c.words.NewLabel()
	prevBreak, prevSwitch := c.breakTarget, c.currentSwitch
	c.breakTarget, c.currentSwitch = endLabel, fmt.Sprintf("L%d", endLabel)
	c.loops = append(c.loops, loopFrame{name: c.pendingLoopLabel, breakLabel: endLabel})
	c.pendingLoopLabel = ""
	defer func() {
		c.breakTarget, c.currentSwitch = prevBreak, prevSwitch
		c.loops = c.loops[:len(c.loops)-1]
	}()

	bodyLabels := make([]int, len(n.Children))
	stubLabels := make([]int, len(n.Children))
	for i := range n.Children {
		bodyLabels[i] = c.words.NewLabel()
		stubLabels[i] = c.words.NewLabel()
	}
	defaultIdx := -1

	for i, caseNode := range n.Children {
		cs := caseNode.Extra.(*ast.Case)
		if len(cs.Labels) == 0 {
			defaultIdx = i
			continue
		}
		for _, labelExpr := range cs.Labels {
			if hasTag {
				// DUP tag, push the folded label value, compare, branch.
				if _, err := c.words.Emit(emit.DUP, 0); err != nil {
					return err
				}
				if err := c.emitCaseConst(labelExpr); err != nil {
					return err
				}
				if _, err := c.words.Emit(emit.CEQ, 0); err != nil {
					return err
				}
				if _, err := c.words.EmitJumpTo(emit.JNZ, stubLabels[i], c.resolvedLabels); err != nil {
					return err
				}
				continue
			}
			// switch-true form: each label is a boolean condition.
			before := c.depth()
			if err := c.Codegen(labelExpr); err != nil {
				return err
			}
			if c.depth() > before {
				c.pop()
			}
			if _, err := c.words.EmitJumpTo(emit.JNZ, bodyLabels[i], c.resolvedLabels); err != nil {
				return err
			}
		}
	}

	if hasTag {
		// No label matched: drop the tag before default/exit.
		if _, err := c.words.Emit(emit.POP, 0); err != nil {
			return err
		}
		c.pop()
	}
	noMatch := endLabel
	if defaultIdx >= 0 {
		noMatch = bodyLabels[defaultIdx]
	}
	if _, err := c.words.EmitJumpTo(emit.JMP, noMatch, c.resolvedLabels); err != nil {
		return err
	}

	// Entry stubs drop the dispatch copy of the tag before the body, so
	// fallthrough between adjacent bodies never sees it.
	if hasTag {
		for i, caseNode := range n.Children {
			if len(caseNode.Extra.(*ast.Case).Labels) == 0 {
				continue
			}
			if err := c.words.PlaceLabel(stubLabels[i], c.resolvedLabels); err != nil {
				return err
			}
			if _, err := c.words.Emit(emit.POP, 0); err != nil {
				return err
			}
			if _, err := c.words.EmitJumpTo(emit.JMP, bodyLabels[i], c.resolvedLabels); err != nil {
				return err
			}
		}
	}

	for i, caseNode := range n.Children {
		if err := c.words.PlaceLabel(bodyLabels[i], c.resolvedLabels); err != nil {
			return err
		}
		cs := caseNode.Extra.(*ast.Case)
		for _, stmt := range cs.Body {
			if err := c.Codegen(stmt); err != nil {
				return err
			}
		}
	}
	return c.words.PlaceLabel(endLabel, c.resolvedLabels)
}

// emitCaseConst pushes a case label's folded constant value for the
// dispatch compare. Labels must have been folded before codegen.
func (c *Codegen) emitCaseConst(label *ast.Node) error {
	if !label.Const.Set {
		c.diags.Error(diag.KindIllegalExpression, label.Loc, "switch case label must be a constant expression")
		return fmt.Errorf("non-constant case label at %s", label.Loc)
	}
	v := label.Const.I64
	if v >= int64(emit.MinImmediate) && v <= int64(emit.MaxImmediate) {
		_, err := c.words.Emit(emit.PUSHI, int32(v))
		return err
	}
	_, err := c.words.Emit(emit.PUSHC, int32(c.constpool.PutI64(v)))
	return err
}

func (c *Codegen) codegenBreak(n *ast.Node) error {
	if br, ok := n.Extra.(*ast.Branch); ok && br.Label != "" {
		frame, found := c.findLoopFrame(br.Label)
		if !found {
			return fmt.Errorf("codegen: break label %q does not name an enclosing loop or switch at %s", br.Label, n.Loc)
		}
		_, err := c.words.EmitJumpTo(emit.JMP, frame.breakLabel, c.resolvedLabels)
		return err
	}
	if c.breakTarget == 0 {
		return fmt.Errorf("codegen: break outside loop/switch at %s", n.Loc)
	}
	_, err := c.words.EmitJumpTo(emit.JMP, c.breakTarget, c.resolvedLabels)
	return err
}

func (c *Codegen) codegenContinue(n *ast.Node) error {
	if br, ok := n.Extra.(*ast.Branch); ok && br.Label != "" {
		frame, found := c.findLoopFrame(br.Label)
		if !found {
			return fmt.Errorf("codegen: continue label %q does not name an enclosing loop at %s", br.Label, n.Loc)
		}
		if frame.continueLabel == 0 {
			return fmt.Errorf("codegen: continue label %q names a switch, not a loop at %s", br.Label, n.Loc)
		}
		_, err := c.words.EmitJumpTo(emit.JMP, frame.continueLabel, c.resolvedLabels)
		return err
	}
	if c.continueTarget == 0 {
		return fmt.Errorf("codegen: continue outside loop at %s", n.Loc)
	}
	_, err := c.words.EmitJumpTo(emit.JMP, c.continueTarget, c.resolvedLabels)
	return err
}

func (c *Codegen) codegenGoto(n *ast.Node) error {
	br := n.Extra.(*ast.Branch)
	label, ok := c.gotoLabels[br.Label]
	if !ok {
		label = c.words.NewLabel()
		c.gotoLabels[br.Label] = label
	}
	_, err := c.words.EmitJumpTo(emit.JMP, label, c.resolvedLabels)
	return err
}

func (c *Codegen) codegenLabel(n *ast.Node) error {
	lbl := n.Extra.(*ast.Label)
	label, ok := c.gotoLabels[lbl.Name]
	if !ok {
		label = c.words.NewLabel()
		c.gotoLabels[lbl.Name] = label
	}
	if err := c.words.PlaceLabel(label, c.resolvedLabels); err != nil {
		return err
	}
	if len(n.Children) == 1 {
		child := n.Children[0]
		switch child.Kind {
		case ast.KFor, ast.KWhile, ast.KDo, ast.KSwitch:
			// The label names the statement itself; hand it to the loop/
			// switch frame so labelled break/continue can find it.
			c.pendingLoopLabel = lbl.Name
		}
		return c.Codegen(child)
	}
	return nil
}

func (c *Codegen) codegenReturn(n *ast.Node) error {
	if len(n.Children) == 1 {
		if c.scope != nil && c.scope.NRVOVar != "" {
			// NRVO: the value was already constructed directly into the
			// return slot: nothing to move.
			if err := c.codegenExprStmtInline(n.Children[0]); err != nil {
				return err
			}
		} else {
			if err := c.Codegen(n.Children[0]); err != nil {
				return err
			}
			c.pop()
		}
	}
	_, err := c.words.Emit(emit.RET, 0)
	return err
}

func (c *Codegen) codegenTernary(n *ast.Node) error {
	if len(n.Children) != 3 {
		return fmt.Errorf("codegen: malformed ternary at %s", n.Loc)
	}
	if err := c.Codegen(n.Children[0]); err != nil {
		return err
	}
	c.pop()
	elseLabel := c.words.NewLabel()
	endLabel := c.words.NewLabel()
	if _, err := c.words.EmitJumpTo(emit.JZ, elseLabel, c.resolvedLabels); err != nil {
		return err
	}
	if err := c.Codegen(n.Children[1]); err != nil {
		return err
	}
	c.pop()
	if _, err := c.words.EmitJumpTo(emit.JMP, endLabel, c.resolvedLabels); err != nil {
		return err
	}
	if err := c.words.PlaceLabel(elseLabel, c.resolvedLabels); err != nil {
		return err
	}
	if err := c.Codegen(n.Children[2]); err != nil {
		return err
	}
	c.pop()
	if err := c.words.PlaceLabel(endLabel, c.resolvedLabels); err != nil {
		return err
	}
	c.push(n.ResolvedType)
	return nil
}

func (c *Codegen) codegenDefer(n *ast.Node) error {
	if s, ok := n.ScopeRef.(*scope.Scope); ok && len(n.Children) == 1 {
		s.PushDeferred(n.Children[0])
		return nil
	}
	return fmt.Errorf("codegen: defer statement missing enclosing scope at %s", n.Loc)
}

// checkFlow reports a function with a non-void return type whose body
// has a path that falls off the end without returning. The check is
// structural, over the AST (bodyAlwaysReturns); the emitted PCs are not
// scanned.
func (c *Codegen) checkFlow(decl *ast.Node) error {
	fd := decl.Extra.(*ast.FuncDecl)
	if fd.ReturnType == nil {
		return nil
	}
	if !bodyAlwaysReturns(fd.Body) {
		c.diags.Error(diag.KindNotAllPathsReturn, decl.Loc, "not every path in %q returns a value", fd.Name)
		return fmt.Errorf("not all paths return a value in %q", fd.Name)
	}
	return nil
}

// bodyAlwaysReturns is the structural half of the flow check:
// a conservative, AST-level approximation (every statement-path ends in
// return/goto or an if/else where both arms always return) rather than
// scanning raw PCs, sufficient for the well-structured control flow the
// grammar allows (no arbitrary computed jumps).
func bodyAlwaysReturns(n *ast.Node) bool {
	if n == nil {
		return false
	}
	switch n.Kind {
	case ast.KReturn, ast.KGoto:
		return true
	case ast.KBlock:
		for i := len(n.Children) - 1; i >= 0; i-- {
			if bodyAlwaysReturns(n.Children[i]) {
				return true
			}
			if !isPureDecl(n.Children[i]) {
				return false
			}
		}
		return false
	case ast.KIf:
		f := n.Extra.(*ast.If)
		return f.Else != nil && bodyAlwaysReturns(f.Then) && bodyAlwaysReturns(f.Else)
	case ast.KSwitch:
		hasDefault := false
		for _, caseNode := range n.Children {
			cs := caseNode.Extra.(*ast.Case)
			if len(cs.Labels) == 0 {
				hasDefault = true
			}
			if len(cs.Body) == 0 || !bodyAlwaysReturns(cs.Body[len(cs.Body)-1]) {
				return false
			}
		}
		return hasDefault
	case ast.KLabel:
		if len(n.Children) == 1 {
			return bodyAlwaysReturns(n.Children[0])
		}
		return false
	default:
		return false
	}
}

// isPureDecl reports whether n is a declaration/no-op statement that
// doesn't itself terminate control flow, so a trailing block of such
// statements after a non-returning tail still means "falls through".
func isPureDecl(n *ast.Node) bool {
	switch n.Kind {
	case ast.KVarDecl, ast.KVarDeclList, ast.KExprStmt:
		return true
	default:
		return false
	}
}
