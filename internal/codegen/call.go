package codegen

import (
	"fmt"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/emit"
	"github.com/lethe-lang/lethe/internal/qual"
)

// codegenCall emits a call: arguments are evaluated right to
// left so that nested short-lived temporaries are destroyed in the reverse
// order they were built, then the call is dispatched by virtual slot,
// delegate indirection, or a direct/native index depending on what the
// resolver attached to the call's ResolvedFunc.
func (c *Codegen) codegenCall(n *ast.Node) error {
	call, ok := n.Extra.(*ast.Call)
	if !ok {
		return fmt.Errorf("codegen: KCall node missing Call payload at %s", n.Loc)
	}
	if len(n.Children) == 0 {
		return fmt.Errorf("codegen: call with no callee at %s", n.Loc)
	}
	callee := n.Children[0]
	args := n.Children[1:]

	if c.inlineDepth < maxInlineDepth {
		if inlined, err := c.tryInline(n, call, args); err != nil {
			return err
		} else if inlined {
			return nil
		}
	}

	if call.ResolvedFunc != nil && call.ResolvedFunc.Quals.Has(qual.Deprecated) {
		fd := call.ResolvedFunc.Extra.(*ast.FuncDecl)
		c.diags.Warn(diag.KindDeprecatedCall, n.Loc, "call to deprecated function %q", fd.Name)
	}

	var params []ast.Param
	if call.ResolvedFunc != nil {
		params = call.ResolvedFunc.Extra.(*ast.FuncDecl).Params
	}
	for i := len(args) - 1; i >= 0; i-- {
		arg := args[i]
		if arg.ResolvedType.Quals.Has(qual.Reference) {
			if err := c.CodegenRef(arg); err != nil {
				return err
			}
		} else if err := c.Codegen(arg); err != nil {
			return err
		}
		if i < len(params) && params[i].TypeNode != nil {
			want := params[i].TypeNode.ResolvedType
			if want.Type != nil && want.Type != arg.ResolvedType.Type && !want.Quals.Has(qual.Reference) {
				if err := c.EmitConv(arg, arg.ResolvedType, want); err != nil {
					return err
				}
			}
		}
		if call.ResolvedFunc != nil && call.ResolvedFunc.Quals.Has(qual.Native) {
			if err := c.emitEndianAdjust(arg.ResolvedType); err != nil {
				return err
			}
		}
	}

	isMethodCall := callee.Kind == ast.KDotOp
	if isMethodCall {
		if err := c.Codegen(callee.Children[0]); err != nil {
			return err
		}
		if _, err := c.words.Emit(emit.PUSHTHIS, 0); err != nil {
			return err
		}
		c.pop()
	}

	switch {
	case call.ResolvedFunc == nil:
		return fmt.Errorf("codegen: unresolved call at %s", n.Loc)
	case call.ResolvedFunc.Quals.Has(qual.Native):
		fd := call.ResolvedFunc.Extra.(*ast.FuncDecl)
		idx := c.constpool.NativeIndex(fd.Name)
		if _, err := c.words.Emit(emit.CALLN, int32(idx)); err != nil {
			return err
		}
	case call.ResolvedFunc.Quals.HasAny(qual.Virtual, qual.Override):
		fd := call.ResolvedFunc.Extra.(*ast.FuncDecl)
		if _, err := c.words.Emit(emit.CALLV, int32(fd.VtblIndex)); err != nil {
			return err
		}
	case callee.Kind == ast.KIdent && callee.Target != nil && callee.Target.Quals.Has(qual.Property):
		// A delegate-typed identifier called through its value, not its
		// declared slot; dispatched indirectly.
		if _, err := c.words.Emit(emit.CALLD, 0); err != nil {
			return err
		}
	default:
		calleeName := call.ResolvedFunc.Extra.(*ast.FuncDecl).Name
		entry := 0
		if fs, known := c.funcs[calleeName]; known {
			entry = fs.EntryPC
		}
		if _, err := c.words.Emit(emit.CALL, int32(entry)); err != nil {
			return err
		}
	}

	if isMethodCall {
		if _, err := c.words.Emit(emit.POPTHIS, 0); err != nil {
			return err
		}
	}

	if (call.IsLatentCall || call.IsStateCall) && c.scope != nil {
		fd := c.scope.Decl.Extra.(*ast.FuncDecl)
		resumeIndex := c.scope.stateCallIndex
		resumeTag := resumeIndex
		if resumeIndex < len(fd.StateLabelIDs) {
			resumeTag = fd.StateLabelIDs[resumeIndex]
		}
		if err := c.codegenLatentReturn(resumeTag); err != nil {
			return err
		}
		if resumeIndex < len(fd.StateLabelIDs) {
			labelID := fd.StateLabelIDs[resumeIndex]
			if emitLabel, ok := c.scope.StateLabels[labelID]; ok {
				if err := c.words.PlaceLabel(emitLabel, c.resolvedLabels); err != nil {
					return err
				}
			}
		}
		c.scope.stateCallIndex++
	}

	// The call consumed its argument words; only the return value stays.
	for range args {
		c.pop()
	}
	c.push(n.ResolvedType)
	return nil
}
