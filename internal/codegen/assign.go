package codegen

import (
	"fmt"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/emit"
	"github.com/lethe-lang/lethe/internal/types"
)

// compoundOpcodes maps a compound-assignment operator to the binary
// opcode it desugars to before the final store.
var compoundOpcodes = map[string]emit.Op{
	"+=": emit.ADD, "-=": emit.SUB, "*=": emit.MUL, "/=": emit.DIV, "%=": emit.MOD,
	"<<=": emit.SHL, ">>=": emit.SHR, "&=": emit.AND, "|=": emit.OR, "^=": emit.XOR,
}

// codegenAssign emits an assignment: evaluate the right-hand side,
// evaluate the left-hand side's reference, and emit the store sequence
// the left type requires (or, for a compound operator, load+combine
// first). The assignment's own value is the left-hand side's new value,
// pushed back for a chained `a = b = c`.
func (c *Codegen) codegenAssign(n *ast.Node) error {
	op := n.Extra.(*ast.AssignOp)
	if len(n.Children) != 2 {
		return fmt.Errorf("codegen: malformed assignment at %s", n.Loc)
	}
	lhs, rhs := n.Children[0], n.Children[1]

	if lt := lhs.ResolvedType.Type; lt != nil {
		switch lt.Kind {
		case types.StaticArray, types.Null, types.Class:
			c.diags.Error(diag.KindIncompatibleTypes, n.Loc, "cannot assign to this type")
			return fmt.Errorf("cannot assign to %s at %s", lt, n.Loc)
		}
	}

	if op.Op == "=" && lhs.Kind == ast.KDotOp {
		if dot := lhs.Extra.(*ast.DotOp); dot.PropertySetter != nil {
			if err := c.Codegen(lhs.Children[0]); err != nil {
				return err
			}
			if err := c.Codegen(rhs); err != nil {
				return err
			}
			c.pop()
			c.pop()
			if err := c.codegenPropertySet(n, dot.PropertySetter, true); err != nil {
				return err
			}
			c.push(n.ResolvedType)
			return nil
		}
	}

	if op.Op != "=" {
		opcode, ok := compoundOpcodes[op.Op]
		if !ok {
			return fmt.Errorf("codegen: unknown compound assignment operator %q at %s", op.Op, n.Loc)
		}
		if err := c.Codegen(lhs); err != nil {
			return err
		}
		if err := c.Codegen(rhs); err != nil {
			return err
		}
		c.pop()
		c.pop()
		if _, err := c.words.Emit(opcode, 0); err != nil {
			return err
		}
		c.push(n.ResolvedType)
	} else {
		if err := c.Codegen(rhs); err != nil {
			return err
		}
		if lhs.ResolvedType.Type != nil && rhs.ResolvedType.Type != nil &&
			lhs.ResolvedType.Type != rhs.ResolvedType.Type {
			if err := c.EmitConv(rhs, rhs.ResolvedType, lhs.ResolvedType); err != nil {
				return err
			}
		}
	}

	if err := c.CodegenRef(lhs); err != nil {
		return err
	}
	c.pop() // the lhs reference is consumed by the store, not left on the stack

	if err := c.emitAssignStore(n, lhs.ResolvedType); err != nil {
		return err
	}
	// The store leaves the assigned value on the stack (already pushed
	// above for lhs's resolved type); nothing further to push.
	return nil
}

// emitAssignStore emits the store sequence for an assignment whose value
// and target reference are already on the stack, dispatching on the left
// type's kind: dynamic arrays and reference-counted pointers go through
// the type's fun_assign helper, structs with destructors likewise,
// array-refs/delegates and trivial structs are byte-wise copies, strings
// use the byte-coded string store, and everything else is the
// micro-optimized scalar store. Static arrays, null and class values
// were rejected before any operand was evaluated.
func (c *Codegen) emitAssignStore(n *ast.Node, lhs types.QDataType) error {
	lt := lhs.Type
	if lt == nil {
		_, err := c.words.Emit(emit.ASSIGN, 0)
		return err
	}
	switch lt.Kind {
	case types.DynamicArray, types.StrongPtr, types.WeakPtr:
		return c.emitFunAssign(n, lt)

	case types.ArrayRef, types.Delegate:
		_, err := c.words.Emit(emit.ASSIGN, int32(lt.Size))
		return err

	case types.Struct:
		if lt.HasDtor {
			return c.emitFunAssign(n, lt)
		}
		_, err := c.words.Emit(emit.ASSIGN, int32(lt.Size))
		return err

	case types.String:
		_, err := c.words.Emit(emit.STRSTORE, 0)
		return err

	default:
		_, err := c.words.Emit(emit.ASSIGN, 0)
		return err
	}
}

// emitFunAssign calls lt's assignment helper, which balances reference
// counts and element lifetimes the plain store cannot.
func (c *Codegen) emitFunAssign(n *ast.Node, lt *types.DataType) error {
	if lt.FunAssign < 0 {
		return fmt.Errorf("codegen: type %s has no assignment helper at %s", lt, n.Loc)
	}
	_, err := c.words.Emit(emit.CALL, int32(lt.FunAssign))
	return err
}
