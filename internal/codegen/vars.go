package codegen

import (
	"fmt"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/emit"
	"github.com/lethe-lang/lethe/internal/qual"
	"github.com/lethe-lang/lethe/internal/scope"
	"github.com/lethe-lang/lethe/internal/types"
)

// isGlobal reports whether n's resolved target lives in the global scope
// (as opposed to a local/arg slot), by walking its declaring scope.
func (c *Codegen) isGlobal(target *ast.Node) bool {
	s, ok := target.ScopeRef.(*scope.Scope)
	if !ok || s == nil {
		return true
	}
	return !s.IsLocal()
}

func (c *Codegen) codegenIdentLoad(n *ast.Node) error {
	if n.Target == nil {
		return fmt.Errorf("codegen: unresolved identifier at %s", n.Loc)
	}
	if n.Target.Quals.Has(qual.Property) {
		return c.codegenPropertyGet(n)
	}
	op := emit.LLOAD
	if c.isGlobal(n.Target) {
		op = emit.GLOAD
	}
	if _, err := c.words.Emit(op, int32(n.Target.Offset)); err != nil {
		return err
	}
	c.push(n.ResolvedType)
	return nil
}

func (c *Codegen) codegenIdentRef(n *ast.Node) error {
	if n.Target == nil {
		return fmt.Errorf("codegen: unresolved identifier at %s", n.Loc)
	}
	// A reference form pushes the address rather than the value; this
	// shares the same opcode family in this ISA (LLOAD/GLOAD operate on
	// frame/global offsets uniformly) with the reference-ness tracked on
	// the mirrored expression stack's QDataType instead of a distinct
	// opcode. The reference qualifier is a type-level bit, not a separate
	// runtime representation.
	op := emit.LLOAD
	if c.isGlobal(n.Target) {
		op = emit.GLOAD
	}
	if _, err := c.words.Emit(op, int32(n.Target.Offset)); err != nil {
		return err
	}
	c.push(types.Q(n.ResolvedType.Type, n.ResolvedType.Quals.With(qual.Reference)))
	return nil
}

func (c *Codegen) codegenBinary(n *ast.Node) error {
	op := n.Extra.(*ast.BinaryOp)
	if len(n.Children) != 2 {
		return fmt.Errorf("codegen: malformed binary expression at %s", n.Loc)
	}
	if err := c.Codegen(n.Children[0]); err != nil {
		return err
	}
	if err := c.Codegen(n.Children[1]); err != nil {
		return err
	}
	c.pop()
	c.pop()
	opcode, ok := binaryOpcodes[op.Op]
	if !ok {
		return fmt.Errorf("codegen: unknown binary operator %q at %s", op.Op, n.Loc)
	}
	if _, err := c.words.Emit(opcode, 0); err != nil {
		return err
	}
	c.push(n.ResolvedType)
	return nil
}

var binaryOpcodes = map[string]emit.Op{
	"+": emit.ADD, "-": emit.SUB, "*": emit.MUL, "/": emit.DIV, "%": emit.MOD,
	"<<": emit.SHL, ">>": emit.SHR, "&": emit.AND, "|": emit.OR, "^": emit.XOR,
	"==": emit.CEQ, "!=": emit.CNE, "<": emit.CLT, "<=": emit.CLE, ">": emit.CGT, ">=": emit.CGE,
}

func (c *Codegen) codegenUnary(n *ast.Node) error {
	op := n.Extra.(*ast.UnaryOp)
	if len(n.Children) != 1 {
		return fmt.Errorf("codegen: malformed unary expression at %s", n.Loc)
	}
	if err := c.Codegen(n.Children[0]); err != nil {
		return err
	}
	c.pop()
	switch op.Op {
	case "-":
		if _, err := c.words.Emit(emit.NEG, 0); err != nil {
			return err
		}
	case "~":
		if _, err := c.words.Emit(emit.NOT, 0); err != nil {
			return err
		}
	case "!":
		// Logical not compares the operand against an explicit false, so
		// CEQ sees the two operands every other compare site gives it.
		if _, err := c.words.Emit(emit.PUSHI, 0); err != nil {
			return err
		}
		if _, err := c.words.Emit(emit.CEQ, 0); err != nil {
			return err
		}
	case "+":
		// no-op
	default:
		return fmt.Errorf("codegen: unsupported unary operator %q at %s", op.Op, n.Loc)
	}
	c.push(n.ResolvedType)
	return nil
}

func (c *Codegen) codegenDotLoad(n *ast.Node) error {
	dot := n.Extra.(*ast.DotOp)
	if dot.PropertyGetter != nil {
		return c.codegenPropertyGetCall(n, dot)
	}
	if err := c.Codegen(n.Children[0]); err != nil {
		return err
	}
	left := c.pop()
	member := findMemberOffset(left.Type, dot.Name)
	if member == nil {
		return fmt.Errorf("codegen: member %q not found on %s at %s", dot.Name, left.Type, n.Loc)
	}
	if _, err := c.words.Emit(emit.FIELD, int32(member.ByteOffset)); err != nil {
		return err
	}
	if member.BitfieldSize > 0 {
		// Load then mask/shift; field already pushed the address, so a
		// plain load dereferences it, and the bitfield extraction is
		// folded into the immediate (low 16 = size, next 16 = shift).
		imm := int32(member.BitfieldSize) | int32(member.BitfieldShift)<<16
		if _, err := c.words.Emit(emit.LLOAD, imm); err != nil {
			return err
		}
	}
	c.push(*member.Type)
	return nil
}

func (c *Codegen) codegenDotRef(n *ast.Node) error {
	dot := n.Extra.(*ast.DotOp)
	if err := c.Codegen(n.Children[0]); err != nil {
		return err
	}
	left := c.pop()
	member := findMemberOffset(left.Type, dot.Name)
	if member == nil {
		return fmt.Errorf("codegen: member %q not found on %s at %s", dot.Name, left.Type, n.Loc)
	}
	if _, err := c.words.Emit(emit.FIELD, int32(member.ByteOffset)); err != nil {
		return err
	}
	c.push(types.Q(member.Type.Type, member.Type.Quals.With(qual.Reference)))
	return nil
}

func findMemberOffset(dt *types.DataType, name string) *types.Member {
	for cur := dt; cur != nil; cur = cur.BaseType {
		for i := range cur.Members {
			if cur.Members[i].Name == name {
				return &cur.Members[i]
			}
		}
	}
	return nil
}

func (c *Codegen) codegenIndex(n *ast.Node) error {
	if len(n.Children) != 2 {
		return fmt.Errorf("codegen: malformed index expression at %s", n.Loc)
	}
	if err := c.Codegen(n.Children[0]); err != nil {
		return err
	}
	if err := c.Codegen(n.Children[1]); err != nil {
		return err
	}
	c.pop()
	c.pop()
	if _, err := c.words.Emit(emit.INDEX, 0); err != nil {
		return err
	}
	if _, err := c.words.Emit(emit.LLOAD, 0); err != nil { // dereference the address INDEX produced
		return err
	}
	c.push(n.ResolvedType)
	return nil
}

func (c *Codegen) codegenIndexRef(n *ast.Node) error {
	if len(n.Children) != 2 {
		return fmt.Errorf("codegen: malformed index expression at %s", n.Loc)
	}
	if err := c.Codegen(n.Children[0]); err != nil {
		return err
	}
	if err := c.Codegen(n.Children[1]); err != nil {
		return err
	}
	c.pop()
	c.pop()
	if _, err := c.words.Emit(emit.INDEX, 0); err != nil {
		return err
	}
	c.push(types.Q(n.ResolvedType.Type, n.ResolvedType.Quals.With(qual.Reference)))
	return nil
}

func (c *Codegen) codegenLocalVarDecl(n *ast.Node) error {
	vd := n.Extra.(*ast.VarDecl)
	if vd.Init != nil {
		before := c.depth()
		if err := c.Codegen(vd.Init); err != nil {
			return err
		}
		if c.depth() != before+1 {
			return fmt.Errorf("codegen: initializer for %q left stack unbalanced at %s", vd.Name, n.Loc)
		}
		c.pop()
		op := emit.LSTORE
		if c.isGlobal(n) {
			op = emit.GSTORE
		}
		if _, err := c.words.Emit(op, int32(n.Offset)); err != nil {
			return err
		}
		return nil
	}
	if n.ResolvedType.Type != nil && n.ResolvedType.Type.Size > maxStackVarBytes && !c.isGlobal(n) {
		c.diags.Error(diag.KindVariableTooLarge, n.Loc, "variable %q is %d bytes, exceeds the %d-byte stack limit",
			vd.Name, n.ResolvedType.Type.Size, maxStackVarBytes)
		return fmt.Errorf("variable %q too large", vd.Name)
	}
	if c.constpool.Len() > maxGlobalBytes && c.isGlobal(n) {
		c.diags.Error(diag.KindTooManyGlobals, n.Loc, "global pool exceeds %d bytes", maxGlobalBytes)
		return fmt.Errorf("too many globals")
	}
	return nil
}
