package codegen

import (
	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/emit"
	"github.com/lethe-lang/lethe/internal/qual"
	"github.com/lethe-lang/lethe/internal/types"
)

// convImm packs a (from, to) kind pair into CONV's 24-bit immediate.
func convImm(from, to types.Kind) int32 {
	return int32(from)&0xFFF | (int32(to)&0xFFF)<<12
}

// EmitConv inserts the conversion sequence that turns the stack top from
// `from` into `to`: numeric widening/narrowing,
// pointer up-casts, array-ref wrapping. It reports an error through the
// sink when no conversion between the two types is defined. The mirrored
// expression stack is updated to `to` on success.
func (c *Codegen) EmitConv(n *ast.Node, from, to types.QDataType) error {
	if from.Type == nil || to.Type == nil {
		c.diags.Error(diag.KindIncompatibleTypes, n.Loc, "conversion with unresolved type")
		return errConv(n, from, to)
	}
	if from.Type == to.Type {
		return nil
	}
	fk, tk := from.Type.Kind, to.Type.Kind

	switch {
	case fk.IsNumeric() && tk.IsNumeric(), fk.IsNumeric() && tk == types.Bool:
		if _, err := c.words.Emit(emit.CONV, convImm(fk, tk)); err != nil {
			return err
		}
	case fk == types.Null && (tk.IsPointer() || tk == types.FuncPtr || tk == types.Delegate):
		// null converts to any pointer-like type; the pushed null word is
		// already the right representation.
	case fk.IsPointer() && tk.IsPointer() && upcastOK(from.Type.ElemType, to.Type.ElemType):
		// Pointer up-cast: same word, retagged on the mirrored stack only.
		// A strong->raw or strong->weak retag does not balance the
		// refcount here; the SkipDtor hint from the source QDataType is
		// preserved below so scope exit does the right thing.
	case fk == types.DynamicArray && tk == types.ArrayRef &&
		from.Type.Complementary.Secondary == to.Type:
		if _, err := c.words.Emit(emit.WRAPREF, 0); err != nil {
			return err
		}
	case fk == types.Name && tk == types.String, fk == types.String && tk == types.Name:
		if _, err := c.words.Emit(emit.CONV, convImm(fk, tk)); err != nil {
			return err
		}
	case fk == types.Enum && tk.IsInteger(), fk.IsInteger() && tk == types.Enum:
		if _, err := c.words.Emit(emit.CONV, convImm(fk, tk)); err != nil {
			return err
		}
	default:
		c.diags.Error(diag.KindIncompatibleTypes, n.Loc, "no conversion from %s to %s", from, to)
		return errConv(n, from, to)
	}

	if c.depth() > 0 {
		hint := c.pop().Quals & qual.Set(qual.SkipDtor)
		c.push(types.Q(to.Type, to.Quals|hint))
	}
	return nil
}

// upcastOK reports whether derived's class chain reaches base, the only
// pointer element conversion EmitConv accepts.
func upcastOK(derived, base *types.DataType) bool {
	for cur := derived; cur != nil; cur = cur.BaseType {
		if cur == base {
			return true
		}
	}
	return false
}

// emitEndianAdjust emits the byte-order fixup for a small integer about
// to cross the native ABI on a big-endian host.
// bigEndian is a property of the compilation target, carried on Codegen
// rather than probed from the build host.
func (c *Codegen) emitEndianAdjust(t types.QDataType) error {
	if !c.bigEndian || t.Type == nil {
		return nil
	}
	switch t.Type.Size {
	case 2:
		_, err := c.words.Emit(emit.BSWAP16, 0)
		return err
	case 4:
		if t.Type.Kind.IsInteger() {
			_, err := c.words.Emit(emit.BSWAP32, 0)
			return err
		}
	}
	return nil
}

type convError struct {
	loc  diag.Location
	from types.QDataType
	to   types.QDataType
}

func (e *convError) Error() string {
	return e.loc.String() + ": no conversion from " + e.from.String() + " to " + e.to.String()
}

func errConv(n *ast.Node, from, to types.QDataType) error {
	return &convError{loc: n.Loc, from: from, to: to}
}
