// Package codegen emits opcodes for expressions and statements while
// maintaining an expression-type stack mirroring the VM stack: one
// large codegen struct carrying the bookkeeping maps, a FuncScope per
// function, and a Kind-dispatch entry point per node.
package codegen

import (
	"fmt"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/emit"
	"github.com/lethe-lang/lethe/internal/qual"
	"github.com/lethe-lang/lethe/internal/scope"
	"github.com/lethe-lang/lethe/internal/types"
	"go.uber.org/zap"
)

// maxInlineDepth/maxInlineOpcodes are the inline-expansion budget.
const (
	maxInlineDepth   = 10
	maxInlineOpcodes = 256
)

// maxStackVarBytes/maxGlobalBytes are the layout error thresholds.
const (
	maxStackVarBytes = 512 * 1024
	maxGlobalBytes   = 256 * 1024 * 1024
)

// Codegen drives bytecode emission for one compilation unit.
type Codegen struct {
	types *types.Table
	diags *diag.Sink
	log   *zap.SugaredLogger

	words     *emit.Emitter
	constpool *emit.ConstPool
	wordSize  int
	bigEndian bool

	// exprStack mirrors the VM's evaluation stack so every opcode's
	// operand types can be validated without re-deriving them.
	exprStack []types.QDataType

	// funcs maps a fully-qualified function name to its entry PC, filled
	// in as each KFuncDecl is emitted.
	funcs map[string]*FuncScope

	// scope is the function currently being emitted; nil at global scope.
	scope *FuncScope

	// resolvedLabels backs Emitter.EmitJumpTo/PlaceLabel's label->PC map.
	resolvedLabels map[int]int

	inlineDepth int

	currentFor    string
	currentSwitch string

	// breakTarget/continueTarget hold the label id the innermost loop or
	// switch's break/continue statements jump to; 0 means "none active".
	breakTarget    int
	continueTarget int

	// loops tracks the active loop/switch nesting, innermost last, so a
	// labelled break/continue can resolve an outer statement by name.
	loops []loopFrame

	// pendingLoopLabel carries a statement label into the loop or switch
	// it names; codegenLabel sets it just before descending.
	pendingLoopLabel string

	// gotoLabels maps a source label name to the emit label id allocated
	// for it the first time either a goto or the label itself is seen.
	gotoLabels map[string]int
}

// New creates a Codegen over a shared type table and constant pool.
func New(t *types.Table, diags *diag.Sink, log *zap.SugaredLogger, wordSize int) *Codegen {
	return &Codegen{
		types: t, diags: diags, log: log,
		words: emit.NewEmitter(), constpool: emit.NewConstPool(), wordSize: wordSize,
		funcs:          make(map[string]*FuncScope),
		resolvedLabels: make(map[int]int),
		gotoLabels:     make(map[string]int),
	}
}

// SetBigEndian marks the compilation target as big-endian, enabling the
// small-integer byte-order adjustment before native calls.
func (c *Codegen) SetBigEndian(v bool) { c.bigEndian = v }

// push/pop/top manage the mirrored expression stack.
func (c *Codegen) push(t types.QDataType) { c.exprStack = append(c.exprStack, t) }

func (c *Codegen) pop() types.QDataType {
	n := len(c.exprStack)
	if n == 0 {
		panic("codegen: pop on empty expression stack")
	}
	t := c.exprStack[n-1]
	c.exprStack = c.exprStack[:n-1]
	return t
}

func (c *Codegen) top() types.QDataType { return c.exprStack[len(c.exprStack)-1] }

func (c *Codegen) depth() int { return len(c.exprStack) }

// StackBalanced reports whether the expression stack is back at depth
// before, the per-statement balance invariant.
func (c *Codegen) StackBalanced(before int) bool { return c.depth() == before }

// Words/ConstPool expose the accumulated output for the Emitter/
// ConstPool stage and for tests.
func (c *Codegen) Words() *emit.Emitter    { return c.words }
func (c *Codegen) ConstPool() *emit.ConstPool { return c.constpool }

// Funcs returns the per-function codegen records accumulated so far,
// keyed by function name; the linker reads entry PCs out of these to
// build the program's symbol table.
func (c *Codegen) Funcs() map[string]*FuncScope { return c.funcs }

// CodegenProgram emits every top-level declaration of root in source
// order.
func (c *Codegen) CodegenProgram(root *ast.Node) error {
	if root.Kind != ast.KProgram {
		return fmt.Errorf("codegen: root is not a KProgram node")
	}
	for _, decl := range root.Children {
		if err := c.codegenTopLevel(decl); err != nil {
			return err
		}
	}
	return nil
}

func (c *Codegen) codegenTopLevel(n *ast.Node) error {
	switch n.Kind {
	case ast.KFuncDecl:
		return c.codegenFunc(n)
	case ast.KVarDecl, ast.KVarDeclList:
		return c.codegenGlobalVar(n)
	case ast.KStructDecl, ast.KClassDecl, ast.KEnumDecl, ast.KNamespaceDecl, ast.KTypeAlias:
		return nil // layout/vtables are TypeGen's job; nothing to emit here
	default:
		return fmt.Errorf("codegen: unexpected top-level node kind %v", n.Kind)
	}
}

// Codegen produces n's value on the VM stack. It returns an error if
// emission fails.
func (c *Codegen) Codegen(n *ast.Node) error {
	switch n.Kind {
	case ast.KLitBool, ast.KLitInt, ast.KLitUInt, ast.KLitLong, ast.KLitULong,
		ast.KLitFloat, ast.KLitDouble, ast.KLitChar, ast.KLitName, ast.KLitString, ast.KLitNull:
		return c.codegenLiteral(n)
	case ast.KIdent:
		return c.codegenIdentLoad(n)
	case ast.KBinaryOp:
		return c.codegenBinary(n)
	case ast.KUnaryPre, ast.KUnaryPost:
		return c.codegenUnary(n)
	case ast.KAssignOp:
		return c.codegenAssign(n)
	case ast.KDotOp:
		return c.codegenDotLoad(n)
	case ast.KIndex:
		return c.codegenIndex(n)
	case ast.KCall:
		return c.codegenCall(n)
	case ast.KTernary:
		return c.codegenTernary(n)
	case ast.KBlock:
		return c.codegenBlock(n)
	case ast.KIf:
		return c.codegenIf(n)
	case ast.KFor, ast.KWhile, ast.KDo:
		return c.codegenLoop(n)
	case ast.KSwitch:
		return c.codegenSwitch(n)
	case ast.KReturn:
		return c.codegenReturn(n)
	case ast.KBreak:
		return c.codegenBreak(n)
	case ast.KContinue:
		return c.codegenContinue(n)
	case ast.KGoto:
		return c.codegenGoto(n)
	case ast.KLabel:
		return c.codegenLabel(n)
	case ast.KDefer:
		return c.codegenDefer(n)
	case ast.KExprStmt:
		return c.codegenExprStmt(n)
	case ast.KVarDecl:
		return c.codegenLocalVarDecl(n)
	case ast.KVarDeclList:
		for _, child := range n.Children {
			if err := c.Codegen(child); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("codegen: unhandled node kind %v at %s", n.Kind, n.Loc)
	}
}

// CodegenRef produces n's address/reference on the VM stack, used for assignment left-hand sides
// and const-reference argument passing.
func (c *Codegen) CodegenRef(n *ast.Node) error {
	switch n.Kind {
	case ast.KIdent:
		return c.codegenIdentRef(n)
	case ast.KDotOp:
		return c.codegenDotRef(n)
	case ast.KIndex:
		return c.codegenIndexRef(n)
	default:
		return fmt.Errorf("codegen: node kind %v has no reference form at %s", n.Kind, n.Loc)
	}
}

func (c *Codegen) codegenLiteral(n *ast.Node) error {
	var imm int32
	switch n.Kind {
	case ast.KLitBool:
		if n.Const.I64 != 0 {
			imm = 1
		}
	case ast.KLitInt, ast.KLitUInt, ast.KLitChar:
		if n.Const.I64 < int64(emit.MinImmediate) || n.Const.I64 > int64(emit.MaxImmediate) {
			off := c.constpool.PutI64(n.Const.I64)
			if _, err := c.words.Emit(emit.PUSHC, int32(off)); err != nil {
				return err
			}
			c.push(n.ResolvedType)
			return nil
		}
		imm = int32(n.Const.I64)
	case ast.KLitLong, ast.KLitULong:
		off := c.constpool.PutI64(n.Const.I64)
		if _, err := c.words.Emit(emit.PUSHC, int32(off)); err != nil {
			return err
		}
		c.push(n.ResolvedType)
		return nil
	case ast.KLitFloat, ast.KLitDouble:
		off := c.constpool.PutF64(n.Const.F64)
		if _, err := c.words.Emit(emit.PUSHC, int32(off)); err != nil {
			return err
		}
		c.push(n.ResolvedType)
		return nil
	case ast.KLitName:
		off := c.constpool.InternName(n.Const.Str)
		if _, err := c.words.Emit(emit.PUSHC, int32(off)); err != nil {
			return err
		}
		c.push(n.ResolvedType)
		return nil
	case ast.KLitString:
		off := c.constpool.InternString(n.Const.Str)
		if _, err := c.words.Emit(emit.PUSHC, int32(off)); err != nil {
			return err
		}
		c.push(n.ResolvedType)
		return nil
	case ast.KLitNull:
		if _, err := c.words.Emit(emit.PUSHNULL, 0); err != nil {
			return err
		}
		c.push(n.ResolvedType)
		return nil
	}
	if _, err := c.words.Emit(emit.PUSHI, imm); err != nil {
		return err
	}
	c.push(n.ResolvedType)
	return nil
}

func (c *Codegen) codegenExprStmt(n *ast.Node) error {
	if len(n.Children) != 1 {
		return fmt.Errorf("codegen: malformed expression statement at %s", n.Loc)
	}
	before := c.depth()
	if err := c.Codegen(n.Children[0]); err != nil {
		return err
	}
	// "the produced value is popped" when the expression's parent is a
	// statement.
	if c.depth() > before {
		c.pop()
		if _, err := c.words.Emit(emit.POP, 0); err != nil {
			return err
		}
	}
	return nil
}

func (c *Codegen) codegenBlock(n *ast.Node) error {
	for _, stmt := range n.Children {
		if err := c.Codegen(stmt); err != nil {
			return err
		}
	}
	return c.genScopeDestructors(n)
}

// genScopeDestructors emits destructor calls, in reverse declaration
// order, for every local owned by n's scope that has one, plus n's
// deferred statements in LIFO order.
func (c *Codegen) genScopeDestructors(n *ast.Node) error {
	s, ok := n.ScopeRef.(*scope.Scope)
	if !ok || s == nil {
		return nil
	}
	for _, stmt := range s.DeferredStatements() {
		if err := c.Codegen(stmt); err != nil {
			return err
		}
	}
	vars := s.LocalVars
	for i := len(vars) - 1; i >= 0; i-- {
		v := vars[i]
		if v.Type.Type == nil || !v.Type.Type.HasDtor {
			continue
		}
		if v.Type.Quals.Has(qual.SkipDtor) {
			continue
		}
		if _, err := c.words.Emit(emit.LLOAD, int32(v.Offset)); err != nil {
			return err
		}
		if _, err := c.words.Emit(emit.DTOR, int32(v.Type.Type.FunDtor)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Codegen) codegenGlobalVar(n *ast.Node) error {
	// Global initializers run in the __init chain; this package only
	// needs to reserve pool space and, if present, emit the initializer
	// into that chain (wired by driver/compiler at link time).
	if n.Kind == ast.KVarDeclList {
		for _, child := range n.Children {
			if err := c.codegenLocalVarDecl(child); err != nil {
				return err
			}
		}
		return nil
	}
	return c.codegenLocalVarDecl(n)
}
