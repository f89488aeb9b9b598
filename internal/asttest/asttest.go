// Package asttest provides shorthand constructors for hand-building the
// small ASTs the compiler's own tests feed through the pipeline, standing
// in for the out-of-scope parser.
package asttest

import (
	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/types"
)

// Loc is the synthetic source location every helper stamps, so tests can
// assert diagnostics carry a location without inventing one per node.
var Loc = diag.Location{File: "test.lethe", Line: 1, Column: 1}

// Program wraps decls in a KProgram root.
func Program(decls ...*ast.Node) *ast.Node {
	root := ast.NewNode(ast.KProgram, Loc, &ast.Program{Documents: []string{Loc.File}})
	for _, d := range decls {
		root.AddChild(d)
	}
	return root
}

// IntLit builds a resolved int literal.
func IntLit(tbl *types.Table, v int64) *ast.Node {
	n := ast.NewNode(ast.KLitInt, Loc, nil)
	n.Const = ast.ConstValue{I64: v, U64: uint64(v), Set: true}
	n.ResolvedType = types.Q(tbl.Builtin(types.Int), 0)
	n.MarkResolved()
	return n
}

// FloatLit builds a resolved double literal.
func FloatLit(tbl *types.Table, v float64) *ast.Node {
	n := ast.NewNode(ast.KLitDouble, Loc, nil)
	n.Const = ast.ConstValue{F64: v, Set: true}
	n.ResolvedType = types.Q(tbl.Builtin(types.Double), 0)
	n.MarkResolved()
	return n
}

// Ident builds an unresolved identifier reference.
func Ident(name string) *ast.Node {
	return ast.NewNode(ast.KIdent, Loc, &ast.Ident{Name: name})
}

// Bin builds op over l and r.
func Bin(op string, l, r *ast.Node) *ast.Node {
	n := ast.NewNode(ast.KBinaryOp, Loc, &ast.BinaryOp{Op: op})
	n.AddChild(l)
	n.AddChild(r)
	return n
}

// Un builds a prefix unary op.
func Un(op string, operand *ast.Node) *ast.Node {
	n := ast.NewNode(ast.KUnaryPre, Loc, &ast.UnaryOp{Op: op})
	n.AddChild(operand)
	return n
}

// Ternary builds cond ? then : els.
func Ternary(cond, then, els *ast.Node) *ast.Node {
	n := ast.NewNode(ast.KTernary, Loc, &ast.Ternary{})
	n.AddChild(cond)
	n.AddChild(then)
	n.AddChild(els)
	return n
}

// Block wraps stmts in a KBlock.
func Block(stmts ...*ast.Node) *ast.Node {
	n := ast.NewNode(ast.KBlock, Loc, nil)
	for _, s := range stmts {
		n.AddChild(s)
	}
	return n
}

// Ret builds `return expr;` (expr may be nil).
func Ret(expr *ast.Node) *ast.Node {
	n := ast.NewNode(ast.KReturn, Loc, &ast.Return{})
	if expr != nil {
		n.AddChild(expr)
	}
	return n
}

// ExprStmt wraps expr as a statement.
func ExprStmt(expr *ast.Node) *ast.Node {
	n := ast.NewNode(ast.KExprStmt, Loc, nil)
	n.AddChild(expr)
	return n
}

// Var builds `typeNode name = init;`; typeNode nil means auto.
func Var(name string, typeNode, init *ast.Node) *ast.Node {
	vd := &ast.VarDecl{Name: name, TypeNode: typeNode, Init: init, IsAuto: typeNode == nil}
	return ast.NewNode(ast.KVarDecl, Loc, vd)
}

// TypeName builds a named type reference already resolved to dt.
func TypeName(dt *types.DataType) *ast.Node {
	n := ast.NewNode(ast.KTypeName, Loc, &ast.TypeName{Name: dt.Name})
	n.ResolvedType = types.Q(dt, 0)
	n.MarkResolved()
	return n
}

// ParamOf builds a parameter of a builtin kind.
func ParamOf(tbl *types.Table, name string, kind types.Kind) ast.Param {
	return ast.Param{Name: name, TypeNode: TypeName(tbl.Builtin(kind))}
}

// Func builds a function declaration. ret may be nil for void.
func Func(name string, ret *ast.Node, body *ast.Node, params ...ast.Param) *ast.Node {
	fd := &ast.FuncDecl{Name: name, Params: params, ReturnType: ret, Body: body, VtblIndex: -1}
	return ast.NewNode(ast.KFuncDecl, Loc, fd)
}

// Call builds a call expression with an already-resolved target.
func Call(target *ast.Node, args ...*ast.Node) *ast.Node {
	n := ast.NewNode(ast.KCall, Loc, &ast.Call{ResolvedFunc: target})
	callee := Ident(target.Extra.(*ast.FuncDecl).Name)
	callee.Target = target
	callee.MarkResolved()
	n.AddChild(callee)
	for _, a := range args {
		n.AddChild(a)
	}
	return n
}

// If builds an if statement through the payload fields the walkers
// traverse.
func If(cond, then, els *ast.Node) *ast.Node {
	return ast.NewNode(ast.KIf, Loc, &ast.If{Cond: cond, Then: then, Else: els})
}

// While builds a while loop.
func While(cond, body *ast.Node) *ast.Node {
	return ast.NewNode(ast.KWhile, Loc, &ast.While{Cond: cond, Body: body})
}

// Composite builds a struct/class declaration with the given members.
func Composite(name, base string, isClass bool, members ...*ast.Node) *ast.Node {
	cd := &ast.CompositeDecl{Name: name, BaseName: base}
	kind := ast.KStructDecl
	if isClass {
		kind = ast.KClassDecl
	}
	n := ast.NewNode(kind, Loc, cd)
	for _, m := range members {
		n.AddChild(m)
		cd.Members = append(cd.Members, m)
	}
	return n
}

// ResolveAll marks every node in root resolved, for tests that drive a
// later pass directly without running the resolver.
func ResolveAll(root *ast.Node) {
	ast.Walk(root, func(n *ast.Node) bool {
		n.MarkResolved()
		return true
	})
}
