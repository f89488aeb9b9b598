// Package treesitter is a narrow AST-builder adapter: given an externally
// produced *sitter.Tree whose node types follow this package's naming
// convention, it walks the tree into this module's own ast.Node
// representation. It is not a grammar and not a lexer; it only bridges
// an already-parsed tree-sitter tree into the AST shape the rest of the
// compiler expects.
package treesitter

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/diag"
)

// Builder walks a *sitter.Tree into an ast.Program, keyed off each
// sitter.Node's Type() string.
type Builder struct {
	source   []byte
	document string
}

// New creates a Builder over source, tagging every produced node's
// location with document (the debuginfo Documents index this source
// corresponds to).
func New(source []byte, document string) *Builder {
	return &Builder{source: source, document: document}
}

// nodeKinds maps a tree-sitter node type name to the ast.Kind it builds,
// for the shapes with no payload beyond their children.
var nodeKinds = map[string]ast.Kind{
	"block":        ast.KBlock,
	"break_stmt":   ast.KBreak,
	"continue_stmt": ast.KContinue,
	"expr_stmt":    ast.KExprStmt,
	"defer_stmt":   ast.KDefer,
	"ternary_expr": ast.KTernary,
	"index_expr":   ast.KIndex,
}

// Build converts tree's root into an ast.Program. tree must have been
// parsed with a grammar whose node type names follow this package's
// convention (struct_decl, func_decl, bin_expr, ...); an unrecognized
// node type is reported through diags rather than silently dropped.
func (b *Builder) Build(tree *sitter.Tree, diags *diag.Sink) *ast.Node {
	root := ast.NewNode(ast.KProgram, b.loc(tree.RootNode()), &ast.Program{Documents: []string{b.document}})
	for i := 0; i < int(tree.RootNode().ChildCount()); i++ {
		child := tree.RootNode().Child(i)
		if child == nil || !child.IsNamed() {
			continue
		}
		n := b.build(child, diags)
		if n != nil {
			root.AddChild(n)
		}
	}
	return root
}

func (b *Builder) loc(n *sitter.Node) diag.Location {
	p := n.StartPoint()
	return diag.Location{File: b.document, Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

func (b *Builder) text(n *sitter.Node) string {
	return n.Content(b.source)
}

// build dispatches on n.Type(), the convention this adapter requires of
// its upstream grammar. Kinds needing extra structure beyond a uniform
// children list (identifiers, literals, declarations, types, control
// flow) are built by the buildX helpers below; everything else falls
// through to the flat nodeKinds table.
func (b *Builder) build(n *sitter.Node, diags *diag.Sink) *ast.Node {
	if kind, ok := nodeKinds[n.Type()]; ok {
		out := ast.NewNode(kind, b.loc(n), nil)
		b.addNamedChildren(out, n, diags)
		return out
	}
	switch n.Type() {
	case "identifier":
		return ast.NewNode(ast.KIdent, b.loc(n), &ast.Ident{Name: b.text(n)})
	case "int_literal":
		return b.buildIntLiteral(n)
	case "float_literal":
		return ast.NewNode(ast.KLitDouble, b.loc(n), nil)
	case "string_literal":
		return ast.NewNode(ast.KLitString, b.loc(n), nil)
	case "bool_literal":
		return ast.NewNode(ast.KLitBool, b.loc(n), nil)
	case "null_literal":
		return ast.NewNode(ast.KLitNull, b.loc(n), nil)
	case "bin_expr":
		return b.buildBinary(n, diags)
	case "assign_expr":
		return b.buildAssign(n, diags)
	case "unary_expr":
		return b.buildUnary(n, diags)
	case "dot_expr":
		return b.buildDot(n, diags)
	case "call_expr":
		return b.buildCall(n, diags)
	case "if_stmt":
		return b.buildIf(n, diags)
	case "for_stmt":
		return b.buildFor(n, diags)
	case "while_stmt":
		return b.buildWhile(n, diags)
	case "return_stmt":
		return b.buildReturn(n, diags)
	case "var_decl":
		return b.buildVarDecl(n, diags)
	case "func_decl":
		return b.buildFuncDecl(n, diags)
	case "struct_decl", "class_decl":
		return b.buildCompositeDecl(n, diags)
	default:
		diags.Error(diag.KindIllegalExpression, b.loc(n), "treesitter: unrecognized node type %q", n.Type())
		return nil
	}
}

func (b *Builder) addNamedChildren(out *ast.Node, n *sitter.Node, diags *diag.Sink) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := b.build(n.NamedChild(i), diags)
		if c != nil {
			out.AddChild(c)
		}
	}
}

func (b *Builder) buildIntLiteral(n *sitter.Node) *ast.Node {
	out := ast.NewNode(ast.KLitInt, b.loc(n), nil)
	var v int64
	_, _ = fmt.Sscanf(b.text(n), "%d", &v)
	out.Const = ast.ConstValue{I64: v, Set: true}
	return out
}

func (b *Builder) buildBinary(n *sitter.Node, diags *diag.Sink) *ast.Node {
	out := ast.NewNode(ast.KBinaryOp, b.loc(n), &ast.BinaryOp{Op: b.childFieldText(n, "op")})
	b.addNamedChildren(out, n, diags)
	return out
}

func (b *Builder) buildAssign(n *sitter.Node, diags *diag.Sink) *ast.Node {
	out := ast.NewNode(ast.KAssignOp, b.loc(n), &ast.AssignOp{Op: b.childFieldText(n, "op")})
	b.addNamedChildren(out, n, diags)
	return out
}

func (b *Builder) buildUnary(n *sitter.Node, diags *diag.Sink) *ast.Node {
	out := ast.NewNode(ast.KUnaryPre, b.loc(n), &ast.UnaryOp{Op: b.childFieldText(n, "op")})
	b.addNamedChildren(out, n, diags)
	return out
}

func (b *Builder) buildDot(n *sitter.Node, diags *diag.Sink) *ast.Node {
	out := ast.NewNode(ast.KDotOp, b.loc(n), &ast.DotOp{Name: b.childFieldText(n, "field")})
	if recv := n.NamedChild(0); recv != nil {
		if c := b.build(recv, diags); c != nil {
			out.AddChild(c)
		}
	}
	return out
}

func (b *Builder) buildCall(n *sitter.Node, diags *diag.Sink) *ast.Node {
	out := ast.NewNode(ast.KCall, b.loc(n), &ast.Call{})
	b.addNamedChildren(out, n, diags)
	return out
}

func (b *Builder) buildIf(n *sitter.Node, diags *diag.Sink) *ast.Node {
	f := &ast.If{}
	out := ast.NewNode(ast.KIf, b.loc(n), f)
	if c := n.ChildByFieldName("cond"); c != nil {
		f.Cond = b.build(c, diags)
	}
	if c := n.ChildByFieldName("then"); c != nil {
		f.Then = b.build(c, diags)
	}
	if c := n.ChildByFieldName("else"); c != nil {
		f.Else = b.build(c, diags)
	}
	return out
}

func (b *Builder) buildFor(n *sitter.Node, diags *diag.Sink) *ast.Node {
	f := &ast.For{}
	out := ast.NewNode(ast.KFor, b.loc(n), f)
	if c := n.ChildByFieldName("init"); c != nil {
		f.Init = b.build(c, diags)
	}
	if c := n.ChildByFieldName("cond"); c != nil {
		f.Cond = b.build(c, diags)
	}
	if c := n.ChildByFieldName("post"); c != nil {
		f.Post = b.build(c, diags)
	}
	if c := n.ChildByFieldName("body"); c != nil {
		f.Body = b.build(c, diags)
	}
	return out
}

func (b *Builder) buildWhile(n *sitter.Node, diags *diag.Sink) *ast.Node {
	w := &ast.While{}
	out := ast.NewNode(ast.KWhile, b.loc(n), w)
	if c := n.ChildByFieldName("cond"); c != nil {
		w.Cond = b.build(c, diags)
	}
	if c := n.ChildByFieldName("body"); c != nil {
		w.Body = b.build(c, diags)
	}
	return out
}

func (b *Builder) buildReturn(n *sitter.Node, diags *diag.Sink) *ast.Node {
	out := ast.NewNode(ast.KReturn, b.loc(n), &ast.Return{})
	b.addNamedChildren(out, n, diags)
	return out
}

func (b *Builder) buildVarDecl(n *sitter.Node, diags *diag.Sink) *ast.Node {
	vd := &ast.VarDecl{Name: b.childFieldText(n, "name")}
	out := ast.NewNode(ast.KVarDecl, b.loc(n), vd)
	if c := n.ChildByFieldName("type"); c != nil {
		vd.TypeNode = b.build(c, diags)
	} else {
		vd.IsAuto = true
	}
	if c := n.ChildByFieldName("init"); c != nil {
		vd.Init = b.build(c, diags)
	}
	return out
}

func (b *Builder) buildFuncDecl(n *sitter.Node, diags *diag.Sink) *ast.Node {
	fd := &ast.FuncDecl{Name: b.childFieldText(n, "name"), VtblIndex: -1}
	out := ast.NewNode(ast.KFuncDecl, b.loc(n), fd)
	if c := n.ChildByFieldName("return_type"); c != nil {
		fd.ReturnType = b.build(c, diags)
	}
	if c := n.ChildByFieldName("body"); c != nil {
		fd.Body = b.build(c, diags)
	}
	params := n.ChildByFieldName("params")
	if params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			p := params.NamedChild(i)
			fd.Params = append(fd.Params, ast.Param{
				Name:     b.childFieldText(p, "name"),
				TypeNode: b.build(p.ChildByFieldName("type"), diags),
			})
		}
	}
	return out
}

func (b *Builder) buildCompositeDecl(n *sitter.Node, diags *diag.Sink) *ast.Node {
	cd := &ast.CompositeDecl{Name: b.childFieldText(n, "name")}
	kind := ast.KStructDecl
	if n.Type() == "class_decl" {
		kind = ast.KClassDecl
	}
	if base := n.ChildByFieldName("base"); base != nil {
		cd.BaseName = b.text(base)
	}
	out := ast.NewNode(kind, b.loc(n), cd)
	body := n.ChildByFieldName("body")
	if body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			member := b.build(body.NamedChild(i), diags)
			if member != nil {
				out.AddChild(member)
				cd.Members = append(cd.Members, member)
			}
		}
	}
	return out
}

func (b *Builder) childFieldText(n *sitter.Node, field string) string {
	c := n.ChildByFieldName(field)
	if c == nil {
		return ""
	}
	return b.text(c)
}
