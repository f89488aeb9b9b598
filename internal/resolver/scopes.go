package resolver

import (
	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/qual"
	"github.com/lethe-lang/lethe/internal/scope"
)

// BuildScopes walks a freshly parsed AST and constructs the scope tree
// under r's global scope: one named scope per namespace/struct/class, a
// function+args scope per function, a local scope per block, a loop
// scope per loop statement. Every node's ScopeRef is set to its lexical
// scope, and every declaration is registered in the scope it belongs to.
// Runs once per compilation unit, before the fixed-point resolve loop.
func (r *Resolver) BuildScopes(root *ast.Node) error {
	r.buildScope(root, r.global)
	if r.diags.HasErrors() {
		return r.diags.Err()
	}
	return nil
}

func (r *Resolver) buildScope(n *ast.Node, s *scope.Scope) {
	n.ScopeRef = s

	switch n.Kind {
	case ast.KNamespaceDecl:
		nd := n.Extra.(*ast.NamespaceDecl)
		child := s.AddNamed(nd.Name, scope.KindNamespace)
		child.Node = n
		for _, c := range n.Children {
			r.buildScope(c, child)
		}
		return

	case ast.KStructDecl, ast.KClassDecl:
		cd := n.Extra.(*ast.CompositeDecl)
		kind := scope.KindStruct
		if n.Kind == ast.KClassDecl {
			kind = scope.KindClass
		}
		if !s.Declare(cd.Name, n) {
			r.diags.Error(diag.KindUnknownSymbol, n.Loc, "type %q redeclared", cd.Name)
		}
		child := s.AddNamed(cd.Name, kind)
		child.Node = n
		for _, c := range n.Children {
			r.buildScope(c, child)
		}
		return

	case ast.KFuncDecl:
		fd := n.Extra.(*ast.FuncDecl)
		if !s.Declare(fd.Name, n) {
			r.diags.Error(diag.KindUnknownSymbol, n.Loc, "function %q redeclared", fd.Name)
		}
		if n.Quals.Has(qual.Const) && n.Quals.Has(qual.Static) {
			r.diags.Error(diag.KindConstStaticExclusion, n.Loc,
				"function %q cannot be both const and static", fd.Name)
		}
		fnScope := s.Add(scope.KindFunction)
		fnScope.Name = fd.Name
		fnScope.Node = n
		argScope := fnScope.Add(scope.KindArgs)
		for i := range fd.Params {
			p := &fd.Params[i]
			if p.TypeNode != nil {
				r.buildScope(p.TypeNode, argScope)
			}
			// Parameters resolve like locals of the args scope; the
			// synthetic declaration node is not part of the walked tree,
			// so it must arrive pre-resolved.
			pn := ast.NewNode(ast.KVarDecl, n.Loc, &ast.VarDecl{Name: p.Name, TypeNode: p.TypeNode})
			pn.ScopeRef = argScope
			if p.TypeNode != nil {
				pn.ResolvedType = p.TypeNode.ResolvedType
			}
			pn.MarkResolved()
			argScope.Declare(p.Name, pn)
		}
		if fd.ReturnType != nil {
			r.buildScope(fd.ReturnType, fnScope)
		}
		if fd.Body != nil {
			r.buildScope(fd.Body, argScope.Add(scope.KindLocal))
		}
		return

	case ast.KBlock:
		child := s.Add(scope.KindLocal)
		child.Node = n
		n.ScopeRef = child
		for _, c := range n.Children {
			r.buildScope(c, child)
		}
		return

	case ast.KFor, ast.KWhile, ast.KDo:
		child := s.Add(scope.KindLoop)
		child.Node = n
		n.ScopeRef = child
		r.buildLoopParts(n, child)
		return

	case ast.KSwitch:
		child := s.Add(scope.KindSwitch)
		child.Node = n
		n.ScopeRef = child
		sw := n.Extra.(*ast.Switch)
		if sw.Tag != nil {
			r.buildScope(sw.Tag, child)
		}
		for _, c := range n.Children {
			r.buildScope(c, child)
		}
		return

	case ast.KVarDecl:
		vd := n.Extra.(*ast.VarDecl)
		if !s.Declare(vd.Name, n) {
			r.diags.Error(diag.KindUnknownSymbol, n.Loc, "variable %q redeclared", vd.Name)
		}
		if vd.TypeNode != nil {
			r.buildScope(vd.TypeNode, s)
		}
		if vd.Init != nil {
			r.buildScope(vd.Init, s)
		}
		return

	case ast.KLabel:
		lbl := n.Extra.(*ast.Label)
		if fn := s.FindFunctionScope(); fn != nil {
			if !fn.AddLabel(lbl.Name, n) {
				r.diags.Error(diag.KindUnknownSymbol, n.Loc, "label %q redeclared", lbl.Name)
			}
		}

	case ast.KIf:
		f := n.Extra.(*ast.If)
		if f.Init != nil {
			r.buildScope(f.Init, s)
		}
		if f.Cond != nil {
			r.buildScope(f.Cond, s)
		}
		if f.Then != nil {
			r.buildScope(f.Then, s)
		}
		if f.Else != nil {
			r.buildScope(f.Else, s)
		}
		return

	case ast.KEnumDecl:
		ed := n.Extra.(*ast.EnumDecl)
		if !s.Declare(ed.Name, n) {
			r.diags.Error(diag.KindUnknownSymbol, n.Loc, "enum %q redeclared", ed.Name)
		}
		for _, item := range ed.Items {
			ei := item.Extra.(*ast.EnumItem)
			target := s
			if ed.IsClass {
				target = s.AddNamed(ed.Name, scope.KindNamespace)
			}
			target.Declare(ei.Name, item)
			item.ScopeRef = target
		}
		return
	}

	for _, c := range n.Children {
		r.buildScope(c, s)
	}
}

func (r *Resolver) buildLoopParts(n *ast.Node, s *scope.Scope) {
	switch ex := n.Extra.(type) {
	case *ast.For:
		for _, p := range []*ast.Node{ex.Init, ex.Cond, ex.Post, ex.Body, ex.NoBreak} {
			if p != nil {
				r.buildScope(p, s)
			}
		}
	case *ast.While:
		for _, p := range []*ast.Node{ex.Cond, ex.Body} {
			if p != nil {
				r.buildScope(p, s)
			}
		}
	case *ast.Do:
		for _, p := range []*ast.Node{ex.Body, ex.Cond} {
			if p != nil {
				r.buildScope(p, s)
			}
		}
	}
}
