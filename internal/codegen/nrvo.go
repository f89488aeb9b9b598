package codegen

import "github.com/lethe-lang/lethe/internal/ast"

// AnalyzeNRVO decides whether a function is eligible for named
// return-value optimization: it must have a single local variable that is
// the operand of every `return` statement in its body, with no other
// variable ever returned. When eligible, that variable is constructed
// directly into the caller-provided return slot instead of being copied
// out at each return point.
func AnalyzeNRVO(decl *ast.Node) string {
	fd := decl.Extra.(*ast.FuncDecl)
	if fd.Body == nil || fd.ReturnType == nil {
		return ""
	}

	candidate := ""
	ok := true
	ast.Walk(fd.Body, func(n *ast.Node) bool {
		if !ok {
			return false
		}
		if n.Kind == ast.KFuncDecl && n != decl {
			return false // don't descend into a nested function's own returns
		}
		if n.Kind != ast.KReturn {
			return true
		}
		if len(n.Children) != 1 || n.Children[0].Kind != ast.KIdent {
			ok = false
			return false
		}
		ident := n.Children[0].Extra.(*ast.Ident)
		if candidate == "" {
			candidate = ident.Name
		} else if candidate != ident.Name {
			ok = false
			return false
		}
		return true
	})

	if !ok || candidate == "" {
		return ""
	}
	if !isLocalDeclaredIn(fd.Body, candidate) {
		return ""
	}
	return candidate
}

// isLocalDeclaredIn reports whether name is declared by a KVarDecl
// somewhere in body, as opposed to being a parameter or outer local;
// NRVO only applies to the function's own locals.
func isLocalDeclaredIn(body *ast.Node, name string) bool {
	found := false
	ast.Walk(body, func(n *ast.Node) bool {
		if found {
			return false
		}
		if n.Kind == ast.KVarDecl {
			if vd := n.Extra.(*ast.VarDecl); vd.Name == name {
				found = true
				return false
			}
		}
		return true
	})
	return found
}
