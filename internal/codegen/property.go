package codegen

import (
	"fmt"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/emit"
	"github.com/lethe-lang/lethe/internal/qual"
)

// codegenPropertyGet rewrites a read of a `property`-qualified bare
// identifier (an implicit-this member access) into a call to its
// __get_<name> accessor.
func (c *Codegen) codegenPropertyGet(n *ast.Node) error {
	ident := n.Extra.(*ast.Ident)
	getter := n.Target
	if getter == nil {
		return fmt.Errorf("codegen: property %q has no getter at %s", ident.Name, n.Loc)
	}
	fd, ok := getter.Extra.(*ast.FuncDecl)
	if !ok {
		return fmt.Errorf("codegen: property getter for %q is not a function at %s", ident.Name, n.Loc)
	}
	if fs, known := c.funcs[fd.Name]; known {
		if _, err := c.words.Emit(emit.CALL, int32(fs.EntryPC)); err != nil {
			return err
		}
	} else if _, err := c.words.Emit(emit.CALL, 0); err != nil {
		return err
	}
	c.push(n.ResolvedType)
	return nil
}

// codegenPropertyGetCall implements the `obj.Name` form of the same
// rewrite: evaluate the receiver, then call its __get_Name accessor as a
// method (member-access syntax resolving to a function
// call instead of a field load).
func (c *Codegen) codegenPropertyGetCall(n *ast.Node, dot *ast.DotOp) error {
	getter := dot.PropertyGetter
	if getter == nil {
		return fmt.Errorf("codegen: dot-property %q has no getter at %s", dot.Name, n.Loc)
	}
	if err := c.Codegen(n.Children[0]); err != nil {
		return err
	}
	if _, err := c.words.Emit(emit.PUSHTHIS, 0); err != nil {
		return err
	}
	c.pop()

	fd, ok := getter.Extra.(*ast.FuncDecl)
	if !ok {
		return fmt.Errorf("codegen: property getter for %q is not a function at %s", dot.Name, n.Loc)
	}
	if getter.Quals.HasAny(qual.Virtual, qual.Override) {
		if _, err := c.words.Emit(emit.CALLV, int32(fd.VtblIndex)); err != nil {
			return err
		}
	} else if fs, known := c.funcs[fd.Name]; known {
		if _, err := c.words.Emit(emit.CALL, int32(fs.EntryPC)); err != nil {
			return err
		}
	} else if _, err := c.words.Emit(emit.CALL, 0); err != nil {
		return err
	}

	if _, err := c.words.Emit(emit.POPTHIS, 0); err != nil {
		return err
	}
	c.push(n.ResolvedType)
	return nil
}

// codegenPropertySet is the assignment-target half of the property
// rewrite: `obj.Name = v` or a bare `Name = v` rewrites to a call to
// __set_Name(v) instead of a field store. Invoked from codegenAssign when
// the left-hand side resolves to a property setter.
func (c *Codegen) codegenPropertySet(n *ast.Node, setter *ast.Node, hasReceiver bool) error {
	fd, ok := setter.Extra.(*ast.FuncDecl)
	if !ok {
		return fmt.Errorf("codegen: property setter is not a function at %s", n.Loc)
	}
	if hasReceiver {
		if _, err := c.words.Emit(emit.PUSHTHIS, 0); err != nil {
			return err
		}
	}
	if fs, known := c.funcs[fd.Name]; known {
		if _, err := c.words.Emit(emit.CALL, int32(fs.EntryPC)); err != nil {
			return err
		}
	} else if _, err := c.words.Emit(emit.CALL, 0); err != nil {
		return err
	}
	if hasReceiver {
		if _, err := c.words.Emit(emit.POPTHIS, 0); err != nil {
			return err
		}
	}
	return nil
}
