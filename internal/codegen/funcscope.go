package codegen

import (
	"fmt"

	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/emit"
	"github.com/lethe-lang/lethe/internal/qual"
)

// FuncScope carries the per-function codegen bookkeeping: entry PC,
// break/continue/label fixups already resolved to PCs, and the NRVO/
// inline analysis results computed once before the body is emitted.
// One struct per function holds everything CodeGen needs about it.
type FuncScope struct {
	Name     string
	Decl     *ast.Node
	EntryPC  int

	// NRVOVar, if non-empty, is the local variable name every `return`
	// in this function returns, aliased directly to the return slot.
	NRVOVar string

	// StateLabels maps a per-function resolver label id to
	// the Emitter label id allocated for it in the prologue dispatch table,
	// before the body that places it has been emitted.
	StateLabels map[int]int

	returnSlotWords int

	// stateCallIndex counts latent/state call sites reached so far in
	// source order, indexing into FuncDecl.StateLabelIDs to recover which
	// resolver-assigned label id each one corresponds to.
	stateCallIndex int
}

func (c *Codegen) newFuncScope(decl *ast.Node) *FuncScope {
	fd := decl.Extra.(*ast.FuncDecl)
	fs := &FuncScope{Name: fd.Name, Decl: decl, EntryPC: c.words.Pos(), StateLabels: make(map[int]int)}
	for _, labelID := range fd.StateLabelIDs {
		fs.StateLabels[labelID] = c.words.NewLabel()
	}
	return fs
}

// codegenFunc emits one function's prologue, body, and implicit epilogue.
func (c *Codegen) codegenFunc(decl *ast.Node) error {
	fd, ok := decl.Extra.(*ast.FuncDecl)
	if !ok {
		return fmt.Errorf("codegen: KFuncDecl node missing FuncDecl payload")
	}
	if fd.Body == nil {
		return nil // native/declaration-only function: nothing to emit
	}

	fs := c.newFuncScope(decl)
	fs.NRVOVar = AnalyzeNRVO(decl)
	c.funcs[fd.Name] = fs

	prevScope, prevGotoLabels := c.scope, c.gotoLabels
	c.scope = fs
	c.gotoLabels = make(map[string]int)
	defer func() { c.scope, c.gotoLabels = prevScope, prevGotoLabels }()

	if decl.Quals.HasAny(qual.Latent, qual.State) && len(fd.StateLabelIDs) > 0 {
		if err := c.emitStateSwitch(fs); err != nil {
			return err
		}
	}

	if err := c.Codegen(fd.Body); err != nil {
		return err
	}

	if !decl.Quals.HasAny(qual.Latent) {
		if err := c.checkFlow(decl); err != nil {
			return err
		}
	}

	// Implicit return for a void function, emitted even when its body
	// already ends in one; non-void functions reaching here without
	// returning were already caught by checkFlow.
	if fd.ReturnType == nil {
		if _, err := c.words.Emit(emit.RET, 0); err != nil {
			return err
		}
	}
	return nil
}
