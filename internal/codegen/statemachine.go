package codegen

import (
	"github.com/lethe-lang/lethe/internal/ast"
	"github.com/lethe-lang/lethe/internal/emit"
)

// emitStateSwitch emits a state function's resume dispatch: a state/
// latent function's prologue jumps to whichever suspend point the VM's
// scheduler says it last left off at, encoded as a resume index compared
// against each of SETSTATE's operands in turn. fs.StateLabels already
// holds one not-yet-placed Emitter label per resolver label id (allocated
// in newFuncScope, before the body that will place them runs), so this
// only needs to emit the comparison/jump sequence.
func (c *Codegen) emitStateSwitch(fs *FuncScope) error {
	fd := fs.Decl.Extra.(*ast.FuncDecl)
	for _, labelID := range fd.StateLabelIDs {
		emitLabel := fs.StateLabels[labelID]
		if _, err := c.words.Emit(emit.SETSTATE, int32(labelID)); err != nil {
			return err
		}
		if _, err := c.words.EmitJumpTo(emit.JNZ, emitLabel, c.resolvedLabels); err != nil {
			return err
		}
	}
	return nil
}

// codegenLatentReturn emits the suspend point a latent function reaches
// when it has no more work to do this tick: it yields control back to the
// VM's scheduler, tagged with the state label id that the prologue
// dispatch's SETSTATE operands are compared against on the next call.
func (c *Codegen) codegenLatentReturn(resumeIndex int) error {
	_, err := c.words.Emit(emit.LATENTRET, int32(resumeIndex))
	return err
}
