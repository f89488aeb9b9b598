package typegen

import "github.com/lethe-lang/lethe/internal/types"

// SynthesizePointers creates the strong/weak/raw pointer DataType
// family for a finalized class type. It is a thin wrapper over
// Table.PointerFamily, kept in this package (rather than inlined at
// the call site) so every TypeGen sub-responsibility has one obvious
// entry point.
func (g *Gen) SynthesizePointers(classType *types.DataType) (strong, weak, raw *types.DataType, err error) {
	return g.types.PointerFamily(classType, g.wordSize)
}
