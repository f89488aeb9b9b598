package emit

import (
	"encoding/binary"
	"fmt"
)

// Word is one 32-bit instruction: low 8 bits opcode, upper 24 bits
// immediate.
type Word uint32

// Encode packs op and a signed 24-bit immediate into a Word.
func Encode(op Op, imm int32) (Word, error) {
	if imm > MaxImmediate || imm < MinImmediate {
		return 0, fmt.Errorf("emit: immediate %d out of 24-bit range for %s", imm, op)
	}
	return Word(uint32(op) | (uint32(imm)&0xFFFFFF)<<8), nil
}

// Decode splits w back into its opcode and sign-extended immediate.
func Decode(w Word) (Op, int32) {
	op := Op(w & 0xFF)
	raw := int32(w>>8) & 0xFFFFFF
	if raw&0x800000 != 0 {
		raw |= ^int32(0xFFFFFF) // sign-extend
	}
	return op, raw
}

// patch is a forward-jump placeholder: the word index still awaiting its
// real target.
type patch struct {
	wordIdx int
}

// Emitter accumulates a single function (or global-init chain)'s
// instruction stream. Forward jumps are patched when their target is
// emitted; backward jumps encode the delta directly.
type Emitter struct {
	words []Word

	// pending maps a not-yet-resolved label id to every patch site still
	// waiting on it.
	pending map[int][]patch
	nextLabel int
}

// NewEmitter creates an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{pending: make(map[int][]patch)}
}

// Pos returns the current word index (the PC the next Emit call will
// occupy).
func (e *Emitter) Pos() int { return len(e.words) }

// Emit appends one instruction and returns its word index.
func (e *Emitter) Emit(op Op, imm int32) (int, error) {
	w, err := Encode(op, imm)
	if err != nil {
		return 0, err
	}
	idx := len(e.words)
	e.words = append(e.words, w)
	return idx, nil
}

// NewLabel allocates a fresh label id for a not-yet-placed jump target.
func (e *Emitter) NewLabel() int {
	e.nextLabel++
	return e.nextLabel
}

// EmitJumpTo emits a jump opcode targeting label, which may not have been
// placed yet (a forward jump): if label's PC is already known the delta
// is encoded immediately (covers both the backward case and an already-
// resolved forward label); otherwise the site is queued in pending and
// patched once PlaceLabel is called for it.
func (e *Emitter) EmitJumpTo(op Op, label int, resolved map[int]int) (int, error) {
	idx := len(e.words)
	if target, ok := resolved[label]; ok {
		delta := int32(target - (idx + 1))
		w, err := Encode(op, delta)
		if err != nil {
			return 0, err
		}
		e.words = append(e.words, w)
		return idx, nil
	}
	// Placeholder; fixed up by PlaceLabel. Opcode is stored in the low
	// byte now so PlaceLabel doesn't need a side table of pending opcodes.
	e.words = append(e.words, Word(uint32(op)))
	e.pending[label] = append(e.pending[label], patch{wordIdx: idx})
	return idx, nil
}

// PlaceLabel marks label's target as the current position and patches
// every forward reference queued against it. resolved is updated so any
// later EmitJumpTo call for the same label (a second forward reference
// after the target, or mistakenly re-targeting) resolves immediately.
func (e *Emitter) PlaceLabel(label int, resolved map[int]int) error {
	target := len(e.words)
	resolved[label] = target
	for _, p := range e.pending[label] {
		op, _ := Decode(e.words[p.wordIdx])
		delta := int32(target - (p.wordIdx + 1))
		w, err := Encode(op, delta)
		if err != nil {
			return err
		}
		e.words[p.wordIdx] = w
	}
	delete(e.pending, label)
	return nil
}

// Unresolved returns the label ids still waiting on a PlaceLabel call, so
// a caller can detect a codegen bug (a label that is jumped to but never
// placed) before handing the stream to the VM.
func (e *Emitter) Unresolved() []int {
	var out []int
	for id := range e.pending {
		out = append(out, id)
	}
	return out
}

// FlushOpt emits the peephole barrier: a marker
// that blocks a later optimization pass from merging instructions across
// it (e.g. across a point codegen knows is a jump target from outside
// this function's own linear scan).
func (e *Emitter) FlushOpt() (int, error) { return e.Emit(FLUSHOPT, 0) }

// Bytes serializes the word stream little-endian, the wire shape the
// Emitter/ConstPool component hands to the (out-of-scope) VM loader.
func (e *Emitter) Bytes() []byte {
	out := make([]byte, 4*len(e.words))
	for i, w := range e.words {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(w))
	}
	return out
}

// Len returns the number of words emitted so far, used by the inline-
// expansion budget check.
func (e *Emitter) Len() int { return len(e.words) }
