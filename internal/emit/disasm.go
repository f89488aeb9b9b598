package emit

import (
	"encoding/binary"
	"fmt"
)

// Disasm decodes a little-endian instruction stream back into one
// printable line per word, for dump tooling and golden tests.
func Disasm(code []byte) []string {
	out := make([]string, 0, len(code)/4)
	for pc := 0; pc+4 <= len(code); pc += 4 {
		w := Word(binary.LittleEndian.Uint32(code[pc:]))
		op, imm := Decode(w)
		switch op {
		case JMP, JZ, JNZ:
			// Show the resolved absolute target alongside the delta.
			out = append(out, fmt.Sprintf("%05d  %-9s %d -> %d", pc/4, op, imm, pc/4+1+int(imm)))
		case ADD, SUB, MUL, DIV, MOD, NEG, AND, OR, XOR, NOT, SHL, SHR,
			CEQ, CNE, CLT, CLE, CGT, CGE, RET, POP, DUP, PUSHNULL,
			PUSHTHIS, POPTHIS, CALLD, STRSTORE, INDEX, FLUSHOPT, NOP,
			WRAPREF, BSWAP16, BSWAP32:
			out = append(out, fmt.Sprintf("%05d  %s", pc/4, op))
		default:
			out = append(out, fmt.Sprintf("%05d  %-9s %d", pc/4, op, imm))
		}
	}
	return out
}
