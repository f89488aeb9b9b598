package compiler

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/lethe-lang/lethe/internal/codegen"
	"github.com/lethe-lang/lethe/internal/debuginfo"
	"github.com/lethe-lang/lethe/internal/types"
)

// ClassDesc is one class-type descriptor of the linked image: the name
// the VM's object allocator resolves, plus its vtable fields. VtblOffset
// is copied from the class's DataType.VtblOffset; Link does not lay
// vtables out in the global pool and nothing assigns that field, so it is
// -1 (types.NoOffset) for every class Link produces.
type ClassDesc struct {
	Name       string
	VtblOffset int
	VtblSize   int
}

// Program is the bytecode image Link produces: read-only after link, so
// sharing one image across VM threads is safe.
type Program struct {
	// Code is the instruction stream, little-endian 32-bit words.
	Code []byte

	// ConstPool is the constant/global byte blob with its interned
	// string and name tables baked in.
	ConstPool []byte

	// Symbols maps a function name to its entry PC (a word index).
	Symbols map[string]int

	// NativeFuncs is the native-function index table; CALLN's immediate
	// indexes into it, and the host resolves each name to a callable at
	// context-creation time.
	NativeFuncs []string

	// Classes are the class-type descriptors, sorted by name.
	Classes []ClassDesc

	// Debug is the sequence-point/document table, present only when the
	// engine was configured to emit one. It is stored alongside the
	// image (see debuginfo.Marshal), not inside Marshal's wire format.
	Debug *debuginfo.Info
}

// assemble packages the codegen output into a Program.
func (e *Engine) assemble(table *types.Table, cg *codegen.Codegen) *Program {
	prog := &Program{
		Code:        cg.Words().Bytes(),
		ConstPool:   cg.ConstPool().Bytes(),
		Symbols:     make(map[string]int),
		NativeFuncs: append([]string(nil), cg.ConstPool().NativeFuncs...),
	}
	for name, fs := range cg.Funcs() {
		prog.Symbols[name] = fs.EntryPC
	}
	for _, dt := range table.Named() {
		if dt.Kind != types.Class {
			continue
		}
		prog.Classes = append(prog.Classes, ClassDesc{
			Name:       dt.Name,
			VtblOffset: int(dt.VtblOffset),
			VtblSize:   dt.VtblSize,
		})
	}
	sort.Slice(prog.Classes, func(i, j int) bool { return prog.Classes[i].Name < prog.Classes[j].Name })

	if e.opts.EmitDebugInfo {
		docs := make([]string, 0, len(e.units))
		docIdx := make(map[string]int, len(e.units))
		for _, u := range e.units {
			docIdx[u.name] = len(docs)
			docs = append(docs, u.name)
		}
		info := debuginfo.New(docs)
		for _, fs := range cg.Funcs() {
			doc := docIdx[fs.Decl.Loc.File] // missing file maps to document 0
			info.AddPoint(fs.EntryPC, doc, fs.Decl.Loc.Line, fs.Decl.Loc.Column)
		}
		prog.Debug = info
	}
	return prog
}

// EntryPC returns name's entry PC, or an error naming the symbol when
// the program has no such function.
func (p *Program) EntryPC(name string) (int, error) {
	pc, ok := p.Symbols[name]
	if !ok {
		return 0, fmt.Errorf("program: no function %q", name)
	}
	return pc, nil
}

// programMagic versions the cache wire format; bump on layout change.
const programMagic = "LETHE1"

// Marshal serializes p for the incremental-compile cache.
func (p *Program) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(programMagic)
	writeBytes(&buf, p.Code)
	writeBytes(&buf, p.ConstPool)

	names := make([]string, 0, len(p.Symbols))
	for n := range p.Symbols {
		names = append(names, n)
	}
	sort.Strings(names)
	writeUvarint(&buf, uint64(len(names)))
	for _, n := range names {
		writeString(&buf, n)
		writeUvarint(&buf, uint64(p.Symbols[n]))
	}

	writeUvarint(&buf, uint64(len(p.NativeFuncs)))
	for _, n := range p.NativeFuncs {
		writeString(&buf, n)
	}

	writeUvarint(&buf, uint64(len(p.Classes)))
	for _, c := range p.Classes {
		writeString(&buf, c.Name)
		writeUvarint(&buf, uint64(int64(c.VtblOffset)+1)) // -1 (no vtable) stored as 0
		writeUvarint(&buf, uint64(c.VtblSize))
	}
	return buf.Bytes(), nil
}

// UnmarshalProgram decodes a Marshal result.
func UnmarshalProgram(data []byte) (*Program, error) {
	if len(data) < len(programMagic) || string(data[:len(programMagic)]) != programMagic {
		return nil, fmt.Errorf("program: bad magic")
	}
	r := bytes.NewReader(data[len(programMagic):])
	p := &Program{Symbols: make(map[string]int)}
	var err error
	if p.Code, err = readBytes(r); err != nil {
		return nil, fmt.Errorf("program: code: %w", err)
	}
	if p.ConstPool, err = readBytes(r); err != nil {
		return nil, fmt.Errorf("program: const pool: %w", err)
	}

	symCount, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("program: symbol count: %w", err)
	}
	for i := uint64(0); i < symCount; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("program: symbol name: %w", err)
		}
		pc, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("program: symbol pc: %w", err)
		}
		p.Symbols[name] = int(pc)
	}

	nativeCount, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("program: native count: %w", err)
	}
	for i := uint64(0); i < nativeCount; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("program: native name: %w", err)
		}
		p.NativeFuncs = append(p.NativeFuncs, name)
	}

	classCount, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("program: class count: %w", err)
	}
	for i := uint64(0); i < classCount; i++ {
		var c ClassDesc
		if c.Name, err = readString(r); err != nil {
			return nil, fmt.Errorf("program: class name: %w", err)
		}
		ofs, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("program: class vtbl offset: %w", err)
		}
		c.VtblOffset = int(int64(ofs) - 1)
		size, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("program: class vtbl size: %w", err)
		}
		c.VtblSize = int(size)
		p.Classes = append(p.Classes, c)
	}
	return p, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	l, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	out := make([]byte, l)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	return string(b), err
}
