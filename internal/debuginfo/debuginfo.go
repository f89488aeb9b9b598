// Package debuginfo serializes the sequence-point/document table a
// compiled program carries alongside its bytecode, compressed with lz4
// the way a build artifact should be when debug info is kept around
// for every compile. Host error callbacks and cmd/lethec's explore
// subcommand read it back.
package debuginfo

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pierrec/lz4"
)

// SequencePoint maps one program counter to the source location it came
// from, the granularity a debugger or error callback needs.
type SequencePoint struct {
	PC       int
	Document int // index into Documents
	Line     int
	Column   int
}

// Info is one compilation unit's full debug table.
type Info struct {
	Documents []string
	Points    []SequencePoint
}

// New creates an empty Info over the given document list.
func New(documents []string) *Info {
	return &Info{Documents: append([]string(nil), documents...)}
}

// AddPoint appends one sequence point; the emitter calls this once per
// statement boundary as it places PCs.
func (i *Info) AddPoint(pc, document, line, column int) {
	i.Points = append(i.Points, SequencePoint{PC: pc, Document: document, Line: line, Column: column})
}

// Lookup returns the sequence point covering pc: the last recorded point
// whose PC is <= pc, matching how a debugger resolves "what line is this
// instruction" for an address that falls inside a multi-word instruction
// sequence rather than exactly on a statement boundary.
func (i *Info) Lookup(pc int) (SequencePoint, bool) {
	var best SequencePoint
	found := false
	for _, p := range i.Points {
		if p.PC <= pc && (!found || p.PC > best.PC) {
			best, found = p, true
		}
	}
	return best, found
}

// serialize writes Info's raw (uncompressed) wire form: document count,
// each document length-prefixed, then the point count and the point
// records, each field uvarint-encoded.
func (i *Info) serialize() []byte {
	var buf bytes.Buffer
	writeUvarint(&buf, uint64(len(i.Documents)))
	for _, d := range i.Documents {
		writeUvarint(&buf, uint64(len(d)))
		buf.WriteString(d)
	}
	writeUvarint(&buf, uint64(len(i.Points)))
	for _, p := range i.Points {
		writeUvarint(&buf, uint64(p.PC))
		writeUvarint(&buf, uint64(p.Document))
		writeUvarint(&buf, uint64(p.Line))
		writeUvarint(&buf, uint64(p.Column))
	}
	return buf.Bytes()
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

// Marshal serializes and lz4-compresses i for storage alongside a
// compiled program's bytecode image.
func (i *Info) Marshal() ([]byte, error) {
	raw := i.serialize()
	var compressed bytes.Buffer
	w := lz4.NewWriter(&compressed)
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("debuginfo: compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("debuginfo: flush compressor: %w", err)
	}
	return compressed.Bytes(), nil
}

// Unmarshal decompresses and decodes data produced by Marshal.
func Unmarshal(data []byte) (*Info, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("debuginfo: decompress: %w", err)
	}
	br := bytes.NewReader(raw)
	docCount, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, fmt.Errorf("debuginfo: read document count: %w", err)
	}
	info := &Info{}
	for n := uint64(0); n < docCount; n++ {
		l, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, fmt.Errorf("debuginfo: read document length: %w", err)
		}
		name := make([]byte, l)
		if _, err := io.ReadFull(br, name); err != nil {
			return nil, fmt.Errorf("debuginfo: read document: %w", err)
		}
		info.Documents = append(info.Documents, string(name))
	}
	pointCount, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, fmt.Errorf("debuginfo: read point count: %w", err)
	}
	for n := uint64(0); n < pointCount; n++ {
		pc, err1 := binary.ReadUvarint(br)
		doc, err2 := binary.ReadUvarint(br)
		line, err3 := binary.ReadUvarint(br)
		col, err4 := binary.ReadUvarint(br)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return nil, fmt.Errorf("debuginfo: truncated sequence point table")
		}
		info.Points = append(info.Points, SequencePoint{PC: int(pc), Document: int(doc), Line: int(line), Column: int(col)})
	}
	return info, nil
}
