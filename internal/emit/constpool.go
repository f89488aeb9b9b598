package emit

import (
	"encoding/binary"
	"math"

	"github.com/twmb/murmur3"
)

// StringRef is a baked string global's location, tracked so the
// generated `__exit` chain can destruct it so that
// destruction can run at program exit.
type StringRef struct {
	Offset int
	Length int
}

// ConstPool is an append-only byte blob plus interned string/name
// tables, assigning 4/8-byte-aligned offsets.
type ConstPool struct {
	data []byte

	stringIdx map[uint64]int // content hash -> offset, for interning
	nameIdx   map[string]int

	strings []StringRef

	// NativeFuncs is the native-function index table: index -> fully
	// qualified name, resolved to an actual Go function pointer outside
	// this package.
	NativeFuncs []string
	nativeIdx   map[string]int
}

// NewConstPool creates an empty ConstPool.
func NewConstPool() *ConstPool {
	return &ConstPool{
		stringIdx: make(map[uint64]int),
		nameIdx:   make(map[string]int),
		nativeIdx: make(map[string]int),
	}
}

func (c *ConstPool) align(n int) {
	if rem := len(c.data) % n; rem != 0 {
		c.data = append(c.data, make([]byte, n-rem)...)
	}
}

// InternString interns s, returning its byte offset. Repeated interning
// of equal content returns the same offset (the pool is
// append-only but must not duplicate identical constants).
func (c *ConstPool) InternString(s string) int {
	h := murmur3.Sum64([]byte(s))
	if off, ok := c.stringIdx[h]; ok {
		return off
	}
	c.align(8)
	off := len(c.data)
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(s)))
	c.data = append(c.data, lenBuf[:]...)
	c.data = append(c.data, []byte(s)...)
	c.stringIdx[h] = off
	c.strings = append(c.strings, StringRef{Offset: off, Length: len(s)})
	return off
}

// InternName interns an identifier-name constant separately from a
// general string constant's "interned string and name
// tables" (names are deduplicated by exact value, not content hash,
// since names are always short and the map key is cheap).
func (c *ConstPool) InternName(n string) int {
	if off, ok := c.nameIdx[n]; ok {
		return off
	}
	c.align(4)
	off := len(c.data)
	c.data = append(c.data, []byte(n)...)
	c.data = append(c.data, 0) // NUL terminator for fixed-width name scans
	c.nameIdx[n] = off
	return off
}

// PutI64/PutF64 append an 8-byte-aligned constant and return its offset.
func (c *ConstPool) PutI64(v int64) int {
	c.align(8)
	off := len(c.data)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	c.data = append(c.data, buf[:]...)
	return off
}

func (c *ConstPool) PutF64(v float64) int {
	c.align(8)
	off := len(c.data)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	c.data = append(c.data, buf[:]...)
	return off
}

// NativeIndex returns (registering if new) name's index into the
// native-function table.
func (c *ConstPool) NativeIndex(name string) int {
	if idx, ok := c.nativeIdx[name]; ok {
		return idx
	}
	idx := len(c.NativeFuncs)
	c.NativeFuncs = append(c.NativeFuncs, name)
	c.nativeIdx[name] = idx
	return idx
}

// Strings returns every interned string's offset/length, in interning
// order, for the program-exit destruction pass.
func (c *ConstPool) Strings() []StringRef { return c.strings }

// Bytes returns the pool's raw backing buffer.
func (c *ConstPool) Bytes() []byte { return c.data }

// Len reports the pool's current byte size, checked against the
// too-many-globals layout limit by the caller.
func (c *ConstPool) Len() int { return len(c.data) }
