package emit

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInternStringDedup(t *testing.T) {
	c := NewConstPool()
	a := c.InternString("hello")
	b := c.InternString("hello")
	require.Equal(t, a, b)
	require.Len(t, c.Strings(), 1)

	other := c.InternString("world")
	require.NotEqual(t, a, other)
	require.Len(t, c.Strings(), 2)
}

func TestInternStringLayout(t *testing.T) {
	c := NewConstPool()
	off := c.InternString("abc")
	data := c.Bytes()
	require.Equal(t, uint64(3), binary.LittleEndian.Uint64(data[off:]))
	require.Equal(t, "abc", string(data[off+8:off+11]))
	require.Equal(t, 0, off%8)
}

func TestInternNameNulTerminated(t *testing.T) {
	c := NewConstPool()
	off := c.InternName("main")
	require.Equal(t, c.InternName("main"), off)
	data := c.Bytes()
	require.Equal(t, "main", string(data[off:off+4]))
	require.Equal(t, byte(0), data[off+4])
}

func TestPutConstantsAligned(t *testing.T) {
	c := NewConstPool()
	c.InternName("x") // 2 bytes, leaves pool unaligned
	off := c.PutI64(-5)
	require.Equal(t, 0, off%8)
	require.Equal(t, uint64(0xFFFFFFFFFFFFFFFB), binary.LittleEndian.Uint64(c.Bytes()[off:]))

	foff := c.PutF64(1.5)
	require.Equal(t, 0, foff%8)
}

func TestNativeIndexStable(t *testing.T) {
	c := NewConstPool()
	require.Equal(t, 0, c.NativeIndex("div"))
	require.Equal(t, 1, c.NativeIndex("printf"))
	require.Equal(t, 0, c.NativeIndex("div"))
	require.Equal(t, []string{"div", "printf"}, c.NativeFuncs)
}

func TestDisasm(t *testing.T) {
	e := NewEmitter()
	resolved := make(map[int]int)
	_, _ = e.Emit(PUSHI, 41)
	lbl := e.NewLabel()
	_, _ = e.EmitJumpTo(JZ, lbl, resolved)
	_, _ = e.Emit(RET, 0)
	require.NoError(t, e.PlaceLabel(lbl, resolved))

	lines := Disasm(e.Bytes())
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "pushi")
	require.Contains(t, lines[0], "41")
	require.Contains(t, lines[1], "jz")
	require.Contains(t, lines[1], "-> 3")
	require.Contains(t, lines[2], "ret")
}
