package emit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundtrip(t *testing.T) {
	cases := []struct {
		op  Op
		imm int32
	}{
		{PUSHI, 0},
		{PUSHI, 42},
		{PUSHI, -1},
		{JMP, MinImmediate},
		{JMP, MaxImmediate},
		{CALLN, 12345},
	}
	for _, tc := range cases {
		w, err := Encode(tc.op, tc.imm)
		require.NoError(t, err)
		op, imm := Decode(w)
		require.Equal(t, tc.op, op)
		require.Equal(t, tc.imm, imm)
	}
}

func TestEncodeImmediateRange(t *testing.T) {
	_, err := Encode(PUSHI, MaxImmediate+1)
	require.Error(t, err)
	_, err = Encode(PUSHI, MinImmediate-1)
	require.Error(t, err)
}

func TestForwardJumpPatch(t *testing.T) {
	e := NewEmitter()
	resolved := make(map[int]int)
	end := e.NewLabel()

	_, err := e.EmitJumpTo(JZ, end, resolved) // word 0, target unknown
	require.NoError(t, err)
	_, err = e.Emit(PUSHI, 1) // word 1
	require.NoError(t, err)
	require.NoError(t, e.PlaceLabel(end, resolved)) // target = word 2

	require.Empty(t, e.Unresolved())
	op, delta := Decode(wordAt(e, 0))
	require.Equal(t, JZ, op)
	require.Equal(t, int32(1), delta) // 2 - (0+1)
}

func TestBackwardJumpEncodesDirectly(t *testing.T) {
	e := NewEmitter()
	resolved := make(map[int]int)
	top := e.NewLabel()
	require.NoError(t, e.PlaceLabel(top, resolved)) // word 0
	_, err := e.Emit(PUSHI, 1)                      // word 0
	require.NoError(t, err)
	_, err = e.EmitJumpTo(JMP, top, resolved) // word 1
	require.NoError(t, err)

	op, delta := Decode(wordAt(e, 1))
	require.Equal(t, JMP, op)
	require.Equal(t, int32(-2), delta) // 0 - (1+1)
}

func TestUnresolvedReported(t *testing.T) {
	e := NewEmitter()
	resolved := make(map[int]int)
	dangling := e.NewLabel()
	_, err := e.EmitJumpTo(JMP, dangling, resolved)
	require.NoError(t, err)
	require.Equal(t, []int{dangling}, e.Unresolved())
}

func TestBytesLittleEndian(t *testing.T) {
	e := NewEmitter()
	_, err := e.Emit(PUSHI, 1)
	require.NoError(t, err)
	b := e.Bytes()
	require.Len(t, b, 4)
	require.Equal(t, byte(PUSHI), b[0])
	require.Equal(t, byte(1), b[1])
}

func TestOpStrings(t *testing.T) {
	require.Equal(t, "pushi", PUSHI.String())
	require.Equal(t, "flushopt", FLUSHOPT.String())
	require.True(t, CONV.IsValid())
	require.False(t, Op(255).IsValid())
}

func wordAt(e *Emitter, idx int) Word {
	b := e.Bytes()
	return Word(uint32(b[idx*4]) | uint32(b[idx*4+1])<<8 | uint32(b[idx*4+2])<<16 | uint32(b[idx*4+3])<<24)
}
