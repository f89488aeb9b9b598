package compiler

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestStackPushPop(t *testing.T) {
	s := NewStack(8)
	require.Equal(t, 0, s.Depth())

	s.PushInt(-7)
	s.PushFloat(2.5)
	require.Equal(t, 2, s.Depth())

	f, err := s.GetFloat(0)
	require.NoError(t, err)
	require.Equal(t, 2.5, f)
	i, err := s.GetSignedInt(1)
	require.NoError(t, err)
	require.Equal(t, int64(-7), i)

	_, err = s.Pop()
	require.NoError(t, err)
	i, err = s.GetSignedInt(0)
	require.NoError(t, err)
	require.Equal(t, int64(-7), i)

	_, err = s.Pop()
	require.NoError(t, err)
	_, err = s.Pop()
	require.Error(t, err)
}

func TestStackPushBytesPadsToWords(t *testing.T) {
	s := NewStack(8)
	s.PushBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9}) // 9 bytes -> 2 words
	require.Equal(t, 2, s.Depth())

	top, err := s.GetSignedInt(0)
	require.NoError(t, err)
	require.Equal(t, int64(9), top) // second word holds the tail byte, zero-padded

	_, err = s.GetSignedInt(5)
	require.Error(t, err)
}

// recordingExecutor remembers how it was invoked and pushes a result,
// standing in for the out-of-scope VM.
type recordingExecutor struct {
	entryPC int
	result  int64
	fail    bool
}

func (r *recordingExecutor) Execute(prog *Program, entryPC int, stack *Stack) error {
	if r.fail {
		return fmt.Errorf("runtime fault at pc %d", entryPC)
	}
	r.entryPC = entryPC
	stack.PushInt(r.result)
	return nil
}

func TestContextCall(t *testing.T) {
	eng, prog := newLinkedEngine(t, Options{})
	ctx, err := eng.CreateContext()
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, ctx.ID)

	// Caller-cleanup convention: args pushed right to left.
	ctx.Stack().PushInt(3)
	ctx.Stack().PushInt(125)

	exec := &recordingExecutor{result: 41}
	ctx.SetExecutor(exec)
	require.NoError(t, ctx.Call("main"))

	want, _ := prog.EntryPC("main")
	require.Equal(t, want, exec.entryPC)
	got, err := ctx.Stack().GetSignedInt(0)
	require.NoError(t, err)
	require.Equal(t, int64(41), got)
}

func TestContextCallUnknownFunction(t *testing.T) {
	eng, _ := newLinkedEngine(t, Options{})
	ctx, err := eng.CreateContext()
	require.NoError(t, err)
	ctx.SetExecutor(&recordingExecutor{})
	require.Error(t, ctx.Call("nope"))
}

func TestContextCallWithoutExecutor(t *testing.T) {
	eng, _ := newLinkedEngine(t, Options{})
	ctx, err := eng.CreateContext()
	require.NoError(t, err)
	require.Error(t, ctx.Call("main"))
}

func TestContextRuntimeErrorCallback(t *testing.T) {
	eng, _ := newLinkedEngine(t, Options{})
	ctx, err := eng.CreateContext()
	require.NoError(t, err)
	ctx.SetExecutor(&recordingExecutor{fail: true})

	// Without a callback the error surfaces to the caller.
	require.Error(t, ctx.Call("main"))

	// With one installed, it is routed there instead.
	var msg string
	ctx.SetRuntimeErrorCallback(func(m string) { msg = m })
	require.NoError(t, ctx.Call("main"))
	require.Contains(t, msg, "runtime fault")
}

func TestContextRunConstructorsWithoutInitChain(t *testing.T) {
	eng, _ := newLinkedEngine(t, Options{})
	ctx, err := eng.CreateContext()
	require.NoError(t, err)
	// No __init/__exit symbols: both are no-ops, not errors.
	require.NoError(t, ctx.RunConstructors())
	require.NoError(t, ctx.RunDestructors())
}

func TestCreateContextBeforeLink(t *testing.T) {
	eng, err := New(Options{}, nil)
	require.NoError(t, err)
	_, err = eng.CreateContext()
	require.Error(t, err)
}

func TestContextsAreIndependent(t *testing.T) {
	eng, _ := newLinkedEngine(t, Options{})
	a, err := eng.CreateContext()
	require.NoError(t, err)
	b, err := eng.CreateContext()
	require.NoError(t, err)

	require.NotEqual(t, a.ID, b.ID)
	a.Stack().PushInt(1)
	require.Equal(t, 0, b.Stack().Depth())
}
