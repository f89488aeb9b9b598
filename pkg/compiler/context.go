package compiler

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Executor runs bytecode. The VM proper lives outside this module; a
// host installs its executor on a Context, and everything up to the
// entry PC (symbol lookup, stack layout, argument order) is this
// package's responsibility.
type Executor interface {
	Execute(prog *Program, entryPC int, stack *Stack) error
}

// RuntimeErrorFunc receives errors raised by executing code; they never
// propagate back into the compiler.
type RuntimeErrorFunc func(msg string)

// Stack is the host-visible VM stack: caller-cleanup, arguments pushed
// right to left, result pushed first (stdcall-like). Offsets are words.
type Stack struct {
	words    []uint64
	wordSize int
}

// NewStack creates an empty stack for a VM with the given word size.
func NewStack(wordSize int) *Stack { return &Stack{wordSize: wordSize} }

// Depth returns the current stack depth in words.
func (s *Stack) Depth() int { return len(s.words) }

// PushRaw pushes one raw word.
func (s *Stack) PushRaw(w uint64) { s.words = append(s.words, w) }

// PushInt pushes a signed integer as one word.
func (s *Stack) PushInt(v int64) { s.PushRaw(uint64(v)) }

// PushFloat pushes a float64 as one word.
func (s *Stack) PushFloat(v float64) { s.PushRaw(math.Float64bits(v)) }

// PushBytes pushes an arbitrary byte blob, zero-padded to whole words,
// for struct-by-value arguments.
func (s *Stack) PushBytes(b []byte) {
	padded := make([]byte, (len(b)+s.wordSize-1)/s.wordSize*s.wordSize)
	copy(padded, b)
	for i := 0; i < len(padded); i += s.wordSize {
		var w [8]byte
		copy(w[:], padded[i:i+s.wordSize])
		s.PushRaw(binary.LittleEndian.Uint64(w[:]))
	}
}

// Pop removes and returns the top word.
func (s *Stack) Pop() (uint64, error) {
	if len(s.words) == 0 {
		return 0, fmt.Errorf("stack: pop on empty stack")
	}
	w := s.words[len(s.words)-1]
	s.words = s.words[:len(s.words)-1]
	return w, nil
}

// GetSignedInt reads the word at depth-relative index idx (0 is the
// top) as a signed integer without popping.
func (s *Stack) GetSignedInt(idx int) (int64, error) {
	if idx < 0 || idx >= len(s.words) {
		return 0, fmt.Errorf("stack: index %d out of range (depth %d)", idx, len(s.words))
	}
	return int64(s.words[len(s.words)-1-idx]), nil
}

// GetFloat reads the word at index idx as a float64 without popping.
func (s *Stack) GetFloat(idx int) (float64, error) {
	if idx < 0 || idx >= len(s.words) {
		return 0, fmt.Errorf("stack: index %d out of range (depth %d)", idx, len(s.words))
	}
	return math.Float64frombits(s.words[len(s.words)-1-idx]), nil
}

// Context is one single-threaded execution context over a linked
// program. Contexts share the read-only image; each owns its stack.
type Context struct {
	// ID uniquely identifies this context in logs and debug info.
	ID uuid.UUID

	prog  *Program
	stack *Stack
	log   *zap.SugaredLogger

	exec    Executor
	onError RuntimeErrorFunc
}

func newContext(prog *Program, wordSize int, log *zap.SugaredLogger) *Context {
	return &Context{
		ID:    uuid.New(),
		prog:  prog,
		stack: NewStack(wordSize),
		log:   log,
	}
}

// Stack exposes the context's argument/result stack.
func (c *Context) Stack() *Stack { return c.stack }

// SetExecutor installs the VM that Call dispatches into.
func (c *Context) SetExecutor(e Executor) { c.exec = e }

// SetRuntimeErrorCallback installs the handler runtime errors inside
// executed code are routed to.
func (c *Context) SetRuntimeErrorCallback(cb RuntimeErrorFunc) { c.onError = cb }

// Call invokes the named script function. Arguments must already be on
// the stack (right to left); the caller cleans them up afterwards and
// finds any result on top.
func (c *Context) Call(name string) error {
	pc, err := c.prog.EntryPC(name)
	if err != nil {
		return err
	}
	if c.exec == nil {
		return fmt.Errorf("context %s: no executor installed", c.ID)
	}
	if c.log != nil {
		c.log.Debugw("call", "context", c.ID.String(), "func", name, "pc", pc, "stack", c.stack.Depth())
	}
	if err := c.exec.Execute(c.prog, pc, c.stack); err != nil {
		if c.onError != nil {
			c.onError(err.Error())
			return nil
		}
		return err
	}
	return nil
}

// RunConstructors drives the global __init chain, which constructs
// global variables (including baked string globals) in declaration
// order.
func (c *Context) RunConstructors() error {
	if _, err := c.prog.EntryPC("__init"); err != nil {
		return nil // no globals needing construction
	}
	return c.Call("__init")
}

// RunDestructors drives the global __exit chain, destructing globals in
// reverse declaration order.
func (c *Context) RunDestructors() error {
	if _, err := c.prog.EntryPC("__exit"); err != nil {
		return nil
	}
	return c.Call("__exit")
}
