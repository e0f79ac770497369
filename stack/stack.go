// Package stack implements the fixed-capacity, frame-windowed value stack
// the executor runs its registers over.
//
// Grounded on original_source/src/vm.rs's Stack type (up/top/value/pop/push/
// get_frame/set_frame — the same operation set and frame-relative
// addressing), with the instruction-arg-indexed accessors added so the
// executor can save/restore a frame window across calls.
package stack

import (
	vmerrors "github.com/sim82/squirrel-go/errors"
	"github.com/sim82/squirrel-go/instr"
	"github.com/sim82/squirrel-go/value"
)

// DefaultCapacity is the stack's preallocated slot count, chosen to outsize
// any realistic recursion depth and sized once at construction to avoid
// reallocation during hot execution.
const DefaultCapacity = 100_000

// Frame is the {base, top} window of one active call.
type Frame struct {
	Base int
	Top  int
}

// Stack is a single value buffer of fixed capacity with a current frame.
// Register references inside an instruction are indices relative to
// Frame.Base.
type Stack struct {
	values []value.Value
	frame  Frame
}

// New returns a Stack preallocated to DefaultCapacity, with an initial
// empty frame at the bottom of the buffer.
func New() *Stack {
	return &Stack{
		values: make([]value.Value, DefaultCapacity),
		frame:  Frame{Base: 0, Top: 0},
	}
}

// Frame returns the current frame window.
func (s *Stack) Frame() Frame { return s.frame }

// SetFrame replaces the current frame window, e.g. when restoring the
// caller's frame after a nested call returns.
func (s *Stack) SetFrame(f Frame) { s.frame = f }

// Cap returns the stack's fixed capacity.
func (s *Stack) Cap() int { return len(s.values) }

// Push appends v at Top and advances Top.
func (s *Stack) Push(v value.Value) error {
	if s.frame.Top >= len(s.values) {
		return vmerrors.Runtime("stack overflow: top %d exceeds capacity %d", s.frame.Top, len(s.values))
	}
	s.values[s.frame.Top] = v
	s.frame.Top++
	return nil
}

// Pop retracts Top by n.
func (s *Stack) Pop(n int) {
	s.frame.Top -= n
	if s.frame.Top < 0 {
		s.frame.Top = 0
	}
}

// Top returns the value just below the current Top (the most recently
// pushed value).
func (s *Stack) Top() value.Value {
	return s.values[s.frame.Top-1]
}

// Up returns the value at offset k relative to Top (k may be negative, the
// common case being peeking the callable at top - (num_params+1)).
func (s *Stack) Up(k int) value.Value {
	return s.values[s.frame.Top+k]
}

// SetUp writes v at offset k relative to Top.
func (s *Stack) SetUp(k int, v value.Value) {
	s.values[s.frame.Top+k] = v
}

// Value returns register i (frame-relative).
func (s *Stack) Value(i int) value.Value {
	return s.values[s.frame.Base+i]
}

// SetValue writes register i (frame-relative). Implements
// value.FrameAccessor so NativeFunc callbacks can read/write their own
// registers without importing this package back into value.
func (s *Stack) SetValue(i int, v value.Value) {
	s.values[s.frame.Base+i] = v
}

// Swap exchanges the two frame-relative registers i and j.
func (s *Stack) Swap(i, j int) {
	base := s.frame.Base
	s.values[base+i], s.values[base+j] = s.values[base+j], s.values[base+i]
}

// SliceMut returns a mutable view over frame-relative registers [from, to).
// For callers that need to address a contiguous run of registers; the
// executor's opcode arms (LOADNULLS included) write registers one at a time
// through SetValue instead.
func (s *Stack) SliceMut(from, to int) []value.Value {
	base := s.frame.Base
	return s.values[base+from : base+to]
}

// The Arg*/SetArg* family reads/writes the register named by one of an
// Instruction's four byte-sized fields. Centralizing this here (rather
// than in the executor) keeps the "register index relative to base"
// convention in exactly one place.

// Arg0 returns the register named by in.Arg0.
func (s *Stack) Arg0(in instr.Instruction) value.Value { return s.Value(int(in.Arg0)) }

// SetArg0 writes the register named by in.Arg0.
func (s *Stack) SetArg0(in instr.Instruction, v value.Value) { s.SetValue(int(in.Arg0), v) }

// Arg1AsRegister returns the register named by in.Arg1 (used by opcodes
// where arg1 addresses a register rather than carrying an immediate).
func (s *Stack) Arg1AsRegister(in instr.Instruction) value.Value { return s.Value(int(in.Arg1)) }

// Arg2 returns the register named by in.Arg2.
func (s *Stack) Arg2(in instr.Instruction) value.Value { return s.Value(int(in.Arg2)) }

// SetArg2 writes the register named by in.Arg2.
func (s *Stack) SetArg2(in instr.Instruction, v value.Value) { s.SetValue(int(in.Arg2), v) }

// Arg3 returns the register named by in.Arg3.
func (s *Stack) Arg3(in instr.Instruction) value.Value { return s.Value(int(in.Arg3)) }

// SetArg3 writes the register named by in.Arg3.
func (s *Stack) SetArg3(in instr.Instruction, v value.Value) { s.SetValue(int(in.Arg3), v) }
