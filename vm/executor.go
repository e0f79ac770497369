// Package vm implements the register-based executor: call frames, the root
// table, native-function registration, and the fetch/decode/dispatch loop
// over instr.Instruction.
//
// Grounded on original_source/src/vm.rs's Executor/Stack skeleton (call-info
// stack, {prevframe, closure, ip, root} call-info shape, the Call/TailCall/
// LeaveFrame control-token split) and on runtime/instance.go's dispatch-loop
// idiom (fetch, decode, switch, act-on-result) for the Go rendering of that
// loop.
package vm

import (
	"fmt"
	"io"

	vmerrors "github.com/sim82/squirrel-go/errors"
	"github.com/sim82/squirrel-go/instr"
	"github.com/sim82/squirrel-go/stack"
	"github.com/sim82/squirrel-go/value"
)

// noTargetReg marks a CallInfo.Target (or loopState.target) as "nothing
// receives this call's return value" — the in-VM counterpart of
// instr.NoTarget, using -1 so it can never collide with a real register
// index.
const noTargetReg = -1

// CallInfo is the bookkeeping record for one active call.
type CallInfo struct {
	PrevFrame stack.Frame
	Closure   value.Value // always Closure-kind
	IP        int
	Root      bool
	Target    int // caller-relative register to receive the return value, or noTargetReg
}

// Executor runs one call stack to completion. The zero value is not usable;
// construct with New.
type Executor struct {
	stack *stack.Stack
	calls []*CallInfo
	root  *value.Table

	// InstrProfiling and TraceCallReturn are diagnostic switches. Their
	// effect is entirely observational: a profiling counter and a
	// Debug-level trace log, backed by Logger().
	InstrProfiling  bool
	TraceCallReturn bool

	profile map[instr.Opcode]int64
}

// New constructs an Executor with an empty root table and an empty call
// stack.
func New() *Executor {
	return &Executor{
		stack:   stack.New(),
		root:    value.NewTable(),
		profile: make(map[instr.Opcode]int64),
	}
}

// Stack returns the value stack, for pushing call arguments before Call.
func (e *Executor) Stack() *stack.Stack { return e.stack }

// PushRootTable pushes the current root table value onto the stack (shared
// reference — callers receive the same table).
func (e *Executor) PushRootTable() error {
	return e.stack.Push(value.FromTable(e.root))
}

// NewNativeClosure constructs a NativeClosure value from a callable and its
// advertised arity.
func NewNativeClosure(name string, fn value.NativeFunc, nargs int64) *value.NativeClosure {
	return &value.NativeClosure{Name: name, Func: fn, Nargs: nargs}
}

// AddNativeFunc registers nc in the root table under String(name).
func (e *Executor) AddNativeFunc(name string, nc *value.NativeClosure) {
	e.root.Set(value.String(name), value.FromNativeClosure(nc))
}

// CallDepth returns the number of active call-infos. TAILCALL never grows
// this (it rewrites the top call-info in place), so it stays bounded
// regardless of recursion depth.
func (e *Executor) CallDepth() int { return len(e.calls) }

// ProfileCounts returns a copy of the per-opcode dispatch counts gathered
// while InstrProfiling is set.
func (e *Executor) ProfileCounts() map[instr.Opcode]int64 {
	out := make(map[instr.Opcode]int64, len(e.profile))
	for k, v := range e.profile {
		out[k] = v
	}
	return out
}

// Call prepares a root frame from the callable at top-(numParams+1) and the
// numParams arguments pushed after it. Execute then runs it to completion.
func (e *Executor) Call(numParams int) error {
	fr := e.stack.Frame()
	callee := e.stack.Up(-(numParams + 1))
	if callee.Kind() != value.KindClosure {
		return vmerrors.Runtime("call: expected Closure at stack top, found %s", callee.TypeName())
	}
	closure := callee.AsClosure()
	fp := closure.FuncProto.AsFuncProto()

	stackbase := fr.Top - numParams
	if stackbase+int(fp.StackSize) > e.stack.Cap() {
		return vmerrors.Runtime("call: stack overflow (stacksize %d at base %d exceeds capacity %d)", fp.StackSize, stackbase, e.stack.Cap())
	}

	prevFrame := fr
	prevFrame.Top -= numParams // pop num_params from the caller's view

	ci := &CallInfo{PrevFrame: prevFrame, Closure: callee, IP: 0, Root: true, Target: noTargetReg}
	e.calls = append(e.calls, ci)
	e.stack.SetFrame(stack.Frame{Base: stackbase, Top: stackbase + int(fp.StackSize)})
	return nil
}

// Execute runs the fetch/decode/dispatch loop until the root call-info
// leaves its frame, returning its value. It is Step called in a loop until
// the root frame returns.
func (e *Executor) Execute() (value.Value, error) {
	for {
		done, ret, err := e.Step()
		if err != nil {
			return value.Value{}, err
		}
		if done {
			return ret, nil
		}
	}
}

// CurrentCallInfo returns the innermost active call-info, or nil if nothing
// is running. Used by the interactive debugger to show where execution is.
func (e *Executor) CurrentCallInfo() *CallInfo {
	if len(e.calls) == 0 {
		return nil
	}
	return e.calls[len(e.calls)-1]
}

// Step executes exactly one instruction: fetch, decode, dispatch, and act on
// the resulting control token — one iteration of the loop Execute drives to
// completion. done is true once the root call-info has left its frame, in
// which case ret holds its return value.
//
// Exposed separately from Execute so a single-step debugger (cmd/squirrel's
// -i mode) can drive execution one instruction at a time.
func (e *Executor) Step() (done bool, ret value.Value, err error) {
	if len(e.calls) == 0 {
		return false, value.Value{}, vmerrors.Runtime("execute: empty call stack")
	}
	ci := e.calls[len(e.calls)-1]
	fp := ci.Closure.AsClosure().FuncProto.AsFuncProto()

	if ci.IP < 0 || ci.IP >= len(fp.Instructions) {
		return false, value.Value{}, e.fail(ci, fp, vmerrors.Runtime("ip %d out of range (len %d)", ci.IP, len(fp.Instructions)))
	}
	in := fp.Instructions[ci.IP]
	ci.IP++

	if e.InstrProfiling {
		e.profile[in.Opcode]++
	}

	st, stepErr := e.step(ci, fp, in)
	if stepErr != nil {
		return false, value.Value{}, e.fail(ci, fp, stepErr)
	}

	switch st.kind {
	case loopContinue:
		return false, value.Value{}, nil

	case loopCall:
		if err := e.dispatchCall(st); err != nil {
			return false, value.Value{}, e.fail(ci, fp, err)
		}
		return false, value.Value{}, nil

	case loopTailCall:
		if err := e.dispatchTailCall(ci, st); err != nil {
			return false, value.Value{}, e.fail(ci, fp, err)
		}
		return false, value.Value{}, nil

	case loopLeaveFrame:
		if e.TraceCallReturn {
			Logger().Debug("leave frame", zapFields(fp.DisplayName(), ci.IP)...)
		}
		if ci.Root {
			return true, st.retval, nil
		}
		popped := ci
		e.calls = e.calls[:len(e.calls)-1]
		e.stack.SetFrame(popped.PrevFrame)
		if popped.Target != noTargetReg {
			e.stack.SetValue(popped.Target, st.retval)
		}
		return false, value.Value{}, nil

	default:
		return false, value.Value{}, nil
	}
}

// dispatchCall pushes a new call-info and frame for a CALL/PREPCALL target,
// dispatching to either a Closure (a new CallInfo) or a NativeClosure (run
// synchronously in a borrowed frame window, no CallInfo pushed).
func (e *Executor) dispatchCall(st loopState) error {
	switch st.callee.Kind() {
	case value.KindClosure:
		closure := st.callee.AsClosure()
		fp := closure.FuncProto.AsFuncProto()
		if st.newBase+int(fp.StackSize) > e.stack.Cap() {
			return vmerrors.Runtime("call: stack overflow (stacksize %d at base %d exceeds capacity %d)", fp.StackSize, st.newBase, e.stack.Cap())
		}
		prevFrame := e.stack.Frame()
		ci := &CallInfo{PrevFrame: prevFrame, Closure: st.callee, IP: 0, Root: false, Target: st.target}
		e.calls = append(e.calls, ci)
		e.stack.SetFrame(stack.Frame{Base: st.newBase, Top: st.newBase + int(fp.StackSize)})
		if e.TraceCallReturn {
			Logger().Debug("call", zapFields(fp.DisplayName(), 0)...)
		}
		return nil

	case value.KindNativeClosure:
		nc := st.callee.AsNativeClosure()
		saved := e.stack.Frame()
		newTop := st.newBase + int(nc.Nargs)
		if newTop > e.stack.Cap() {
			return vmerrors.Runtime("call: native stack overflow (nargs %d at base %d exceeds capacity %d)", nc.Nargs, st.newBase, e.stack.Cap())
		}
		e.stack.SetFrame(stack.Frame{Base: st.newBase, Top: newTop})
		if e.TraceCallReturn {
			Logger().Debug("native call", zapFields(nc.Name, 0)...)
		}
		err := nc.Func(e.stack)
		ret := value.Null
		if err == nil {
			ret = e.stack.Value(0)
		}
		e.stack.SetFrame(saved)
		if err != nil {
			return err
		}
		if st.target != noTargetReg {
			e.stack.SetValue(st.target, ret)
		}
		return nil

	default:
		return vmerrors.Runtime("call: expected Closure or NativeClosure, found %s", st.callee.TypeName())
	}
}

// dispatchTailCall rewrites the current call-info in place rather than
// pushing a new one, which is what keeps CallDepth bounded under self-recursion.
func (e *Executor) dispatchTailCall(ci *CallInfo, st loopState) error {
	if st.callee.Kind() != value.KindClosure {
		return vmerrors.Runtime("tailcall: expected Closure, found %s", st.callee.TypeName())
	}
	for i := 0; i < st.numArgs; i++ {
		e.stack.Swap(i, st.argOffset+i)
	}
	ci.Closure = st.callee
	ci.IP = 0
	if e.TraceCallReturn {
		Logger().Debug("tailcall", zapFields(st.callee.AsClosure().FuncProto.AsFuncProto().DisplayName(), 0)...)
	}
	return nil
}

// fail annotates err with the faulting function/ip (its At location) and
// leaves e.calls/e.stack untouched so the caller can inspect them, e.g.
// through PrintState, after Execute returns.
func (e *Executor) fail(ci *CallInfo, fp *value.FuncProto, err error) error {
	if verr, ok := err.(*vmerrors.Error); ok && verr.At == nil {
		verr.At = &vmerrors.Location{Function: fp.DisplayName(), IP: ci.IP - 1}
	}
	return err
}

// PrintState writes the active call-info chain, innermost first, to w as a
// postmortem hook. Call it immediately after Execute returns an error; it
// reads e.calls as Execute left them on failure.
func (e *Executor) PrintState(w io.Writer) {
	fmt.Fprintln(w, "call stack (innermost first):")
	for i := len(e.calls) - 1; i >= 0; i-- {
		ci := e.calls[i]
		fp := ci.Closure.AsClosure().FuncProto.AsFuncProto()
		fmt.Fprintf(w, "  #%d %s ip=%d line=%d\n", len(e.calls)-1-i, fp.DisplayName(), ci.IP, fp.LineAt(ci.IP))
	}
}
