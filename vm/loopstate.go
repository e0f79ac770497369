package vm

import "github.com/sim82/squirrel-go/value"

type loopKind int

const (
	loopContinue loopKind = iota
	loopCall
	loopTailCall
	loopLeaveFrame
)

// loopState is the control token an opcode arm returns to the dispatch
// loop: Continue, Call{closure,target,num_args,stack_inc},
// TailCall{closure,num_args,arg_offset}, or LeaveFrame(value).
type loopState struct {
	kind loopKind

	callee  value.Value // Call, TailCall
	target  int         // Call: caller-relative register, or noTargetReg
	newBase int         // Call: frame.base + stack_inc, computed while that frame is still active
	numArgs int         // Call, TailCall

	argOffset int // TailCall

	retval value.Value // LeaveFrame
}

var contState = loopState{kind: loopContinue}
