package vm

import (
	"testing"

	"github.com/sim82/squirrel-go/instr"
	"github.com/sim82/squirrel-go/value"
)

func i32(n int32) uint32 { return uint32(n) }

func runClosure(t *testing.T, fp *value.FuncProto) (value.Value, *Executor) {
	t.Helper()
	ex := New()
	closure := value.FromClosure(&value.Closure{FuncProto: value.FromFuncProto(fp)})
	if err := ex.Stack().Push(closure); err != nil {
		t.Fatalf("push closure: %v", err)
	}
	if err := ex.PushRootTable(); err != nil {
		t.Fatalf("push root table: %v", err)
	}
	if err := ex.Call(1); err != nil {
		t.Fatalf("Call: %v", err)
	}
	ret, err := ex.Execute()
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return ret, ex
}

// Scenario 1 (spec §8): Constant return.
func TestConstantReturn(t *testing.T) {
	fp := &value.FuncProto{
		SourceName: value.String("scenario1.nut"),
		Name:       value.String("main"),
		Instructions: []instr.Instruction{
			{Opcode: instr.OpLoadInt, Arg0: 1, Arg1: 111},
			{Opcode: instr.OpReturn, Arg0: 1, Arg1: 1},
		},
		StackSize: 2,
	}
	ret, _ := runClosure(t, fp)
	if ret.Kind() != value.KindInteger || ret.AsInteger() != 111 {
		t.Fatalf("got %v, want Integer(111)", ret)
	}
}

// Step must drive the same fetch/decode/dispatch/act cycle Execute loops
// over, one instruction at a time, so the interactive debugger can single-
// step a script. Re-runs scenario 1 but through Step directly.
func TestStepSingleInstruction(t *testing.T) {
	fp := &value.FuncProto{
		SourceName: value.String("scenario1.nut"),
		Name:       value.String("main"),
		Instructions: []instr.Instruction{
			{Opcode: instr.OpLoadInt, Arg0: 1, Arg1: 111},
			{Opcode: instr.OpReturn, Arg0: 1, Arg1: 1},
		},
		StackSize: 2,
	}
	ex := New()
	closure := value.FromClosure(&value.Closure{FuncProto: value.FromFuncProto(fp)})
	if err := ex.Stack().Push(closure); err != nil {
		t.Fatalf("push closure: %v", err)
	}
	if err := ex.PushRootTable(); err != nil {
		t.Fatalf("push root table: %v", err)
	}
	if err := ex.Call(1); err != nil {
		t.Fatalf("Call: %v", err)
	}

	ci := ex.CurrentCallInfo()
	if ci == nil || ci.IP != 0 {
		t.Fatalf("CurrentCallInfo before stepping = %+v, want ip 0", ci)
	}

	done, _, err := ex.Step()
	if err != nil {
		t.Fatalf("Step 1: %v", err)
	}
	if done {
		t.Fatalf("Step 1: done after LOADINT, want still running")
	}
	if ex.CurrentCallInfo().IP != 1 {
		t.Fatalf("ip after Step 1 = %d, want 1", ex.CurrentCallInfo().IP)
	}
	if got := ex.Stack().Value(1); got.Kind() != value.KindInteger || got.AsInteger() != 111 {
		t.Fatalf("R1 after Step 1 = %v, want Integer(111)", got)
	}

	done, ret, err := ex.Step()
	if err != nil {
		t.Fatalf("Step 2: %v", err)
	}
	if !done {
		t.Fatalf("Step 2: not done after RETURN")
	}
	if ret.Kind() != value.KindInteger || ret.AsInteger() != 111 {
		t.Fatalf("Step 2 return = %v, want Integer(111)", ret)
	}
}

// Scenario 2 (spec §8): iterative factorial of 5.
func TestFactorial(t *testing.T) {
	fp := &value.FuncProto{
		SourceName: value.String("scenario2.nut"),
		Name:       value.String("main"),
		Instructions: []instr.Instruction{
			{Opcode: instr.OpLoadInt, Arg0: 1, Arg1: i32(1)}, // 0: acc = 1
			{Opcode: instr.OpLoadInt, Arg0: 2, Arg1: i32(5)}, // 1: n = 5
			{Opcode: instr.OpLoadInt, Arg0: 3, Arg1: i32(0)}, // 2: zero = 0
			{Opcode: instr.OpLoadInt, Arg0: 4, Arg1: i32(1)}, // 3: one = 1
			{Opcode: instr.OpJCmp, Arg0: 3, Arg1: i32(3), Arg2: 2, Arg3: byte(instr.JCmpG)}, // 4: if !(n>0) exit
			{Opcode: instr.OpMul, Arg0: 1, Arg1: 2, Arg2: 1},                                // 5: acc = acc * n
			{Opcode: instr.OpSub, Arg0: 2, Arg1: 4, Arg2: 2},                                // 6: n = n - 1
			{Opcode: instr.OpJmp, Arg1: i32(-4)},                                            // 7: back to 4
			{Opcode: instr.OpReturn, Arg0: 1, Arg1: 1},                                       // 8: return acc
		},
		StackSize: 5,
	}
	ret, _ := runClosure(t, fp)
	if ret.Kind() != value.KindInteger || ret.AsInteger() != 120 {
		t.Fatalf("got %v, want Integer(120)", ret)
	}
}

// Scenario 3 (spec §8): table round-trip through NEWOBJ/NEWSLOT/GETK.
func TestTableRoundTrip(t *testing.T) {
	fp := &value.FuncProto{
		SourceName: value.String("scenario3.nut"),
		Name:       value.String("main"),
		Literals:   []value.Value{value.String("x")},
		Instructions: []instr.Instruction{
			{Opcode: instr.OpNewObj, Arg0: 1, Arg3: instr.NewObjTable}, // 0: R1 = {}
			{Opcode: instr.OpLoad, Arg0: 3, Arg1: 0},                   // 1: R3 = "x"
			{Opcode: instr.OpLoadInt, Arg0: 4, Arg1: 7},                // 2: R4 = 7
			{Opcode: instr.OpNewSlot, Arg1: 1, Arg2: 3, Arg3: 4},       // 3: R1["x"] = 7
			{Opcode: instr.OpGetK, Arg0: 2, Arg1: 0, Arg2: 1},          // 4: R2 = get(R1, "x")
			{Opcode: instr.OpReturn, Arg0: 1, Arg1: 2},                 // 5: return R2
		},
		StackSize: 5,
	}
	ret, _ := runClosure(t, fp)
	if ret.Kind() != value.KindInteger || ret.AsInteger() != 7 {
		t.Fatalf("got %v, want Integer(7)", ret)
	}
}

// Scenario 4 (spec §8): array iteration sum via FOREACH.
func TestArrayIterationSum(t *testing.T) {
	fp := &value.FuncProto{
		SourceName: value.String("scenario4.nut"),
		Name:       value.String("main"),
		Instructions: []instr.Instruction{
			{Opcode: instr.OpNewObj, Arg0: 1, Arg3: instr.NewObjArray},              // 0: R1 = []
			{Opcode: instr.OpAppendArray, Arg0: 1, Arg1: i32(10), Arg2: instr.AppendInt}, // 1: R1 << 10
			{Opcode: instr.OpAppendArray, Arg0: 1, Arg1: i32(20), Arg2: instr.AppendInt}, // 2: R1 << 20
			{Opcode: instr.OpAppendArray, Arg0: 1, Arg1: i32(30), Arg2: instr.AppendInt}, // 3: R1 << 30
			{Opcode: instr.OpLoadInt, Arg0: 3, Arg1: 0},                             // 4: sum = 0
			{Opcode: instr.OpLoadNulls, Arg0: 6, Arg1: 1},                           // 5: idx = null
			{Opcode: instr.OpForEach, Arg0: 1, Arg1: i32(2), Arg2: 4},               // 6: foreach R1 -> R4,R5,R6
			{Opcode: instr.OpAdd, Arg0: 3, Arg1: 5, Arg2: 3},                        // 7: sum = sum + value
			{Opcode: instr.OpJmp, Arg1: i32(-3)},                                    // 8: back to 6
			{Opcode: instr.OpReturn, Arg0: 1, Arg1: 3},                              // 9: return sum
		},
		StackSize: 7,
	}
	ret, _ := runClosure(t, fp)
	if ret.Kind() != value.KindInteger || ret.AsInteger() != 60 {
		t.Fatalf("got %v, want Integer(60)", ret)
	}
}

// Scenario 5 (spec §8): nested call through CLOSURE/CALL.
func TestNestedCall(t *testing.T) {
	nested := &value.FuncProto{
		SourceName: value.String("scenario5.nut"),
		Name:       value.String("four"),
		Instructions: []instr.Instruction{
			{Opcode: instr.OpLoadInt, Arg0: 0, Arg1: 4},
			{Opcode: instr.OpReturn, Arg0: 0, Arg1: 0},
		},
		StackSize: 1,
	}
	main := &value.FuncProto{
		SourceName: value.String("scenario5.nut"),
		Name:       value.String("main"),
		Functions:  []value.Value{value.FromFuncProto(nested)},
		Instructions: []instr.Instruction{
			{Opcode: instr.OpClosure, Arg0: 1, Arg1: 0},                // 0: R1 = Closure(nested)
			{Opcode: instr.OpCall, Arg0: 2, Arg1: 1, Arg2: 3, Arg3: 0}, // 1: R2 = R1(), frame at base+3
			{Opcode: instr.OpReturn, Arg0: 2, Arg1: 2},                 // 2: return R2
		},
		StackSize: 4,
	}
	ret, _ := runClosure(t, main)
	if ret.Kind() != value.KindInteger || ret.AsInteger() != 4 {
		t.Fatalf("got %v, want Integer(4)", ret)
	}
}

// Scenario 6 (spec §8): self tail call counting down to zero, call-info
// depth bounded regardless of how many times it recurses.
func TestTailCallBoundedDepth(t *testing.T) {
	fp := &value.FuncProto{
		SourceName: value.String("scenario6.nut"),
		Name:       value.String("countdown"),
		Instructions: []instr.Instruction{
			{Opcode: instr.OpLoadInt, Arg0: 2, Arg1: 0},                                  // 0: zero = 0
			{Opcode: instr.OpJCmp, Arg0: 2, Arg1: i32(4), Arg2: 1, Arg3: byte(instr.JCmpG)}, // 1: if !(n>0) return
			{Opcode: instr.OpLoadInt, Arg0: 3, Arg1: 1},                                  // 2: one = 1
			{Opcode: instr.OpSub, Arg0: 1, Arg1: 3, Arg2: 1},                             // 3: n = n - 1
			{Opcode: instr.OpClosure, Arg0: 4, Arg1: 0},                                  // 4: R4 = self closure
			{Opcode: instr.OpTailCall, Arg1: 4, Arg2: 0, Arg3: 2},                        // 5: tailcall self(this, n)
			{Opcode: instr.OpReturn, Arg0: 1, Arg1: 1},                                   // 6: return n
		},
		StackSize: 5,
	}
	fp.Functions = []value.Value{value.FromFuncProto(fp)} // self-reference for CLOSURE

	ex := New()
	closure := value.FromClosure(&value.Closure{FuncProto: value.FromFuncProto(fp)})
	if err := ex.Stack().Push(closure); err != nil {
		t.Fatalf("push closure: %v", err)
	}
	if err := ex.PushRootTable(); err != nil {
		t.Fatalf("push root table: %v", err)
	}
	if err := ex.Stack().Push(value.Integer(5)); err != nil {
		t.Fatalf("push n: %v", err)
	}
	if err := ex.Call(2); err != nil {
		t.Fatalf("Call: %v", err)
	}
	ret, err := ex.Execute()
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ret.Kind() != value.KindInteger || ret.AsInteger() != 0 {
		t.Fatalf("got %v, want Integer(0)", ret)
	}
	if depth := ex.CallDepth(); depth > 2 {
		t.Fatalf("CallDepth() = %d, want <= 2 regardless of recursion depth", depth)
	}
}

func TestArithIdentities(t *testing.T) {
	a, b := value.Integer(7), value.Integer(3)
	add, err := arith(instr.OpAdd, a, b)
	if err != nil {
		t.Fatal(err)
	}
	sub, err := arith(instr.OpSub, add, b)
	if err != nil {
		t.Fatal(err)
	}
	if sub.AsInteger() != a.AsInteger() {
		t.Fatalf("SUB(ADD(a,b),b) = %d, want %d", sub.AsInteger(), a.AsInteger())
	}
	mulAB, _ := arith(instr.OpMul, a, b)
	mulBA, _ := arith(instr.OpMul, b, a)
	if mulAB.AsInteger() != mulBA.AsInteger() {
		t.Fatalf("MUL not commutative: %d != %d", mulAB.AsInteger(), mulBA.AsInteger())
	}
}

func TestJZTruthiness(t *testing.T) {
	cases := []struct {
		v    value.Value
		jump bool
	}{
		{value.Bool(true), false},
		{value.Bool(false), true},
		{value.Integer(0), true},
		{value.Integer(5), false},
		{value.Null, true},
		{value.String(""), false},
	}
	for _, c := range cases {
		if got := !c.v.Truthy(); got != c.jump {
			t.Fatalf("Truthy(%v) jump = %v, want %v", c.v, got, c.jump)
		}
	}
}

func TestGetKAfterNewSlot(t *testing.T) {
	tbl := value.NewTable()
	tbl.Set(value.String("x"), value.Integer(9))
	v, err := get(value.FromTable(tbl), value.String("x"))
	if err != nil || v.AsInteger() != 9 {
		t.Fatalf("get(table, x) = %v, %v", v, err)
	}
	if _, err := get(value.FromTable(tbl), value.String("missing")); err == nil {
		t.Fatal("expected error for missing key")
	}
}

// PREPCALL must resolve the callee and also stash the receiver as "this" in
// arg3, in one step (spec §4.4).
func TestPrepCallSetsThisAndResolves(t *testing.T) {
	tbl := value.NewTable()
	tbl.Set(value.String("greet"), value.Integer(42))

	fp := &value.FuncProto{
		Literals:     []value.Value{value.String("greet")},
		Instructions: []instr.Instruction{{Opcode: instr.OpPrepCallK, Arg0: 2, Arg1: 0, Arg2: 1, Arg3: 3}},
		StackSize:    4,
	}
	ex := New()
	ci := &CallInfo{IP: 0}
	ex.Stack().SetValue(1, value.FromTable(tbl))

	st, err := ex.step(ci, fp, fp.Instructions[0])
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if st.kind != loopContinue {
		t.Fatalf("kind = %v, want loopContinue", st.kind)
	}
	if got := ex.Stack().Value(2); got.AsInteger() != 42 {
		t.Fatalf("R2 = %v, want Integer(42)", got)
	}
	if got := ex.Stack().Value(3); got.AsTable() != tbl {
		t.Fatalf("R3 (this) = %v, want the table itself", got)
	}
}

// A native closure's return value lives in register 0 of its own frame
// regardless of how many arguments it declares; dispatchCall must read it
// back even when Nargs is 0, since register 0 is always addressable in the
// flat preallocated stack.
func TestNativeCallZeroArgsReturnsValue(t *testing.T) {
	nc := NewNativeClosure("answer", func(frame value.FrameAccessor) error {
		frame.SetValue(0, value.Integer(42))
		return nil
	}, 0)

	fp := &value.FuncProto{
		SourceName: value.String("native.nut"),
		Name:       value.String("main"),
		Literals:   []value.Value{value.FromNativeClosure(nc)},
		Instructions: []instr.Instruction{
			{Opcode: instr.OpLoad, Arg0: 1, Arg1: 0},                   // 0: R1 = answer
			{Opcode: instr.OpCall, Arg0: 2, Arg1: 1, Arg2: 3, Arg3: 0}, // 1: R2 = R1()
			{Opcode: instr.OpReturn, Arg0: 2, Arg1: 2},                 // 2: return R2
		},
		StackSize: 4,
	}
	ret, _ := runClosure(t, fp)
	if ret.Kind() != value.KindInteger || ret.AsInteger() != 42 {
		t.Fatalf("got %v, want Integer(42)", ret)
	}
}

func TestArrayLenDelegation(t *testing.T) {
	arr := value.NewArray(0)
	arr.Append(value.Integer(1))
	arr.Append(value.Integer(2))
	v, err := get(value.FromArray(arr), value.String("len"))
	if err != nil {
		t.Fatal(err)
	}
	if v.AsInteger() != int64(arr.Len()) {
		t.Fatalf("len = %d, want %d", v.AsInteger(), arr.Len())
	}
}
