// Package squirrel is the root of a register-based bytecode interpreter for
// a compiled Squirrel-family scripting language: a tagged value model, a
// streaming loader for the on-disk closure format, and a virtual machine
// that dispatches a fixed instruction set over frame-relative registers.
//
// # Architecture Overview
//
// The interpreter is organized into packages with distinct responsibilities:
//
//	squirrel-go/        Root package (this file)
//	├── instr/           Instruction decode: opcodes, the 8-byte wire layout
//	├── value/           Tagged Value union plus heap objects (Table, Array,
//	│                    Closure, NativeClosure, FuncProto)
//	├── bytecode/        Streaming loader for the compiled-closure binary format
//	├── stack/           Fixed-capacity, frame-windowed register stack
//	├── vm/              The executor: call frames, root table, dispatch loop
//	├── errors/          Structured two-kind error type (I/O vs runtime)
//	└── cmd/squirrel/    CLI entry point and interactive step-debugger
//
// # Quick Start
//
// Load a compiled closure and run it with one argument (the root table):
//
//	f, _ := os.Open("script.cnut")
//	closure, err := bytecode.Load(f)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ex := vm.New()
//	ex.Stack().Push(closure)
//	ex.PushRootTable()
//	if err := ex.Call(1); err != nil {
//	    log.Fatal(err)
//	}
//	result, err := ex.Execute()
//
// # Value Model
//
// Scalars (Null, Bool, Integer, Float) and String are held inline inside
// value.Value; Table, Array, Closure, NativeClosure, and FuncProto are
// heap-allocated and referenced by pointer, giving Table and Array the
// shared, interior-mutable semantics the instruction set expects directly
// from Go's garbage collector — no manual reference counting.
//
// # Error Handling
//
// Every failure path returns an *errors.Error tagged KindIO (a failed read
// while loading bytecode) or KindRuntime (anything else: a malformed
// stream, an unsupported opcode, a type mismatch, an out-of-bounds index).
// A runtime error raised mid-execution carries the faulting function and
// instruction pointer; vm.Executor.PrintState prints the call chain as it
// stood when execution failed.
package squirrel
