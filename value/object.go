package value

import "github.com/sim82/squirrel-go/instr"

// FuncProto is the immutable compiled form of a function: its literal pool,
// parameter names, debug tables, instruction stream, nested prototypes, and
// stack size. It never changes after the loader constructs it.
//
// BGenerator and VarParams are read from the bytecode stream but not
// consumed by any opcode in the targeted subset, kept around against future
// generator support. OuterValues is decoded but never interpreted, for the
// same reason.
type FuncProto struct {
	SourceName Value
	Name       Value

	Literals    []Value
	Parameters  []Value
	OuterValues []OuterValue
	LocalVars   []LocalVarInfo
	LineInfos   []LineInfo
	DefaultParams []int64
	Instructions []instr.Instruction
	Functions    []Value // each a FuncProto-kind Value

	StackSize  int64
	BGenerator bool
	VarParams  int64
}

// OuterValue is a capture descriptor: (type, src, dst). Preserved but not
// exercised by any in-scope opcode.
type OuterValue struct {
	Type int64
	Src  Value
	Dst  Value
}

// LocalVarInfo is a debug-only record of a local variable's lexical extent.
type LocalVarInfo struct {
	Name    Value
	Pos     int64
	StartOp int64
	EndOp   int64
}

// LineInfo maps an instruction index to a source line number.
type LineInfo struct {
	Line int64
	Op   int64
}

// LineAt returns the source line active at instruction pointer ip, by
// scanning LineInfos for the last entry whose Op does not exceed ip.
// Recovered from the reference implementation's debug-info usage
// (original_source/src/lib.rs's FuncProto carries the same table); used by
// Executor.PrintState for postmortem diagnostics.
func (fp *FuncProto) LineAt(ip int) int64 {
	var line int64
	for _, li := range fp.LineInfos {
		if li.Op > int64(ip) {
			break
		}
		line = li.Line
	}
	return line
}

// DisplayName returns "source_name:name" for diagnostics, falling back to
// "<unknown>" for either half that isn't a String value.
func (fp *FuncProto) DisplayName() string {
	src := "<unknown>"
	if fp.SourceName.Kind() == KindString {
		src = fp.SourceName.str
	}
	name := "<unknown>"
	if fp.Name.Kind() == KindString {
		name = fp.Name.str
	}
	return src + ":" + name
}

// Closure pairs a FuncProto with its environment. In the targeted subset
// the environment is empty beyond the implicit root table passed as the
// first argument at call time.
type Closure struct {
	FuncProto Value // always FuncProto-kind
}

// NativeFunc is a host-provided callable. It receives the executor's active
// frame (via the Frame helper passed in) so it can read its arguments at
// registers [0, nargs) and, by convention, leave any return value it wants
// propagated in register 0 — the Call dispatch in vm.Executor reads that
// slot before restoring the caller's frame.
type NativeFunc func(frame FrameAccessor) error

// FrameAccessor is the minimal surface a NativeFunc needs: read/write its
// own registers. Implemented by stack.Stack; declared here (rather than
// imported from the stack package) to avoid value <-> stack import cycle.
type FrameAccessor interface {
	Value(i int) Value
	SetValue(i int, v Value)
}

// NativeClosure is a host function value: a callable plus its advertised,
// fixed arity.
type NativeClosure struct {
	Name  string
	Func  NativeFunc
	Nargs int64
}

// Table is a Squirrel table: a mapping restricted to Integer/Bool/String
// keys (the only hashable Value kinds). Shared by pointer, with interior
// mutability — multiple Value copies referencing the same *Table observe
// each other's writes, matching the "shared, interior mutable" container
// model the rest of this package follows.
type Table struct {
	entries map[Value]Value
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[Value]Value)}
}

// Get returns the value stored under key and whether it was present.
func (t *Table) Get(key Value) (Value, bool) {
	v, ok := t.entries[key]
	return v, ok
}

// Set stores value under key, inserting or overwriting.
func (t *Table) Set(key, val Value) {
	t.entries[key] = val
}

// Delete removes key, if present.
func (t *Table) Delete(key Value) {
	delete(t.entries, key)
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Clone returns a new Table holding a shallow copy of the entries, per the
// CLONE opcode's contract: a fresh container with a shallow clone of the
// entries.
func (t *Table) Clone() *Table {
	clone := make(map[Value]Value, len(t.entries))
	for k, v := range t.entries {
		clone[k] = v
	}
	return &Table{entries: clone}
}

// Array is a Squirrel array: an ordered, integer-indexed sequence. Shared
// by pointer with interior mutability, like Table.
type Array struct {
	items []Value
}

// NewArray returns an empty array with capacity reserved for size entries.
func NewArray(size int) *Array {
	if size < 0 {
		size = 0
	}
	return &Array{items: make([]Value, 0, size)}
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.items)
}

// At returns the element at index i (0-based), or false if i is out of
// bounds. A negative index is out of bounds.
func (a *Array) At(i int) (Value, bool) {
	if i < 0 || i >= len(a.items) {
		return Value{}, false
	}
	return a.items[i], true
}

// Append adds v to the end of the array.
func (a *Array) Append(v Value) {
	a.items = append(a.items, v)
}

// Clone returns a new Array holding a shallow copy of the elements.
func (a *Array) Clone() *Array {
	clone := make([]Value, len(a.items))
	copy(clone, a.items)
	return &Array{items: clone}
}

// Items exposes the backing slice for FOREACH-style iteration. Callers must
// not retain it beyond one opcode's execution, since Append may reallocate.
func (a *Array) Items() []Value {
	return a.items
}
