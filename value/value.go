// Package value implements the tagged Value union together with the heap
// object types it references: FuncProto, Closure, NativeClosure, Table,
// and Array. The two live in one package because they
// form a single cyclic type graph — a Value may hold a *FuncProto, and a
// FuncProto's Literals are themselves []Value — mirroring how the ported
// reference implementation spreads this same cycle across two modules
// (lib.rs's Object enum, object.rs's structs) that Rust lets refer to each
// other freely.
package value

// Value is a tagged union over Squirrel's runtime value space. The zero
// Value is Null.
//
// Scalars (Null, Bool, Integer, Float) and String are held inline; heap
// objects (Table, Array, Closure, NativeClosure, FuncProto) are held by
// pointer, giving "shared reference, interior mutability" directly from
// Go's GC — see DESIGN.md's Open Question resolution for why this
// supersedes the ported implementation's manual reference counting.
type Value struct {
	kind Kind

	i     int64
	f     float32
	b     bool
	str   string
	table *Table
	array *Array
	clo   *Closure
	nat   *NativeClosure
	fp    *FuncProto
}

// Null is the canonical null value.
var Null = Value{kind: KindNull}

// Bool constructs a Bool value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Integer constructs an Integer value.
func Integer(i int64) Value { return Value{kind: KindInteger, i: i} }

// Float constructs a Float value.
func Float(f float32) Value { return Value{kind: KindFloat, f: f} }

// String constructs a String value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// FromTable constructs a Table value.
func FromTable(t *Table) Value { return Value{kind: KindTable, table: t} }

// FromArray constructs an Array value.
func FromArray(a *Array) Value { return Value{kind: KindArray, array: a} }

// FromClosure constructs a Closure value.
func FromClosure(c *Closure) Value { return Value{kind: KindClosure, clo: c} }

// FromNativeClosure constructs a NativeClosure value.
func FromNativeClosure(n *NativeClosure) Value { return Value{kind: KindNativeClosure, nat: n} }

// FromFuncProto constructs a FuncProto value.
func FromFuncProto(fp *FuncProto) Value { return Value{kind: KindFuncProto, fp: fp} }

// Kind reports the value's tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the payload of a Bool value; the result is meaningless if
// Kind() != KindBool.
func (v Value) AsBool() bool { return v.b }

// AsInteger returns the payload of an Integer value.
func (v Value) AsInteger() int64 { return v.i }

// AsFloat returns the payload of a Float value.
func (v Value) AsFloat() float32 { return v.f }

// AsString returns the payload of a String value.
func (v Value) AsString() string { return v.str }

// AsTable returns the payload of a Table value.
func (v Value) AsTable() *Table { return v.table }

// AsArray returns the payload of an Array value.
func (v Value) AsArray() *Array { return v.array }

// AsClosure returns the payload of a Closure value.
func (v Value) AsClosure() *Closure { return v.clo }

// AsNativeClosure returns the payload of a NativeClosure value.
func (v Value) AsNativeClosure() *NativeClosure { return v.nat }

// AsFuncProto returns the payload of a FuncProto value.
func (v Value) AsFuncProto() *FuncProto { return v.fp }

// IsCallable reports whether v can appear as the callee of CALL/TAILCALL.
func (v Value) IsCallable() bool {
	return v.kind == KindClosure || v.kind == KindNativeClosure
}

// TypeName returns the Squirrel type name, as reported by the TYPEOF
// opcode: all callables collapse to "function".
func (v Value) TypeName() string { return v.kind.String() }

// IsHashable reports whether v may be used as a Table key: hash is defined
// on Integer, Bool, and String only.
func IsHashable(v Value) bool {
	switch v.kind {
	case KindInteger, KindBool, KindString:
		return true
	default:
		return false
	}
}

// Truthy implements the boolean-coercion rule used by JZ: Bool is itself,
// Integer is "!= 0", Null is false, String is always true. Any other kind,
// Float included (whatever its value), is also treated as true.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInteger:
		return v.i != 0
	case KindNull:
		return false
	default:
		return true
	}
}

// Equal implements the restricted equality Integer==Integer, String==String,
// Bool==Bool by payload; every other same-type or cross-type pair compares
// unequal. This backs the EQ opcode's defined cases; EQ on any other pair
// of kinds is a RuntimeError at the opcode level, not merely "false" — see
// vm.Executor's EQ arm.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindInteger:
		return a.i == b.i
	case KindString:
		return a.str == b.str
	case KindBool:
		return a.b == b.b
	default:
		return false
	}
}

// Clone implements the CLONE opcode's contract: scalar variants clone by
// value; Table and Array get a fresh container with a shallow copy of their
// entries; every other kind cannot be cloned.
func (v Value) Clone() (Value, bool) {
	switch v.kind {
	case KindNull, KindBool, KindInteger, KindFloat, KindString:
		return v, true
	case KindTable:
		return FromTable(v.table.Clone()), true
	case KindArray:
		return FromArray(v.array.Clone()), true
	default:
		return Value{}, false
	}
}

// Display renders v in the form used by string ADD concatenation and by
// diagnostics (PrintState, the interactive debugger).
func (v Value) Display() string {
	switch v.kind {
	case KindNull:
		return "(null)"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInteger:
		return formatInt(v.i)
	case KindFloat:
		return formatFloat(v.f)
	case KindString:
		return v.str
	case KindTable:
		return "(table)"
	case KindArray:
		return "(array)"
	case KindClosure, KindNativeClosure, KindFuncProto:
		return "(function)"
	default:
		return "(unknown)"
	}
}
