package vm

import (
	vmerrors "github.com/sim82/squirrel-go/errors"
	"github.com/sim82/squirrel-go/instr"
	"github.com/sim82/squirrel-go/value"
)

// step decodes and executes one instruction, returning the control token
// the dispatch loop should act on.
func (e *Executor) step(ci *CallInfo, fp *value.FuncProto, in instr.Instruction) (loopState, error) {
	s := e.stack

	switch in.Opcode {

	case instr.OpLoadInt:
		s.SetArg0(in, value.Integer(int64(in.Arg1Signed())))
		return contState, nil

	case instr.OpLoad:
		lit, err := literalAt(fp, in.Arg1)
		if err != nil {
			return loopState{}, err
		}
		s.SetArg0(in, lit)
		return contState, nil

	case instr.OpDLoad:
		lit1, err := literalAt(fp, in.Arg1)
		if err != nil {
			return loopState{}, err
		}
		lit2, err := literalAt(fp, uint32(in.Arg3))
		if err != nil {
			return loopState{}, err
		}
		s.SetArg0(in, lit1)
		s.SetArg2(in, lit2)
		return contState, nil

	case instr.OpMove:
		// A plain register-to-register copy. Value is a small struct that
		// carries a pointer for heap kinds, so this already gives Table/
		// Array/Closure the shared-reference semantics a container model
		// expects without calling Clone.
		s.SetArg0(in, s.Arg1AsRegister(in))
		return contState, nil

	case instr.OpDMove:
		v1 := s.Arg1AsRegister(in)
		v3 := s.Arg3(in)
		s.SetArg0(in, v1)
		s.SetArg2(in, v3)
		return contState, nil

	case instr.OpTypeOf:
		v := s.Arg1AsRegister(in)
		s.SetArg0(in, value.String(v.TypeName()))
		return contState, nil

	case instr.OpAdd, instr.OpSub, instr.OpMul, instr.OpDiv, instr.OpMod:
		left := s.Arg2(in)
		right := s.Arg1AsRegister(in)
		result, err := arith(in.Opcode, left, right)
		if err != nil {
			return loopState{}, err
		}
		s.SetArg0(in, result)
		return contState, nil

	case instr.OpEq:
		left := s.Arg2(in)
		var right value.Value
		if in.Arg3 == 0 {
			right = s.Arg1AsRegister(in)
		} else {
			lit, err := literalAt(fp, in.Arg1)
			if err != nil {
				return loopState{}, err
			}
			right = lit
		}
		if left.Kind() != right.Kind() || (left.Kind() != value.KindInteger && left.Kind() != value.KindString) {
			return loopState{}, vmerrors.TypeMismatch("eq", left.TypeName()+"/"+right.TypeName())
		}
		s.SetArg0(in, value.Bool(value.Equal(left, right)))
		return contState, nil

	case instr.OpJz:
		if !s.Arg0(in).Truthy() {
			ci.IP += int(in.Arg1Signed())
		}
		return contState, nil

	case instr.OpJmp:
		ci.IP += int(in.Arg1Signed())
		return contState, nil

	case instr.OpJCmp:
		left := s.Arg2(in)
		right := s.Arg0(in)
		if left.Kind() != value.KindInteger || right.Kind() != value.KindInteger {
			return loopState{}, vmerrors.TypeMismatch("jcmp", left.TypeName()+"/"+right.TypeName())
		}
		a, b := left.AsInteger(), right.AsInteger()
		var cmp int64
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		}
		switch instr.JCmpKind(in.Arg3) {
		case instr.JCmpG:
			if !(cmp > 0) {
				ci.IP += int(in.Arg1Signed())
			}
		case instr.JCmpGE:
			if !(cmp >= 0) {
				ci.IP += int(in.Arg1Signed())
			}
		case instr.JCmpL:
			if !(cmp < 0) {
				ci.IP += int(in.Arg1Signed())
			}
		case instr.JCmpLE:
			if !(cmp <= 0) {
				ci.IP += int(in.Arg1Signed())
			}
		case instr.JCmp3Way:
			s.SetArg0(in, value.Integer(cmp))
		default:
			return loopState{}, vmerrors.Runtime("jcmp: unknown sub-op %d", in.Arg3)
		}
		return contState, nil

	case instr.OpClosure:
		if int(in.Arg1) >= len(fp.Functions) {
			return loopState{}, vmerrors.OutOfBounds("nested function index", int(in.Arg1), len(fp.Functions))
		}
		nested := fp.Functions[in.Arg1]
		s.SetArg0(in, value.FromClosure(&value.Closure{FuncProto: nested}))
		return contState, nil

	case instr.OpNewSlot:
		tbl := s.Arg1AsRegister(in)
		if tbl.Kind() != value.KindTable {
			return loopState{}, vmerrors.TypeMismatch("newslot", tbl.TypeName())
		}
		key := s.Arg2(in)
		if !value.IsHashable(key) {
			return loopState{}, vmerrors.TypeMismatch("newslot key", key.TypeName())
		}
		tbl.AsTable().Set(key, s.Arg3(in))
		return contState, nil

	case instr.OpPrepCall, instr.OpPrepCallK:
		var key value.Value
		if in.Opcode == instr.OpPrepCallK {
			lit, err := literalAt(fp, in.Arg1)
			if err != nil {
				return loopState{}, err
			}
			key = lit
		} else {
			key = s.Arg1AsRegister(in)
		}
		obj := s.Arg2(in)
		s.SetArg3(in, obj)
		resolved, err := get(obj, key)
		if err != nil {
			return loopState{}, err
		}
		s.SetArg0(in, resolved)
		return contState, nil

	case instr.OpGetK:
		lit, err := literalAt(fp, in.Arg1)
		if err != nil {
			return loopState{}, err
		}
		resolved, err := get(s.Arg2(in), lit)
		if err != nil {
			return loopState{}, err
		}
		s.SetArg0(in, resolved)
		return contState, nil

	case instr.OpCall:
		target := noTargetReg
		if in.Arg0 != instr.NoTarget {
			target = int(in.Arg0)
		}
		return loopState{
			kind:    loopCall,
			callee:  s.Arg1AsRegister(in),
			target:  target,
			newBase: s.Frame().Base + int(in.Arg2),
			numArgs: int(in.Arg3),
		}, nil

	case instr.OpTailCall:
		return loopState{
			kind:      loopTailCall,
			callee:    s.Arg1AsRegister(in),
			numArgs:   int(in.Arg3),
			argOffset: int(in.Arg2),
		}, nil

	case instr.OpReturn:
		ret := value.Null
		if in.Arg0 != instr.NoTarget {
			ret = s.Arg1AsRegister(in)
		}
		return loopState{kind: loopLeaveFrame, retval: ret}, nil

	case instr.OpNewObj:
		switch in.Arg3 {
		case instr.NewObjTable:
			s.SetArg0(in, value.FromTable(value.NewTable()))
		case instr.NewObjArray:
			s.SetArg0(in, value.FromArray(value.NewArray(int(in.Arg1))))
		default:
			return loopState{}, vmerrors.Runtime("newobj: unknown sub-op %d", in.Arg3)
		}
		return contState, nil

	case instr.OpAppendArray:
		dst := s.Arg0(in)
		if dst.Kind() != value.KindArray {
			return loopState{}, vmerrors.TypeMismatch("appendarray", dst.TypeName())
		}
		var v value.Value
		switch in.Arg2 {
		case instr.AppendStack:
			v = s.Arg1AsRegister(in)
		case instr.AppendLiteral:
			lit, err := literalAt(fp, in.Arg1)
			if err != nil {
				return loopState{}, err
			}
			v = lit
		case instr.AppendInt:
			v = value.Integer(int64(in.Arg1Signed()))
		case instr.AppendBool:
			v = value.Bool(in.Arg1 != 0)
		default:
			return loopState{}, vmerrors.Runtime("appendarray: unknown source selector %d", in.Arg2)
		}
		dst.AsArray().Append(v)
		return contState, nil

	case instr.OpLoadRoot:
		s.SetArg0(in, value.FromTable(e.root))
		return contState, nil

	case instr.OpLoadNulls:
		base, n := int(in.Arg0), int(in.Arg1)
		for i := 0; i < n; i++ {
			s.SetValue(base+i, value.Null)
		}
		return contState, nil

	case instr.OpForEach:
		arrVal := s.Arg0(in)
		if arrVal.Kind() != value.KindArray {
			return loopState{}, vmerrors.TypeMismatch("foreach", arrVal.TypeName())
		}
		arr := arrVal.AsArray()
		idxReg := int(in.Arg2) + 2
		var i int64
		if cur := s.Value(idxReg); cur.Kind() == value.KindInteger {
			i = cur.AsInteger()
		}
		if int(i) < arr.Len() {
			elem, _ := arr.At(int(i))
			s.SetValue(int(in.Arg2), value.Integer(i))
			s.SetValue(int(in.Arg2)+1, elem)
			s.SetValue(idxReg, value.Integer(i+1))
		} else {
			ci.IP += int(in.Arg1Signed())
		}
		return contState, nil

	case instr.OpClone:
		v := s.Arg1AsRegister(in)
		cloned, ok := v.Clone()
		if !ok {
			return loopState{}, vmerrors.TypeMismatch("clone", v.TypeName())
		}
		s.SetArg0(in, cloned)
		return contState, nil

	default:
		return loopState{}, vmerrors.Unsupported(in.Opcode.String())
	}
}

func literalAt(fp *value.FuncProto, idx uint32) (value.Value, error) {
	if int(idx) >= len(fp.Literals) {
		return value.Value{}, vmerrors.OutOfBounds("literal index", int(idx), len(fp.Literals))
	}
	return fp.Literals[idx], nil
}

// arith implements the ADD/SUB/MUL/DIV/MOD contract: integer arithmetic on
// Integer/Integer, string concatenation for ADD with a String left operand,
// everything else fails.
func arith(op instr.Opcode, left, right value.Value) (value.Value, error) {
	if left.Kind() == value.KindInteger && right.Kind() == value.KindInteger {
		l, r := left.AsInteger(), right.AsInteger()
		switch op {
		case instr.OpAdd:
			return value.Integer(l + r), nil
		case instr.OpSub:
			return value.Integer(l - r), nil
		case instr.OpMul:
			return value.Integer(l * r), nil
		case instr.OpDiv:
			if r == 0 {
				return value.Value{}, vmerrors.Runtime("div: division by zero")
			}
			return value.Integer(l / r), nil
		case instr.OpMod:
			if r == 0 {
				return value.Value{}, vmerrors.Runtime("mod: division by zero")
			}
			return value.Integer(l % r), nil
		}
	}
	if left.Kind() == value.KindString && op == instr.OpAdd {
		return value.String(left.AsString() + right.Display()), nil
	}
	return value.Value{}, vmerrors.TypeMismatch(op.String(), left.TypeName()+"/"+right.TypeName())
}

// get implements the key-value access helper used by GETK and
// PREPCALL/PREPCALLK.
func get(obj, key value.Value) (value.Value, error) {
	switch obj.Kind() {
	case value.KindTable:
		v, ok := obj.AsTable().Get(key)
		if !ok {
			return value.Value{}, vmerrors.NotFound(key.Display())
		}
		return v, nil

	case value.KindArray:
		arr := obj.AsArray()
		if key.Kind() == value.KindString && key.AsString() == "len" {
			return value.Integer(int64(arr.Len())), nil
		}
		if key.Kind() != value.KindInteger {
			return value.Value{}, vmerrors.TypeMismatch("get", key.TypeName())
		}
		idx := int(key.AsInteger())
		v, ok := arr.At(idx)
		if !ok {
			return value.Value{}, vmerrors.OutOfBounds("array index", idx, arr.Len())
		}
		return v, nil

	default:
		return value.Value{}, vmerrors.TypeMismatch("get", obj.TypeName())
	}
}
