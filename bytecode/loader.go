// Package bytecode implements the streaming loader for the compiled-closure
// binary format: it deserializes a compiled closure — its top-level
// FuncProto and every nested FuncProto — into value.Value trees.
//
// Grounded on original_source/src/io.rs's read_closure/read_funcproto/
// read_object/read_string (exact tag sequence and field order) and
// wasm/internal/binary.Reader's position-tracked, wrapped-error reading
// idiom.
package bytecode

import (
	"fmt"
	"io"

	vmerrors "github.com/sim82/squirrel-go/errors"
	"github.com/sim82/squirrel-go/instr"
	"github.com/sim82/squirrel-go/value"
)

// Load reads one closure (a FuncProto plus its nested FuncProtos) from r.
// The returned Value is always Closure-kind.
func Load(r io.Reader) (value.Value, error) {
	rd := newReader(r)

	head, err := rd.readU16("file head")
	if err != nil {
		return value.Value{}, err
	}
	if head != fileHeadTag {
		return value.Value{}, runtimeErr("load", "missing bytecode stream tag (got 0x%04x)", head)
	}

	if err := expectTag(rd, "stream head", closurestreamHead); err != nil {
		return value.Value{}, err
	}
	if err := expectU32(rd, "char size", sizeCharTag); err != nil {
		return value.Value{}, err
	}
	if err := expectU32(rd, "integer size", sizeIntegerTag); err != nil {
		return value.Value{}, err
	}
	if err := expectU32(rd, "float size", sizeFloatTag); err != nil {
		return value.Value{}, err
	}

	fp, err := readFuncProto(rd)
	if err != nil {
		return value.Value{}, err
	}

	if err := expectTag(rd, "stream tail", closurestreamTail); err != nil {
		return value.Value{}, err
	}

	closure := &value.Closure{FuncProto: value.FromFuncProto(fp)}
	return value.FromClosure(closure), nil
}

func readFuncProto(rd *reader) (*value.FuncProto, error) {
	if err := expectTag(rd, "funcproto part", closurestreamPart); err != nil {
		return nil, err
	}
	sourceName, err := readObject(rd)
	if err != nil {
		return nil, err
	}
	name, err := readObject(rd)
	if err != nil {
		return nil, err
	}

	if err := expectTag(rd, "funcproto counts", closurestreamPart); err != nil {
		return nil, err
	}
	counts := make([]int64, 8)
	labels := []string{"literals", "parameters", "outervalues", "localvarinfos", "lineinfos", "defaultparams", "instructions", "functions"}
	for i := range counts {
		n, err := rd.readI64("count " + labels[i])
		if err != nil {
			return nil, err
		}
		counts[i] = n
	}
	nLiterals, nParams, nOuter, nLocalVars, nLines, nDefaults, nInstrs, nFuncs := counts[0], counts[1], counts[2], counts[3], counts[4], counts[5], counts[6], counts[7]

	if err := expectTag(rd, "literals", closurestreamPart); err != nil {
		return nil, err
	}
	literals, err := readObjectSlice(rd, nLiterals)
	if err != nil {
		return nil, err
	}

	if err := expectTag(rd, "parameters", closurestreamPart); err != nil {
		return nil, err
	}
	parameters, err := readObjectSlice(rd, nParams)
	if err != nil {
		return nil, err
	}

	if err := expectTag(rd, "outervalues", closurestreamPart); err != nil {
		return nil, err
	}
	outerValues := make([]value.OuterValue, 0, nOuter)
	for i := int64(0); i < nOuter; i++ {
		typ, err := rd.readI64("outervalue type")
		if err != nil {
			return nil, err
		}
		src, err := readObject(rd)
		if err != nil {
			return nil, err
		}
		dst, err := readObject(rd)
		if err != nil {
			return nil, err
		}
		outerValues = append(outerValues, value.OuterValue{Type: typ, Src: src, Dst: dst})
	}

	if err := expectTag(rd, "localvarinfos", closurestreamPart); err != nil {
		return nil, err
	}
	localVars := make([]value.LocalVarInfo, 0, nLocalVars)
	for i := int64(0); i < nLocalVars; i++ {
		lvName, err := readObject(rd)
		if err != nil {
			return nil, err
		}
		pos, err := rd.readI64("localvarinfo pos")
		if err != nil {
			return nil, err
		}
		start, err := rd.readI64("localvarinfo start_op")
		if err != nil {
			return nil, err
		}
		end, err := rd.readI64("localvarinfo end_op")
		if err != nil {
			return nil, err
		}
		localVars = append(localVars, value.LocalVarInfo{Name: lvName, Pos: pos, StartOp: start, EndOp: end})
	}

	if err := expectTag(rd, "lineinfos", closurestreamPart); err != nil {
		return nil, err
	}
	lineInfos := make([]value.LineInfo, 0, nLines)
	for i := int64(0); i < nLines; i++ {
		line, err := rd.readI64("lineinfo line")
		if err != nil {
			return nil, err
		}
		op, err := rd.readI64("lineinfo op")
		if err != nil {
			return nil, err
		}
		lineInfos = append(lineInfos, value.LineInfo{Line: line, Op: op})
	}

	if err := expectTag(rd, "defaultparams", closurestreamPart); err != nil {
		return nil, err
	}
	defaultParams := make([]int64, 0, nDefaults)
	for i := int64(0); i < nDefaults; i++ {
		p, err := rd.readI64("defaultparam")
		if err != nil {
			return nil, err
		}
		defaultParams = append(defaultParams, p)
	}

	if err := expectTag(rd, "instructions", closurestreamPart); err != nil {
		return nil, err
	}
	instructions := make([]instr.Instruction, 0, nInstrs)
	for i := int64(0); i < nInstrs; i++ {
		raw, err := rd.readBytes("instruction", instr.Size)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, instr.Decode(raw))
	}

	if err := expectTag(rd, "nested functions", closurestreamPart); err != nil {
		return nil, err
	}
	functions := make([]value.Value, 0, nFuncs)
	for i := int64(0); i < nFuncs; i++ {
		nested, err := readFuncProto(rd)
		if err != nil {
			return nil, err
		}
		functions = append(functions, value.FromFuncProto(nested))
	}

	stackSize, err := rd.readI64("stacksize")
	if err != nil {
		return nil, err
	}
	bgen, err := rd.readByte("bgenerator")
	if err != nil {
		return nil, err
	}
	varParams, err := rd.readI64("varparams")
	if err != nil {
		return nil, err
	}

	return &value.FuncProto{
		SourceName:    sourceName,
		Name:          name,
		Literals:      literals,
		Parameters:    parameters,
		OuterValues:   outerValues,
		LocalVars:     localVars,
		LineInfos:     lineInfos,
		DefaultParams: defaultParams,
		Instructions:  instructions,
		Functions:     functions,
		StackSize:     stackSize,
		BGenerator:    bgen != 0,
		VarParams:     varParams,
	}, nil
}

func readObjectSlice(rd *reader, n int64) ([]value.Value, error) {
	out := make([]value.Value, 0, n)
	for i := int64(0); i < n; i++ {
		v, err := readObject(rd)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// readObject decodes one tagged object: a u32 type tag followed by its
// payload.
func readObject(rd *reader) (value.Value, error) {
	tag, err := rd.readU32("object tag")
	if err != nil {
		return value.Value{}, err
	}
	switch tag {
	case tagNull:
		return value.Null, nil
	case tagInteger:
		i, err := rd.readI64("integer literal")
		if err != nil {
			return value.Value{}, err
		}
		return value.Integer(i), nil
	case tagFloat:
		f, err := rd.readF32("float literal")
		if err != nil {
			return value.Value{}, err
		}
		return value.Float(f), nil
	case tagString:
		s, err := rd.readString("string literal")
		if err != nil {
			return value.Value{}, err
		}
		return value.String(s), nil
	default:
		return value.Value{}, runtimeErr("load", "unknown object type tag 0x%08x", tag)
	}
}

func expectTag(rd *reader, section string, want uint32) error {
	got, err := rd.readU32(section)
	if err != nil {
		return err
	}
	if got != want {
		return runtimeErr("load", "%s: unexpected tag 0x%08x, want 0x%08x", section, got, want)
	}
	return nil
}

func expectU32(rd *reader, section string, want uint32) error {
	got, err := rd.readU32(section)
	if err != nil {
		return err
	}
	if got != want {
		return runtimeErr("load", "%s: unexpected value %d, want %d", section, got, want)
	}
	return nil
}

func runtimeErr(op, format string, args ...any) error {
	return vmerrors.New(vmerrors.KindRuntime).Op(op).Detail("%s", fmt.Sprintf(format, args...)).Build()
}
