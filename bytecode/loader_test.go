package bytecode

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/sim82/squirrel-go/instr"
)

// streamBuilder assembles a well-formed bytecode stream by hand, for
// exercising Load without a real compiler (out of scope per spec §1).
type streamBuilder struct {
	buf bytes.Buffer
}

func (b *streamBuilder) u16(v uint16) *streamBuilder {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.buf.Write(tmp[:])
	return b
}

func (b *streamBuilder) u32(v uint32) *streamBuilder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf.Write(tmp[:])
	return b
}

func (b *streamBuilder) i64(v int64) *streamBuilder {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	b.buf.Write(tmp[:])
	return b
}

func (b *streamBuilder) f32(v float32) *streamBuilder {
	return b.u32(math.Float32bits(v))
}

func (b *streamBuilder) byteVal(v byte) *streamBuilder {
	b.buf.WriteByte(v)
	return b
}

func (b *streamBuilder) str(s string) *streamBuilder {
	b.u32(tagString)
	b.i64(int64(len(s)))
	b.buf.WriteString(s)
	return b
}

func (b *streamBuilder) nullObj() *streamBuilder {
	return b.u32(tagNull)
}

func (b *streamBuilder) intObj(i int64) *streamBuilder {
	b.u32(tagInteger)
	return b.i64(i)
}

func (b *streamBuilder) tag(t uint32) *streamBuilder { return b.u32(t) }

func (b *streamBuilder) instruction(in instr.Instruction) *streamBuilder {
	raw := in.Encode()
	b.buf.Write(raw[:])
	return b
}

// writeLeafFuncProto assembles one FuncProto part (no nested functions),
// with the given string literals and instructions, matching the leaf case
// of scenario 1 (spec §8, "Constant return").
func writeLeafFuncProto(b *streamBuilder, sourceName, name string, literals []string, instrs []instr.Instruction) {
	b.tag(closurestreamPart)
	b.str(sourceName)
	b.str(name)

	b.tag(closurestreamPart)
	b.i64(int64(len(literals))) // nliterals
	b.i64(0)                    // nparameters
	b.i64(0)                    // noutervalues
	b.i64(0)                    // nlocalvarinfos
	b.i64(0)                    // nlineinfos
	b.i64(0)                    // ndefaultparams
	b.i64(int64(len(instrs)))   // ninstructions
	b.i64(0)                    // nfunctions

	b.tag(closurestreamPart) // literals
	for _, l := range literals {
		b.str(l)
	}
	b.tag(closurestreamPart) // parameters
	b.tag(closurestreamPart) // outervalues
	b.tag(closurestreamPart) // localvarinfos
	b.tag(closurestreamPart) // lineinfos
	b.tag(closurestreamPart) // defaultparams

	b.tag(closurestreamPart) // instructions
	for _, in := range instrs {
		b.instruction(in)
	}
	b.tag(closurestreamPart) // nested functions (none)

	b.i64(2)          // stacksize
	b.byteVal(0)       // bgenerator
	b.i64(0)           // varparams
}

func buildConstantReturnStream() []byte {
	var b streamBuilder
	b.u16(fileHeadTag)
	b.tag(closurestreamHead)
	b.u32(sizeCharTag)
	b.u32(sizeIntegerTag)
	b.u32(sizeFloatTag)

	writeLeafFuncProto(&b, "const.nut", "main", nil, []instr.Instruction{
		{Opcode: instr.OpLoadInt, Arg0: 1, Arg1: 111},
		{Opcode: instr.OpReturn, Arg0: 1, Arg1: 1},
	})

	b.tag(closurestreamTail)
	return b.buf.Bytes()
}

func TestLoadConstantReturn(t *testing.T) {
	data := buildConstantReturnStream()
	v, err := Load(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if v.Kind().String() != "function" {
		t.Fatalf("Load() did not return a callable, got kind %v", v.Kind())
	}
	clo := v.AsClosure()
	if clo == nil {
		t.Fatal("expected Closure value")
	}
	fp := clo.FuncProto.AsFuncProto()
	if fp.SourceName.AsString() != "const.nut" {
		t.Fatalf("SourceName = %q, want const.nut", fp.SourceName.AsString())
	}
	if fp.Name.AsString() != "main" {
		t.Fatalf("Name = %q, want main", fp.Name.AsString())
	}
	if len(fp.Instructions) != 2 {
		t.Fatalf("len(Instructions) = %d, want 2", len(fp.Instructions))
	}
	if fp.Instructions[0].Opcode != instr.OpLoadInt || fp.Instructions[0].Arg1 != 111 {
		t.Fatalf("unexpected first instruction: %+v", fp.Instructions[0])
	}
	if fp.StackSize != 2 {
		t.Fatalf("StackSize = %d, want 2", fp.StackSize)
	}
}

func TestLoadRejectsBadFileTag(t *testing.T) {
	data := buildConstantReturnStream()
	data[0] = 0x00
	data[1] = 0x00
	if _, err := Load(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for bad file head tag")
	}
}

func TestLoadRejectsTruncatedStream(t *testing.T) {
	data := buildConstantReturnStream()
	truncated := data[:len(data)-20]
	if _, err := Load(bytes.NewReader(truncated)); err == nil {
		t.Fatal("expected error for truncated stream")
	}
}

func TestLoadRejectsBadTailTag(t *testing.T) {
	data := buildConstantReturnStream()
	// Corrupt the last 4 bytes (the tail tag).
	for i := len(data) - 4; i < len(data); i++ {
		data[i] = 0xAA
	}
	if _, err := Load(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for bad tail tag")
	}
}
