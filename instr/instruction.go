package instr

import "encoding/binary"

// Size is the on-disk width of one instruction record, in bytes.
const Size = 8

// Instruction is a fixed 8-byte record: a little-endian uint32 immediate
// followed by four single-byte fields. arg1 is reinterpreted as a signed
// 32-bit value by opcodes whose semantics call for it (jumps, LOADINT).
type Instruction struct {
	Arg1   uint32
	Opcode Opcode
	Arg0   byte
	Arg2   byte
	Arg3   byte
}

// Arg1Signed returns Arg1 reinterpreted as a signed 32-bit integer.
func (i Instruction) Arg1Signed() int32 {
	return int32(i.Arg1)
}

// Decode reads one Instruction from an 8-byte slice in the on-disk layout:
// arg1 (u32 LE), opcode, arg0, arg2, arg3.
func Decode(b []byte) Instruction {
	_ = b[Size-1]
	return Instruction{
		Arg1:   binary.LittleEndian.Uint32(b[0:4]),
		Opcode: Opcode(b[4]),
		Arg0:   b[5],
		Arg2:   b[6],
		Arg3:   b[7],
	}
}

// Encode writes the instruction into its 8-byte on-disk form.
func (i Instruction) Encode() [Size]byte {
	var buf [Size]byte
	binary.LittleEndian.PutUint32(buf[0:4], i.Arg1)
	buf[4] = byte(i.Opcode)
	buf[5] = i.Arg0
	buf[6] = i.Arg2
	buf[7] = i.Arg3
	return buf
}
