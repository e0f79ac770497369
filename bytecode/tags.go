package bytecode

// Fixed sentinel tags in the binary format. 'SQIR', 'PART', 'TAIL' are
// stored as the big-endian char packing of their name, then written
// little-endian — matching original_source/src/lib.rs's FileTags
// computation bit-for-bit.
const (
	fileHeadTag uint16 = 0xFAFA

	closurestreamHead uint32 = 'S'<<24 | 'Q'<<16 | 'I'<<8 | 'R'
	closurestreamPart uint32 = 'P'<<24 | 'A'<<16 | 'R'<<8 | 'T'
	closurestreamTail uint32 = 'T'<<24 | 'A'<<16 | 'I'<<8 | 'L'

	sizeCharTag    uint32 = 1
	sizeIntegerTag uint32 = 8
	sizeFloatTag   uint32 = 4
)

// Raw-type bits: the low bits of the on-disk object type tag.
const (
	rawNull   uint32 = 0x00000001
	rawInteger uint32 = 0x00000002
	rawFloat  uint32 = 0x00000004
	rawBool   uint32 = 0x00000008
	rawString uint32 = 0x00000010
	rawTable  uint32 = 0x00000020
	rawArray  uint32 = 0x00000040
	rawClosure       uint32 = 0x00000100
	rawNativeClosure uint32 = 0x00000200
	rawFuncProto     uint32 = 0x00002000
)

// Flag bits: the high bits of the on-disk object type tag.
const (
	flagRefCounted uint32 = 0x08000000
	flagNumeric    uint32 = 0x04000000
	flagDelegable  uint32 = 0x02000000
	flagCanBeFalse uint32 = 0x01000000
)

// Combined on-disk tags for the object kinds the loader can encounter as a
// literal or debug-info value. readObject's switch decodes Null, Integer,
// Float, and String; tagBool is defined here but not decoded, so a Bool
// object is rejected as an unknown object type tag.
const (
	tagNull    = rawNull | flagCanBeFalse
	tagInteger = rawInteger | flagNumeric | flagCanBeFalse
	tagFloat   = rawFloat | flagNumeric | flagCanBeFalse
	tagBool    = rawBool | flagCanBeFalse
	tagString  = rawString | flagRefCounted
)
