package bytecode

import (
	"encoding/binary"
	"io"
	"math"
	"unicode/utf8"

	vmerrors "github.com/sim82/squirrel-go/errors"
)

// reader wraps an io.Reader with position tracking and the fixed-width
// little-endian primitives the binary format is built from.
//
// Grounded on wasm/internal/binary.Reader's shape (position tracking,
// wrapped ParseError) — LEB128 varint methods are replaced with fixed-size
// reads, since this format (unlike WASM) has no variable-length integers.
type reader struct {
	r   io.Reader
	pos int
}

func newReader(r io.Reader) *reader {
	return &reader{r: r}
}

func (r *reader) wrap(section string, err error) error {
	return vmerrors.New(vmerrors.KindIO).Op("load").
		Detail("%s: at byte offset %d", section, r.pos).Cause(err).Build()
}

func (r *reader) readBytes(section string, n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(r.r, buf)
	r.pos += read
	if err != nil {
		return nil, r.wrap(section, err)
	}
	return buf, nil
}

func (r *reader) readU16(section string) (uint16, error) {
	b, err := r.readBytes(section, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) readU32(section string) (uint32, error) {
	b, err := r.readBytes(section, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) readI64(section string) (int64, error) {
	b, err := r.readBytes(section, 8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (r *reader) readU64(section string) (uint64, error) {
	b, err := r.readBytes(section, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) readF32(section string) (float32, error) {
	b, err := r.readBytes(section, 4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

func (r *reader) readByte(section string) (byte, error) {
	b, err := r.readBytes(section, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) readString(section string) (string, error) {
	n, err := r.readU64(section)
	if err != nil {
		return "", err
	}
	data, err := r.readBytes(section, int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", vmerrors.New(vmerrors.KindRuntime).Op("load").
			Detail("%s: string data is not valid UTF-8", section).Build()
	}
	return string(data), nil
}
