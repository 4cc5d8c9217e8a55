package jww

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/encoding/japanese"

	"github.com/FocuswithJustin/jwwconv/core/errors"
)

// reader is a little-endian cursor over an in-memory drawing.
type reader struct {
	data []byte
	pos  int
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) short(n int, what string) error {
	return errors.NewFormat(errors.KindTruncatedOrCorrupt, int64(r.pos),
		fmt.Sprintf("%s needs %d bytes, %d remain", what, n, r.remaining()))
}

func (r *reader) take(n int, what string) ([]byte, error) {
	if n < 0 || n > r.remaining() {
		return nil, r.short(n, what)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) skip(n int, what string) error {
	_, err := r.take(n, what)
	return err
}

func (r *reader) u8(what string) (uint8, error) {
	b, err := r.take(1, what)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16(what string) (uint16, error) {
	b, err := r.take(2, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) u32(what string) (uint32, error) {
	b, err := r.take(4, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) f64(what string) (float64, error) {
	b, err := r.take(8, what)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// f64s reads len(dst) consecutive doubles.
func (r *reader) f64s(what string, dst ...*float64) error {
	for _, d := range dst {
		v, err := r.f64(what)
		if err != nil {
			return err
		}
		*d = v
	}
	return nil
}

// cstring reads an MFC CString: a u8 length, escalating to u16 on 0xFF
// and to u32 on 0xFFFF. Bytes are Shift-JIS.
func (r *reader) cstring(what string) (string, error) {
	n8, err := r.u8(what)
	if err != nil {
		return "", err
	}
	n := int(n8)
	if n8 == 0xFF {
		n16, err := r.u16(what)
		if err != nil {
			return "", err
		}
		n = int(n16)
		if n16 == 0xFFFF {
			n32, err := r.u32(what)
			if err != nil {
				return "", err
			}
			if uint64(n32) > uint64(r.remaining()) {
				return "", r.short(int(min(uint64(n32), math.MaxInt32)), what)
			}
			n = int(n32)
		}
	}
	if n == 0 {
		return "", nil
	}
	raw, err := r.take(n, what)
	if err != nil {
		return "", err
	}
	return decodeShiftJIS(raw), nil
}

func decodeShiftJIS(raw []byte) string {
	out, err := japanese.ShiftJIS.NewDecoder().Bytes(raw)
	if err != nil {
		out = raw
	}
	return strings.TrimRight(string(out), "\x00")
}
