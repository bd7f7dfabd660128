package pstring

import (
	"encoding/binary"
	"slices"
	"unicode/utf16"
	"unicode/utf8"

	xll "github.com/wippyai/xll-runtime"
	"github.com/wippyai/xll-runtime/errors"
	"github.com/wippyai/xll-runtime/xlcall"
	"golang.org/x/text/encoding/unicode"
)

// Char is a code unit width.
type Char interface {
	uint8 | uint16
}

// PString is an owning length-prefixed string. The zero value is the null
// string: it has no buffer and reads as empty.
type PString[C Char] struct {
	data []C
}

type (
	Narrow = PString[uint8]
	Wide   = PString[uint16]
)

func wide[C Char]() bool {
	var c C
	_, ok := any(c).(uint16)
	return ok
}

// MaxLen returns the largest length representable for the unit width.
func MaxLen[C Char]() int {
	if wide[C]() {
		return xlcall.MaxWideLength
	}
	return xlcall.MaxNarrowLength
}

// FromUnits copies same-width units into a new buffer, truncating to MaxLen.
func FromUnits[C Char](units []C) PString[C] {
	n := min(len(units), MaxLen[C]())
	data := make([]C, n+1)
	data[0] = C(n)
	copy(data[1:], units[:n])
	return PString[C]{data: data}
}

// NewNarrow builds a narrow string from UTF-8 text. Text longer than 255
// bytes is cut at the last whole rune that fits.
func NewNarrow(s string) Narrow {
	return FromUnits([]byte(truncateUTF8(s, xlcall.MaxNarrowLength)))
}

// NewWide builds a wide string from UTF-8 text.
func NewWide(s string) Wide {
	n := 0
	cut := len(s)
	for i, r := range s {
		w := utf16.RuneLen(r)
		if w < 0 {
			w = 1
		}
		if n+w > xlcall.MaxWideLength {
			cut = i
			break
		}
		n += w
	}
	s = s[:cut]

	data := make([]uint16, n+1)
	data[0] = uint16(n)
	if n == 0 {
		return Wide{data: data}
	}

	buf := make([]byte, 2*n)
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	// Invalid UTF-8 encodes as one U+FFFD unit per byte, matching the estimate.
	nDst, _, _ := enc.Transform(buf, []byte(s), true)
	for i := 0; i < nDst/2; i++ {
		data[1+i] = binary.LittleEndian.Uint16(buf[2*i:])
	}
	return Wide{data: data}
}

// ToWide transcodes a narrow string to wide.
func ToWide(n Narrow) Wide {
	if n.IsNull() {
		return Wide{}
	}
	return NewWide(n.String())
}

// ToNarrow transcodes a wide string to narrow, truncating to 255 bytes.
func ToNarrow(w Wide) Narrow {
	if w.IsNull() {
		return Narrow{}
	}
	raw := make([]byte, 2*w.Size())
	for i, u := range w.Units() {
		binary.LittleEndian.PutUint16(raw[2*i:], u)
	}
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
	if err != nil {
		return NewNarrow(w.String())
	}
	return FromUnits([]byte(truncateUTF8(string(decoded), xlcall.MaxNarrowLength)))
}

func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// IsNull reports whether the string has no buffer.
func (p PString[C]) IsNull() bool { return p.data == nil }

// Size returns the number of code units.
func (p PString[C]) Size() int {
	if p.data == nil {
		return 0
	}
	return int(p.data[0])
}

// Len is an alias of Size.
func (p PString[C]) Len() int { return p.Size() }

// Empty reports whether the string has no code units.
func (p PString[C]) Empty() bool { return p.Size() == 0 }

// Units returns the code units. The slice aliases the buffer.
func (p PString[C]) Units() []C {
	if p.data == nil {
		return nil
	}
	return p.data[1 : 1+p.Size()]
}

// Raw returns the whole buffer including the length unit.
func (p PString[C]) Raw() []C { return p.data }

// String returns the text as UTF-8. Unpaired surrogates become U+FFFD.
func (p PString[C]) String() string {
	switch units := any(p.Units()).(type) {
	case []uint8:
		return string(units)
	case []uint16:
		return string(utf16.Decode(units))
	}
	return ""
}

// Clone returns a copy in a fresh buffer.
func (p PString[C]) Clone() PString[C] {
	if p.data == nil {
		return PString[C]{}
	}
	return PString[C]{data: slices.Clone(p.data)}
}

// Move transfers the buffer to the returned string and nulls p.
func (p *PString[C]) Move() PString[C] {
	out := PString[C]{data: p.data}
	p.data = nil
	return out
}

// Free releases the buffer, leaving p null.
func (p *PString[C]) Free() { p.data = nil }

// Equal compares code units. A null string equals an empty one.
func (p PString[C]) Equal(other PString[C]) bool {
	return slices.Equal(p.Units(), other.Units())
}

func unitSize[C Char]() uint32 {
	if wide[C]() {
		return 2
	}
	return 1
}

// ByteSize returns the size of the buffer in foreign memory.
func (p PString[C]) ByteSize() uint32 {
	return uint32(p.Size()+1) * unitSize[C]()
}

// Store writes the buffer into foreign memory and returns its address.
// A null string is stored as an empty one.
func (p PString[C]) Store(mem xll.Memory, alloc xll.Allocator) (xll.Addr, error) {
	size := unitSize[C]()
	addr, err := alloc.Alloc(p.ByteSize(), size)
	if err != nil {
		return 0, err
	}
	if err := p.StoreAt(mem, addr); err != nil {
		alloc.Free(addr)
		return 0, err
	}
	return addr, nil
}

// StoreAt writes the buffer at addr, which must hold ByteSize bytes.
func (p PString[C]) StoreAt(mem xll.Memory, addr xll.Addr) error {
	n := p.Size()
	switch units := any(p.Units()).(type) {
	case []uint8:
		buf := make([]byte, n+1)
		buf[0] = byte(n)
		copy(buf[1:], units)
		return mem.Write(addr, buf)
	case []uint16:
		buf := make([]byte, 2*(n+1))
		binary.LittleEndian.PutUint16(buf, uint16(n))
		for i, u := range units {
			binary.LittleEndian.PutUint16(buf[2+2*i:], u)
		}
		return mem.Write(addr, buf)
	}
	return nil
}

// LoadNarrow copies a narrow string out of foreign memory.
func LoadNarrow(mem xll.Memory, addr xll.Addr) (Narrow, error) {
	if addr == 0 {
		return Narrow{}, errors.NilPointer(errors.PhaseDecode, nil, "pstring.Narrow")
	}
	n, err := mem.ReadU8(addr)
	if err != nil {
		return Narrow{}, err
	}
	raw, err := mem.Read(addr, uint32(n)+1)
	if err != nil {
		return Narrow{}, err
	}
	return Narrow{data: raw}, nil
}

// LoadWide copies a wide string out of foreign memory. A length above the
// host ceiling is rejected.
func LoadWide(mem xll.Memory, addr xll.Addr) (Wide, error) {
	if addr == 0 {
		return Wide{}, errors.NilPointer(errors.PhaseDecode, nil, "pstring.Wide")
	}
	n, err := mem.ReadU16(addr)
	if err != nil {
		return Wide{}, err
	}
	if n > xlcall.MaxWideLength {
		return Wide{}, errors.InvalidData(errors.PhaseDecode, nil, "wide string length exceeds 32767")
	}
	raw, err := mem.Read(addr, 2*(uint32(n)+1))
	if err != nil {
		return Wide{}, err
	}
	data := make([]uint16, n+1)
	for i := range data {
		data[i] = binary.LittleEndian.Uint16(raw[2*i:])
	}
	return Wide{data: data}, nil
}
