package core

import (
	"encoding/binary"
	"fmt"
)

// IntType is a fixed width integer encoding. The exported types are little endian;
// BE, LE and Network address the other byte orders of the same integer.
type IntType struct {
	name   string
	width  int
	signed bool
	big    bool
	le, be *IntType
}

var (
	Uint8  = newIntFamily("uint8", 1, false)
	Int8   = newIntFamily("int8", 1, true)
	Uint16 = newIntFamily("uint16", 2, false)
	Int16  = newIntFamily("int16", 2, true)
	Uint32 = newIntFamily("uint32", 4, false)
	Int32  = newIntFamily("int32", 4, true)
	Uint64 = newIntFamily("uint64", 8, false)
	Int64  = newIntFamily("int64", 8, true)
)

// IntTypes lists the little endian integer types.
var IntTypes = []*IntType{Uint8, Int8, Uint16, Int16, Uint32, Int32, Uint64, Int64}

func newIntFamily(name string, width int, signed bool) *IntType {
	le := &IntType{name: name, width: width, signed: signed}
	be := &IntType{name: name + "be", width: width, signed: signed, big: true}
	le.le, le.be = le, be
	be.le, be.be = le, be
	return le
}

func (t *IntType) Name() string { return t.name }
func (t *IntType) Width() int { return t.width }
func (t *IntType) Signed() bool { return t.signed }
func (t *IntType) BigEndian() bool { return t.big }
func (t *IntType) LE() *IntType { return t.le }
func (t *IntType) BE() *IntType { return t.be }
func (t *IntType) Network() *IntType { return t.be }

// Bounds returns the inclusive range of values the type can hold.
func (t *IntType) Bounds() (lo int64, hi uint64) {
	bits := uint(t.width * 8)
	if !t.signed {
		return 0, t.mask()
	}
	return -1 << (bits - 1), 1<<(bits-1) - 1
}

func (t *IntType) mask() uint64 {
	if t.width == 8 {
		return ^uint64(0)
	}
	return 1<<(uint(t.width)*8) - 1
}

func (t *IntType) New(_ *Struct) (Field, error) {
	return &Int{typ: t}, nil
}

func (t *IntType) encode(raw uint64) []byte {
	b := make([]byte, t.width)
	var order binary.ByteOrder = binary.LittleEndian
	if t.big {
		order = binary.BigEndian
	}
	switch t.width {
	case 1:
		b[0] = byte(raw)
	case 2:
		order.PutUint16(b, uint16(raw))
	case 4:
		order.PutUint32(b, uint32(raw))
	case 8:
		order.PutUint64(b, raw)
	}
	return b
}

func (t *IntType) decode(b []byte) uint64 {
	var order binary.ByteOrder = binary.LittleEndian
	if t.big {
		order = binary.BigEndian
	}
	switch t.width {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	default:
		return order.Uint64(b)
	}
}

// raw converts v to the two's complement bit pattern of the type, checking bounds.
func (t *IntType) raw(v any) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	neg, mag, ok := integerOf(v)
	if !ok {
		return 0, validationErr("%s cannot hold %T", t.name, v)
	}
	lo, hi := t.Bounds()
	if neg {
		if !t.signed || mag > uint64(-(lo+1))+1 {
			return 0, validationErr("%s must be %d <= x <= %d, got -%d", t.name, lo, hi, mag)
		}
		return -mag & t.mask(), nil
	}
	if mag > hi {
		return 0, validationErr("%s must be %d <= x <= %d, got %d", t.name, lo, hi, mag)
	}
	return mag, nil
}

// Int is an integer field. Its value is int64 for signed types and uint64 otherwise.
type Int struct {
	typ *IntType
	raw uint64
}

func (f *Int) Type() Type { return f.typ }

func (f *Int) Value() any {
	if !f.typ.signed {
		return f.raw
	}
	bits := uint(f.typ.width * 8)
	if bits < 64 && f.raw&(1<<(bits-1)) != 0 {
		return int64(f.raw | ^f.typ.mask())
	}
	return int64(f.raw)
}

func (f *Int) SetValue(v any) error {
	raw, err := f.typ.raw(v)
	if err != nil {
		return err
	}
	f.raw = raw
	return nil
}

func (f *Int) Pack() ([]byte, error) {
	return f.typ.encode(f.raw), nil
}

func (f *Int) Unpack(buf []byte) (int, error) {
	if len(buf) < f.typ.width {
		return 0, shortErr(f.typ.width, len(buf))
	}
	f.raw = f.typ.decode(buf[:f.typ.width])
	return f.typ.width, nil
}

func (f *Int) UnpackStream(s *Stream) (bool, error) {
	if s.Len() < f.typ.width {
		return false, nil
	}
	b, err := s.Read(f.typ.width)
	if err != nil {
		return false, err
	}
	f.raw = f.typ.decode(b)
	return true, nil
}

func (f *Int) Size() int { return f.typ.width }

func (f *Int) String() string { return fmt.Sprint(f.Value()) }
