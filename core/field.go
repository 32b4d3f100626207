// Package core implements declarative binary structures: typed fields that pack to
// exact byte encodings and unpack from buffers or incrementally from a Stream.
package core

import (
	"bytes"
	"reflect"
)

// Type describes a field at definition time. New instantiates a field of the type
// owned by parent, which may be nil for free-standing fields.
type Type interface {
	Name() string
	New(parent *Struct) (Field, error)
}

// Field is the contract every value type implements.
//
// Pack returns exactly Size() bytes unless Size() is 0, which means the size is
// data dependent. Unpack consumes a prefix of buf and reports how many bytes it
// used. UnpackStream returns false when the stream does not hold enough bytes yet;
// the caller must keep the field and retry after feeding more input.
type Field interface {
	Type() Type
	Value() any
	SetValue(v any) error
	Pack() ([]byte, error)
	Unpack(buf []byte) (int, error)
	UnpackStream(s *Stream) (bool, error)
	Size() int
}

// FromBytes unpacks buf into f and fails unless every byte was consumed.
func FromBytes(f Field, buf []byte) error {
	n, err := f.Unpack(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return lengthErr("must consume exactly %d bytes, consumed %d", len(buf), n)
	}
	return nil
}

// Pack instantiates t, assigns v and returns the encoding.
func Pack(t Type, v any) ([]byte, error) {
	f, err := t.New(nil)
	if err != nil {
		return nil, err
	}
	if err := f.SetValue(v); err != nil {
		return nil, err
	}
	return f.Pack()
}

// Unpack instantiates t and unpacks exactly buf into it.
func Unpack(t Type, buf []byte) (any, error) {
	f, err := t.New(nil)
	if err != nil {
		return nil, err
	}
	if err := FromBytes(f, buf); err != nil {
		return nil, err
	}
	return f.Value(), nil
}

// Equal compares two field values. Integers compare numerically regardless of
// width or signedness, slices element by element and structures by position.
func Equal(a, b any) bool {
	if sa, ok := a.(*Struct); ok {
		sb, ok := b.(*Struct)
		return ok && sa.Equal(sb)
	}
	if na, ma, ok := integerOf(a); ok {
		nb, mb, ok := integerOf(b)
		return ok && na == nb && ma == mb
	}
	if ba, ok := a.([]byte); ok {
		bb, ok := b.([]byte)
		return ok && bytes.Equal(ba, bb)
	}
	if la, ok := a.([]any); ok {
		lb, ok := b.([]any)
		if !ok || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !Equal(la[i], lb[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// integerOf splits an integer value into sign and magnitude. Enum symbols count as
// their integer value.
func integerOf(v any) (neg bool, mag uint64, ok bool) {
	switch x := v.(type) {
	case int:
		return signed(int64(x))
	case int8:
		return signed(int64(x))
	case int16:
		return signed(int64(x))
	case int32:
		return signed(int64(x))
	case int64:
		return signed(x)
	case uint:
		return false, uint64(x), true
	case uint8:
		return false, uint64(x), true
	case uint16:
		return false, uint64(x), true
	case uint32:
		return false, uint64(x), true
	case uint64:
		return false, x, true
	case Symbol:
		return signed(x.value)
	}
	return false, 0, false
}

func signed(i int64) (bool, uint64, bool) {
	if i < 0 {
		return true, uint64(-(i + 1)) + 1, true
	}
	return false, uint64(i), true
}

// intValue converts an integer field value to int, failing for negative or
// non-integer values.
func intValue(v any) (int, bool) {
	neg, mag, ok := integerOf(v)
	if !ok || (neg && mag != 0) || mag > uint64(maxInt) {
		return 0, false
	}
	return int(mag), true
}

const maxInt = int(^uint(0) >> 1)

// FixedSize reports the encoded size shared by every value of t. ok is false when
// the size depends on the data.
func FixedSize(t Type) (n int, ok bool) {
	switch t := t.(type) {
	case *IntType:
		return t.width, true
	case *ByteType:
		return 1, true
	case *UUIDType:
		return 16, true
	case *EnumType:
		return t.backing.width, true
	case *ConstType:
		return len(t.encoded), true
	case *ComputedType:
		return FixedSize(t.inner)
	case *ArrayType:
		count, fixed := t.length.(fixedLength)
		if !fixed || count == 0 {
			return 0, false
		}
		elem, ok := FixedSize(t.elem)
		return int(count) * elem, ok
	case *StructType:
		for _, d := range t.fields {
			size, ok := FixedSize(d.Type)
			if !ok {
				return 0, false
			}
			n += size
		}
		return n, true
	}
	return 0, false
}
