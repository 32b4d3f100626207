package core

import (
	"bytes"
	"fmt"
)

// ByteType is the single byte field type. Arrays of Byte hold []byte values.
type ByteType struct{}

var Byte = &ByteType{}

func (t *ByteType) Name() string { return "byte" }

func (t *ByteType) New(_ *Struct) (Field, error) {
	return &ByteField{}, nil
}

// toByte accepts a byte sized integer or a one byte string or slice.
func toByte(v any) (byte, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case []byte:
		if len(x) == 1 {
			return x[0], nil
		}
		return 0, validationErr("byte value must be exactly 1 byte, got %d", len(x))
	case string:
		if len(x) == 1 {
			return x[0], nil
		}
		return 0, validationErr("byte value must be exactly 1 byte, got %d", len(x))
	}
	neg, mag, ok := integerOf(v)
	if !ok || neg || mag > 0xff {
		return 0, validationErr("byte cannot hold %v", v)
	}
	return byte(mag), nil
}

// ByteField is a single byte; its value is a byte.
type ByteField struct {
	b byte
}

func (f *ByteField) Type() Type { return Byte }

func (f *ByteField) Value() any { return f.b }

func (f *ByteField) SetValue(v any) error {
	b, err := toByte(v)
	if err != nil {
		return err
	}
	f.b = b
	return nil
}

func (f *ByteField) Pack() ([]byte, error) { return []byte{f.b}, nil }

func (f *ByteField) Unpack(buf []byte) (int, error) {
	if len(buf) < 1 {
		return 0, shortErr(1, 0)
	}
	f.b = buf[0]
	return 1, nil
}

func (f *ByteField) UnpackStream(s *Stream) (bool, error) {
	if s.Len() < 1 {
		return false, nil
	}
	b, err := s.Read(1)
	if err != nil {
		return false, err
	}
	f.b = b[0]
	return true, nil
}

func (f *ByteField) Size() int { return 1 }

// Bytes is an array of Byte. It stores the raw byte string instead of one field
// per element.
type Bytes struct {
	typ    *ArrayType
	policy lengthPolicy
	data   []byte
}

func newBytes(t *ArrayType, pol lengthPolicy) (*Bytes, error) {
	b := &Bytes{typ: t, policy: pol}
	if err := b.SetValue(nil); err != nil {
		return nil, err
	}
	return b, nil
}

func (f *Bytes) Type() Type { return f.typ }

func (f *Bytes) Value() any { return f.data }

func (f *Bytes) SetValue(v any) error {
	var data []byte
	switch x := v.(type) {
	case nil:
		n, _ := f.policy.fixed()
		data = make([]byte, n)
	case []byte:
		data = bytes.Clone(x)
	case string:
		data = []byte(x)
	default:
		items, ok := sliceOf(v)
		if !ok {
			return validationErr("%s cannot hold %T", f.typ.Name(), v)
		}
		data = make([]byte, len(items))
		for i, item := range items {
			b, err := toByte(item)
			if err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			data[i] = b
		}
	}
	if n, ok := f.policy.fixed(); ok && n != 0 && len(data) != n {
		return validationErr("%s expects %d bytes, got %d", f.typ.Name(), n, len(data))
	}
	if err := f.policy.assigned(len(data)); err != nil {
		return err
	}
	f.data = data
	return nil
}

func (f *Bytes) Pack() ([]byte, error) {
	return bytes.Clone(f.data), nil
}

// want reports how many bytes the policy asks for; -1 means all of them.
func (f *Bytes) want() (int, error) {
	if n, ok := f.policy.fixed(); ok {
		if n == 0 {
			return -1, nil
		}
		return n, nil
	}
	if p, ok := f.policy.(*fieldPolicy); ok {
		return p.want()
	}
	return 0, nil
}

func (f *Bytes) Unpack(buf []byte) (int, error) {
	n, err := f.want()
	if err != nil {
		return 0, err
	}
	if n < 0 || n > len(buf) {
		n = len(buf)
	}
	if err := f.policy.check(n); err != nil {
		return 0, err
	}
	f.data = bytes.Clone(buf[:n])
	return n, nil
}

func (f *Bytes) UnpackStream(s *Stream) (bool, error) {
	n, err := f.want()
	if err != nil {
		return false, err
	}
	if n < 0 {
		return false, fmt.Errorf("%s: %w", f.typ.Name(), ErrUnboundedStream)
	}

	var got []byte
	if v, ok := s.PopState(f); ok {
		got = v.([]byte)
	}
	if need := n - len(got); need > 0 {
		take := min(need, s.Len())
		chunk, err := s.Read(take)
		if err != nil {
			return false, err
		}
		got = append(got, chunk...)
	}
	if len(got) < n {
		s.PushState(f, got)
		return false, nil
	}
	f.data = got
	return true, nil
}

func (f *Bytes) Size() int {
	return f.policy.size(1)
}
