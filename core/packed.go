package core

import (
	"errors"
	"fmt"
)

// PackedType governs a field by a byte count held in an integer sibling. The
// sibling becomes read only and always reads as the packed length of the field.
type PackedType struct {
	inner Type
	size  string
}

// PackedLength wraps t so that it consumes exactly as many bytes as the sibling
// named size holds.
func PackedLength(t Type, size string) *PackedType {
	return &PackedType{inner: t, size: size}
}

func (t *PackedType) Name() string {
	return fmt.Sprintf("packed(%s, %s)", t.inner.Name(), t.size)
}

func (t *PackedType) Inner() Type { return t.inner }

func (t *PackedType) New(parent *Struct) (Field, error) {
	if parent == nil {
		return nil, definitionErr("%s needs a parent structure", t.Name())
	}
	inner, err := t.inner.New(nil)
	if err != nil {
		return nil, err
	}
	f := &packedField{typ: t, parent: parent, inner: inner}
	if _, err := parent.WrapField(t.size, func(sib Field) Field {
		return &byteCountWrapper{inner: sib, packed: f}
	}); err != nil {
		return nil, err
	}
	return f, nil
}

type packedField struct {
	typ    *PackedType
	parent *Struct
	inner  Field
}

func (f *packedField) Type() Type { return f.typ }

func (f *packedField) Value() any { return f.inner.Value() }

func (f *packedField) SetValue(v any) error { return f.inner.SetValue(v) }

func (f *packedField) Pack() ([]byte, error) { return f.inner.Pack() }

// want reads the byte count from the unwrapped sibling, which holds what was
// unpacked rather than the recomputed length.
func (f *packedField) want() (int, error) {
	sib, err := f.parent.Unwrapped(f.typ.size)
	if err != nil {
		return 0, err
	}
	n, ok := intValue(sib.Value())
	if !ok {
		return 0, lengthErr("%s holds %v, not a byte count", f.typ.size, sib.Value())
	}
	return n, nil
}

// fill unpacks the inner field from exactly b.
func (f *packedField) fill(b []byte) error {
	n, err := f.inner.Unpack(b)
	if errors.Is(err, ErrInsufficientData) {
		return fmt.Errorf("%w: %s does not fit in %d bytes: %w", ErrLengthMismatch, f.typ.inner.Name(), len(b), err)
	}
	if err != nil {
		return err
	}
	if n != len(b) {
		return lengthErr("%s consumed %d of %d packed bytes", f.typ.inner.Name(), n, len(b))
	}
	return nil
}

func (f *packedField) Unpack(buf []byte) (int, error) {
	n, err := f.want()
	if err != nil {
		return 0, err
	}
	if len(buf) < n {
		return 0, shortErr(n, len(buf))
	}
	if err := f.fill(buf[:n]); err != nil {
		return 0, err
	}
	return n, nil
}

// UnpackStream buffers the declared number of bytes across suspensions, then
// unpacks the inner field in one shot.
func (f *packedField) UnpackStream(s *Stream) (bool, error) {
	n, err := f.want()
	if err != nil {
		return false, err
	}
	var got []byte
	if v, ok := s.PopState(f); ok {
		got = v.([]byte)
	}
	if need := n - len(got); need > 0 {
		chunk, err := s.Read(min(need, s.Len()))
		if err != nil {
			return false, err
		}
		got = append(got, chunk...)
	}
	if len(got) < n {
		s.PushState(f, got)
		return false, nil
	}
	if err := f.fill(got); err != nil {
		return false, err
	}
	return true, nil
}

func (f *packedField) Size() int { return 0 }

// byteCountWrapper makes the size sibling read only and derives its value from
// the packed length of the governed field.
type byteCountWrapper struct {
	inner  Field
	packed *packedField
}

func (w *byteCountWrapper) derived() {}

func (w *byteCountWrapper) Unwrap() Field { return w.inner }

func (w *byteCountWrapper) Type() Type { return w.inner.Type() }

func (w *byteCountWrapper) sync() error {
	b, err := w.packed.inner.Pack()
	if err != nil {
		return err
	}
	return w.inner.SetValue(len(b))
}

func (w *byteCountWrapper) Value() any {
	_ = w.sync()
	return w.inner.Value()
}

func (w *byteCountWrapper) SetValue(any) error {
	return validationErr("byte count is derived from the packed field and cannot be set")
}

func (w *byteCountWrapper) Pack() ([]byte, error) {
	if err := w.sync(); err != nil {
		return nil, err
	}
	return w.inner.Pack()
}

func (w *byteCountWrapper) Unpack(buf []byte) (int, error) { return w.inner.Unpack(buf) }

func (w *byteCountWrapper) UnpackStream(s *Stream) (bool, error) { return w.inner.UnpackStream(s) }

func (w *byteCountWrapper) Size() int { return w.inner.Size() }
