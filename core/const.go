package core

import (
	"bytes"
	"fmt"
)

type options struct {
	mismatch error
}

// Option configures Const and Computed types.
type Option func(*options)

// WithMismatchError replaces ErrValueMismatch as the error kind reported when an
// unpacked value disagrees with the expected one.
func WithMismatchError(err error) Option {
	return func(o *options) {
		o.mismatch = err
	}
}

func buildOptions(opts []Option) options {
	o := options{mismatch: ErrValueMismatch}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ConstType is a field whose value is fixed at definition time.
type ConstType struct {
	inner   Type
	value   any
	encoded []byte
	opts    options
}

// Const fixes the value of a field of type t to v.
func Const(t Type, v any, opts ...Option) (*ConstType, error) {
	f, err := t.New(nil)
	if err != nil {
		return nil, err
	}
	if err := f.SetValue(v); err != nil {
		return nil, err
	}
	b, err := f.Pack()
	if err != nil {
		return nil, err
	}
	return &ConstType{inner: t, value: f.Value(), encoded: b, opts: buildOptions(opts)}, nil
}

func MustConst(t Type, v any, opts ...Option) *ConstType {
	c, err := Const(t, v, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// ConstBytes is a constant byte literal such as a magic number.
func ConstBytes(b []byte, opts ...Option) *ConstType {
	return &ConstType{
		inner:   ArrayOf(Byte, Fixed(len(b))),
		value:   bytes.Clone(b),
		encoded: bytes.Clone(b),
		opts:    buildOptions(opts),
	}
}

func (t *ConstType) Name() string {
	return fmt.Sprintf("const(%s, %v)", t.inner.Name(), t.value)
}

// Encoded returns the bytes every instance packs to.
func (t *ConstType) Encoded() []byte { return bytes.Clone(t.encoded) }

func (t *ConstType) New(_ *Struct) (Field, error) {
	return &constField{typ: t}, nil
}

type constField struct {
	typ *ConstType
}

func (f *constField) Type() Type { return f.typ }

func (f *constField) Value() any { return f.typ.value }

func (f *constField) SetValue(v any) error {
	if v == nil || Equal(v, f.typ.value) {
		return nil
	}
	return validationErr("constant %v cannot be set to %v", f.typ.value, v)
}

func (f *constField) Pack() ([]byte, error) {
	return bytes.Clone(f.typ.encoded), nil
}

func (f *constField) check(b []byte) error {
	if !bytes.Equal(b, f.typ.encoded) {
		return fmt.Errorf("%w: expected % x, got % x", f.typ.opts.mismatch, f.typ.encoded, b)
	}
	return nil
}

func (f *constField) Unpack(buf []byte) (int, error) {
	n := len(f.typ.encoded)
	if len(buf) < n {
		return 0, shortErr(n, len(buf))
	}
	if err := f.check(buf[:n]); err != nil {
		return 0, err
	}
	return n, nil
}

// UnpackStream waits until the whole constant is buffered, so it never stashes state.
func (f *constField) UnpackStream(s *Stream) (bool, error) {
	n := len(f.typ.encoded)
	if s.Len() < n {
		return false, nil
	}
	b, err := s.Read(n)
	if err != nil {
		return false, err
	}
	if err := f.check(b); err != nil {
		return false, err
	}
	return true, nil
}

func (f *constField) Size() int { return len(f.typ.encoded) }
