package core

import "fmt"

// ComputedType is a field derived from its structure. Reading or packing it calls
// fn; after an unpack of the structure the unpacked value must match fn's result.
type ComputedType struct {
	inner Type
	fn    func(*Struct) (any, error)
	opts  options
}

func Computed(t Type, fn func(*Struct) (any, error), opts ...Option) *ComputedType {
	return &ComputedType{inner: t, fn: fn, opts: buildOptions(opts)}
}

func (t *ComputedType) Name() string { return "computed(" + t.inner.Name() + ")" }

func (t *ComputedType) New(parent *Struct) (Field, error) {
	if parent == nil {
		return nil, definitionErr("%s needs a parent structure", t.Name())
	}
	inner, err := t.inner.New(nil)
	if err != nil {
		return nil, err
	}
	f := &computedField{typ: t, parent: parent, inner: inner}
	parent.OnUnpack(f.verify)
	return f, nil
}

type computedField struct {
	typ      *ComputedType
	parent   *Struct
	inner    Field
	unpacked any
}

func (f *computedField) Type() Type { return f.typ }

func (f *computedField) compute() error {
	v, err := f.typ.fn(f.parent)
	if err != nil {
		return err
	}
	return f.inner.SetValue(v)
}

// Value recomputes the field. If the callback fails the last stored value is
// returned; Pack reports the failure.
func (f *computedField) Value() any {
	_ = f.compute()
	return f.inner.Value()
}

func (f *computedField) derived() {}

func (f *computedField) SetValue(any) error {
	return validationErr("%s is computed and cannot be set", f.typ.Name())
}

func (f *computedField) Pack() ([]byte, error) {
	if err := f.compute(); err != nil {
		return nil, err
	}
	return f.inner.Pack()
}

func (f *computedField) Unpack(buf []byte) (int, error) {
	n, err := f.inner.Unpack(buf)
	if err != nil {
		return 0, err
	}
	f.unpacked = f.inner.Value()
	return n, nil
}

func (f *computedField) UnpackStream(s *Stream) (bool, error) {
	done, err := f.inner.UnpackStream(s)
	if !done || err != nil {
		return false, err
	}
	f.unpacked = f.inner.Value()
	return true, nil
}

func (f *computedField) Size() int { return f.inner.Size() }

func (f *computedField) verify(s *Struct) error {
	name := s.nameOf(f)
	if err := f.compute(); err != nil {
		return &FieldError{Struct: s.typ.name, Field: name, Err: err}
	}
	if want := f.inner.Value(); !Equal(want, f.unpacked) {
		return &FieldError{
			Struct: s.typ.name,
			Field:  name,
			Err:    fmt.Errorf("%w: computed %v, unpacked %v", f.typ.opts.mismatch, want, f.unpacked),
		}
	}
	return nil
}
