package core

import "fmt"

// Length is the rule that decides how many elements an array holds.
type Length interface {
	String() string
	policy(parent *Struct) (lengthPolicy, error)
}

// Fixed is an array length known at definition time. Fixed(0) consumes the rest of
// the input.
func Fixed(n int) Length {
	return fixedLength(n)
}

// Rest is the variable length: the array consumes every remaining byte on unpack
// and reports a size of 0.
func Rest() Length {
	return fixedLength(0)
}

// LengthField governs the array length by the named sibling field. The sibling
// becomes read only and always holds the number of elements in the array.
func LengthField(name string) Length {
	return fieldLength(name)
}

type lengthPolicy interface {
	// more reports whether another element should be unpacked after count.
	more(count int) bool
	// check validates a completed element count.
	check(count int) error
	// assigned is called after a new value of count elements was stored.
	assigned(count int) error
	size(elemSize int) int
	fixed() (int, bool)
}

type fixedLength int

func (l fixedLength) String() string {
	if l == 0 {
		return "[]"
	}
	return fmt.Sprintf("[%d]", int(l))
}

func (l fixedLength) policy(_ *Struct) (lengthPolicy, error) {
	if l < 0 {
		return nil, definitionErr("negative array length %d", int(l))
	}
	return l, nil
}

func (l fixedLength) more(count int) bool {
	return l == 0 || count < int(l)
}

func (l fixedLength) check(count int) error {
	if l != 0 && count != int(l) {
		return lengthErr("expected %d elements, got %d", int(l), count)
	}
	return nil
}

func (l fixedLength) assigned(int) error { return nil }

func (l fixedLength) size(elemSize int) int {
	return int(l) * elemSize
}

func (l fixedLength) fixed() (int, bool) {
	return int(l), true
}

type fieldLength string

func (l fieldLength) String() string {
	return "[" + string(l) + "]"
}

func (l fieldLength) policy(parent *Struct) (lengthPolicy, error) {
	if parent == nil {
		return nil, definitionErr("length field %q needs a parent structure", string(l))
	}
	if _, err := parent.WrapField(string(l), func(f Field) Field {
		return &lengthWrapper{inner: f}
	}); err != nil {
		return nil, err
	}
	return &fieldPolicy{parent: parent, name: string(l)}, nil
}

// fieldPolicy resolves the governing sibling by name on every access.
type fieldPolicy struct {
	parent *Struct
	name   string
}

// want reads the element count from the sibling. Negative counts and counts
// beyond the int range are length mismatches.
func (p *fieldPolicy) want() (int, error) {
	f, err := p.parent.Unwrapped(p.name)
	if err != nil {
		return 0, err
	}
	n, ok := intValue(f.Value())
	if !ok {
		return 0, lengthErr("%s holds %v, not an element count", p.name, f.Value())
	}
	return n, nil
}

func (p *fieldPolicy) more(count int) bool {
	want, err := p.want()
	return err == nil && count < want
}

func (p *fieldPolicy) check(count int) error {
	want, err := p.want()
	if err != nil {
		return err
	}
	if count != want {
		return lengthErr("expected %d elements from %s, got %d", want, p.name, count)
	}
	return nil
}

func (p *fieldPolicy) assigned(count int) error {
	f, err := p.parent.Unwrapped(p.name)
	if err != nil {
		return err
	}
	return f.SetValue(count)
}

func (p *fieldPolicy) size(int) int { return 0 }

func (p *fieldPolicy) fixed() (int, bool) { return 0, false }

// lengthWrapper makes a length sibling read only. Everything else is forwarded.
type lengthWrapper struct {
	inner Field
}

func (w *lengthWrapper) derived() {}

func (w *lengthWrapper) Unwrap() Field { return w.inner }

func (w *lengthWrapper) Type() Type { return w.inner.Type() }

func (w *lengthWrapper) Value() any { return w.inner.Value() }

func (w *lengthWrapper) SetValue(any) error {
	return validationErr("length is derived from the governed array and cannot be set")
}

func (w *lengthWrapper) Pack() ([]byte, error) { return w.inner.Pack() }

func (w *lengthWrapper) Unpack(buf []byte) (int, error) { return w.inner.Unpack(buf) }

func (w *lengthWrapper) UnpackStream(s *Stream) (bool, error) { return w.inner.UnpackStream(s) }

func (w *lengthWrapper) Size() int { return w.inner.Size() }
