package core

import (
	"fmt"
	"reflect"
	"sync"
)

type arrayKey struct {
	elem   Type
	length Length
}

var (
	arrayMu    sync.Mutex
	arrayTypes = map[arrayKey]*ArrayType{}
)

// ArrayType is an array of one element type under one length policy. Requesting
// the same element type and length twice returns the identical *ArrayType.
type ArrayType struct {
	elem   Type
	length Length

	sizeOnce sync.Once
	elemSize int
}

// ArrayOf returns the array type of elem governed by length. Arrays nest to form
// multi-dimensional arrays: ArrayOf(ArrayOf(Uint8, Fixed(2)), Fixed(3)) holds
// three two-byte rows.
func ArrayOf(elem Type, length Length) *ArrayType {
	arrayMu.Lock()
	defer arrayMu.Unlock()

	key := arrayKey{elem: elem, length: length}
	if t, ok := arrayTypes[key]; ok {
		return t
	}
	t := &ArrayType{elem: elem, length: length}
	arrayTypes[key] = t
	return t
}

// Array is shorthand for ArrayOf(elem, Fixed(n)).
func Array(elem Type, n int) *ArrayType {
	return ArrayOf(elem, Fixed(n))
}

func (t *ArrayType) Name() string { return t.elem.Name() + t.length.String() }
func (t *ArrayType) Elem() Type { return t.elem }
func (t *ArrayType) Length() Length { return t.length }

func (t *ArrayType) New(parent *Struct) (Field, error) {
	if inner, ok := t.elem.(*ArrayType); ok {
		if _, governed := inner.length.(fieldLength); governed {
			return nil, definitionErr("%s: field governed arrays cannot be array elements", t.Name())
		}
	}
	pol, err := t.length.policy(parent)
	if err != nil {
		return nil, err
	}
	if t.elem == Byte {
		b, err := newBytes(t, pol)
		if err != nil {
			return nil, err
		}
		return b, nil
	}

	a := &arrayField{typ: t, policy: pol}
	if err := a.SetValue(nil); err != nil {
		return nil, err
	}
	return a, nil
}

func (t *ArrayType) newElem() (Field, error) {
	return t.elem.New(nil)
}

func (t *ArrayType) elementSize() int {
	t.sizeOnce.Do(func() {
		if e, err := t.newElem(); err == nil {
			t.elemSize = e.Size()
		}
	})
	return t.elemSize
}

// arrayField holds a non-byte array; its value is []any of element values.
type arrayField struct {
	typ    *ArrayType
	policy lengthPolicy
	elems  []Field
}

type arrayState struct {
	elems []Field
	cur   Field
}

func (a *arrayField) Type() Type { return a.typ }

func (a *arrayField) Value() any {
	out := make([]any, len(a.elems))
	for i, e := range a.elems {
		out[i] = e.Value()
	}
	return out
}

// Elems returns the element fields.
func (a *arrayField) Elems() []Field {
	return a.elems
}

func (a *arrayField) SetValue(v any) error {
	var items []any
	if v == nil {
		n, _ := a.policy.fixed()
		items = make([]any, n)
	} else {
		var ok bool
		if items, ok = sliceOf(v); !ok {
			return validationErr("%s cannot hold %T", a.typ.Name(), v)
		}
	}
	if n, ok := a.policy.fixed(); ok && n != 0 && len(items) != n {
		return validationErr("%s expects %d elements, got %d", a.typ.Name(), n, len(items))
	}

	elems := make([]Field, len(items))
	for i, item := range items {
		e, err := a.typ.newElem()
		if err != nil {
			return err
		}
		if err := e.SetValue(item); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		elems[i] = e
	}
	if err := a.policy.assigned(len(elems)); err != nil {
		return err
	}
	a.elems = elems
	return nil
}

func (a *arrayField) Pack() ([]byte, error) {
	var out []byte
	for i, e := range a.elems {
		b, err := e.Pack()
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, b...)
	}
	return out, nil
}

func (a *arrayField) Unpack(buf []byte) (int, error) {
	var elems []Field
	off := 0
	for a.policy.more(len(elems)) && off < len(buf) {
		e, err := a.typ.newElem()
		if err != nil {
			return 0, err
		}
		n, err := e.Unpack(buf[off:])
		if err != nil {
			return 0, fmt.Errorf("element %d: %w", len(elems), err)
		}
		off += n
		elems = append(elems, e)
		if n == 0 {
			break
		}
	}
	if err := a.policy.check(len(elems)); err != nil {
		return 0, err
	}
	a.elems = elems
	return off, nil
}

func (a *arrayField) UnpackStream(s *Stream) (bool, error) {
	if n, ok := a.policy.fixed(); ok && n == 0 {
		return false, fmt.Errorf("%s: %w", a.typ.Name(), ErrUnboundedStream)
	}

	st := &arrayState{}
	if v, ok := s.PopState(a); ok {
		st = v.(*arrayState)
	}
	for {
		if st.cur == nil {
			if !a.policy.more(len(st.elems)) {
				break
			}
			e, err := a.typ.newElem()
			if err != nil {
				return false, err
			}
			st.cur = e
		}
		done, err := st.cur.UnpackStream(s)
		if err != nil {
			return false, fmt.Errorf("element %d: %w", len(st.elems), err)
		}
		if !done {
			s.PushState(a, st)
			return false, nil
		}
		st.elems = append(st.elems, st.cur)
		st.cur = nil
	}

	if err := a.policy.check(len(st.elems)); err != nil {
		return false, err
	}
	a.elems = st.elems
	return true, nil
}

func (a *arrayField) Size() int {
	return a.policy.size(a.typ.elementSize())
}

// sliceOf converts any slice or array value to []any.
func sliceOf(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}
