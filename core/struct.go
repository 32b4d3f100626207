package core

import (
	"fmt"
	"strings"
)

// FieldDef is one named slot of a structure definition.
type FieldDef struct {
	Name string
	Type Type
}

func Def(name string, t Type) FieldDef {
	return FieldDef{Name: name, Type: t}
}

// StructType is an ordered composition of named fields. Field order is wire
// order. Extended types carry their base fields first.
type StructType struct {
	name      string
	base      *StructType
	fields    []FieldDef
	callbacks []func(*Struct) error
}

// NewStructType analyses defs and returns the structure type. It rejects duplicate
// names, more than one Rest() field, and siblings of LengthField or PackedLength
// fields that are missing, declared later, shared or not integers.
func NewStructType(name string, defs ...FieldDef) (*StructType, error) {
	return newStructType(name, nil, defs)
}

// MustStructType is like NewStructType but panics on a definition error.
func MustStructType(name string, defs ...FieldDef) *StructType {
	t, err := NewStructType(name, defs...)
	if err != nil {
		panic(err)
	}
	return t
}

// Extend derives a structure type whose fields are t's fields followed by defs.
func (t *StructType) Extend(name string, defs ...FieldDef) (*StructType, error) {
	return newStructType(name, t, defs)
}

func newStructType(name string, base *StructType, defs []FieldDef) (*StructType, error) {
	var all []FieldDef
	if base != nil {
		all = append(all, base.fields...)
	}
	all = append(all, defs...)

	index := make(map[string]int, len(all))
	rest := ""
	wired := map[string]string{}
	for i, d := range all {
		if d.Name == "" || d.Type == nil {
			return nil, definitionErr("%s: field %d needs a name and a type", name, i)
		}
		if _, dup := index[d.Name]; dup {
			return nil, definitionErr("%s: duplicate field %q", name, d.Name)
		}
		index[d.Name] = i

		if rest != "" {
			if isRest(d.Type) {
				return nil, definitionErr("%s: %q and %q both consume the rest of the input", name, rest, d.Name)
			}
			return nil, definitionErr("%s: %q consumes the rest of the input and must be the last field", name, rest)
		}
		if isRest(d.Type) {
			rest = d.Name
		}

		sib, ok := siblingOf(d.Type)
		if !ok {
			continue
		}
		j, declared := index[sib]
		if !declared || j == i {
			return nil, definitionErr("%s: %q depends on %q, which must be declared before it", name, d.Name, sib)
		}
		if _, isInt := all[j].Type.(*IntType); !isInt {
			return nil, definitionErr("%s: %q must be an integer to govern %q", name, sib, d.Name)
		}
		if other, taken := wired[sib]; taken {
			return nil, definitionErr("%s: %q already governs %q and cannot also govern %q", name, sib, other, d.Name)
		}
		wired[sib] = d.Name
	}

	return &StructType{name: name, base: base, fields: all}, nil
}

// isRest reports whether t consumes the rest of the input: a Rest array, or a
// structure ending in one.
func isRest(t Type) bool {
	switch x := t.(type) {
	case *ArrayType:
		n, ok := x.length.(fixedLength)
		return ok && n == 0
	case *StructType:
		return len(x.fields) > 0 && isRest(x.fields[len(x.fields)-1].Type)
	}
	return false
}

// siblingOf returns the name of the sibling a field type wraps, if any.
func siblingOf(t Type) (string, bool) {
	switch x := t.(type) {
	case *ArrayType:
		if l, ok := x.length.(fieldLength); ok {
			return string(l), true
		}
	case *PackedType:
		return x.size, true
	}
	return "", false
}

func (t *StructType) Name() string { return t.name }

// Base returns the type t extends, or nil.
func (t *StructType) Base() *StructType { return t.base }

// Fields returns every field definition, base fields first.
func (t *StructType) Fields() []FieldDef {
	return append([]FieldDef(nil), t.fields...)
}

// OnUnpack registers a callback that runs after every successful unpack of an
// instance of t or a type extending it. A returned error fails the unpack.
func (t *StructType) OnUnpack(fn func(*Struct) error) {
	t.callbacks = append(t.callbacks, fn)
}

func (t *StructType) New(_ *Struct) (Field, error) {
	return t.Instantiate()
}

// Instantiate builds an instance with every field at its default value.
func (t *StructType) Instantiate() (*Struct, error) {
	s := &Struct{
		typ:      t,
		index:    make(map[string]int, len(t.fields)),
		building: true,
	}
	for i, d := range t.fields {
		s.index[d.Name] = i
	}
	// siblings may wrap earlier slots while later slots are still nil
	s.slots = make([]Field, len(t.fields))
	s.wrapped = make([]bool, len(t.fields))
	for i, d := range t.fields {
		f, err := d.Type.New(s)
		if err != nil {
			return nil, &FieldError{Struct: t.name, Field: d.Name, Err: err}
		}
		s.slots[i] = f
	}
	s.building = false
	return s, nil
}

// Struct is an instance of a StructType. Its value is the *Struct itself.
type Struct struct {
	typ       *StructType
	index     map[string]int
	slots     []Field
	wrapped   []bool
	callbacks []func(*Struct) error
	building  bool
}

type unwrapper interface {
	Unwrap() Field
}

func (s *Struct) Type() Type { return s.typ }

func (s *Struct) StructType() *StructType { return s.typ }

// WrapField replaces the named slot with wrap(current) and returns the field that
// was there before. A slot can be wrapped once, and only while the instance is
// being constructed.
func (s *Struct) WrapField(name string, wrap func(Field) Field) (Field, error) {
	i, ok := s.index[name]
	if !ok || s.slots[i] == nil {
		return nil, definitionErr("%s: no field %q to wrap", s.typ.name, name)
	}
	if !s.building {
		return nil, definitionErr("%s: %q can only be wrapped during construction", s.typ.name, name)
	}
	if s.wrapped[i] {
		return nil, definitionErr("%s: %q is already wrapped", s.typ.name, name)
	}
	prev := s.slots[i]
	s.slots[i] = wrap(prev)
	s.wrapped[i] = true
	return prev, nil
}

// Field returns the field stored in the named slot, wrapper included.
func (s *Struct) Field(name string) (Field, error) {
	i, ok := s.index[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w %q", s.typ.name, ErrUnknownField, name)
	}
	return s.slots[i], nil
}

// Unwrapped returns the field in the named slot with any wrapper removed.
func (s *Struct) Unwrapped(name string) (Field, error) {
	f, err := s.Field(name)
	if err != nil {
		return nil, err
	}
	for {
		w, ok := f.(unwrapper)
		if !ok {
			return f, nil
		}
		f = w.Unwrap()
	}
}

func (s *Struct) Get(name string) (any, error) {
	f, err := s.Field(name)
	if err != nil {
		return nil, err
	}
	return f.Value(), nil
}

func (s *Struct) Set(name string, v any) error {
	f, err := s.Field(name)
	if err != nil {
		return err
	}
	if err := f.SetValue(v); err != nil {
		return &FieldError{Struct: s.typ.name, Field: name, Err: err}
	}
	return nil
}

// Names returns the field names in wire order.
func (s *Struct) Names() []string {
	names := make([]string, len(s.typ.fields))
	for i, d := range s.typ.fields {
		names[i] = d.Name
	}
	return names
}

func (s *Struct) Len() int { return len(s.slots) }

// OnUnpack registers a callback on this instance only. Instance callbacks run after
// the type's callbacks.
func (s *Struct) OnUnpack(fn func(*Struct) error) {
	s.callbacks = append(s.callbacks, fn)
}

func (s *Struct) nameOf(f Field) string {
	for i, slot := range s.slots {
		if slot == f {
			return s.typ.fields[i].Name
		}
	}
	return "?"
}

// Equal reports whether both structures hold the same number of fields with
// pairwise equal values. Names and types are not compared.
func (s *Struct) Equal(o *Struct) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.slots) != len(o.slots) {
		return false
	}
	for i := range s.slots {
		if !Equal(s.slots[i].Value(), o.slots[i].Value()) {
			return false
		}
	}
	return true
}

func (s *Struct) Value() any { return s }

// SetValue accepts a *Struct of the same type, copied by value, or a
// map[string]any assigned field by field in wire order. nil leaves s unchanged.
func (s *Struct) SetValue(v any) error {
	switch x := v.(type) {
	case nil:
		return nil
	case *Struct:
		if x == s {
			return nil
		}
		if x.typ != s.typ {
			return validationErr("cannot assign %s to %s", x.typ.name, s.typ.name)
		}
		return s.copyFrom(x)
	case map[string]any:
		for k := range x {
			if _, ok := s.index[k]; !ok {
				return fmt.Errorf("%s: %w %q", s.typ.name, ErrUnknownField, k)
			}
		}
		for _, d := range s.typ.fields {
			if fv, ok := x[d.Name]; ok {
				if err := s.Set(d.Name, fv); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return validationErr("%s cannot hold %T", s.typ.name, v)
}

// derived marks fields whose value follows from other fields and is never
// assigned directly.
type derived interface {
	derived()
}

// copyFrom assigns the field values of src, which has the same type, in
// declaration order. Derived fields follow along.
func (s *Struct) copyFrom(src *Struct) error {
	for i, f := range s.slots {
		if _, ok := f.(derived); ok {
			continue
		}
		if err := f.SetValue(src.slots[i].Value()); err != nil {
			return &FieldError{Struct: s.typ.name, Field: s.typ.fields[i].Name, Err: err}
		}
	}
	return nil
}

func (s *Struct) Pack() ([]byte, error) {
	var out []byte
	for i, f := range s.slots {
		b, err := f.Pack()
		if err != nil {
			return nil, &FieldError{Struct: s.typ.name, Field: s.typ.fields[i].Name, Err: err}
		}
		out = append(out, b...)
	}
	return out, nil
}

func (s *Struct) Unpack(buf []byte) (int, error) {
	off := 0
	for i, f := range s.slots {
		n, err := f.Unpack(buf[off:])
		if err != nil {
			return 0, &FieldError{Struct: s.typ.name, Field: s.typ.fields[i].Name, Err: err}
		}
		off += n
	}
	if err := s.unpacked(); err != nil {
		return 0, err
	}
	return off, nil
}

// UnpackStream resumes at the first field that has not completed yet.
func (s *Struct) UnpackStream(st *Stream) (bool, error) {
	next := 0
	if v, ok := st.PopState(s); ok {
		next = v.(int)
	}
	for ; next < len(s.slots); next++ {
		done, err := s.slots[next].UnpackStream(st)
		if err != nil {
			return false, &FieldError{Struct: s.typ.name, Field: s.typ.fields[next].Name, Err: err}
		}
		if !done {
			st.PushState(s, next)
			return false, nil
		}
	}
	if err := s.unpacked(); err != nil {
		return false, err
	}
	return true, nil
}

// unpacked runs the callbacks of the base types, the type and the instance.
func (s *Struct) unpacked() error {
	var chain []*StructType
	for t := s.typ; t != nil; t = t.base {
		chain = append(chain, t)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for _, fn := range chain[i].callbacks {
			if err := fn(s); err != nil {
				return err
			}
		}
	}
	for _, fn := range s.callbacks {
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Struct) Size() int {
	n := 0
	for _, f := range s.slots {
		n += f.Size()
	}
	return n
}

func (s *Struct) String() string {
	var sb strings.Builder
	sb.WriteString(s.typ.name)
	sb.WriteByte('{')
	for i, f := range s.slots {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %v", s.typ.fields[i].Name, f.Value())
	}
	sb.WriteByte('}')
	return sb.String()
}
