package core

import (
	"fmt"
	"sync"
)

// EnumMember declares one symbol of an EnumSet.
type EnumMember struct {
	Name  string
	Value int64
}

// EnumSet is a fixed, ordered set of named integer symbols.
type EnumSet struct {
	name    string
	members []Symbol
	byName  map[string]Symbol
	byValue map[int64]Symbol
}

func NewEnumSet(name string, members ...EnumMember) (*EnumSet, error) {
	if len(members) == 0 {
		return nil, definitionErr("enum %s has no members", name)
	}
	set := &EnumSet{
		name:    name,
		byName:  make(map[string]Symbol, len(members)),
		byValue: make(map[int64]Symbol, len(members)),
	}
	for _, m := range members {
		if _, dup := set.byName[m.Name]; dup {
			return nil, definitionErr("enum %s: duplicate member %q", name, m.Name)
		}
		if other, dup := set.byValue[m.Value]; dup {
			return nil, definitionErr("enum %s: %q and %q share value %d", name, other.name, m.Name, m.Value)
		}
		sym := Symbol{set: set, name: m.Name, value: m.Value}
		set.members = append(set.members, sym)
		set.byName[m.Name] = sym
		set.byValue[m.Value] = sym
	}
	return set, nil
}

func MustEnumSet(name string, members ...EnumMember) *EnumSet {
	set, err := NewEnumSet(name, members...)
	if err != nil {
		panic(err)
	}
	return set
}

func (e *EnumSet) Name() string { return e.name }

// Members returns the symbols in declaration order.
func (e *EnumSet) Members() []Symbol {
	return append([]Symbol(nil), e.members...)
}

func (e *EnumSet) Lookup(name string) (Symbol, bool) {
	sym, ok := e.byName[name]
	return sym, ok
}

func (e *EnumSet) ByValue(v int64) (Symbol, bool) {
	sym, ok := e.byValue[v]
	return sym, ok
}

// Symbol is a member of an EnumSet. The zero Symbol belongs to no set.
type Symbol struct {
	set   *EnumSet
	name  string
	value int64
}

func (s Symbol) Name() string { return s.name }
func (s Symbol) Int() int64 { return s.value }
func (s Symbol) Set() *EnumSet { return s.set }

func (s Symbol) String() string {
	if s.set == nil {
		return "<invalid>"
	}
	return s.set.name + "." + s.name
}

type enumKey struct {
	set     *EnumSet
	backing *IntType
}

var (
	enumMu    sync.Mutex
	enumTypes = map[enumKey]*EnumType{}
)

// EnumType encodes the symbols of a set with a backing integer type.
type EnumType struct {
	set     *EnumSet
	backing *IntType
}

// EnumOf returns the enum type of set backed by backing. The same pair always
// yields the identical *EnumType.
func EnumOf(set *EnumSet, backing *IntType) *EnumType {
	enumMu.Lock()
	defer enumMu.Unlock()

	key := enumKey{set: set, backing: backing}
	if t, ok := enumTypes[key]; ok {
		return t
	}
	t := &EnumType{set: set, backing: backing}
	enumTypes[key] = t
	return t
}

func (t *EnumType) Name() string {
	return fmt.Sprintf("enum(%s, %s)", t.set.name, t.backing.Name())
}

func (t *EnumType) EnumSet() *EnumSet { return t.set }

func (t *EnumType) Backing() *IntType { return t.backing }

func (t *EnumType) New(_ *Struct) (Field, error) {
	for _, m := range t.set.members {
		if _, err := t.backing.raw(m.value); err != nil {
			return nil, definitionErr("%s: member %s does not fit: %v", t.Name(), m.name, err)
		}
	}
	f := &Enum{typ: t, raw: &Int{typ: t.backing}}
	if err := f.SetValue(nil); err != nil {
		return nil, err
	}
	return f, nil
}

// Enum is an enumerated field; its value is a Symbol.
type Enum struct {
	typ *EnumType
	raw *Int
	sym Symbol
}

func (f *Enum) Type() Type { return f.typ }

func (f *Enum) Value() any { return f.sym }

// SetValue accepts a Symbol of the field's set or an integer naming one. nil
// selects the first declared symbol.
func (f *Enum) SetValue(v any) error {
	var sym Symbol
	switch x := v.(type) {
	case nil:
		sym = f.typ.set.members[0]
	case Symbol:
		if x.set != f.typ.set {
			return validationErr("%s cannot hold %v", f.typ.Name(), x)
		}
		sym = x
	default:
		n, ok := intOf(v)
		if !ok {
			return validationErr("%s cannot hold %T", f.typ.Name(), v)
		}
		if sym, ok = f.typ.set.byValue[n]; !ok {
			return validationErr("%s has no member with value %v", f.typ.Name(), v)
		}
	}
	if err := f.raw.SetValue(sym.value); err != nil {
		return err
	}
	f.sym = sym
	return nil
}

func (f *Enum) resolve() error {
	n, _ := intOf(f.raw.Value())
	sym, ok := f.typ.set.byValue[n]
	if !ok {
		return validationErr("%s has no member with value %d", f.typ.Name(), n)
	}
	f.sym = sym
	return nil
}

func (f *Enum) Pack() ([]byte, error) { return f.raw.Pack() }

func (f *Enum) Unpack(buf []byte) (int, error) {
	n, err := f.raw.Unpack(buf)
	if err != nil {
		return 0, err
	}
	if err := f.resolve(); err != nil {
		return 0, err
	}
	return n, nil
}

func (f *Enum) UnpackStream(s *Stream) (bool, error) {
	done, err := f.raw.UnpackStream(s)
	if !done || err != nil {
		return false, err
	}
	if err := f.resolve(); err != nil {
		return false, err
	}
	return true, nil
}

func (f *Enum) Size() int { return f.raw.Size() }

func (f *Enum) String() string { return f.sym.String() }

// intOf returns an integer value as int64. uint64 values above the int64 range wrap.
func intOf(v any) (int64, bool) {
	neg, mag, ok := integerOf(v)
	if !ok {
		return 0, false
	}
	if neg {
		return -int64(mag), true
	}
	return int64(mag), true
}
