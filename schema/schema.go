// Package schema compiles YAML layout documents into core structure types.
package schema

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/topnotcher/tamp/core"
)

var (
	ErrUnknownType = errors.New("unknown type")
	ErrCycle       = errors.New("structure cycle")
	ErrInvalid     = errors.New("invalid layout document")
)

// Document is the YAML form of a set of layouts.
type Document struct {
	Enums   []EnumDoc   `yaml:"enums"`
	Structs []StructDoc `yaml:"structs"`
}

type EnumDoc struct {
	Name    string      `yaml:"name"`
	Members []MemberDoc `yaml:"members"`
}

type MemberDoc struct {
	Name  string `yaml:"name"`
	Value int64  `yaml:"value"`
}

type StructDoc struct {
	Name   string     `yaml:"name"`
	Base   string     `yaml:"base"`
	Fields []FieldDoc `yaml:"fields"`
}

// FieldDoc declares one field. Const, ConstBytes, PackedLength and Checksum are
// mutually exclusive.
type FieldDoc struct {
	Name         string       `yaml:"name"`
	Type         string       `yaml:"type"`
	Const        any          `yaml:"const"`
	ConstBytes   string       `yaml:"const_bytes"`
	PackedLength string       `yaml:"packed_length"`
	Checksum     *ChecksumDoc `yaml:"checksum"`
}

type ChecksumDoc struct {
	Algorithm string   `yaml:"algorithm"`
	Over      []string `yaml:"over"`
}

// Schema holds the compiled enums and structures of a document.
type Schema struct {
	enums   map[string]*core.EnumSet
	structs map[string]*core.StructType
	docs    map[string]StructDoc
	log     zerolog.Logger
}

type Option func(*Schema)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Schema) {
		s.log = l
	}
}

// Load reads and compiles the layout document at path.
func Load(path string, opts ...Option) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	return Parse(data, opts...)
}

// Parse compiles a YAML layout document.
func Parse(data []byte, opts ...Option) (*Schema, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return Compile(doc, opts...)
}

// Compile builds core types for every enum and structure in doc. Structures may
// reference each other in any order as long as they do not form a cycle.
func Compile(doc Document, opts ...Option) (*Schema, error) {
	s := &Schema{
		enums:   map[string]*core.EnumSet{},
		structs: map[string]*core.StructType{},
		docs:    map[string]StructDoc{},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, e := range doc.Enums {
		if _, dup := s.enums[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate enum %q", ErrInvalid, e.Name)
		}
		members := make([]core.EnumMember, len(e.Members))
		for i, m := range e.Members {
			members[i] = core.EnumMember{Name: m.Name, Value: m.Value}
		}
		set, err := core.NewEnumSet(e.Name, members...)
		if err != nil {
			return nil, err
		}
		s.enums[e.Name] = set
		s.log.Debug().Str("enum", e.Name).Int("members", len(members)).Msg("compiled enum")
	}

	for _, d := range doc.Structs {
		if _, dup := s.docs[d.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate struct %q", ErrInvalid, d.Name)
		}
		if _, clash := s.enums[d.Name]; clash || isBuiltin(d.Name) {
			return nil, fmt.Errorf("%w: struct name %q is already taken", ErrInvalid, d.Name)
		}
		s.docs[d.Name] = d
	}

	visiting := map[string]bool{}
	for _, d := range doc.Structs {
		if _, err := s.compileStruct(d.Name, visiting); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Schema) compileStruct(name string, visiting map[string]bool) (*core.StructType, error) {
	if t, ok := s.structs[name]; ok {
		return t, nil
	}
	d, ok := s.docs[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownType, name)
	}
	if visiting[name] {
		return nil, fmt.Errorf("%w through %q", ErrCycle, name)
	}
	visiting[name] = true
	defer delete(visiting, name)

	defs := make([]core.FieldDef, 0, len(d.Fields))
	for _, fd := range d.Fields {
		t, err := s.fieldType(fd, visiting)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, fd.Name, err)
		}
		defs = append(defs, core.Def(fd.Name, t))
	}

	var (
		t   *core.StructType
		err error
	)
	if d.Base != "" {
		base, berr := s.compileStruct(d.Base, visiting)
		if berr != nil {
			return nil, fmt.Errorf("%s: base: %w", name, berr)
		}
		t, err = base.Extend(name, defs...)
	} else {
		t, err = core.NewStructType(name, defs...)
	}
	if err != nil {
		return nil, err
	}

	s.structs[name] = t
	s.log.Debug().Str("struct", name).Str("base", d.Base).Int("fields", len(t.Fields())).Msg("compiled struct")
	return t, nil
}

func (s *Schema) fieldType(fd FieldDoc, visiting map[string]bool) (core.Type, error) {
	modifiers := 0
	for _, set := range []bool{fd.Const != nil, fd.ConstBytes != "", fd.PackedLength != "", fd.Checksum != nil} {
		if set {
			modifiers++
		}
	}
	if modifiers > 1 {
		return nil, fmt.Errorf("%w: const, const_bytes, packed_length and checksum are exclusive", ErrInvalid)
	}

	if fd.ConstBytes != "" {
		b, err := hex.DecodeString(fd.ConstBytes)
		if err != nil {
			return nil, fmt.Errorf("%w: const_bytes: %v", ErrInvalid, err)
		}
		return core.ConstBytes(b), nil
	}

	if fd.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalid)
	}
	t, err := s.parseType(fd.Type, visiting)
	if err != nil {
		return nil, err
	}

	switch {
	case fd.Const != nil:
		v, err := convert(t, fd.Const)
		if err != nil {
			return nil, err
		}
		c, err := core.Const(t, v)
		if err != nil {
			return nil, err
		}
		return c, nil
	case fd.PackedLength != "":
		return core.PackedLength(t, fd.PackedLength), nil
	case fd.Checksum != nil:
		return checksumType(t, fd.Name, *fd.Checksum)
	}
	return t, nil
}

// Type resolves a type expression such as "Packet", "uint16be[4]" or
// "enum(Color, uint8)" against the schema.
func (s *Schema) Type(expr string) (core.Type, error) {
	return s.parseType(expr, map[string]bool{})
}

func (s *Schema) Struct(name string) (*core.StructType, bool) {
	t, ok := s.structs[name]
	return t, ok
}

func (s *Schema) Enum(name string) (*core.EnumSet, bool) {
	e, ok := s.enums[name]
	return e, ok
}

// Structs returns the structure names in sorted order.
func (s *Schema) Structs() []string {
	names := make([]string, 0, len(s.structs))
	for name := range s.structs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
