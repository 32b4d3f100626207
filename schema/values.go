package schema

import (
	"encoding/base64"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/topnotcher/tamp/core"
)

// LoadValues reads a YAML value document: a map of field names to values.
func LoadValues(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read values: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: values: %v", ErrInvalid, err)
	}
	return values, nil
}

// Assign sets the fields of s from a decoded value document. Enum members may be
// given by name, nested structures as maps and arrays as lists. Fields that are
// absent keep their current value.
func Assign(s *core.Struct, values map[string]any) error {
	for name := range values {
		if _, err := s.Field(name); err != nil {
			return err
		}
	}
	for _, name := range s.Names() {
		v, ok := values[name]
		if !ok {
			continue
		}
		f, err := s.Field(name)
		if err != nil {
			return err
		}
		cv, err := convert(f.Type(), v)
		if err != nil {
			return &core.FieldError{Struct: s.StructType().Name(), Field: name, Err: err}
		}
		if err := s.Set(name, cv); err != nil {
			return err
		}
	}
	return nil
}

// convert turns a YAML decoded value into what fields of t accept.
func convert(t core.Type, v any) (any, error) {
	switch tt := t.(type) {
	case *core.EnumType:
		if name, ok := v.(string); ok {
			sym, ok := tt.EnumSet().Lookup(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s has no member %q", core.ErrValidation, tt.EnumSet().Name(), name)
			}
			return sym, nil
		}
	case *core.StructType:
		m, ok := v.(map[string]any)
		if !ok {
			return v, nil
		}
		s, err := tt.Instantiate()
		if err != nil {
			return nil, err
		}
		if err := Assign(s, m); err != nil {
			return nil, err
		}
		return s, nil
	case *core.ArrayType:
		items, ok := v.([]any)
		if !ok {
			return v, nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			cv, err := convert(tt.Elem(), item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = cv
		}
		return out, nil
	case *core.PackedType:
		return convert(tt.Inner(), v)
	}
	return v, nil
}

// Marshal renders a field value as YAML. Structures keep their field order, enum
// symbols render by name, byte strings as text when printable and as !!binary
// otherwise, which decodes back to the same bytes.
func Marshal(v any) ([]byte, error) {
	n, err := node(v)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(n)
}

func node(v any) (*yaml.Node, error) {
	switch x := v.(type) {
	case *core.Struct:
		n := &yaml.Node{Kind: yaml.MappingNode}
		for _, name := range x.Names() {
			fv, err := x.Get(name)
			if err != nil {
				return nil, err
			}
			vn, err := node(fv)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: name}, vn)
		}
		return n, nil
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, item := range x {
			in, err := node(item)
			if err != nil {
				return nil, err
			}
			if in.Kind != yaml.ScalarNode {
				n.Style = 0
			}
			n.Content = append(n.Content, in)
		}
		return n, nil
	case core.Symbol:
		return &yaml.Node{Kind: yaml.ScalarNode, Value: x.Name()}, nil
	case uuid.UUID:
		return &yaml.Node{Kind: yaml.ScalarNode, Value: x.String()}, nil
	case []byte:
		if printable(x) {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(x)}, nil
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!binary", Value: base64.StdEncoding.EncodeToString(x)}, nil
	}
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return n, nil
}

func printable(b []byte) bool {
	if len(b) == 0 || !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
