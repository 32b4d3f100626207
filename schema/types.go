package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/topnotcher/tamp/core"
)

var (
	intPattern  = regexp.MustCompile(`^(u?int(?:8|16|32|64))(le|be|network)?$`)
	enumPattern = regexp.MustCompile(`^enum\(\s*(\w+)\s*,\s*(\w+)\s*\)`)
	identRe     = regexp.MustCompile(`^\w+`)
	countRe     = regexp.MustCompile(`^\d+$`)
)

func isBuiltin(name string) bool {
	_, ok := builtin(name)
	return ok || name == "enum"
}

func builtin(name string) (core.Type, bool) {
	switch name {
	case "byte":
		return core.Byte, true
	case "uuid":
		return core.UUID, true
	}
	if t, ok := intType(name); ok {
		return t, true
	}
	return nil, false
}

// intType resolves names such as uint8, int32be, uint16le and uint64network.
func intType(name string) (*core.IntType, bool) {
	m := intPattern.FindStringSubmatch(name)
	if m == nil {
		return nil, false
	}
	for _, t := range core.IntTypes {
		if t.Name() != m[1] {
			continue
		}
		switch m[2] {
		case "be", "network":
			return t.BE(), true
		default:
			return t, true
		}
	}
	return nil, false
}

// parseType parses a base type followed by any number of subscripts. Subscripts
// nest left to right, so uint8[4][2] is two rows of four bytes.
func (s *Schema) parseType(expr string, visiting map[string]bool) (core.Type, error) {
	expr = strings.TrimSpace(expr)

	var (
		t    core.Type
		rest string
	)
	if m := enumPattern.FindStringSubmatch(expr); m != nil {
		set, ok := s.enums[m[1]]
		if !ok {
			return nil, fmt.Errorf("%w: enum %q", ErrUnknownType, m[1])
		}
		backing, ok := intType(m[2])
		if !ok {
			return nil, fmt.Errorf("%w: %q is not an integer type", ErrInvalid, m[2])
		}
		t, rest = core.EnumOf(set, backing), expr[len(m[0]):]
	} else {
		name := identRe.FindString(expr)
		if name == "" {
			return nil, fmt.Errorf("%w: cannot parse type %q", ErrInvalid, expr)
		}
		rest = expr[len(name):]
		if b, ok := builtin(name); ok {
			t = b
		} else {
			st, err := s.compileStruct(name, visiting)
			if err != nil {
				return nil, err
			}
			t = st
		}
	}

	for rest != "" {
		if rest[0] != '[' {
			return nil, fmt.Errorf("%w: unexpected %q in %q", ErrInvalid, rest, expr)
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated subscript in %q", ErrInvalid, expr)
		}
		sub := strings.TrimSpace(rest[1:end])
		rest = rest[end+1:]

		switch {
		case sub == "":
			t = core.ArrayOf(t, core.Rest())
		case countRe.MatchString(sub):
			n, err := strconv.Atoi(sub)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
			}
			t = core.Array(t, n)
		case identRe.FindString(sub) == sub:
			t = core.ArrayOf(t, core.LengthField(sub))
		default:
			return nil, fmt.Errorf("%w: bad subscript [%s] in %q", ErrInvalid, sub, expr)
		}
	}
	return t, nil
}
