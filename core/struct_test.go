package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLengthFieldGovernsArray(t *testing.T) {
	typ := MustStructType("Counted",
		Def("len", Uint8),
		Def("data", ArrayOf(Uint8, LengthField("len"))),
	)
	s, err := typ.Instantiate()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Size())

	require.NoError(t, s.Set("data", []int{1, 2, 3}))
	n, err := s.Get("len")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	b, err := s.Pack()
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 1, 2, 3}, b)

	err = s.Set("len", 5)
	assert.ErrorIs(t, err, ErrValidation)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Counted", fe.Struct)
	assert.Equal(t, "len", fe.Field)
	assert.Contains(t, err.Error(), "Counted.len")

	err = s.Set("data", make([]int, 256))
	assert.ErrorIs(t, err, ErrValidation)

	u, err := typ.Instantiate()
	require.NoError(t, err)
	require.NoError(t, FromBytes(u, []byte{2, 0x10, 0x20}))
	n, _ = u.Get("len")
	assert.Equal(t, uint64(2), n)
	data, _ := u.Get("data")
	assert.Equal(t, []any{uint64(0x10), uint64(0x20)}, data)

	err = FromBytes(u, []byte{3, 1})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestLengthFieldByteString(t *testing.T) {
	typ := MustStructType("Named",
		Def("nlen", Uint16.BE()),
		Def("name", ArrayOf(Byte, LengthField("nlen"))),
		Def("flags", Uint8),
	)
	s, err := typ.Instantiate()
	require.NoError(t, err)
	require.NoError(t, s.Set("name", "tamp"))
	require.NoError(t, s.Set("flags", 9))

	b, err := s.Pack()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 4, 't', 'a', 'm', 'p', 9}, b)

	u, err := typ.Instantiate()
	require.NoError(t, err)
	require.NoError(t, FromBytes(u, b))
	assert.True(t, s.Equal(u))

	_, err = u.Unpack([]byte{0, 9, 'x'})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestStructDefinitionErrors(t *testing.T) {
	tests := []struct {
		name string
		defs []FieldDef
	}{
		{"duplicate", []FieldDef{Def("a", Uint8), Def("a", Uint16)}},
		{"two rest fields", []FieldDef{Def("a", ArrayOf(Uint8, Rest())), Def("b", ArrayOf(Byte, Rest()))}},
		{"rest before field", []FieldDef{Def("a", ArrayOf(Uint8, Rest())), Def("b", Uint8)}},
		{"nested rest before field", []FieldDef{
			Def("tail", MustStructType("Tail", Def("n", Uint8), Def("rest", ArrayOf(Byte, Rest())))),
			Def("b", Uint8),
		}},
		{"length after array", []FieldDef{Def("data", ArrayOf(Uint8, LengthField("len"))), Def("len", Uint8)}},
		{"missing length", []FieldDef{Def("data", ArrayOf(Uint8, LengthField("nope")))}},
		{"shared length", []FieldDef{
			Def("len", Uint8),
			Def("a", ArrayOf(Uint8, LengthField("len"))),
			Def("b", ArrayOf(Uint8, LengthField("len"))),
		}},
		{"non integer length", []FieldDef{Def("len", Array(Uint8, 1)), Def("a", ArrayOf(Uint8, LengthField("len")))}},
		{"packed size after", []FieldDef{Def("inner", PackedLength(Uint32, "size")), Def("size", Uint8)}},
		{"unnamed", []FieldDef{Def("", Uint8)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStructType("Bad", tt.defs...)
			assert.ErrorIs(t, err, ErrDefinition)
		})
	}

	assert.Panics(t, func() {
		MustStructType("Bad", Def("a", Uint8), Def("a", Uint8))
	})
}

func TestStructInheritance(t *testing.T) {
	header := MustStructType("Header", Def("version", Uint8))
	packet, err := header.Extend("Packet", Def("flags", Uint16))
	require.NoError(t, err)
	assert.Same(t, header, packet.Base())

	s, err := packet.Instantiate()
	require.NoError(t, err)
	assert.Equal(t, []string{"version", "flags"}, s.Names())

	require.NoError(t, s.SetValue(map[string]any{"version": 2, "flags": 0x0304}))
	b, err := s.Pack()
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0x04, 0x03}, b)

	_, err = header.Extend("Clash", Def("version", Uint8))
	assert.ErrorIs(t, err, ErrDefinition)

	err = s.SetValue(map[string]any{"nope": 1})
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestNestedStructCopiesByValue(t *testing.T) {
	point := MustStructType("Point", Def("x", Int16), Def("y", Int16))
	line := MustStructType("Line", Def("a", point), Def("b", point))

	p, err := point.Instantiate()
	require.NoError(t, err)
	require.NoError(t, p.Set("x", -3))
	require.NoError(t, p.Set("y", 4))

	l, err := line.Instantiate()
	require.NoError(t, err)
	require.NoError(t, l.Set("a", p))
	require.NoError(t, p.Set("x", 10))

	a, err := l.Get("a")
	require.NoError(t, err)
	x, err := a.(*Struct).Get("x")
	require.NoError(t, err)
	assert.Equal(t, int64(-3), x)
	assert.NotSame(t, p, a)

	require.NoError(t, l.Set("b", map[string]any{"x": 7}))
	b, err := l.Pack()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfd, 0xff, 4, 0, 7, 0, 0, 0}, b)
	assert.Equal(t, 8, l.Size())

	other := MustStructType("Other", Def("x", Int16), Def("y", Int16))
	o, err := other.Instantiate()
	require.NoError(t, err)
	assert.ErrorIs(t, l.Set("a", o), ErrValidation)

	_, err = l.Get("c")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestStructEqualityByPosition(t *testing.T) {
	a := MustStructType("A", Def("x", Uint8), Def("y", Uint16))
	b := MustStructType("B", Def("p", Uint32), Def("q", Int8))
	c := MustStructType("C", Def("x", Uint8))

	sa, err := a.Instantiate()
	require.NoError(t, err)
	sb, err := b.Instantiate()
	require.NoError(t, err)
	sc, err := c.Instantiate()
	require.NoError(t, err)

	require.NoError(t, sa.SetValue(map[string]any{"x": 1, "y": 2}))
	require.NoError(t, sb.SetValue(map[string]any{"p": 1, "q": 2}))
	require.NoError(t, sc.Set("x", 1))

	assert.True(t, sa.Equal(sb))
	assert.True(t, Equal(sa, sb))
	assert.False(t, sa.Equal(sc))

	require.NoError(t, sb.Set("q", -2))
	assert.False(t, sa.Equal(sb))
}

func TestUnpackCallbacks(t *testing.T) {
	typ := MustStructType("Cb", Def("x", Uint8))
	var order []string
	typ.OnUnpack(func(*Struct) error {
		order = append(order, "type")
		return nil
	})

	s, err := typ.Instantiate()
	require.NoError(t, err)
	s.OnUnpack(func(s *Struct) error {
		x, _ := s.Get("x")
		if x == uint64(0xff) {
			return errors.New("reserved")
		}
		order = append(order, "instance")
		return nil
	})

	require.NoError(t, FromBytes(s, []byte{1}))
	assert.Equal(t, []string{"type", "instance"}, order)

	order = nil
	require.NoError(t, s.SetValue(map[string]any{"x": 3}))
	assert.Empty(t, order)

	assert.EqualError(t, FromBytes(s, []byte{0xff}), "reserved")
}

func TestWrapFieldOnlyDuringConstruction(t *testing.T) {
	typ := MustStructType("W", Def("len", Uint8))
	s, err := typ.Instantiate()
	require.NoError(t, err)

	_, err = s.WrapField("len", func(f Field) Field { return f })
	assert.ErrorIs(t, err, ErrDefinition)
}

func TestFixedSize(t *testing.T) {
	point := MustStructType("Point", Def("x", Int16), Def("y", Int16))

	tests := []struct {
		name string
		typ  Type
		size int
		ok   bool
	}{
		{"int", Uint32.BE(), 4, true},
		{"uuid", UUID, 16, true},
		{"array", Array(Uint16, 3), 6, true},
		{"nested", Array(point, 2), 8, true},
		{"struct", MustStructType("Tagged", Def("tag", ConstBytes([]byte("TP"))), Def("p", point)), 6, true},
		{"rest", ArrayOf(Byte, Rest()), 0, false},
		{"governed", MustStructType("Counted", Def("n", Uint8), Def("data", ArrayOf(Uint8, LengthField("n")))), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, ok := FixedSize(tt.typ)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.size, size)
		})
	}
}

func TestLengthFieldOutOfRange(t *testing.T) {
	signed := MustStructType("SignedCount",
		Def("len", Int8),
		Def("data", ArrayOf(Uint8, LengthField("len"))),
	)
	huge := MustStructType("HugeCount",
		Def("len", Uint64),
		Def("data", ArrayOf(Byte, LengthField("len"))),
	)

	tests := []struct {
		name string
		typ  *StructType
		data []byte
	}{
		{"negative", signed, []byte{0xff}},
		{"negative with data", signed, []byte{0xfe, 1, 2}},
		{"beyond int", huge, []byte{0, 0, 0, 0, 0, 0, 0, 0x80, 'a'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unpack(tt.typ, tt.data)
			assert.ErrorIs(t, err, ErrLengthMismatch)

			st := NewStream(tt.typ)
			var errs []error
			for _, err := range st.Feed(tt.data) {
				errs = append(errs, err)
			}
			require.NotEmpty(t, errs)
			assert.ErrorIs(t, errs[0], ErrLengthMismatch)
		})
	}
}

func TestStructAssignSkipsCallbacks(t *testing.T) {
	point := MustStructType("Point", Def("x", Int16), Def("y", Int16))
	shape := MustStructType("Shape",
		Def("n", Uint8),
		Def("points", ArrayOf(point, LengthField("n"))),
		Def("origin", point),
		Def("check", Computed(Uint16, func(s *Struct) (any, error) {
			n, err := s.Get("n")
			return n, err
		})),
	)

	var calls []string
	point.OnUnpack(func(*Struct) error {
		calls = append(calls, "point")
		return nil
	})
	shape.OnUnpack(func(*Struct) error {
		calls = append(calls, "shape")
		return nil
	})

	src, err := shape.Instantiate()
	require.NoError(t, err)
	require.NoError(t, src.SetValue(map[string]any{
		"points": []any{map[string]any{"x": 1, "y": 2}, map[string]any{"x": -3, "y": 4}},
		"origin": map[string]any{"x": 5, "y": 6},
	}))

	dst, err := shape.Instantiate()
	require.NoError(t, err)
	require.NoError(t, dst.SetValue(src))
	assert.Empty(t, calls)
	assert.True(t, src.Equal(dst))

	n, err := dst.Get("n")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	check, err := dst.Get("check")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), check)

	b, err := src.Pack()
	require.NoError(t, err)
	require.NoError(t, FromBytes(dst, b))
	assert.Equal(t, []string{"point", "point", "point", "shape"}, calls)
}
