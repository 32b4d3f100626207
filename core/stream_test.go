package core

import (
	"math/rand/v2"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridSum(s *Struct) (any, error) {
	v, err := s.Get("grid")
	if err != nil {
		return nil, err
	}
	var total uint64
	for _, row := range v.([]any) {
		for _, cell := range row.([]any) {
			total += cell.(uint64)
		}
	}
	return total, nil
}

func packetType() *StructType {
	point := MustStructType("Point", Def("x", Int16.BE()), Def("y", Int16.BE()))
	return MustStructType("Packet",
		Def("magic", ConstBytes([]byte("TP"))),
		Def("id", UUID),
		Def("color", EnumOf(color, Uint8)),
		Def("count", Uint8),
		Def("points", ArrayOf(point, LengthField("count"))),
		Def("nlen", Uint16),
		Def("name", ArrayOf(Byte, LengthField("nlen"))),
		Def("grid", Array(Array(Uint8, 2), 2)),
		Def("sum", Computed(Uint16, gridSum)),
		Def("end", MustConst(Uint32, 77)),
	)
}

func newPacket(t *testing.T, typ *StructType, name string) *Struct {
	t.Helper()
	s, err := typ.Instantiate()
	require.NoError(t, err)
	require.NoError(t, s.SetValue(map[string]any{
		"id":    "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		"color": 2,
		"points": []any{
			map[string]any{"x": 1, "y": -2},
			map[string]any{"x": 300, "y": 4},
		},
		"name": name,
		"grid": [][]int{{1, 2}, {3, 4}},
	}))
	return s
}

func collect(t *testing.T, st *Stream, chunks ...[]byte) []any {
	t.Helper()
	var out []any
	for _, c := range chunks {
		for v, err := range st.Feed(c) {
			require.NoError(t, err)
			out = append(out, v)
		}
	}
	return out
}

func TestPacketRoundTrip(t *testing.T) {
	typ := packetType()
	s := newPacket(t, typ, "tamp")

	b, err := s.Pack()
	require.NoError(t, err)

	u, err := typ.Instantiate()
	require.NoError(t, err)
	require.NoError(t, FromBytes(u, b))
	assert.True(t, s.Equal(u))

	sum, _ := u.Get("sum")
	assert.Equal(t, uint64(10), sum)
}

func TestStreamByteAtATime(t *testing.T) {
	typ := packetType()
	s := newPacket(t, typ, "byte at a time")
	b, err := s.Pack()
	require.NoError(t, err)

	st := NewStream(typ)
	var chunks [][]byte
	for i := range b {
		chunks = append(chunks, b[i:i+1])
	}
	got := collect(t, st, chunks...)

	require.Len(t, got, 1)
	assert.True(t, s.Equal(got[0].(*Struct)))
	assert.Zero(t, st.Len())
	assert.Zero(t, st.Depth())
}

func TestStreamRandomChunks(t *testing.T) {
	typ := packetType()
	s := newPacket(t, typ, "random chunking")
	b, err := s.Pack()
	require.NoError(t, err)

	r := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 50; round++ {
		st := NewStream(typ)
		var chunks [][]byte
		for rest := b; len(rest) > 0; {
			n := min(r.IntN(7)+1, len(rest))
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}
		got := collect(t, st, chunks...)
		require.Len(t, got, 1, "round %d", round)
		assert.True(t, s.Equal(got[0].(*Struct)), "round %d", round)
	}
}

func TestStreamSuspendsMidField(t *testing.T) {
	typ := packetType()
	s := newPacket(t, typ, "suspend")
	b, err := s.Pack()
	require.NoError(t, err)

	st := NewStream(typ, WithLogger(zerolog.Nop()))
	half := len(b) / 2
	assert.Empty(t, collect(t, st, b[:half]))
	assert.NotZero(t, st.Depth())

	got := collect(t, st, b[half:])
	require.Len(t, got, 1)
	assert.True(t, s.Equal(got[0].(*Struct)))
	assert.Zero(t, st.Depth())
}

func TestStreamMultipleValues(t *testing.T) {
	typ := packetType()
	first := newPacket(t, typ, "first")
	second := newPacket(t, typ, "second")
	a, err := first.Pack()
	require.NoError(t, err)
	b, err := second.Pack()
	require.NoError(t, err)

	st := NewStream(typ)
	for v, err := range st.Feed(append(append([]byte{}, a...), b...)) {
		require.NoError(t, err)
		assert.True(t, first.Equal(v.(*Struct)))
		break
	}

	got := collect(t, st, nil)
	require.Len(t, got, 1)
	assert.True(t, second.Equal(got[0].(*Struct)))
}

func TestStreamPackedLength(t *testing.T) {
	typ := packedType()
	s, err := typ.Instantiate()
	require.NoError(t, err)
	require.NoError(t, s.Set("inner", []int{1, 2, 3, 4}))
	b, err := s.Pack()
	require.NoError(t, err)

	st := NewStream(typ)
	var got []any
	for i := range b {
		got = append(got, collect(t, st, b[i:i+1])...)
	}
	require.Len(t, got, 1)
	assert.True(t, s.Equal(got[0].(*Struct)))
}

func TestStreamErrorResets(t *testing.T) {
	typ := MustStructType("Framed",
		Def("magic", MustConst(Uint8, 0xaa)),
		Def("v", Uint8),
	)
	st := NewStream(typ)

	var errs []error
	for _, err := range st.Feed([]byte{0xbb, 0xaa, 0x02}) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrValueMismatch)
	assert.Zero(t, st.Depth())

	got := collect(t, st, nil)
	require.Len(t, got, 1)
	v, _ := got[0].(*Struct).Get("v")
	assert.Equal(t, uint64(2), v)
}

func TestStreamScalars(t *testing.T) {
	st := NewStream(Uint32.BE())
	got := collect(t, st, []byte{0, 0}, []byte{0, 1, 0}, []byte{0, 0, 2})
	assert.Equal(t, []any{uint64(1), uint64(2)}, got)

	st = NewStream(Array(Uint16, 2))
	got = collect(t, st, []byte{1}, []byte{0, 2}, []byte{0})
	assert.Equal(t, []any{[]any{uint64(1), uint64(2)}}, got)
}

func TestStreamRejectsUnboundedArrays(t *testing.T) {
	for _, typ := range []Type{ArrayOf(Uint8, Rest()), ArrayOf(Byte, Rest())} {
		st := NewStream(typ)
		var errs []error
		for _, err := range st.Feed([]byte{1, 2}) {
			errs = append(errs, err)
		}
		require.Len(t, errs, 1, typ.Name())
		assert.ErrorIs(t, errs[0], ErrUnboundedStream)
	}
}

func TestStreamRead(t *testing.T) {
	st := NewStream(Uint8)
	for range st.Feed([]byte{1, 2, 3}) {
		break
	}
	_, err := st.Read(5)
	assert.ErrorIs(t, err, ErrInsufficientData)

	b, err := st.Read(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3}, b)
	assert.Zero(t, st.Len())
}

func TestStreamIdleBetweenValues(t *testing.T) {
	typ := packetType()
	packet, err := newPacket(t, typ, "idle").Pack()
	require.NoError(t, err)

	tests := []struct {
		name string
		typ  Type
		data []byte
	}{
		{"uuid", UUID, make([]byte, 16)},
		{"grid", Array(Array(Uint8, 2), 2), []byte{1, 2, 3, 4}},
		{"packet", typ, packet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewStream(tt.typ)
			var got []any
			for i := range tt.data {
				got = append(got, collect(t, st, tt.data[i:i+1])...)
			}
			require.Len(t, got, 1)
			assert.Zero(t, st.Len())
			assert.Zero(t, st.Depth())

			assert.Empty(t, collect(t, st, nil))
			assert.Zero(t, st.Depth())

			assert.Empty(t, collect(t, st, tt.data[:1]))
			assert.True(t, st.Len() > 0 || st.Depth() > 0, "partial value must be pending")
			got = collect(t, st, tt.data[1:])
			require.Len(t, got, 1)
			assert.Zero(t, st.Depth())
		})
	}
}
