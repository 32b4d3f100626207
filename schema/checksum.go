package schema

import (
	"fmt"
	"hash/crc32"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/twmb/murmur3"

	"github.com/topnotcher/tamp/core"
)

var algorithms = map[string]func([]byte) uint64{
	"crc32": func(b []byte) uint64 {
		return uint64(crc32.ChecksumIEEE(b))
	},
	"murmur3": func(b []byte) uint64 {
		return uint64(murmur3.Sum32(b))
	},
	"xxhash": xxhash.Sum64,
}

// checksumType derives an unsigned integer field from the packed bytes of the
// fields listed in doc. Wider hashes are truncated to the field width.
func checksumType(t core.Type, self string, doc ChecksumDoc) (core.Type, error) {
	it, ok := t.(*core.IntType)
	if !ok || it.Signed() {
		return nil, fmt.Errorf("%w: checksum needs an unsigned integer type, got %s", ErrInvalid, t.Name())
	}
	sum, ok := algorithms[doc.Algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: unknown checksum algorithm %q", ErrInvalid, doc.Algorithm)
	}
	if len(doc.Over) == 0 {
		return nil, fmt.Errorf("%w: checksum covers no fields", ErrInvalid)
	}
	if slices.Contains(doc.Over, self) {
		return nil, fmt.Errorf("%w: checksum cannot cover itself", ErrInvalid)
	}
	_, mask := it.Bounds()
	over := slices.Clone(doc.Over)

	return core.Computed(t, func(s *core.Struct) (any, error) {
		var data []byte
		for _, name := range over {
			f, err := s.Field(name)
			if err != nil {
				return nil, err
			}
			b, err := f.Pack()
			if err != nil {
				return nil, err
			}
			data = append(data, b...)
		}
		return sum(data) & mask, nil
	}), nil
}
