package core

import "github.com/google/uuid"

// UUIDType is a 16 byte RFC 4122 identifier in network order.
type UUIDType struct{}

var UUID = &UUIDType{}

func (t *UUIDType) Name() string { return "uuid" }

func (t *UUIDType) New(_ *Struct) (Field, error) {
	return &UUIDField{}, nil
}

// UUIDField holds a uuid.UUID. It accepts a uuid.UUID, its canonical string form
// or 16 raw bytes.
type UUIDField struct {
	id uuid.UUID
}

func (f *UUIDField) Type() Type { return UUID }

func (f *UUIDField) Value() any { return f.id }

func (f *UUIDField) SetValue(v any) error {
	switch x := v.(type) {
	case nil:
		f.id = uuid.Nil
	case uuid.UUID:
		f.id = x
	case string:
		id, err := uuid.Parse(x)
		if err != nil {
			return validationErr("uuid: %v", err)
		}
		f.id = id
	case []byte:
		id, err := uuid.FromBytes(x)
		if err != nil {
			return validationErr("uuid: %v", err)
		}
		f.id = id
	default:
		return validationErr("uuid cannot hold %T", v)
	}
	return nil
}

func (f *UUIDField) Pack() ([]byte, error) {
	return f.id.MarshalBinary()
}

func (f *UUIDField) Unpack(buf []byte) (int, error) {
	if len(buf) < len(f.id) {
		return 0, shortErr(len(f.id), len(buf))
	}
	copy(f.id[:], buf)
	return len(f.id), nil
}

func (f *UUIDField) UnpackStream(s *Stream) (bool, error) {
	if s.Len() < len(f.id) {
		return false, nil
	}
	b, err := s.Read(len(f.id))
	if err != nil {
		return false, err
	}
	copy(f.id[:], b)
	return true, nil
}

func (f *UUIDField) Size() int { return len(f.id) }
