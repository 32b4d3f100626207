package core

import (
	"fmt"
	"iter"

	"github.com/rs/zerolog"
)

// Stream incrementally unpacks consecutive values of one type from bytes that
// arrive in arbitrary chunks.
//
// Fields that cannot finish in one call stash their partial state with PushState
// and pick it up with PopState when they are retried. Only the most recently
// pushed state is reachable, so composites must resolve their current child before
// starting the next one.
type Stream struct {
	typ   Type
	buf   []byte
	obj   Field
	stack []streamState
	read  int
	log   zerolog.Logger
}

type streamState struct {
	owner Field
	state any
}

type StreamOption func(*Stream)

// WithLogger sets the logger used for suspend and completion events.
func WithLogger(l zerolog.Logger) StreamOption {
	return func(s *Stream) {
		s.log = l
	}
}

func NewStream(t Type, opts ...StreamOption) *Stream {
	s := &Stream{
		typ: t,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Feed buffers chunk and returns the sequence of values that can be completed.
// Ranging over the sequence again continues where the previous range stopped, so
// values are never lost if the caller breaks early. A decode error is yielded once
// and ends the sequence; the partially decoded value is discarded.
func (s *Stream) Feed(chunk []byte) iter.Seq2[any, error] {
	s.buf = append(s.buf, chunk...)
	return func(yield func(any, error) bool) {
		for {
			before := s.read
			v, ok, err := s.Next()
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok {
				return
			}
			if !yield(v, nil) {
				return
			}
			// zero sized encodings would complete forever
			if s.read == before {
				return
			}
		}
	}
}

// Next tries to complete one value from the buffered bytes. ok is false when more
// input is needed.
func (s *Stream) Next() (v any, ok bool, err error) {
	if s.obj == nil {
		if len(s.buf) == 0 {
			return nil, false, nil
		}
		f, err := s.typ.New(nil)
		if err != nil {
			return nil, false, err
		}
		s.obj = f
	}

	done, err := s.obj.UnpackStream(s)
	if err != nil {
		s.log.Debug().Str("type", s.typ.Name()).Err(err).Msg("stream decode failed")
		s.Reset()
		return nil, false, err
	}
	if !done {
		s.log.Debug().
			Str("type", s.typ.Name()).
			Int("buffered", len(s.buf)).
			Int("depth", len(s.stack)).
			Msg("stream suspended")
		return nil, false, nil
	}

	v = s.obj.Value()
	s.obj = nil
	s.log.Debug().Str("type", s.typ.Name()).Int("buffered", len(s.buf)).Msg("stream value complete")
	return v, true, nil
}

// Reset discards the partially decoded value and all stashed state. Buffered bytes
// are kept.
func (s *Stream) Reset() {
	s.obj = nil
	s.stack = s.stack[:0]
}

// Len reports the number of buffered, unread bytes.
func (s *Stream) Len() int {
	return len(s.buf)
}

// Depth reports how many partial states are stashed.
func (s *Stream) Depth() int {
	return len(s.stack)
}

// Read pops exactly n bytes. Fields must check Len first.
func (s *Stream) Read(n int) ([]byte, error) {
	if n > len(s.buf) {
		return nil, fmt.Errorf("stream read: %w", shortErr(n, len(s.buf)))
	}
	b := s.buf[:n:n]
	s.buf = s.buf[n:]
	s.read += n
	return b, nil
}

// PushState stashes the partial state of owner until its next retry.
func (s *Stream) PushState(owner Field, state any) {
	s.stack = append(s.stack, streamState{owner: owner, state: state})
}

// PopState retrieves the state owner stashed last, if it is on top of the stack.
func (s *Stream) PopState(owner Field) (any, bool) {
	n := len(s.stack)
	if n == 0 || s.stack[n-1].owner != owner {
		return nil, false
	}
	st := s.stack[n-1].state
	s.stack[n-1] = streamState{}
	s.stack = s.stack[:n-1]
	return st, true
}
