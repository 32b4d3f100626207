package progress

import (
	"bytes"
	"errors"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunks(t *testing.T) {
	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i)
	}

	progress := New(nil)
	bar := progress.NewBar(int64(len(data)), "decoding")

	var got bytes.Buffer
	var calls int
	n, err := Chunks(bytes.NewReader(data), 100, bar, func(chunk []byte) error {
		calls++
		assert.LessOrEqual(t, len(chunk), 100)
		got.Write(chunk)
		return nil
	})
	require.NoError(t, err)
	progress.Wait()

	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, data, got.Bytes())
	assert.Equal(t, 11, calls)
	assert.True(t, bar.Completed(), "progress bar not completed: %v/%v", bar.Current(), len(data))
}

func TestChunksStopsOnError(t *testing.T) {
	progress := New(nil)
	bar := progress.NewBar(10, "decoding")
	errStop := errors.New("stop")

	_, err := Chunks(bytes.NewReader(make([]byte, 10)), 4, bar, func([]byte) error {
		return errStop
	})
	assert.ErrorIs(t, err, errStop)

	_, err = Chunks(iotest.ErrReader(errStop), 4, nil, func([]byte) error { return nil })
	assert.ErrorIs(t, err, errStop)

	bar.Abort(true)
	progress.Wait()
}
