// Package progress draws mpb bars over input being fed to a stream decoder.
package progress

import (
	"io"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

type Progress struct {
	progress *mpb.Progress
	mu       sync.Mutex
}

// New renders bars to out. A nil out discards the rendering.
func New(out io.Writer) *Progress {
	if out == nil {
		out = io.Discard
	}
	return &Progress{
		progress: mpb.New(mpb.WithOutput(out)),
	}
}

func (p *Progress) NewBar(n int64, text string) *mpb.Bar {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.progress.AddBar(n,
		mpb.PrependDecorators(
			decor.Name(text, decor.WC{W: 12, C: decor.DindentRight}),
			decor.CountersKibiByte(" % .2f / % .2f", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Elapsed(1, decor.WC{W: 12, C: decor.DindentRight}),
		),
	)
}

// Chunks reads src in pieces of at most size bytes and hands each to fn, advancing
// bar, if any, by the bytes read. It stops at EOF or at the first error from src
// or fn.
func Chunks(src io.Reader, size int, bar *mpb.Bar, fn func([]byte) error) (int64, error) {
	if size <= 0 {
		size = 4096
	}
	buf := make([]byte, size)
	var total int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			total += int64(n)
			if bar != nil {
				bar.IncrBy(n)
			}
			if ferr := fn(buf[:n]); ferr != nil {
				return total, ferr
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

func (p *Progress) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.progress.Wait()
}
