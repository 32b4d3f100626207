package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/topnotcher/tamp/core"
	"github.com/topnotcher/tamp/progress"
	"github.com/topnotcher/tamp/styles"
)

func streamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "decode consecutive values from a file or stdin as bytes arrive",
		ArgsUsage: "[file|-]",
		Flags: []cli.Flag{
			typeFlag(),
			&cli.IntFlag{
				Name:    "chunk",
				Aliases: []string{"c"},
				Usage:   "read size in bytes",
				Value:   4096,
			},
		},
		Action: streamAction,
	}
}

func streamAction(ctx context.Context, cmd *cli.Command) error {
	e, err := load(cmd)
	if err != nil {
		return err
	}
	t, err := e.resolve(cmd)
	if err != nil {
		return err
	}

	st := core.NewStream(t, core.WithLogger(e.log))
	count := 0
	feed := func(b []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for v, err := range st.Feed(b) {
			if err != nil {
				return err
			}
			count++
			if err := printValue(e, v); err != nil {
				return err
			}
		}
		return nil
	}

	chunk := int(cmd.Int("chunk"))
	path := cmd.Args().First()
	if path == "" || path == "-" {
		_, err = progress.Chunks(os.Stdin, chunk, nil, feed)
	} else {
		err = streamFile(path, chunk, feed)
	}
	if err != nil {
		return err
	}

	if st.Len() > 0 || st.Depth() > 0 {
		e.log.Warn().Int("buffered", st.Len()).Msg("input ended inside a value")
	}
	fmt.Fprintln(e.out, styles.SUCCESS.Render(fmt.Sprintf("%d values of %s", count, t.Name())))
	return nil
}

func streamFile(path string, chunk int, feed func([]byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	p := progress.New(os.Stderr)
	bar := p.NewBar(info.Size(), filepath.Base(path))
	_, err = progress.Chunks(f, chunk, bar, feed)
	if !bar.Completed() {
		bar.Abort(false)
	}
	p.Wait()
	return err
}
