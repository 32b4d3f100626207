package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"

	"github.com/topnotcher/tamp/core"
	"github.com/topnotcher/tamp/schema"
	"github.com/topnotcher/tamp/styles"
)

var errNotOverwritten = errors.New("output file exists, not overwritten")

func packCommand() *cli.Command {
	return &cli.Command{
		Name:  "pack",
		Usage: "encode a YAML value document as a structure",
		Flags: []cli.Flag{
			typeFlag(),
			&cli.StringFlag{
				Name:     "values",
				Aliases:  []string{"v"},
				Usage:    "YAML value document",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "write the encoding to this file instead of printing hex",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "overwrite the output file without asking",
			},
		},
		Action: packAction,
	}
}

func packAction(ctx context.Context, cmd *cli.Command) error {
	e, err := load(cmd)
	if err != nil {
		return err
	}
	t, err := e.resolve(cmd)
	if err != nil {
		return err
	}
	st, ok := t.(*core.StructType)
	if !ok {
		return fmt.Errorf("pack needs a structure type, got %s", t.Name())
	}

	values, err := schema.LoadValues(cmd.String("values"))
	if err != nil {
		return err
	}
	s, err := st.Instantiate()
	if err != nil {
		return err
	}
	if err := schema.Assign(s, values); err != nil {
		return err
	}
	b, err := s.Pack()
	if err != nil {
		return err
	}
	e.log.Debug().Str("type", st.Name()).Int("bytes", len(b)).Msg("packed")

	out := cmd.String("out")
	if out == "" {
		fmt.Fprintln(e.out, styles.HEX.Render(hex.EncodeToString(b)))
		return nil
	}

	if _, err := os.Stat(out); err == nil && !cmd.Bool("yes") {
		if !confirm(fmt.Sprintf("%s exists. Overwrite?", out)) {
			return errNotOverwritten
		}
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Fprintln(e.out, styles.SUCCESS.Render(fmt.Sprintf("wrote %d bytes to %s", len(b), out)))
	return nil
}

func confirm(title string) bool {
	var ok bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Affirmative("Yes").
				Negative("No").
				Title(title).
				Value(&ok),
		),
	)

	if err := form.Run(); err != nil {
		fmt.Fprintln(os.Stderr, styles.ERROR.Render(err.Error()))
		return false
	}

	return ok
}
