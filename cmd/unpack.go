package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/topnotcher/tamp/core"
	"github.com/topnotcher/tamp/schema"
	"github.com/topnotcher/tamp/styles"
)

var errNoInput = errors.New("give a file argument or --hex")

func unpackCommand() *cli.Command {
	return &cli.Command{
		Name:      "unpack",
		Usage:     "decode one value that spans exactly the input",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			typeFlag(),
			&cli.StringFlag{
				Name:  "hex",
				Usage: "hex encoded input, whitespace ignored",
			},
		},
		Action: unpackAction,
	}
}

func unpackAction(ctx context.Context, cmd *cli.Command) error {
	e, err := load(cmd)
	if err != nil {
		return err
	}
	t, err := e.resolve(cmd)
	if err != nil {
		return err
	}

	var data []byte
	switch {
	case cmd.String("hex") != "":
		data, err = hex.DecodeString(strings.Join(strings.Fields(cmd.String("hex")), ""))
		if err != nil {
			return fmt.Errorf("invalid --hex: %w", err)
		}
	case cmd.Args().First() != "":
		data, err = os.ReadFile(cmd.Args().First())
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
	default:
		return errNoInput
	}

	v, err := core.Unpack(t, data)
	if err != nil {
		return err
	}
	e.log.Debug().Str("type", t.Name()).Int("bytes", len(data)).Msg("unpacked")

	return printValue(e, v)
}

func printValue(e *env, v any) error {
	text, err := schema.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, styles.VALUE.Render(strings.TrimRight(string(text), "\n")))
	return nil
}
