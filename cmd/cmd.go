// Package cmd is the tamp command line: it compiles YAML layouts and packs,
// unpacks and stream-decodes data against them.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/topnotcher/tamp/core"
	"github.com/topnotcher/tamp/logger"
	"github.com/topnotcher/tamp/schema"
)

const VERSION = "0.1.0"

var errNoSchema = errors.New("no schema given: use --schema or TAMP_SCHEMA")

func New() *cli.Command {
	return &cli.Command{
		Name:    "tamp",
		Usage:   "pack and unpack binary structures described in YAML",
		Version: VERSION,
		Flags:   globalFlags(),
		Action:  tampAction,
		Commands: []*cli.Command{
			checkCommand(),
			packCommand(),
			unpackCommand(),
			streamCommand(),
			listenCommand(),
		},
	}
}

func tampAction(ctx context.Context, cmd *cli.Command) error {
	fmt.Fprintln(output(cmd), figure.NewFigure("tamp", "", true).String())

	return cli.ShowAppHelp(cmd)
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "schema",
			Aliases: []string{"s"},
			Usage:   "YAML layout document",
			Sources: cli.EnvVars("TAMP_SCHEMA"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "warn",
			Usage:   "debug, info, warn or error",
			Sources: cli.EnvVars("TAMP_LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-file",
			Usage:   "also write JSON logs to this file, rotated (debug defaults to the user cache dir)",
			Sources: cli.EnvVars("TAMP_LOG_FILE"),
		},
	}
}

func typeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "type",
		Aliases:  []string{"t"},
		Usage:    "type expression, e.g. Packet or uint16be[4]",
		Required: true,
	}
}

// env is what every subcommand needs: a logger and the compiled schema.
type env struct {
	log    zerolog.Logger
	schema *schema.Schema
	out    io.Writer
}

func load(cmd *cli.Command) (*env, error) {
	level, file := cmd.String("log-level"), cmd.String("log-file")
	if file == "" && strings.EqualFold(level, "debug") {
		path, err := logger.LogPath("")
		if err != nil {
			return nil, err
		}
		file = path
	}
	log, err := logger.New(logger.Config{
		Level:   level,
		File:    file,
		Console: os.Stderr,
	})
	if err != nil {
		return nil, err
	}

	path := cmd.String("schema")
	if path == "" {
		return nil, errNoSchema
	}
	s, err := schema.Load(path, schema.WithLogger(log))
	if err != nil {
		return nil, err
	}
	log.Debug().Str("schema", path).Strs("structs", s.Structs()).Msg("schema loaded")

	return &env{log: log, schema: s, out: output(cmd)}, nil
}

func (e *env) resolve(cmd *cli.Command) (core.Type, error) {
	return e.schema.Type(cmd.String("type"))
}

func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
