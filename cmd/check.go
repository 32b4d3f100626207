package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/topnotcher/tamp/core"
	"github.com/topnotcher/tamp/styles"
)

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:   "check",
		Usage:  "compile the schema and list its structures",
		Action: checkAction,
	}
}

func checkAction(ctx context.Context, cmd *cli.Command) error {
	e, err := load(cmd)
	if err != nil {
		return err
	}

	for _, name := range e.schema.Structs() {
		t, _ := e.schema.Struct(name)
		if _, err := t.Instantiate(); err != nil {
			return err
		}

		size := "variable"
		if n, ok := core.FixedSize(t); ok {
			size = fmt.Sprintf("%d bytes", n)
		}
		fmt.Fprintln(e.out, styles.TITLE.Render(name), styles.INFO.Render(size))
		for _, d := range t.Fields() {
			fmt.Fprintf(e.out, "  %-12s %s\n", d.Name, d.Type.Name())
		}
	}

	fmt.Fprintln(e.out, styles.SUCCESS.Render(fmt.Sprintf("%d structures ok", len(e.schema.Structs()))))
	return nil
}
