package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/topnotcher/tamp/cmd"
	"github.com/topnotcher/tamp/styles"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd.New().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, styles.ERROR.Render(err.Error()))
		stop()
		os.Exit(1)
	}
}
