package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/charmbracelet/huh/spinner"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.org/x/net/netutil"

	"github.com/topnotcher/tamp/core"
	"github.com/topnotcher/tamp/schema"
	"github.com/topnotcher/tamp/styles"
)

func listenCommand() *cli.Command {
	return &cli.Command{
		Name:  "listen",
		Usage: "decode values sent over TCP and answer each with its YAML form",
		Flags: []cli.Flag{
			typeFlag(),
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Value:   ":9000",
			},
			&cli.IntFlag{
				Name:  "max-conns",
				Usage: "maximum concurrent connections",
				Value: 16,
			},
		},
		Action: listenAction,
	}
}

func listenAction(ctx context.Context, cmd *cli.Command) error {
	e, err := load(cmd)
	if err != nil {
		return err
	}
	t, err := e.resolve(cmd)
	if err != nil {
		return err
	}

	addr := cmd.String("addr")
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if n := cmd.Int("max-conns"); n > 0 {
		ln = netutil.LimitListener(ln, int(n))
	}

	title := styles.INFO.Render(fmt.Sprintf("decoding %s on %s...", t.Name(), ln.Addr()))
	return spinner.New().Title(title).ActionWithErr(
		func(sctx context.Context) error {
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			stop := context.AfterFunc(sctx, cancel)
			defer stop()

			return serve(ctx, ln, t, e.log)
		},
	).Run()
}

// serve accepts connections until ctx is done, decoding each with its own stream.
func serve(ctx context.Context, ln net.Listener, t core.Type, log zerolog.Logger) error {
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			remote := conn.RemoteAddr().String()
			if err := handleConn(ctx, conn, t, log.With().Str("remote", remote).Logger()); err != nil {
				log.Warn().Str("remote", remote).Err(err).Msg("connection closed with error")
			}
		}()
	}
}

// handleConn feeds everything read from conn to a stream of t and writes every
// decoded value back as a YAML document. A decode error is reported to the peer
// and ends the connection.
func handleConn(ctx context.Context, conn net.Conn, t core.Type, log zerolog.Logger) error {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	st := core.NewStream(t, core.WithLogger(log))
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			for v, ferr := range st.Feed(buf[:n]) {
				if ferr != nil {
					fmt.Fprintf(conn, "error: %v\n", ferr)
					return ferr
				}
				text, merr := schema.Marshal(v)
				if merr != nil {
					return merr
				}
				if _, werr := conn.Write(append([]byte("---\n"), text...)); werr != nil {
					return werr
				}
				log.Debug().Msg("value decoded")
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
