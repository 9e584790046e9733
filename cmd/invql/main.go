// invql serves a GraphQL API over the collections described by a YAML file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/syssam/invql/config"
	"github.com/syssam/invql/graphql/schema"
	"github.com/syssam/invql/graphql/sdl"
	"github.com/syssam/invql/server"
)

const usage = `usage: invql <command> [<flags>]

Commands:
   serve       Serve the GraphQL API
               -config   path of the configuration file (default invql.yaml)
               -addr     listen address, overrides the configuration
               -watch    rebuild the schema when the configuration file changes

   sdl         Print the schema in the GraphQL schema language
               -config   path of the configuration file (default invql.yaml)

   help        Display this message

Environment variables INVQL_ADDR, INVQL_NODE_ID_FIELD, INVQL_DRIVER, INVQL_DSN
and INVQL_LOG_LEVEL override the configuration file.
`

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "invql:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return errors.New("missing command")
	}
	switch cmd, args := args[0], args[1:]; cmd {
	case "serve":
		return serve(ctx, args)
	case "sdl":
		return printSDL(out, args)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	path := fs.String("config", "invql.yaml", "configuration file")
	addr := fs.String("addr", "", "listen address")
	watch := fs.Bool("watch", false, "reload on change")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, logger, err := load(*path)
	if err != nil {
		return err
	}
	s, inv, err := build(c, logger)
	if err != nil {
		return err
	}
	var current atomic.Pointer[config.Inventory]
	current.Store(inv)
	opts := []server.Option{
		server.WithLogger(logger),
		server.WithCloser(inv.Close),
		server.WithHealthCheck(func(ctx context.Context) error {
			return current.Load().Ping(ctx)
		}),
	}
	if c.Privacy.ViewerHeaders {
		opts = append(opts, server.WithViewerHeaders())
	}
	srv := server.New(s, opts...)
	if *watch {
		go func() {
			err := server.Watch(ctx, *path, logger, func() error {
				c, _, err := load(*path)
				if err != nil {
					return err
				}
				s, inv, err := build(c, logger)
				if err != nil {
					return err
				}
				current.Store(inv)
				srv.Swap(s, inv.Close)
				return nil
			})
			if err != nil {
				logger.Error("invql: watch stopped", "error", err)
			}
		}()
	}
	if *addr == "" {
		*addr = c.Addr
	}
	return srv.Run(ctx, *addr)
}

func printSDL(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("sdl", flag.ContinueOnError)
	path := fs.String("config", "invql.yaml", "configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, logger, err := load(*path)
	if err != nil {
		return err
	}
	s, inv, err := build(c, logger)
	if err != nil {
		return err
	}
	defer inv.Close()
	return sdl.Print(out, s)
}

// load reads the configuration and returns a logger at its level.
func load(path string) (*config.Config, *slog.Logger, error) {
	c, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	level, err := c.Level()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return c, logger, nil
}

func build(c *config.Config, logger *slog.Logger) (*schema.Schema, *config.Inventory, error) {
	inv, err := c.Open(logger)
	if err != nil {
		return nil, nil, err
	}
	s, err := schema.CreateSchema(inv, c.SchemaOptions(logger)...)
	if err != nil {
		_ = inv.Close()
		return nil, nil, err
	}
	return s, inv, nil
}
