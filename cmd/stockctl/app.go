package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/nadzzz/stockline/internal/app"
	"github.com/nadzzz/stockline/internal/apperr"
	"github.com/nadzzz/stockline/internal/catalog"
	"github.com/nadzzz/stockline/internal/config"
	"github.com/nadzzz/stockline/internal/message"
	"github.com/nadzzz/stockline/internal/transport"
	grpctransport "github.com/nadzzz/stockline/internal/transport/grpc"
)

// buildHandler creates the local pipeline. Tests replace it.
var buildHandler = func(ctx context.Context, cfg *config.Config) (transport.Handler, error) {
	return app.Build(ctx, cfg)
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "stockctl",
		Usage:   "Resolve stock questions with the stockline pipeline",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Optional dotenv file loaded before configuration",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:  "remote",
				Usage: "Address of a stockline gRPC transport; resolves locally when empty",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "resolve",
				Usage:  "Resolve one transcript to a stock answer",
				Action: resolveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "transcript",
						Aliases:  []string{"t"},
						Usage:    "Transcribed question",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "lat",
						Usage: "Latitude in decimal degrees",
					},
					&cli.StringFlag{
						Name:  "lon",
						Usage: "Longitude in decimal degrees",
					},
				},
			},
			{
				Name:   "query",
				Usage:  "Look up the stock of one catalog item",
				Action: queryCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "item",
						Aliases:  []string{"i"},
						Usage:    "Exact catalog item name",
						Required: true,
					},
				},
			},
			{
				Name:   "replay",
				Usage:  "Resolve every request in a JSON-lines file",
				Action: replayCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "JSON-lines file of transcript requests, or - for stdin",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"w"},
						Usage:   "Number of requests resolved concurrently",
						Value:   4,
					},
				},
			},
			{
				Name:   "catalog",
				Usage:  "Print the catalog items and donation centers",
				Action: catalogCommand,
			},
		},
	}
}

func setup(c *cli.Context) error {
	if err := godotenv.Load(c.String("env-file")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading env file: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		return fmt.Errorf("invalid log level %q", c.String("log-level"))
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level})))
	return nil
}

// handler returns the local pipeline or a client for --remote, and a
// function releasing it.
func handler(c *cli.Context) (transport.Handler, func(), error) {
	if addr := c.String("remote"); addr != "" {
		conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to %s: %w", addr, err)
		}
		return grpctransport.NewClient(conn), func() { _ = conn.Close() }, nil
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	h, err := buildHandler(c.Context, cfg)
	if err != nil {
		return nil, nil, err
	}
	return h, func() {}, nil
}

func resolveCommand(c *cli.Context) error {
	h, release, err := handler(c)
	if err != nil {
		return err
	}
	defer release()

	resp, err := h.Resolve(c.Context, &message.Request{
		Transcript: c.String("transcript"),
		Latitude:   message.Coordinate(c.String("lat")),
		Longitude:  message.Coordinate(c.String("lon")),
	})
	return printOutcome(c, resp, err)
}

func queryCommand(c *cli.Context) error {
	h, release, err := handler(c)
	if err != nil {
		return err
	}
	defer release()

	resp, err := h.QueryItem(c.Context, &message.ItemRequest{Item: c.String("item")})
	return printOutcome(c, resp, err)
}

// printOutcome writes resp as indented JSON. Failures that the HTTP API
// would answer with a 4xx or 5xx exit non-zero.
func printOutcome[T any](c *cli.Context, resp *T, err error) error {
	if resp == nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(resp); encErr != nil {
		return encErr
	}
	if err != nil && apperr.HTTPStatus(apperr.KindOf(err)) >= 400 {
		return fmt.Errorf("request failed: %s", apperr.MessageOf(err, err.Error()))
	}
	return nil
}

func catalogCommand(c *cli.Context) error {
	w := c.App.Writer
	fmt.Fprintln(w, "Items:")
	for _, it := range catalog.Items() {
		fmt.Fprintf(w, "  %s\n", it)
	}
	fmt.Fprintln(w, "Locations:")
	for _, l := range catalog.Locations() {
		fmt.Fprintf(w, "  %-48s %s\n", l.Name, l.Coordinates)
	}
	return nil
}

func openInput(path string) (*os.File, func(), error) {
	if strings.TrimSpace(path) == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}
