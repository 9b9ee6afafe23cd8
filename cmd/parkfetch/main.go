// Command parkfetch runs the park queries directly, without an MCP host,
// and prints the result as indented JSON.
//
// Usage:
//
//	go run ./cmd/parkfetch -park yell,glac
//	go run ./cmd/parkfetch -state CO -list
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/olgasafonova/nps-mcp-server/internal/config"
	"github.com/olgasafonova/nps-mcp-server/internal/nps"
)

type options struct {
	park  string
	state string
	list  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.park, "park", "", "Park code(s), comma-separated (e.g. yell,glac)")
	flag.StringVar(&opts.state, "state", "", "State code(s), comma-separated (e.g. CO)")
	flag.BoolVar(&opts.list, "list", false, "Print name, description and park code only (needs exactly one -state)")
	verbose := flag.Bool("v", false, "Log upstream requests to stderr")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	client := nps.NewClient(cfg, nps.WithLogger(logger))
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, client, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		client.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, client *nps.Client, opts options, w io.Writer) error {
	var result any
	if opts.list {
		if opts.park != "" {
			return errors.New("-list cannot be combined with -park")
		}
		summaries, err := client.ParkListMCP(ctx, nps.ParkListArgs{StateCode: opts.state})
		if err != nil {
			return err
		}
		result = summaries
	} else {
		parks, err := client.ParkDetailsMCP(ctx, nps.ParkDetailsArgs{ParkCode: opts.park, StateCode: opts.state})
		if err != nil {
			return err
		}
		result = parks
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
