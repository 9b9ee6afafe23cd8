// NPS MCP Server - A Model Context Protocol server for the National Park Service API
// Provides tools for looking up national parks by park code or state
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/olgasafonova/nps-mcp-server/internal/config"
	"github.com/olgasafonova/nps-mcp-server/internal/nps"
	"github.com/olgasafonova/nps-mcp-server/internal/ops"
	"github.com/olgasafonova/nps-mcp-server/tools"
	"github.com/olgasafonova/nps-mcp-server/tracing"
)

// recoverPanic logs a panic with its stack instead of crashing
func recoverPanic(logger *slog.Logger, operation string) {
	if r := recover(); r != nil {
		logger.Error("Panic recovered",
			"operation", operation,
			"panic", r,
			"stack", string(debug.Stack()))
	}
}

const (
	ServerName    = "nps-mcp-server"
	ServerVersion = "1.0.0"
)

const serverInstructions = `NPS MCP Server provides read-only access to the National Park Service API.

Available tools:
- park-details: Full park records by park code and/or state code (comma-separated lists allowed)
- park-list: Name, description and park code of every park in one state

Available prompts:
- parks-in-state: Ask which national parks are in a state
- park-overview: Ask for an overview of a single park

Configure via environment variables:
- NPS_API_KEY: NPS developer API key (required)
- NPS_API_BASE_URL: API root (default https://developer.nps.gov/api/v1)
- NPS_METRICS_ADDR: Listen address for /metrics and /healthz (optional)
- LOG_LEVEL: debug, info, warn or error`

// newServer builds the MCP server with every tool and prompt registered.
func newServer(client *nps.Client, logger *slog.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, &mcp.ServerOptions{
		Logger:       logger,
		Instructions: serverInstructions,
	})

	tools.NewHandlerRegistry(client, logger).RegisterAll(server)
	return server
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure logging to stderr (stdout is used for MCP protocol)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	traceCfg := tracing.DefaultConfig()
	traceCfg.ServiceVersion = ServerVersion
	shutdownTracing, err := tracing.Setup(ctx, traceCfg)
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	client := nps.NewClient(cfg, nps.WithLogger(logger))
	defer client.Close()

	server := newServer(client, logger)

	logger.Info("Starting NPS MCP Server",
		"name", ServerName,
		"version", ServerVersion,
		"base_url", cfg.BaseURL,
		"max_pages", cfg.MaxPages,
		"metrics_addr", cfg.MetricsAddr,
	)

	if err := run(ctx, server, client, cfg.MetricsAddr, logger); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

// run serves MCP over stdio and, when addr is set, the ops endpoints. The
// ops listener stops once the stdio session ends.
func run(ctx context.Context, server *mcp.Server, client *nps.Client, addr string, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		defer recoverPanic(logger, "mcp server")
		return server.Run(ctx, &mcp.StdioTransport{})
	})
	if addr != "" {
		g.Go(func() error {
			defer recoverPanic(logger, "ops server")
			return ops.Serve(ctx, addr, ops.NewRouter(client, ServerVersion), logger)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
