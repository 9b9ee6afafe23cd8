package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/olgasafonova/nps-mcp-server/internal/config"
	"github.com/olgasafonova/nps-mcp-server/internal/nps"
)

// measurePagination times a full multi-page fetch for one state
func measurePagination(ctx context.Context, client *nps.Client, state string) {
	fmt.Printf("1. Pagination (%s, page size %d):\n", state, nps.PageSize)

	start := time.Now()
	parks, err := client.ParkDetailsMCP(ctx, nps.ParkDetailsArgs{StateCode: state})
	if err != nil {
		fmt.Printf("   Error: %v\n", err)
		return
	}
	elapsed := time.Since(start)

	pages := (len(parks) + nps.PageSize - 1) / nps.PageSize
	if pages == 0 {
		pages = 1
	}
	fmt.Printf("   Records: %d\n", len(parks))
	fmt.Printf("   Pages:   %d\n", pages)
	fmt.Printf("   Total:   %v\n", elapsed)
	fmt.Printf("   Per page: %v\n", elapsed/time.Duration(pages))
	fmt.Println()
}

// measurePayloadReduction compares park-details and park-list output for one state
func measurePayloadReduction(ctx context.Context, client *nps.Client, state string) {
	fmt.Printf("2. Payload size, park-details vs park-list (%s):\n", state)

	start := time.Now()
	full, err := client.ParkDetailsMCP(ctx, nps.ParkDetailsArgs{StateCode: state})
	if err != nil {
		fmt.Printf("   Error: %v\n", err)
		return
	}
	detailsTime := time.Since(start)

	start = time.Now()
	summaries, err := client.ParkListMCP(ctx, nps.ParkListArgs{StateCode: state})
	if err != nil {
		fmt.Printf("   Error: %v\n", err)
		return
	}
	listTime := time.Since(start)

	fullJSON, _ := json.Marshal(full)
	listJSON, _ := json.Marshal(summaries)

	fmt.Printf("   park-details: %d records, %d bytes, %v\n", len(full), len(fullJSON), detailsTime)
	fmt.Printf("   park-list:    %d records, %d bytes, %v\n", len(summaries), len(listJSON), listTime)
	if len(listJSON) > 0 {
		fmt.Printf("   Reduction: %.1fx smaller (~%d tokens saved)\n",
			float64(len(fullJSON))/float64(len(listJSON)), (len(fullJSON)-len(listJSON))/4)
	}
	fmt.Println()
}

func main() {
	state := flag.String("state", "CA", "State code to measure (pick one with more than 50 parks to exercise pagination)")
	flag.Parse()

	fmt.Println("NPS MCP Server - Performance Measurements")
	fmt.Println("=========================================")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	client := nps.NewClient(cfg, nps.WithLogger(logger))
	defer client.Close()

	ctx := context.Background()
	measurePagination(ctx, client, *state)
	measurePayloadReduction(ctx, client, *state)

	stats := client.CircuitBreakerStats()
	fmt.Println("=== Summary ===")
	fmt.Printf("Circuit breaker: %s (%d consecutive failures)\n", stats.State, stats.ConsecutiveFails)
}
