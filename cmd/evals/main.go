// Command evals checks the tool routing eval suite and scores the keyword
// baseline against it.
//
// Usage:
//
//	go run ./cmd/evals -verbose
//	go run ./cmd/evals -file ./my_suite.json
//
// For LLM evaluation, implement evals.ToolSelector in your LLM testing
// harness and call evals.Evaluate with the same suite.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/olgasafonova/nps-mcp-server/evals"
	"github.com/olgasafonova/nps-mcp-server/tools"
)

func main() {
	file := flag.String("file", "", "Suite JSON file (default: the built-in park_tools suite)")
	verbose := flag.Bool("verbose", false, "Show every case")
	flag.Parse()

	fmt.Println("NPS MCP Server - Evaluation Framework")
	fmt.Println("=====================================")

	suite, err := loadSuite(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading suite: %v\n", err)
		os.Exit(1)
	}

	names := make([]string, 0, len(tools.AllTools))
	for _, spec := range tools.AllTools {
		names = append(names, spec.Name)
	}
	if err := suite.Validate(names); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Suite: %s (v%s)\n", suite.Name, suite.Version)
	fmt.Printf("Description: %s\n", suite.Description)
	fmt.Printf("Cases: %d\n", len(suite.Cases))

	if *verbose {
		fmt.Println()
		for _, c := range suite.Cases {
			fmt.Printf("  [%s] %q -> %s %v\n", c.ID, c.Input, c.ExpectedTool, c.ExpectedArgs)
			if c.Reason != "" {
				fmt.Printf("         reason: %s\n", c.Reason)
			}
		}
	}

	metrics, _ := evals.Evaluate(suite, evals.KeywordSelector{})
	fmt.Print(evals.FormatMetrics(metrics, "Keyword baseline"))

	if metrics.FailedTests > 0 {
		os.Exit(1)
	}
}

func loadSuite(path string) (*evals.Suite, error) {
	if path == "" {
		return evals.DefaultSuite()
	}
	return evals.LoadSuite(path)
}
