// Package evals checks how reliably a tool selector (an LLM, or the keyword
// baseline in this package) routes natural language park questions to the
// right tool with the right arguments.
package evals

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/olgasafonova/nps-mcp-server/internal/nps"
)

//go:embed suites/park_tools.json
var defaultSuite []byte

// Case is a single tool selection evaluation case
type Case struct {
	ID           string            `json:"id"`
	Category     string            `json:"category"`
	Input        string            `json:"input"`
	ExpectedTool string            `json:"expected_tool"`
	ExpectedArgs map[string]string `json:"expected_args"`
	NotTools     []string          `json:"not_tools"`
	Reason       string            `json:"reason,omitempty"`
}

// Suite is a named set of cases
type Suite struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Cases       []Case `json:"cases"`
}

// Result is the outcome of one case
type Result struct {
	CaseID       string
	Input        string
	ExpectedTool string
	ActualTool   string
	Passed       bool
	Errors       []string
}

// Metrics aggregates a run
type Metrics struct {
	TotalTests    int
	PassedTests   int
	FailedTests   int
	Accuracy      float64 // PassedTests / TotalTests
	ByCategory    map[string]*CategoryMetrics
	ByTool        map[string]*ToolMetrics
	FailedDetails []string
}

// CategoryMetrics contains metrics per category
type CategoryMetrics struct {
	Total  int
	Passed int
	Failed int
}

// ToolMetrics contains metrics per tool
type ToolMetrics struct {
	ExpectedCount  int // times tool was expected
	SelectedCount  int // times tool was actually selected
	CorrectCount   int // times tool was correctly selected
	FalsePositives int // times this tool was selected instead of another
	FalseNegatives int // times this tool should have been selected but wasn't
}

// ToolSelector is implemented by an LLM harness or a mock
type ToolSelector interface {
	// SelectTool returns the tool name and arguments for a natural language input
	SelectTool(input string) (toolName string, args map[string]string, err error)
}

// DefaultSuite returns the suite compiled into the binary.
func DefaultSuite() (*Suite, error) {
	return parseSuite(defaultSuite)
}

// LoadSuite loads a suite from a JSON file.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return parseSuite(data)
}

func parseSuite(data []byte) (*Suite, error) {
	var suite Suite
	if err := json.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return &suite, nil
}

// Validate checks that every case targets a known tool and that its
// expected arguments would pass the server's own argument validation.
func (s *Suite) Validate(knownTools []string) error {
	known := make(map[string]bool, len(knownTools))
	for _, name := range knownTools {
		known[name] = true
	}

	seen := make(map[string]bool, len(s.Cases))
	var problems []string
	for _, c := range s.Cases {
		if c.ID == "" {
			problems = append(problems, fmt.Sprintf("case %q has no id", c.Input))
			continue
		}
		if seen[c.ID] {
			problems = append(problems, fmt.Sprintf("[%s] duplicate id", c.ID))
		}
		seen[c.ID] = true

		if !known[c.ExpectedTool] {
			problems = append(problems, fmt.Sprintf("[%s] unknown tool %q", c.ID, c.ExpectedTool))
			continue
		}
		for _, t := range c.NotTools {
			if !known[t] {
				problems = append(problems, fmt.Sprintf("[%s] unknown not_tool %q", c.ID, t))
			}
		}
		if err := validateArgs(c.ExpectedTool, c.ExpectedArgs); err != nil {
			problems = append(problems, fmt.Sprintf("[%s] %v", c.ID, err))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid suite %s: %s", s.Name, strings.Join(problems, "; "))
	}
	return nil
}

func validateArgs(tool string, args map[string]string) error {
	switch tool {
	case "park-list":
		_, err := nps.NormalizeStateCode(args["stateCode"])
		return err
	case "park-details":
		if _, err := nps.ParseParkCodes(args["parkCode"]); err != nil {
			return err
		}
		_, err := nps.ParseStateCodes(args["stateCode"])
		return err
	}
	return nil
}

// Evaluate runs every case in suite against selector
func Evaluate(suite *Suite, selector ToolSelector) (*Metrics, []Result) {
	metrics := &Metrics{
		ByCategory: make(map[string]*CategoryMetrics),
		ByTool:     make(map[string]*ToolMetrics),
	}
	results := make([]Result, 0, len(suite.Cases))

	for _, c := range suite.Cases {
		metrics.TotalTests++
		category := metrics.category(c.Category)
		category.Total++
		metrics.tool(c.ExpectedTool).ExpectedCount++

		actualTool, actualArgs, err := selector.SelectTool(c.Input)

		result := Result{
			CaseID:       c.ID,
			Input:        c.Input,
			ExpectedTool: c.ExpectedTool,
			ActualTool:   actualTool,
			Passed:       true,
		}

		if err != nil {
			result.Passed = false
			result.Errors = append(result.Errors, fmt.Sprintf("selector error: %v", err))
		}

		metrics.tool(actualTool).SelectedCount++
		if actualTool != c.ExpectedTool {
			result.Passed = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("wrong tool: expected %s, got %s", c.ExpectedTool, actualTool))
			metrics.tool(c.ExpectedTool).FalseNegatives++
			metrics.tool(actualTool).FalsePositives++
		} else {
			metrics.tool(c.ExpectedTool).CorrectCount++
		}

		for _, forbidden := range c.NotTools {
			if actualTool == forbidden {
				result.Passed = false
				result.Errors = append(result.Errors, fmt.Sprintf("selected forbidden tool: %s", forbidden))
			}
		}

		// Sorted so failure details are stable
		keys := make([]string, 0, len(c.ExpectedArgs))
		for k := range c.ExpectedArgs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			expected := c.ExpectedArgs[key]
			actual, ok := actualArgs[key]
			if !ok {
				result.Passed = false
				result.Errors = append(result.Errors, fmt.Sprintf("missing arg %s (expected %s)", key, expected))
			} else if !sameCodes(expected, actual) {
				result.Passed = false
				result.Errors = append(result.Errors,
					fmt.Sprintf("wrong arg %s: expected %s, got %s", key, expected, actual))
			}
		}

		if result.Passed {
			metrics.PassedTests++
			category.Passed++
		} else {
			metrics.FailedTests++
			category.Failed++
			metrics.FailedDetails = append(metrics.FailedDetails,
				fmt.Sprintf("[%s] %s: %s", c.ID, c.Input, strings.Join(result.Errors, "; ")))
		}

		results = append(results, result)
	}

	if metrics.TotalTests > 0 {
		metrics.Accuracy = float64(metrics.PassedTests) / float64(metrics.TotalTests)
	}

	return metrics, results
}

func (m *Metrics) category(name string) *CategoryMetrics {
	if m.ByCategory[name] == nil {
		m.ByCategory[name] = &CategoryMetrics{}
	}
	return m.ByCategory[name]
}

func (m *Metrics) tool(name string) *ToolMetrics {
	if m.ByTool[name] == nil {
		m.ByTool[name] = &ToolMetrics{}
	}
	return m.ByTool[name]
}

// sameCodes compares comma-separated code lists the way the tools read
// them: case, surrounding space and order do not matter.
func sameCodes(expected, actual string) bool {
	split := func(s string) []string {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
				out = append(out, part)
			}
		}
		sort.Strings(out)
		return out
	}

	e, a := split(expected), split(actual)
	if len(e) != len(a) {
		return false
	}
	for i := range e {
		if e[i] != a[i] {
			return false
		}
	}
	return true
}

// FormatMetrics returns a human-readable summary of evaluation metrics
func FormatMetrics(metrics *Metrics, suiteName string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\n=== %s ===\n", suiteName)
	fmt.Fprintf(&b, "Total: %d tests\n", metrics.TotalTests)
	fmt.Fprintf(&b, "Passed: %d (%.1f%%)\n", metrics.PassedTests, metrics.Accuracy*100)
	fmt.Fprintf(&b, "Failed: %d\n", metrics.FailedTests)

	if len(metrics.ByCategory) > 0 {
		names := make([]string, 0, len(metrics.ByCategory))
		for name := range metrics.ByCategory {
			names = append(names, name)
		}
		sort.Strings(names)

		b.WriteString("\nBy Category:\n")
		for _, name := range names {
			m := metrics.ByCategory[name]
			if m.Total > 0 {
				acc := float64(m.Passed) / float64(m.Total) * 100
				fmt.Fprintf(&b, "  %-15s: %d/%d (%.0f%%)\n", name, m.Passed, m.Total, acc)
			}
		}
	}

	details := metrics.FailedDetails
	if len(details) > 10 {
		fmt.Fprintf(&b, "\nFailed Tests (showing first 10 of %d):\n", len(details))
		details = details[:10]
	} else if len(details) > 0 {
		b.WriteString("\nFailed Tests:\n")
	}
	for _, detail := range details {
		fmt.Fprintf(&b, "  - %s\n", detail)
	}

	return b.String()
}
