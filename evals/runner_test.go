package evals

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/olgasafonova/nps-mcp-server/tools"
)

// mockSelector answers from a fixed table
type mockSelector struct {
	responses map[string]mockResponse
}

type mockResponse struct {
	tool string
	args map[string]string
	err  error
}

func (m *mockSelector) SelectTool(input string) (string, map[string]string, error) {
	r, ok := m.responses[input]
	if !ok {
		return "", nil, errors.New("no response")
	}
	return r.tool, r.args, r.err
}

func toolNames() []string {
	names := make([]string, 0, len(tools.AllTools))
	for _, spec := range tools.AllTools {
		names = append(names, spec.Name)
	}
	return names
}

func TestDefaultSuite(t *testing.T) {
	suite, err := DefaultSuite()
	if err != nil {
		t.Fatalf("DefaultSuite: %v", err)
	}
	if len(suite.Cases) == 0 {
		t.Fatal("default suite has no cases")
	}
	if err := suite.Validate(toolNames()); err != nil {
		t.Errorf("default suite should validate against registered tools: %v", err)
	}

	covered := map[string]bool{}
	for _, c := range suite.Cases {
		covered[c.ExpectedTool] = true
	}
	for _, name := range toolNames() {
		if !covered[name] {
			t.Errorf("no case expects tool %s", name)
		}
	}
}

func TestKeywordSelectorOnDefaultSuite(t *testing.T) {
	suite, err := DefaultSuite()
	if err != nil {
		t.Fatalf("DefaultSuite: %v", err)
	}

	metrics, _ := Evaluate(suite, KeywordSelector{})
	if metrics.FailedTests != 0 {
		t.Errorf("baseline failed %d cases:\n%s", metrics.FailedTests, strings.Join(metrics.FailedDetails, "\n"))
	}
}

func TestKeywordSelector(t *testing.T) {
	tests := []struct {
		input    string
		wantTool string
		wantArgs map[string]string
	}{
		{"List the parks in CO", "park-list", map[string]string{"stateCode": "CO"}},
		{"List the parks in CO and UT", "park-details", map[string]string{"stateCode": "CO,UT"}},
		{"List fees for parks in CO", "park-details", map[string]string{"stateCode": "CO"}},
		{"Tell me about (yell)", "park-details", map[string]string{"parkCode": "yell"}},
		{"Everything about every park", "park-details", map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tool, args, err := KeywordSelector{}.SelectTool(tt.input)
			if err != nil {
				t.Fatalf("SelectTool: %v", err)
			}
			if tool != tt.wantTool {
				t.Errorf("tool = %s, want %s", tool, tt.wantTool)
			}
			if len(args) != len(tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
			for k, v := range tt.wantArgs {
				if args[k] != v {
					t.Errorf("args[%s] = %q, want %q", k, args[k], v)
				}
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	suite := &Suite{
		Name: "test",
		Cases: []Case{
			{ID: "ok", Category: "list", Input: "parks in CO", ExpectedTool: "park-list",
				ExpectedArgs: map[string]string{"stateCode": "CO"}},
			{ID: "case-insensitive", Category: "details", Input: "yell and glac", ExpectedTool: "park-details",
				ExpectedArgs: map[string]string{"parkCode": "yell,glac"}},
			{ID: "wrong-tool", Category: "details", Input: "fees at yell", ExpectedTool: "park-details",
				NotTools: []string{"park-list"}},
			{ID: "missing-arg", Category: "list", Input: "parks in UT", ExpectedTool: "park-list",
				ExpectedArgs: map[string]string{"stateCode": "UT"}},
			{ID: "selector-error", Category: "list", Input: "unknown", ExpectedTool: "park-list"},
		},
	}

	selector := &mockSelector{responses: map[string]mockResponse{
		"parks in CO":   {tool: "park-list", args: map[string]string{"stateCode": "co"}},
		"yell and glac": {tool: "park-details", args: map[string]string{"parkCode": "GLAC, yell"}},
		"fees at yell":  {tool: "park-list", args: map[string]string{}},
		"parks in UT":   {tool: "park-list", args: map[string]string{}},
	}}

	metrics, results := Evaluate(suite, selector)

	if metrics.TotalTests != 5 {
		t.Errorf("TotalTests = %d, want 5", metrics.TotalTests)
	}
	if metrics.PassedTests != 2 {
		t.Errorf("PassedTests = %d, want 2", metrics.PassedTests)
	}
	if metrics.FailedTests != 3 {
		t.Errorf("FailedTests = %d, want 3", metrics.FailedTests)
	}
	if metrics.Accuracy != 0.4 {
		t.Errorf("Accuracy = %v, want 0.4", metrics.Accuracy)
	}
	if len(results) != 5 {
		t.Fatalf("results = %d, want 5", len(results))
	}

	wrong := results[2]
	if wrong.Passed {
		t.Error("wrong-tool case should fail")
	}
	if len(wrong.Errors) != 2 {
		t.Errorf("wrong-tool errors = %v, want wrong tool and forbidden tool", wrong.Errors)
	}

	if !strings.Contains(strings.Join(results[3].Errors, ";"), "missing arg stateCode") {
		t.Errorf("missing-arg errors = %v", results[3].Errors)
	}
	if !strings.Contains(strings.Join(results[4].Errors, ";"), "selector error") {
		t.Errorf("selector-error errors = %v", results[4].Errors)
	}

	details := metrics.ByTool["park-details"]
	if details.ExpectedCount != 2 || details.CorrectCount != 1 || details.FalseNegatives != 1 {
		t.Errorf("park-details metrics = %+v", details)
	}
	list := metrics.ByTool["park-list"]
	if list.FalsePositives != 1 {
		t.Errorf("park-list FalsePositives = %d, want 1", list.FalsePositives)
	}

	if c := metrics.ByCategory["list"]; c.Total != 3 || c.Passed != 1 || c.Failed != 2 {
		t.Errorf("list category = %+v", c)
	}
}

func TestSameCodes(t *testing.T) {
	tests := []struct {
		expected, actual string
		want             bool
	}{
		{"CO", "co", true},
		{"yell,glac", "glac, yell", true},
		{"WY,MT", "WY", false},
		{"", "", true},
		{"yell", "yose", false},
		{"yell,,glac", "glac,yell", true},
	}

	for _, tt := range tests {
		if got := sameCodes(tt.expected, tt.actual); got != tt.want {
			t.Errorf("sameCodes(%q, %q) = %v, want %v", tt.expected, tt.actual, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	known := []string{"park-details", "park-list"}

	tests := []struct {
		name    string
		cases   []Case
		wantErr string
	}{
		{"valid", []Case{{ID: "a", ExpectedTool: "park-list", ExpectedArgs: map[string]string{"stateCode": "co"}}}, ""},
		{"missing id", []Case{{Input: "x", ExpectedTool: "park-list"}}, "has no id"},
		{"duplicate id", []Case{
			{ID: "a", ExpectedTool: "park-details"},
			{ID: "a", ExpectedTool: "park-details"},
		}, "duplicate id"},
		{"unknown tool", []Case{{ID: "a", ExpectedTool: "park-search"}}, "unknown tool"},
		{"unknown not_tool", []Case{{ID: "a", ExpectedTool: "park-details", NotTools: []string{"nope"}}}, "unknown not_tool"},
		{"bad state", []Case{{ID: "a", ExpectedTool: "park-list", ExpectedArgs: map[string]string{"stateCode": "Colorado"}}}, "[a]"},
		{"missing state", []Case{{ID: "a", ExpectedTool: "park-list"}}, "[a]"},
		{"bad park code", []Case{{ID: "a", ExpectedTool: "park-details", ExpectedArgs: map[string]string{"parkCode": "y"}}}, "[a]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Suite{Name: "t", Cases: tt.cases}).Validate(known)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadSuite(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(good, []byte(`{"name":"x","cases":[{"id":"a","input":"hi","expected_tool":"park-list"}]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	suite, err := LoadSuite(good)
	if err != nil {
		t.Fatalf("LoadSuite: %v", err)
	}
	if suite.Name != "x" || len(suite.Cases) != 1 {
		t.Errorf("suite = %+v", suite)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{not json`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSuite(bad); err == nil || !strings.Contains(err.Error(), "parsing JSON") {
		t.Errorf("LoadSuite(bad) error = %v", err)
	}

	if _, err := LoadSuite(filepath.Join(dir, "missing.json")); err == nil || !strings.Contains(err.Error(), "reading file") {
		t.Errorf("LoadSuite(missing) error = %v", err)
	}
}

func TestFormatMetrics(t *testing.T) {
	metrics := &Metrics{
		TotalTests:  12,
		PassedTests: 0,
		FailedTests: 12,
		ByCategory:  map[string]*CategoryMetrics{"list": {Total: 12, Failed: 12}},
	}
	for i := 0; i < 12; i++ {
		metrics.FailedDetails = append(metrics.FailedDetails, "detail")
	}

	out := FormatMetrics(metrics, "Suite")
	for _, want := range []string{"=== Suite ===", "Total: 12 tests", "list", "showing first 10 of 12"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "  - detail"); n != 10 {
		t.Errorf("printed %d failures, want 10", n)
	}
}
