package evals

import (
	"regexp"
	"strings"
)

var (
	stateToken  = regexp.MustCompile(`\b[A-Z]{2}\b`)
	parkToken   = regexp.MustCompile(`[("']([a-z]{4,10})[)"']`)
	listPhrases = []string{"list", "which", "what parks", "what national parks", "parks in"}
	detailWords = []string{"fee", "hours", "activit", "detail", "compare", "everything", "full"}
)

// KeywordSelector is a deterministic baseline that routes on surface cues.
// State codes must be written as uppercase pairs ("CO") and park codes in
// parentheses or quotes ("(yell)"). It gives LLM runs a floor to beat.
type KeywordSelector struct{}

// SelectTool implements ToolSelector.
func (KeywordSelector) SelectTool(input string) (string, map[string]string, error) {
	states := stateToken.FindAllString(input, -1)

	var parks []string
	for _, m := range parkToken.FindAllStringSubmatch(input, -1) {
		parks = append(parks, m[1])
	}

	lower := strings.ToLower(input)
	if len(parks) == 0 && len(states) == 1 && containsAny(lower, listPhrases) && !containsAny(lower, detailWords) {
		return "park-list", map[string]string{"stateCode": states[0]}, nil
	}

	args := map[string]string{}
	if len(parks) > 0 {
		args["parkCode"] = strings.Join(parks, ",")
	}
	if len(states) > 0 {
		args["stateCode"] = strings.Join(states, ",")
	}
	return "park-details", args, nil
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
