package nps

import (
	"regexp"
	"strings"

	apierrors "github.com/olgasafonova/nps-mcp-server/internal/errors"
)

var (
	stateCodeRegex = regexp.MustCompile(`^[A-Z]{2}$`)
	parkCodeRegex  = regexp.MustCompile(`^[a-z]{4,10}$`)
)

// MaxFilterCodes caps how many codes one comma-joined filter may carry
const MaxFilterCodes = 100

// NormalizeStateCode uppercases and validates a two-letter state code.
func NormalizeStateCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", apierrors.NewValidationError("stateCode", "", "is required")
	}
	if !stateCodeRegex.MatchString(code) {
		return "", apierrors.NewValidationError("stateCode", code, "must be a two-letter state code (e.g., CO)")
	}
	return code, nil
}

// NormalizeParkCode lowercases and validates a park code such as "yell".
func NormalizeParkCode(code string) (string, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return "", apierrors.NewValidationError("parkCode", "", "is required")
	}
	if !parkCodeRegex.MatchString(code) {
		return "", apierrors.NewValidationError("parkCode", code, "must be 4 to 10 letters (e.g., yell)")
	}
	return code, nil
}

// ParseStateCodes splits a comma-joined list of state codes.
// Blank input yields nil (no restriction).
func ParseStateCodes(raw string) ([]string, error) {
	return parseCodeList("stateCode", raw, NormalizeStateCode)
}

// ParseParkCodes splits a comma-joined list of park codes.
// Blank input yields nil (no restriction).
func ParseParkCodes(raw string) ([]string, error) {
	return parseCodeList("parkCode", raw, NormalizeParkCode)
}

// parseCodeList keeps the first occurrence of each code, in input order
func parseCodeList(field, raw string, normalize func(string) (string, error)) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var codes []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		code, err := normalize(part)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	if len(codes) == 0 {
		return nil, apierrors.NewValidationError(field, raw, "contains no codes")
	}
	if len(codes) > MaxFilterCodes {
		return nil, apierrors.NewValidationError(field, "", "too many codes (max 100)")
	}
	return codes, nil
}
