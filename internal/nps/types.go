package nps

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// ResourceParks is the NPS API collection holding park records
	ResourceParks = "parks"

	// PageSize is the number of records requested per page
	PageSize = 50
)

// Park is a raw NPS park record. The API returns dozens of fields
// (images, activities, addresses, ...); they are kept as-is so the
// details tool can hand the full record to the host.
type Park map[string]any

// Code returns the park's unique parkCode
func (p Park) Code() string { return p.str("parkCode") }

// FullName returns the park's display name
func (p Park) FullName() string { return p.str("fullName") }

// Description returns the park's free-text description
func (p Park) Description() string { return p.str("description") }

// States returns the comma-joined two-letter state codes the park lies in
func (p Park) States() string { return p.str("states") }

func (p Park) str(key string) string {
	s, _ := p[key].(string)
	return s
}

// ParkSummary is the field-limited park shape returned by park-list.
// It bounds the size of state-level listings.
type ParkSummary struct {
	FullName    string `json:"fullName"`
	Description string `json:"description"`
	ParkCode    string `json:"parkCode"`
}

// ToSummary projects a raw park to its summary fields
func ToSummary(p Park) ParkSummary {
	return ParkSummary{
		FullName:    p.FullName(),
		Description: p.Description(),
		ParkCode:    p.Code(),
	}
}

// Summarize projects every park, preserving order
func Summarize(parks []Park) []ParkSummary {
	out := make([]ParkSummary, 0, len(parks))
	for _, p := range parks {
		out = append(out, ToSummary(p))
	}
	return out
}

// PageResponse is one page of a paginated NPS collection
type PageResponse struct {
	Total int
	Start int
	Limit int
	Data  []Park
}

// pageEnvelope is the wire form of a page. Pointers distinguish a
// missing field from a zero value.
type pageEnvelope struct {
	Total *count  `json:"total"`
	Start *count  `json:"start"`
	Limit *count  `json:"limit"`
	Data  *[]Park `json:"data"`
}

// count accepts both JSON numbers and numeric strings; the NPS API
// sends total, start and limit as strings.
type count int

func (c *count) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("%s is not an integer", b)
	}
	if n < 0 {
		return fmt.Errorf("%d is negative", n)
	}
	*c = count(n)
	return nil
}

// apiErrorBody is the error envelope the NPS API (and its api.data.gov
// gateway) uses for non-success responses.
type apiErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Filter restricts a park query. Empty slices mean no restriction; when
// both are set the upstream applies their intersection.
type Filter struct {
	ParkCodes  []string
	StateCodes []string
}

// IsEmpty reports whether the filter matches all parks
func (f Filter) IsEmpty() bool {
	return len(f.ParkCodes) == 0 && len(f.StateCodes) == 0
}

func (f Filter) String() string {
	if f.IsEmpty() {
		return "all parks"
	}
	var parts []string
	if len(f.ParkCodes) > 0 {
		parts = append(parts, "parkCode="+strings.Join(f.ParkCodes, ","))
	}
	if len(f.StateCodes) > 0 {
		parts = append(parts, "stateCode="+strings.Join(f.StateCodes, ","))
	}
	return strings.Join(parts, " ")
}

// pageParams builds the query for the page starting at offset
func (f Filter) pageParams(offset int) url.Values {
	params := url.Values{}
	params.Set("start", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(PageSize))
	if len(f.ParkCodes) > 0 {
		params.Set("parkCode", strings.Join(f.ParkCodes, ","))
	}
	if len(f.StateCodes) > 0 {
		params.Set("stateCode", strings.Join(f.StateCodes, ","))
	}
	return params
}

// paginationState tracks where a paginated operation is
type paginationState int

const (
	stateIdle paginationState = iota
	stateFetching
	stateAccumulating
	stateDone
	stateFailed
)

func (s paginationState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateFetching:
		return "fetching"
	case stateAccumulating:
		return "accumulating"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
