package nps

import (
	"context"
	"strings"

	apierrors "github.com/olgasafonova/nps-mcp-server/internal/errors"
)

// MCP Tool wrapper methods
// These methods validate tool arguments and call the adapter.

// ParkDetailsMCP is the MCP wrapper for FetchParkDetails
func (c *Client) ParkDetailsMCP(ctx context.Context, args ParkDetailsArgs) ([]Park, error) {
	parkCodes, err := ParseParkCodes(args.ParkCode)
	if err != nil {
		return nil, err
	}
	stateCodes, err := ParseStateCodes(args.StateCode)
	if err != nil {
		return nil, err
	}

	return c.FetchParkDetails(ctx, Filter{ParkCodes: parkCodes, StateCodes: stateCodes})
}

// ParkListMCP is the MCP wrapper for FetchParksList. It takes exactly one
// state code.
func (c *Client) ParkListMCP(ctx context.Context, args ParkListArgs) ([]ParkSummary, error) {
	if strings.Contains(args.StateCode, ",") {
		return nil, apierrors.NewValidationError("stateCode", args.StateCode, "takes a single state code; use park-details for several states")
	}
	stateCode, err := NormalizeStateCode(args.StateCode)
	if err != nil {
		return nil, err
	}

	return c.FetchParksList(ctx, stateCode)
}
