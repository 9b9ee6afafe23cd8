package tools

// AllTools contains all tool specifications for the NPS MCP server.
// Tool descriptions follow a structured format for optimal LLM tool selection:
// - USE WHEN: Natural language triggers
// - NOT FOR: Disambiguation from similar tools
// - PARAMETERS: Key arguments with defaults
// - RETURNS: What the tool returns
var AllTools = []ToolSpec{
	{
		Name:     "park-details",
		Method:   "ParkDetails",
		Title:    "Park Details",
		Category: "details",
		Description: `Get FULL National Park Service records for specific parks, or for every park in one or more states.

USE WHEN: User asks about a particular park ("tell me about Yellowstone", "what are the hours at yell"), or needs fields beyond name and description (activities, entrance fees, operating hours, addresses, coordinates, images).

NOT FOR: Listing which parks exist in a state (use park-list, which returns a much smaller payload).

PARAMETERS:
- parkCode: Park code, or comma-separated codes (optional, e.g. "yell" or "yell,glac")
- stateCode: Two-letter state code, or comma-separated codes (optional, e.g. "WY" or "WY,MT")
Both filters may be combined. Omitting both returns every park, which is a very large result.

RETURNS: JSON array of complete park records exactly as the NPS API provides them.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "park-list",
		Method:   "ParkList",
		Title:    "List Parks in State",
		Category: "list",
		Description: `List the National Park Service sites in ONE state, with name and description only.

USE WHEN: User asks "what national parks are in Colorado", "list parks in CA", or wants an overview before picking a park.

NOT FOR: Detailed information about a park (use park-details with the parkCode from this list).

PARAMETERS:
- stateCode: Two-letter state code (required, e.g. "CO")

RETURNS: JSON array of {fullName, description, parkCode} for every park in the state.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
}

// AllPrompts contains the prompt templates offered to the host. They are
// rendered by plain substitution and returned for the user to review.
var AllPrompts = []PromptSpec{
	{
		Name:                "parks-in-state",
		Title:               "Parks in a State",
		Description:         "Ask which national parks are in a state",
		Argument:            "stateCode",
		ArgumentDescription: "Two-letter state code, e.g. CO",
		Template:            "What national parks are in the state of %s? Give me a short description of each one.",
	},
	{
		Name:                "park-overview",
		Title:               "Park Overview",
		Description:         "Ask for an overview of a single park",
		Argument:            "park",
		ArgumentDescription: "Park name or park code, e.g. Yellowstone or yell",
		Template:            "Tell me about %s. Include what it is known for, activities, entrance fees and operating hours.",
	},
}
