package nps

// ParkDetailsArgs contains parameters for the park-details tool.
// Both fields are optional; leaving both empty returns every park.
type ParkDetailsArgs struct {
	ParkCode  string `json:"parkCode,omitempty" jsonschema:"Park code or comma-separated park codes, e.g. yell or yell,glac"`
	StateCode string `json:"stateCode,omitempty" jsonschema:"Two-letter state code or comma-separated state codes, e.g. CO or WY,MT"`
}

// ParkListArgs contains parameters for the park-list tool
type ParkListArgs struct {
	StateCode string `json:"stateCode" jsonschema:"Two-letter state code, e.g. CO"`
}
