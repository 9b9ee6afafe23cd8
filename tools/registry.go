// Package tools provides a metadata-driven registry for MCP tool and prompt
// definitions. Tools are declared as specs and bound to typed NPS client
// methods by the handler registry.
package tools

// ToolSpec defines a tool's metadata for declarative registration.
// Each spec maps to an NPS client method with matching Args/Result types.
type ToolSpec struct {
	// Name is the MCP tool name (e.g., "park-details")
	Name string

	// Method is the client method name (e.g., "ParkDetails")
	Method string

	// Description is the tool description shown to LLMs
	Description string

	// Title is the human-readable tool title for annotations
	Title string

	// Category groups tools logically (details, list)
	Category string

	// ReadOnly indicates the tool doesn't modify upstream state
	ReadOnly bool

	// Destructive indicates the tool can delete or overwrite data
	Destructive bool

	// Idempotent indicates repeated calls have the same effect
	Idempotent bool

	// OpenWorld indicates the tool accesses external resources
	OpenWorld bool
}

// PromptSpec defines a static prompt template with a single string argument.
type PromptSpec struct {
	// Name is the MCP prompt name (e.g., "parks-in-state")
	Name string

	// Title is the human-readable prompt title
	Title string

	// Description is shown to the host when listing prompts
	Description string

	// Argument is the template's only parameter
	Argument string

	// ArgumentDescription describes Argument
	ArgumentDescription string

	// Template is a fmt format string with exactly one %s verb
	Template string
}

// ptr is a helper to create a pointer to a value.
func ptr[T any](v T) *T {
	return &v
}
