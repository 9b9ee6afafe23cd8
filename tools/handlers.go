package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apierrors "github.com/olgasafonova/nps-mcp-server/internal/errors"
	"github.com/olgasafonova/nps-mcp-server/internal/nps"
	"github.com/olgasafonova/nps-mcp-server/metrics"
	"github.com/olgasafonova/nps-mcp-server/tracing"
)

// HandlerRegistry provides type-safe tool registration by mapping
// tool names to their concrete handler implementations.
type HandlerRegistry struct {
	npsClient *nps.Client
	logger    *slog.Logger
}

// NewHandlerRegistry creates a new handler registry.
func NewHandlerRegistry(npsClient *nps.Client, logger *slog.Logger) *HandlerRegistry {
	return &HandlerRegistry{
		npsClient: npsClient,
		logger:    logger,
	}
}

// RegisterAll registers all tools and prompts with the MCP server.
func (h *HandlerRegistry) RegisterAll(server *mcp.Server) {
	for _, spec := range AllTools {
		h.registerByName(server, spec)
	}
	h.RegisterPrompts(server)
	h.logger.Info("Registered all tools", "tools", len(AllTools), "prompts", len(AllPrompts))
}

// registerByName dispatches to the correct typed registration function.
func (h *HandlerRegistry) registerByName(server *mcp.Server, spec ToolSpec) {
	tool := h.buildTool(spec)

	switch spec.Method {
	case "ParkDetails":
		h.register(server, tool, spec, h.npsClient.ParkDetailsMCP)
	case "ParkList":
		h.register(server, tool, spec, h.npsClient.ParkListMCP)
	default:
		h.logger.Error("Unknown method, tool not registered", "method", spec.Method, "tool", spec.Name)
	}
}

// buildTool creates an mcp.Tool from a ToolSpec.
func (h *HandlerRegistry) buildTool(spec ToolSpec) *mcp.Tool {
	annotations := &mcp.ToolAnnotations{
		Title:          spec.Title,
		ReadOnlyHint:   spec.ReadOnly,
		IdempotentHint: spec.Idempotent,
	}
	if spec.Destructive {
		annotations.DestructiveHint = ptr(true)
	}
	if spec.OpenWorld {
		annotations.OpenWorldHint = ptr(true)
	}

	return &mcp.Tool{
		Name:        spec.Name,
		Title:       spec.Title,
		Description: spec.Description,
		Annotations: annotations,
	}
}

// register is a generic helper that registers a tool with the MCP server.
// It wraps the client method with panic recovery, metrics, tracing, and
// logging, and hands the records back as a single JSON text payload.
// A returned error reaches the host as a tool result with IsError set.
func register[Args, Item any](
	h *HandlerRegistry,
	server *mcp.Server,
	tool *mcp.Tool,
	spec ToolSpec,
	method func(context.Context, Args) ([]Item, error),
) {
	mcp.AddTool(server, tool, func(ctx context.Context, req *mcp.CallToolRequest, args Args) (res *mcp.CallToolResult, out any, err error) {
		defer h.recoverPanic(spec.Name, &err)

		invocationID := uuid.NewString()

		// Start trace span
		ctx, span := tracing.StartSpan(ctx, "mcp.tool."+spec.Name)
		defer span.End()

		tracing.AddToolAttributes(span, spec.Name, spec.Category)
		span.SetAttributes(
			attribute.String("mcp.tool.invocation_id", invocationID),
			attribute.Bool("mcp.tool.readonly", spec.ReadOnly),
		)

		// Track in-flight requests
		metrics.RequestInFlight.WithLabelValues(spec.Name).Inc()
		defer metrics.RequestInFlight.WithLabelValues(spec.Name).Dec()

		start := time.Now()
		records, err := method(ctx, args)
		duration := time.Since(start).Seconds()

		span.SetAttributes(attribute.Float64("mcp.tool.duration_seconds", duration))

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.RecordRequest(spec.Name, duration, false)
			h.logger.Warn("Tool failed", failureAttrs(ctx, spec, invocationID, args, err)...)
			return nil, nil, fmt.Errorf("%s failed: %w", spec.Name, err)
		}

		payload, err := json.Marshal(records)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.RecordRequest(spec.Name, duration, false)
			return nil, nil, fmt.Errorf("%s failed to encode result: %w", spec.Name, err)
		}

		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.Int("mcp.tool.records", len(records)))
		metrics.RecordRequest(spec.Name, duration, true)
		metrics.RecordToolOutput(spec.Name, len(records), len(payload))
		h.logger.Info("Tool executed",
			append(argAttrs(spec, invocationID, args), "records", len(records), "bytes", len(payload), "duration", time.Since(start))...)

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
		}, nil, nil
	})
}

// recoverPanic recovers from panics in tool handlers and turns them into
// a tool error.
func (h *HandlerRegistry) recoverPanic(toolName string, errp *error) {
	if rec := recover(); rec != nil {
		metrics.PanicsRecovered.WithLabelValues(toolName).Inc()
		h.logger.Error("Panic recovered",
			"tool", toolName,
			"panic", rec,
			"stack", string(debug.Stack()))
		*errp = fmt.Errorf("%s failed: internal error", toolName)
	}
}

// argAttrs builds the log attributes describing one invocation.
func argAttrs(spec ToolSpec, invocationID string, args any) []any {
	attrs := []any{"tool", spec.Name, "invocation_id", invocationID}

	switch a := args.(type) {
	case nps.ParkDetailsArgs:
		if a.ParkCode != "" {
			attrs = append(attrs, "park_code", a.ParkCode)
		}
		if a.StateCode != "" {
			attrs = append(attrs, "state_code", a.StateCode)
		}
	case nps.ParkListArgs:
		attrs = append(attrs, "state_code", a.StateCode)
	}

	return attrs
}

// failureAttrs extends argAttrs with what an operator needs to triage a
// failed call: the upstream status, whether retrying later may help, and the
// trace to look at.
func failureAttrs(ctx context.Context, spec ToolSpec, invocationID string, args any, err error) []any {
	attrs := append(argAttrs(spec, invocationID, args),
		"error", err,
		"temporary", apierrors.IsTemporary(err))
	if status := apierrors.StatusCode(err); status != 0 {
		attrs = append(attrs, "upstream_status", status)
	}
	if traceID := tracing.TraceID(ctx); traceID != "" {
		attrs = append(attrs, "trace_id", traceID)
	}
	return attrs
}

// Convenience function to call the generic register with method receiver
func (h *HandlerRegistry) register(server *mcp.Server, tool *mcp.Tool, spec ToolSpec, method any) {
	switch m := method.(type) {
	case func(context.Context, nps.ParkDetailsArgs) ([]nps.Park, error):
		register(h, server, tool, spec, m)
	case func(context.Context, nps.ParkListArgs) ([]nps.ParkSummary, error):
		register(h, server, tool, spec, m)
	default:
		h.logger.Error("Unknown method type, tool not registered", "tool", spec.Name)
	}
}

// RegisterPrompts registers every prompt template with the MCP server.
func (h *HandlerRegistry) RegisterPrompts(server *mcp.Server) {
	for _, spec := range AllPrompts {
		server.AddPrompt(&mcp.Prompt{
			Name:        spec.Name,
			Title:       spec.Title,
			Description: spec.Description,
			Arguments: []*mcp.PromptArgument{{
				Name:        spec.Argument,
				Description: spec.ArgumentDescription,
				Required:    true,
			}},
		}, h.promptHandler(spec))
	}
}

// promptHandler renders spec with the request's single argument.
func (h *HandlerRegistry) promptHandler(spec PromptSpec) mcp.PromptHandler {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		value := strings.TrimSpace(req.Params.Arguments[spec.Argument])
		if value == "" {
			return nil, fmt.Errorf("prompt %s: argument %q is required", spec.Name, spec.Argument)
		}

		metrics.PromptsServed.WithLabelValues(spec.Name).Inc()
		h.logger.Info("Prompt served", "prompt", spec.Name, spec.Argument, value)

		return &mcp.GetPromptResult{
			Description: spec.Description,
			Messages: []*mcp.PromptMessage{{
				Role:    "user",
				Content: &mcp.TextContent{Text: RenderPrompt(spec, value)},
			}},
		}, nil
	}
}

// RenderPrompt interpolates value into the prompt template.
func RenderPrompt(spec PromptSpec, value string) string {
	return fmt.Sprintf(spec.Template, value)
}
