package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// RunIDKey is the context key for the invocation run ID
	RunIDKey ContextKey = "run_id"
	// EndpointKey is the context key for the relay endpoint a session talks to
	EndpointKey ContextKey = "endpoint"
)

// TraceContext holds tracing information
type TraceContext struct {
	RunID    string
	Endpoint string
}

// NewRunID generates a new run ID
func NewRunID() string {
	return uuid.New().String()
}

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithEndpoint adds a relay endpoint to the context
func WithEndpoint(ctx context.Context, endpoint string) context.Context {
	return context.WithValue(ctx, EndpointKey, endpoint)
}

// GetRunID retrieves the run ID from the context
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// GetEndpoint retrieves the relay endpoint from the context
func GetEndpoint(ctx context.Context) string {
	if endpoint, ok := ctx.Value(EndpointKey).(string); ok {
		return endpoint
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		RunID:    GetRunID(ctx),
		Endpoint: GetEndpoint(ctx),
	}
}

// NewRunContext returns ctx with a run ID, reusing one already present
func NewRunContext(ctx context.Context) context.Context {
	if GetRunID(ctx) != "" {
		return ctx
	}
	return WithRunID(ctx, NewRunID())
}
