package agent

import (
	"context"
	"io"
)

// Backend represents a coding agent execution backend
type Backend interface {
	// Name returns the backend name (e.g., "claude")
	Name() string

	// Run starts the agent on a prompt and returns a reader for its
	// streaming output. Closing the reader waits for the process; a
	// nonzero exit surfaces as the Close error.
	Run(ctx context.Context, opts RunOptions) (io.ReadCloser, error)

	// Generate runs the agent in one-shot print mode and returns its
	// full text output. Used by the planner.
	Generate(ctx context.Context, opts RunOptions) (string, error)
}

// RunOptions contains options for one agent invocation
type RunOptions struct {
	Prompt       string
	Model        string
	AllowedTools []string
	// MaxTurns bounds the agent's step budget for this invocation.
	// Zero means no bound.
	MaxTurns int
	WorkDir  string
}
