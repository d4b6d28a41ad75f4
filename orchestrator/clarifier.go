package orchestrator

import (
	"context"
	"errors"

	"github.com/barunaniket/concierge/agent"
)

// ErrNoSelection means the clarifier declined to pick a candidate.
var ErrNoSelection = errors.New("no selection made")

// Clarifier resolves ambiguous outcomes by choosing one candidate.
// Choose returns a zero-based index into options, or ErrNoSelection.
// The plan step stays suspended until Choose returns.
type Clarifier interface {
	Choose(ctx context.Context, message string, options []agent.Meeting) (int, error)
}

// StaticClarifier always picks the same index. Used in tests and in
// non-interactive runs where ambiguity cannot be escalated.
type StaticClarifier struct {
	Index int
}

func (c StaticClarifier) Choose(_ context.Context, _ string, options []agent.Meeting) (int, error) {
	if c.Index < 0 || c.Index >= len(options) {
		return 0, ErrNoSelection
	}
	return c.Index, nil
}

// NoClarifier refuses every clarification, failing the ambiguous step.
type NoClarifier struct{}

func (NoClarifier) Choose(context.Context, string, []agent.Meeting) (int, error) {
	return 0, ErrNoSelection
}
