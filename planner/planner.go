// Package planner turns a natural-language goal into an executable
// multi-step plan over the registered agents, and summarizes execution
// results back into prose. Backends share the Planner interface;
// gemini and openai are real, mock is for tests.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoPlan means the model returned no usable steps for the goal.
	ErrNoPlan = errors.New("no plan produced")

	// ErrUnknownBackend is returned by New for an unrecognized name.
	ErrUnknownBackend = errors.New("unknown planner backend")
)

// Turn roles in a conversation transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one utterance in the conversation transcript.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Step is one unit of plan execution: an action routed to one agent.
type Step struct {
	Agent      string         `json:"agent"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Plan is an ordered list of steps. Later steps may reference earlier
// results with "$agent.key" placeholders in their parameter values.
type Plan struct {
	Steps []Step `json:"steps"`
}

// Planner is a planning backend. Both calls see the full transcript so
// follow-up requests ("move it to friday") can resolve against earlier
// turns.
type Planner interface {
	// CreatePlan decomposes the transcript's latest user turn into steps
	// over the catalog's agents.
	CreatePlan(ctx context.Context, transcript []Turn) (*Plan, error)

	// Summarize turns raw step outcomes into a short user-facing answer.
	Summarize(ctx context.Context, transcript []Turn, outcomes map[string]any) (string, error)

	// Name identifies the backend ("gemini", "openai", "mock").
	Name() string
}

// latestUserText returns the newest user turn, for prompt framing and
// the mock's script lookup.
func latestUserText(transcript []Turn) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == RoleUser {
			return transcript[i].Text
		}
	}
	return ""
}

func renderTranscript(transcript []Turn) string {
	var b strings.Builder
	for _, turn := range transcript {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Text)
	}
	return b.String()
}

// parsePlan decodes the model's JSON and validates every step against
// the catalog. Models occasionally wrap the JSON in a markdown fence;
// strip it before decoding.
func parsePlan(raw string, catalog *Catalog) (*Plan, error) {
	raw = stripFence(raw)
	var plan Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if len(plan.Steps) == 0 {
		return nil, ErrNoPlan
	}
	for i, step := range plan.Steps {
		if step.Agent == "" || step.Action == "" {
			return nil, fmt.Errorf("plan step %d missing agent or action", i)
		}
		if !catalog.Knows(step.Agent, step.Action) {
			return nil, fmt.Errorf("plan step %d targets unknown action %s.%s", i, step.Agent, step.Action)
		}
	}
	return &plan, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
