package planner

import (
	"context"
	"fmt"
	"sync"
)

// MockPlanner returns scripted plans, for tests and the offline demo
// mode. Plans are matched to goals verbatim; unmatched goals fall back
// to Default, or ErrNoPlan when Default is nil.
type MockPlanner struct {
	mu      sync.Mutex
	scripts map[string]*Plan
	Default *Plan

	// Goals records every goal CreatePlan was asked for.
	Goals []string
}

// NewMockPlanner creates an empty scripted planner.
func NewMockPlanner() *MockPlanner {
	return &MockPlanner{scripts: make(map[string]*Plan)}
}

func (p *MockPlanner) Name() string { return "mock" }

// Script registers the plan to return for an exact goal.
func (p *MockPlanner) Script(goal string, plan *Plan) *MockPlanner {
	p.mu.Lock()
	p.scripts[goal] = plan
	p.mu.Unlock()
	return p
}

func (p *MockPlanner) CreatePlan(_ context.Context, transcript []Turn) (*Plan, error) {
	goal := latestUserText(transcript)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Goals = append(p.Goals, goal)
	if plan, ok := p.scripts[goal]; ok {
		return plan, nil
	}
	if p.Default != nil {
		return p.Default, nil
	}
	return nil, fmt.Errorf("mock planner for %q: %w", goal, ErrNoPlan)
}

func (p *MockPlanner) Summarize(_ context.Context, transcript []Turn, outcomes map[string]any) (string, error) {
	return fmt.Sprintf("Done: %s (%d steps).", latestUserText(transcript), len(outcomes)), nil
}
