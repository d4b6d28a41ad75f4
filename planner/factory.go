package planner

import (
	"context"
	"fmt"
)

// New builds a planner by backend name.
func New(ctx context.Context, backend, apiKey, model string, catalog *Catalog) (Planner, error) {
	switch backend {
	case "gemini":
		return NewGeminiPlanner(ctx, apiKey, model, catalog)
	case "openai":
		return NewOpenAIPlanner(apiKey, model, catalog)
	case "mock":
		return NewMockPlanner(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
