package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const geminiDefaultModel = "gemini-2.0-flash"

// GeminiPlanner plans with the Google Gen AI SDK, forcing JSON output
// for plans. Calls are rate-limited client-side so bursts of console
// input never trip API quotas.
type GeminiPlanner struct {
	client  *genai.Client
	model   string
	catalog *Catalog
	limiter *rate.Limiter
}

// NewGeminiPlanner creates a planner using the Gemini API backend. The
// API key comes from config or the GEMINI_API_KEY environment variable
// resolved by the SDK.
func NewGeminiPlanner(ctx context.Context, apiKey, model string, catalog *Catalog) (*GeminiPlanner, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = geminiDefaultModel
	}
	return &GeminiPlanner{
		client:  client,
		model:   model,
		catalog: catalog,
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}, nil
}

func (p *GeminiPlanner) Name() string { return "gemini" }

// CreatePlan asks the model for a JSON plan and validates it against
// the catalog.
func (p *GeminiPlanner) CreatePlan(ctx context.Context, transcript []Turn) (*Plan, error) {
	prompt := fmt.Sprintf(planPromptTemplate, p.catalog.Render(),
		time.Now().UTC().Format(time.RFC3339), renderTranscript(transcript))

	raw, err := p.generate(ctx, prompt, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(float32(0)),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini plan: %w", err)
	}
	return parsePlan(raw, p.catalog)
}

// Summarize asks the model for a short prose report of the outcomes.
func (p *GeminiPlanner) Summarize(ctx context.Context, transcript []Turn, outcomes map[string]any) (string, error) {
	blob, err := json.Marshal(outcomes)
	if err != nil {
		return "", fmt.Errorf("encode outcomes: %w", err)
	}
	prompt := fmt.Sprintf(summaryPromptTemplate, renderTranscript(transcript), string(blob))
	raw, err := p.generate(ctx, prompt, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.3)),
	})
	if err != nil {
		return "", fmt.Errorf("gemini summarize: %w", err)
	}
	return raw, nil
}

func (p *GeminiPlanner) generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), config)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	var content string
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			content += part.Text
		}
	}
	if content == "" {
		log.Printf("[Planner:gemini] empty candidate, finish reason %s", candidate.FinishReason)
		return "", fmt.Errorf("empty response (finish reason %s)", candidate.FinishReason)
	}
	return content, nil
}
