package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const openaiDefaultModel = openai.GPT4oMini

// OpenAIPlanner plans with the OpenAI chat completion API, using JSON
// response mode for plans.
type OpenAIPlanner struct {
	client  *openai.Client
	model   string
	catalog *Catalog
	limiter *rate.Limiter
}

// NewOpenAIPlanner creates a planner backed by the OpenAI API.
func NewOpenAIPlanner(apiKey, model string, catalog *Catalog) (*OpenAIPlanner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai planner: api key not set")
	}
	if model == "" {
		model = openaiDefaultModel
	}
	return &OpenAIPlanner{
		client:  openai.NewClient(apiKey),
		model:   model,
		catalog: catalog,
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}, nil
}

func (p *OpenAIPlanner) Name() string { return "openai" }

func (p *OpenAIPlanner) CreatePlan(ctx context.Context, transcript []Turn) (*Plan, error) {
	prompt := fmt.Sprintf(planPromptTemplate, p.catalog.Render(),
		time.Now().UTC().Format(time.RFC3339), renderTranscript(transcript))

	raw, err := p.complete(ctx, prompt, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("openai plan: %w", err)
	}
	return parsePlan(raw, p.catalog)
}

func (p *OpenAIPlanner) Summarize(ctx context.Context, transcript []Turn, outcomes map[string]any) (string, error) {
	blob, err := json.Marshal(outcomes)
	if err != nil {
		return "", fmt.Errorf("encode outcomes: %w", err)
	}
	prompt := fmt.Sprintf(summaryPromptTemplate, renderTranscript(transcript), string(blob))
	raw, err := p.complete(ctx, prompt, nil, 0.3)
	if err != nil {
		return "", fmt.Errorf("openai summarize: %w", err)
	}
	return raw, nil
}

func (p *OpenAIPlanner) complete(ctx context.Context, prompt string, format *openai.ChatCompletionResponseFormat, temperature float32) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:    temperature,
		ResponseFormat: format,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
