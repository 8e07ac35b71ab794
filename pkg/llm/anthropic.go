// Package llm wraps the external LLM backend behind the pipeline's
// Generator interface, translating response constraints into system
// prompt instructions the model must respect.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lensguard/gatekeeper/pkg/evidence"
	"github.com/lensguard/gatekeeper/pkg/pipeline"
)

// defaultModel mirrors the env-var-with-fallback pattern the original
// gRPC client used for its model name.
const defaultModel = "claude-sonnet-4-5"

// AnthropicClient generates completions via the Anthropic Messages API.
// It implements pipeline.Generator.
type AnthropicClient struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature *float64
}

var _ pipeline.Generator = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client from environment configuration:
// ANTHROPIC_API_KEY (required), ANTHROPIC_MODEL, ANTHROPIC_MAX_TOKENS,
// ANTHROPIC_TEMPERATURE.
func NewAnthropicClient() (*AnthropicClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}

	model := os.Getenv("ANTHROPIC_MODEL")
	if model == "" {
		model = defaultModel
	}

	maxTokens := int64(1024)
	if v := os.Getenv("ANTHROPIC_MAX_TOKENS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			maxTokens = n
		}
	}

	var temperature *float64
	if v := os.Getenv("ANTHROPIC_TEMPERATURE"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			temperature = &t
		}
	}

	slog.Info("anthropic client configured", "model", model, "max_tokens", maxTokens)

	return &AnthropicClient{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

// Generate calls the Messages API once, with a system prompt built from
// the live-data constraints' prompt additions.
func (c *AnthropicClient) Generate(ctx context.Context, prompt string, constraints evidence.Constraints) (pipeline.Generation, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	if system := systemPromptFor(constraints); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if c.temperature != nil {
		params.Temperature = anthropic.Float(*c.temperature)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return pipeline.Generation{}, fmt.Errorf("anthropic messages.new: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return pipeline.Generation{
		Text:       text,
		TokensUsed: int(resp.Usage.OutputTokens),
		Model:      c.model,
	}, nil
}

func systemPromptFor(constraints evidence.Constraints) string {
	switch constraints.Level {
	case evidence.ConstraintQualitativeOnly:
		return "Answer qualitatively only. Do not state specific numbers."
	case evidence.ConstraintForbidNumeric:
		return "Do not invent or state any specific numbers in your answer."
	case evidence.ConstraintQuoteEvidenceOnly:
		return "You may only reproduce numeric values that appear verbatim in the evidence you were given. Never invent a number."
	case evidence.ConstraintInsufficient:
		return "The available evidence is insufficient to answer confidently. Say so plainly."
	default:
		return ""
	}
}
