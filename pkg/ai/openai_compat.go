package ai

import (
	"context"
	"fmt"
	"strings"
)

// OpenAICompatGenerator calls an OpenAI-style /chat/completions endpoint such
// as vLLM, LiteLLM or OpenRouter.
type OpenAICompatGenerator struct {
	endpoint jsonEndpoint
	baseURL  string
	model    string
}

// NewOpenAICompatGenerator builds a generator. baseURL includes the version
// prefix, e.g. "http://localhost:8000/v1". apiKey may be empty.
func NewOpenAICompatGenerator(baseURL, apiKey, model string) (*OpenAICompatGenerator, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("openai-compat base url required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("openai-compat model required")
	}
	endpoint := newJSONEndpoint("openai-compat", nestedMessage)
	if key := strings.TrimSpace(apiKey); key != "" {
		endpoint.header.Set("Authorization", "Bearer "+key)
	}
	return &OpenAICompatGenerator{endpoint: endpoint, baseURL: baseURL, model: model}, nil
}

// GenerateText returns the first choice's message.
func (g *OpenAICompatGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOptions) (string, error) {
	req := completionRequest{
		Model:       g.model,
		Messages:    chatMessages(systemPrompt, userPrompt),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	var resp completionResponse
	if err := g.endpoint.post(ctx, g.baseURL+"/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return nonEmpty("openai-compat", "")
	}
	return nonEmpty("openai-compat", resp.Choices[0].Message.Content)
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}
