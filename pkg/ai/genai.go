package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GenAIGenerator generates text through the Google GenAI SDK.
type GenAIGenerator struct {
	client *genai.Client
	model  string
}

// NewGenAIGenerator creates a GenAI-backed TextGenerator.
func NewGenAIGenerator(ctx context.Context, apiKey, model string) (*GenAIGenerator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("genai api key required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAIGenerator{client: client, model: normalizeModel(model)}, nil
}

// GenerateText implements TextGenerator using the GenAI SDK.
func (g *GenAIGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOptions) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(opts.Temperature)),
		MaxOutputTokens: int32(opts.MaxTokens),
	}
	if strings.TrimSpace(systemPrompt) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(userPrompt), cfg)
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}
	return nonEmpty("genai", resp.Text())
}
