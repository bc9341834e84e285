package ai

import (
	"context"
	"fmt"
	"strings"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-2.0-flash"
)

// GeminiGenerator calls the Gemini generateContent REST endpoint.
type GeminiGenerator struct {
	endpoint jsonEndpoint
	baseURL  string
	model    string
}

// NewGeminiGenerator builds a generator for model. An empty baseURL targets
// the public API.
func NewGeminiGenerator(apiKey, model, baseURL string) (*GeminiGenerator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	endpoint := newJSONEndpoint("gemini", nestedMessage)
	endpoint.header.Set("x-goog-api-key", apiKey)
	return &GeminiGenerator{
		endpoint: endpoint,
		baseURL:  trimBaseURL(baseURL, defaultGeminiBaseURL),
		model:    normalizeModel(model),
	}, nil
}

// GenerateText concatenates the parts of the first candidate.
func (g *GeminiGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOptions) (string, error) {
	req := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: userPrompt}}}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxTokens,
		},
	}
	if strings.TrimSpace(systemPrompt) != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}}
	}
	var resp geminiResponse
	url := g.baseURL + "/models/" + g.model + ":generateContent"
	if err := g.endpoint.post(ctx, url, req, &resp); err != nil {
		return "", err
	}
	var b strings.Builder
	if len(resp.Candidates) > 0 {
		for _, p := range resp.Candidates[0].Content.Parts {
			b.WriteString(p.Text)
		}
	}
	return nonEmpty("gemini", b.String())
}

func normalizeModel(model string) string {
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	if model == "" {
		return defaultGeminiModel
	}
	return model
}

func trimBaseURL(baseURL, fallback string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return fallback
	}
	return baseURL
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}
