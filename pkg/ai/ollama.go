package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const defaultOllamaBaseURL = "http://127.0.0.1:11434"

// OllamaGenerator calls a local Ollama server through /api/chat.
type OllamaGenerator struct {
	endpoint jsonEndpoint
	baseURL  string
	model    string
}

// NewOllamaGenerator builds a generator. An empty baseURL targets the
// default local daemon.
func NewOllamaGenerator(baseURL, model string) (*OllamaGenerator, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("ollama model required")
	}
	return &OllamaGenerator{
		endpoint: newJSONEndpoint("ollama", flatMessage),
		baseURL:  trimBaseURL(baseURL, defaultOllamaBaseURL),
		model:    model,
	}, nil
}

// GenerateText runs one non-streaming chat turn.
func (g *OllamaGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOptions) (string, error) {
	req := ollamaChatRequest{
		Model:    g.model,
		Messages: chatMessages(systemPrompt, userPrompt),
		Options: ollamaOptions{
			NumPredict:  opts.MaxTokens,
			Temperature: opts.Temperature,
		},
	}
	var resp ollamaChatResponse
	if err := g.endpoint.post(ctx, g.baseURL+"/api/chat", req, &resp); err != nil {
		return "", err
	}
	return nonEmpty("ollama", resp.Message.Content)
}

// flatMessage reads {"error":"..."} bodies.
func flatMessage(body []byte) string {
	var v struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &v)
	return v.Error
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaChatResponse struct {
	Message chatMessage `json:"message"`
}
