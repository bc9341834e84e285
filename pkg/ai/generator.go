package ai

import (
	"context"
	"fmt"
	"strings"
)

// GenerateOptions bounds a single generation call.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
}

// TextGenerator produces report text for a system and user prompt.
// Implementations make a single attempt and wrap ErrEmptyOutput when the
// model returns nothing usable.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string, opts GenerateOptions) (string, error)
}

// Provider names accepted by NewGenerator.
const (
	ProviderGemini       = "gemini"
	ProviderGenAI        = "genai"
	ProviderOpenAICompat = "openai-compat"
	ProviderOllama       = "ollama"
)

// Config selects and configures a generation provider.
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

// NewGenerator builds the TextGenerator named by cfg.Provider. Gemini is the
// default.
func NewGenerator(ctx context.Context, cfg Config) (TextGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderGemini, "":
		return checked(NewGeminiGenerator(cfg.APIKey, cfg.Model, cfg.BaseURL))
	case ProviderGenAI:
		return checked(NewGenAIGenerator(ctx, cfg.APIKey, cfg.Model))
	case ProviderOpenAICompat:
		return checked(NewOpenAICompatGenerator(cfg.BaseURL, cfg.APIKey, cfg.Model))
	case ProviderOllama:
		return checked(NewOllamaGenerator(cfg.BaseURL, cfg.Model))
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}

// checked keeps a failed constructor from yielding a non-nil interface that
// holds a nil pointer.
func checked[T TextGenerator](g T, err error) (TextGenerator, error) {
	if err != nil {
		return nil, err
	}
	return g, nil
}
