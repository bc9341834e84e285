package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrEmptyOutput is returned when a provider answers without any text.
var ErrEmptyOutput = errors.New("empty model output")

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (%d): %s", e.Provider, e.Status, e.Message)
}

// defaultHTTPTimeout caps one provider call; ctx usually ends it sooner.
const defaultHTTPTimeout = 3 * time.Minute

const maxErrorBody = 4 << 10

// jsonEndpoint posts JSON to one provider and decodes JSON answers.
type jsonEndpoint struct {
	provider string
	client   *http.Client
	header   http.Header
	// errorMessage extracts the provider's message from an error body.
	errorMessage func(body []byte) string
}

func newJSONEndpoint(provider string, errorMessage func([]byte) string) jsonEndpoint {
	return jsonEndpoint{
		provider:     provider,
		client:       &http.Client{Timeout: defaultHTTPTimeout},
		header:       http.Header{},
		errorMessage: errorMessage,
	}
}

func (e jsonEndpoint) post(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s encode: %w", e.provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s request: %w", e.provider, err)
	}
	for k, v := range e.header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", e.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := ""
		if e.errorMessage != nil {
			msg = e.errorMessage(raw)
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Provider: e.provider, Status: resp.StatusCode, Message: msg}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", e.provider, err)
	}
	return nil
}

// nonEmpty returns text, or ErrEmptyOutput tagged with the provider.
func nonEmpty(provider, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: %w", provider, ErrEmptyOutput)
	}
	return text, nil
}

// chatMessage is the role/content pair of OpenAI-style and Ollama chat APIs.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func chatMessages(systemPrompt, userPrompt string) []chatMessage {
	msgs := make([]chatMessage, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	}
	return append(msgs, chatMessage{Role: "user", Content: userPrompt})
}

// nestedMessage reads {"error":{"message":...}} bodies.
func nestedMessage(body []byte) string {
	var v struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &v)
	return v.Error.Message
}
