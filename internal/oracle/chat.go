package oracle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	supporterrors "github.com/blueberrycongee/supportdesk/pkg/errors"
)

const (
	// ChatBackendName identifies the OpenAI-compatible backend.
	ChatBackendName = "openai"

	// DefaultChatBaseURL is the default OpenAI-compatible API endpoint.
	DefaultChatBaseURL = "https://api.openai.com/v1"

	maxErrorBodyBytes = 4 << 10
)

// ChatCompleter calls any OpenAI-compatible /chat/completions endpoint.
type ChatCompleter struct {
	apiKey  string
	baseURL string
	model   string
	headers map[string]string
	client  *http.Client
}

// ChatOption configures a ChatCompleter.
type ChatOption func(*ChatCompleter)

// WithChatAPIKey sets the bearer token.
func WithChatAPIKey(key string) ChatOption {
	return func(c *ChatCompleter) {
		c.apiKey = key
	}
}

// WithChatBaseURL sets the API base URL.
func WithChatBaseURL(url string) ChatOption {
	return func(c *ChatCompleter) {
		if url != "" {
			c.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithChatHeader adds a static request header.
func WithChatHeader(key, value string) ChatOption {
	return func(c *ChatCompleter) {
		c.headers[key] = value
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) ChatOption {
	return func(c *ChatCompleter) {
		if client != nil {
			c.client = client
		}
	}
}

// NewChatCompleter creates an OpenAI-compatible completer for model.
func NewChatCompleter(model string, opts ...ChatOption) *ChatCompleter {
	c := &ChatCompleter{
		baseURL: DefaultChatBaseURL,
		model:   model,
		headers: make(map[string]string),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ChatCompleter) Name() string  { return ChatBackendName }
func (c *ChatCompleter) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete performs one chat completion call.
func (c *ChatCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", supporterrors.NewOracleUnavailableError("complete", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", c.mapError(resp.StatusCode, body)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", supporterrors.NewMalformedOracleOutputError("complete", fmt.Sprintf("decode response: %v", err))
	}
	if len(parsed.Choices) == 0 {
		return "", supporterrors.NewMalformedOracleOutputError("complete", "response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *ChatCompleter) buildRequest(ctx context.Context, req CompletionRequest) (*http.Request, error) {
	messages := make([]chatMessage, 0, len(req.History)*2+2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, h := range req.History {
		messages = append(messages,
			chatMessage{Role: "user", Content: h.User},
			chatMessage{Role: "assistant", Content: h.Bot},
		)
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	temperature := req.Temperature
	payload := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: &temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// mapError converts an error response into a SupportError. Throttling and server
// errors are retryable; client errors are not.
func (c *ChatCompleter) mapError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := http.StatusText(statusCode)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	cause := fmt.Errorf("status %d: %s", statusCode, message)
	switch {
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusRequestTimeout,
		statusCode >= 500:
		return supporterrors.NewOracleUnavailableError("complete", cause)
	default:
		return &supporterrors.SupportError{
			Type:    supporterrors.TypeOracleUnavailable,
			Message: "language oracle rejected the request",
			Op:      "complete",
			Err:     cause,
		}
	}
}
