package oracle

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	supporterrors "github.com/blueberrycongee/supportdesk/pkg/errors"
)

const (
	// GeminiBackendName identifies the Gemini backend.
	GeminiBackendName = "gemini"

	// DefaultGeminiModel is used when no model is configured.
	DefaultGeminiModel = "gemini-2.5-flash-lite"
)

// GeminiCompleter calls the Gemini API through the genai SDK.
type GeminiCompleter struct {
	client *genai.Client
	model  string
}

// NewGeminiCompleter creates a Gemini completer.
func NewGeminiCompleter(ctx context.Context, apiKey, model string) (*GeminiCompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiCompleter{client: client, model: model}, nil
}

func (g *GeminiCompleter) Name() string  { return GeminiBackendName }
func (g *GeminiCompleter) Model() string { return g.model }

// Complete performs one GenerateContent call.
func (g *GeminiCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	contents := make([]*genai.Content, 0, len(req.History)*2+1)
	for _, h := range req.History {
		contents = append(contents,
			genai.NewContentFromText(h.User, genai.RoleUser),
			genai.NewContentFromText(h.Bot, genai.RoleModel),
		)
	}
	contents = append(contents, genai.NewContentFromText(req.User, genai.RoleUser))

	temperature := float32(req.Temperature)
	config := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", supporterrors.NewOracleUnavailableError("complete", err)
	}
	text := resp.Text()
	if text == "" {
		return "", supporterrors.NewMalformedOracleOutputError("complete", "gemini returned no text")
	}
	return text, nil
}
