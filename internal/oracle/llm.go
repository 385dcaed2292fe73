package oracle

import (
	"context"
	"fmt"
	"strings"

	supporterrors "github.com/blueberrycongee/supportdesk/pkg/errors"
	"github.com/blueberrycongee/supportdesk/pkg/types"
)

// LLMOracle implements Oracle on top of a text Completer.
type LLMOracle struct {
	completer   Completer
	temperature float64
	maxTokens   int
}

// LLMOption configures an LLMOracle.
type LLMOption func(*LLMOracle)

// WithTemperature sets the sampling temperature for free-text replies.
// Classification and extraction always run at temperature 0.
func WithTemperature(t float64) LLMOption {
	return func(o *LLMOracle) {
		if t > 0 {
			o.temperature = t
		}
	}
}

// WithMaxTokens caps reply length.
func WithMaxTokens(n int) LLMOption {
	return func(o *LLMOracle) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// NewLLMOracle wraps completer.
func NewLLMOracle(completer Completer, opts ...LLMOption) *LLMOracle {
	o := &LLMOracle{
		completer:   completer,
		temperature: 0.4,
		maxTokens:   512,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Backend returns the name of the underlying completer.
func (o *LLMOracle) Backend() string {
	return o.completer.Name()
}

// Model returns the configured model of the underlying completer.
func (o *LLMOracle) Model() string {
	return o.completer.Model()
}

func (o *LLMOracle) Classify(ctx context.Context, text string, hint Hint) (*types.Classification, error) {
	raw, err := o.completer.Complete(ctx, CompletionRequest{
		System:   SystemPrompt,
		User:     classifyPrompt(text, hint),
		JSONMode: true,
	})
	if err != nil {
		return nil, err
	}
	return parseClassification(raw)
}

func (o *LLMOracle) ExtractEntities(ctx context.Context, text string) (types.Entities, error) {
	raw, err := o.completer.Complete(ctx, CompletionRequest{
		System:   SystemPrompt,
		User:     extractPrompt(text),
		JSONMode: true,
	})
	if err != nil {
		return nil, err
	}
	return parseExtraction(raw)
}

func (o *LLMOracle) Generate(ctx context.Context, prompt string, role Role, history []types.HistoryTurn) (string, error) {
	raw, err := o.completer.Complete(ctx, CompletionRequest{
		System:      roleSystemPrompt(role),
		User:        prompt,
		History:     history,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		return "", err
	}
	reply := strings.TrimSpace(raw)
	if reply == "" {
		return "", supporterrors.NewMalformedOracleOutputError("generate", fmt.Sprintf("empty %s reply", role))
	}
	return reply, nil
}
