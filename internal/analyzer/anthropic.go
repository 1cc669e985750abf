package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mailtriage/internal/models"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicAnalyzer analyzes messages with a Claude model
type AnthropicAnalyzer struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
}

// NewAnthropic creates an analyzer for the Anthropic Messages API. baseURL is
// optional. Retries are left to the caller so rate limits surface immediately.
func NewAnthropic(apiKey, model, baseURL string, timeout time.Duration) *AnthropicAnalyzer {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &AnthropicAnalyzer{
		client:  anthropic.NewClient(opts...),
		model:   model,
		timeout: timeout,
	}
}

// Analyze sends the prompt and parses the first text block of the reply
func (a *AnthropicAnalyzer) Analyze(ctx context.Context, msg models.NormalizedMessage) (models.AnalysisResult, error) {
	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 800,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(msg))),
		},
	})
	if err != nil {
		status := 0
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return models.AnalysisResult{}, classify("anthropic", status, err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return models.AnalysisResult{}, &AnalyzerError{Provider: "anthropic", Err: fmt.Errorf("response has no text content")}
	}

	result, err := ParseResponse(text)
	if err != nil {
		return models.AnalysisResult{}, &AnalyzerError{Provider: "anthropic", Err: err}
	}
	return result, nil
}
