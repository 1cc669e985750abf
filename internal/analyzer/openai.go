package analyzer

import (
	"context"
	"fmt"
	"time"

	"mailtriage/internal/models"
	"mailtriage/internal/openai"

	goopenai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are an assistant that triages a user's inbox. Always answer with a single JSON object."

// ChatCompleter is the part of the OpenAI client the analyzer needs
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (*goopenai.ChatCompletionResponse, error)
}

// OpenAIAnalyzer analyzes messages with an OpenAI or Azure OpenAI chat model
type OpenAIAnalyzer struct {
	client  ChatCompleter
	timeout time.Duration
}

// NewOpenAI creates an analyzer backed by client
func NewOpenAI(client ChatCompleter, timeout time.Duration) *OpenAIAnalyzer {
	return &OpenAIAnalyzer{client: client, timeout: timeout}
}

// Analyze sends the prompt with JSON response format and parses the reply
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, msg models.NormalizedMessage) (models.AnalysisResult, error) {
	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: BuildPrompt(msg)},
		},
		MaxTokens:   800,
		Temperature: 0.2,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return models.AnalysisResult{}, classify("openai", openai.StatusCode(err), err)
	}

	if len(resp.Choices) == 0 {
		return models.AnalysisResult{}, &AnalyzerError{Provider: "openai", Err: fmt.Errorf("empty response")}
	}

	result, err := ParseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return models.AnalysisResult{}, &AnalyzerError{Provider: "openai", Err: err}
	}
	return result, nil
}
