// Package openai wraps go-openai with Azure OpenAI as primary provider and the
// OpenAI platform as fallback.
package openai

import (
	"context"
	"errors"
	"fmt"

	"mailtriage/internal/config"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// provider is one configured endpoint with its model names
type provider struct {
	name       string
	client     *openai.Client
	chatModel  string
	embedModel openai.EmbeddingModel
}

// Client sends chat and embedding requests to the primary provider and
// retries once on the fallback when both are configured
type Client struct {
	primary  *provider
	fallback *provider
	logger   zerolog.Logger
}

// NewClient builds the client from cfg. Azure is primary when configured,
// otherwise the OpenAI platform key is used alone.
func NewClient(cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	c := &Client{logger: logger.With().Str("component", "openai").Logger()}

	var azure, platform *provider
	if cfg.UseAzureOpenAI() {
		azure = &provider{
			name:       "Azure OpenAI",
			client:     openai.NewClientWithConfig(openai.DefaultAzureConfig(cfg.AzureOpenAIKey, cfg.AzureOpenAIEndpoint)),
			chatModel:  cfg.AzureOpenAIGPTDeployment,
			embedModel: openai.EmbeddingModel(cfg.AzureOpenAIEmbeddingDeployment),
		}
	}
	if cfg.HasOpenAIFallback() {
		platformConfig := openai.DefaultConfig(cfg.OpenAIKey)
		if cfg.OpenAIBaseURL != "" {
			platformConfig.BaseURL = cfg.OpenAIBaseURL
		}
		platform = &provider{
			name:       "OpenAI",
			client:     openai.NewClientWithConfig(platformConfig),
			chatModel:  openai.GPT4oMini,
			embedModel: openai.SmallEmbedding3,
		}
	}

	switch {
	case azure != nil:
		c.primary, c.fallback = azure, platform
	case platform != nil:
		c.primary = platform
	default:
		return nil, fmt.Errorf("no OpenAI provider configured: set AZURE_OPENAI_ENDPOINT + AZURE_OPENAI_KEY or OPENAI_API_KEY")
	}

	event := c.logger.Info().Str("primary", c.primary.name)
	if c.fallback != nil {
		event = event.Str("fallback", c.fallback.name)
	}
	event.Msg("OpenAI client configured")
	return c, nil
}

// withFallback runs call on the primary provider and, if it fails while the
// context is still live, once more on the fallback
func withFallback[T any](ctx context.Context, c *Client, op string, call func(p *provider) (T, error)) (T, error) {
	resp, err := call(c.primary)
	if err == nil || c.fallback == nil || ctx.Err() != nil {
		return resp, err
	}

	c.logger.Warn().Err(err).Str("op", op).Str("provider", c.primary.name).Msg("Primary provider failed, trying fallback")
	resp, fbErr := call(c.fallback)
	if fbErr != nil {
		return resp, fmt.Errorf("both providers failed: %w", errors.Join(err, fbErr))
	}
	return resp, nil
}

// CreateEmbeddings returns one vector per text, in order
func (c *Client) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := withFallback(ctx, c, "embeddings", func(p *provider) (openai.EmbeddingResponse, error) {
		return p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{Input: texts, Model: p.embedModel})
	})
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// CreateChatCompletion sends req with the model of whichever provider serves it
func (c *Client) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	resp, err := withFallback(ctx, c, "chat", func(p *provider) (openai.ChatCompletionResponse, error) {
		req.Model = p.chatModel
		return p.client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetProviderName returns the primary provider name
func (c *Client) GetProviderName() string {
	return c.primary.name
}

// GetEmbeddingModel returns the primary embedding model or deployment
func (c *Client) GetEmbeddingModel() string {
	return string(c.primary.embedModel)
}

// StatusCode extracts the HTTP status of a failed API call, or 0
func StatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
