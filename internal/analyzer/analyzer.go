// Package analyzer produces summaries and action items for normalized messages.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mailtriage/internal/config"
	"mailtriage/internal/models"
	"mailtriage/internal/openai"

	"github.com/rs/zerolog"
)

// Analyzer turns one message into a summary and a list of tasks
type Analyzer interface {
	Analyze(ctx context.Context, msg models.NormalizedMessage) (models.AnalysisResult, error)
}

// AnalyzerError is returned when a provider call fails or returns unusable output
type AnalyzerError struct {
	Provider string
	Err      error
}

func (e *AnalyzerError) Error() string {
	return fmt.Sprintf("%s analyzer: %v", e.Provider, e.Err)
}

func (e *AnalyzerError) Unwrap() error {
	return e.Err
}

// RateLimitError is returned when the provider answered 429
type RateLimitError struct {
	Provider string
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s analyzer rate limited: %v", e.Provider, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// IsRateLimit checks if an error is a RateLimitError
func IsRateLimit(err error) bool {
	var rlErr *RateLimitError
	return errors.As(err, &rlErr)
}

// New builds the analyzer selected by cfg.AnalyzerProvider
func New(cfg *config.Config, logger zerolog.Logger) (Analyzer, error) {
	timeout := time.Duration(cfg.AnalyzerTimeout) * time.Second

	switch cfg.AnalyzerProvider {
	case "", config.AnalyzerMock:
		logger.Info().Msg("Using mock analyzer")
		return NewMock(), nil
	case config.AnalyzerOpenAI:
		client, err := openai.NewClient(cfg, logger)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("provider", client.GetProviderName()).Msg("Using OpenAI analyzer")
		return NewOpenAI(client, timeout), nil
	case config.AnalyzerAnthropic:
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic analyzer")
		}
		logger.Info().Str("model", cfg.AnthropicModel).Msg("Using Anthropic analyzer")
		return NewAnthropic(cfg.AnthropicKey, cfg.AnthropicModel, cfg.AnthropicBaseURL, timeout), nil
	}
	return nil, fmt.Errorf("unknown analyzer provider %q", cfg.AnalyzerProvider)
}

// Options are the per-user AI settings that shape analysis
type Options struct {
	IncludeBody  bool
	ExtractTasks bool
}

// OptionsFrom maps a user's AI settings onto analyzer options
func OptionsFrom(settings models.AISettings) Options {
	return Options{
		IncludeBody:  settings.ProcessEmailBody,
		ExtractTasks: settings.ExtractActionItems,
	}
}

// Configure wraps a so that the user's options apply to every call
func Configure(a Analyzer, opts Options) Analyzer {
	if opts.IncludeBody && opts.ExtractTasks {
		return a
	}
	return &configured{next: a, opts: opts}
}

type configured struct {
	next Analyzer
	opts Options
}

func (c *configured) Analyze(ctx context.Context, msg models.NormalizedMessage) (models.AnalysisResult, error) {
	if !c.opts.IncludeBody {
		msg.Body = ""
	}
	result, err := c.next.Analyze(ctx, msg)
	if err != nil {
		return result, err
	}
	if !c.opts.ExtractTasks {
		result.Tasks = nil
	}
	return result, nil
}

// withTimeout bounds a single provider call
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// classify wraps a provider failure as a RateLimitError or AnalyzerError
func classify(provider string, status int, err error) error {
	if status == http.StatusTooManyRequests {
		return &RateLimitError{Provider: provider, Err: err}
	}
	return &AnalyzerError{Provider: provider, Err: err}
}
