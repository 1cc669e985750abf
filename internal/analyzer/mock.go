package analyzer

import (
	"context"
	"fmt"
	"strings"

	"mailtriage/internal/models"
)

var (
	highPriorityKeywords = []string{"urgent", "asap", "deadline", "immediately"}
	lowPriorityKeywords  = []string{"fyi", "newsletter", "no action"}
)

// Mock is a deterministic analyzer with no external calls. The same message
// always yields the same result.
type Mock struct{}

// NewMock creates a mock analyzer
func NewMock() *Mock {
	return &Mock{}
}

// Analyze returns a canned summary plus a review task and a follow-up task
func (m *Mock) Analyze(ctx context.Context, msg models.NormalizedMessage) (models.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return models.AnalysisResult{}, &AnalyzerError{Provider: "mock", Err: err}
	}

	sender := msg.SenderName
	if sender == "" {
		sender = msg.SenderEmail
	}

	return models.AnalysisResult{
		Summary: fmt.Sprintf("This is an AI-generated summary of \"%s\". The email contains information from %s.", msg.Subject, sender),
		Tasks: []models.ExtractedTask{
			{
				Description: fmt.Sprintf("Review information about \"%s\"", msg.Subject),
				Priority:    KeywordPriority(msg.Subject + "\n" + msg.Body),
			},
			{
				Description: "Follow up with " + sender,
				Priority:    models.PriorityHigh,
			},
		},
	}, nil
}

// KeywordPriority infers urgency from well-known words in text
func KeywordPriority(text string) models.Priority {
	lower := strings.ToLower(text)
	for _, kw := range highPriorityKeywords {
		if strings.Contains(lower, kw) {
			return models.PriorityHigh
		}
	}
	for _, kw := range lowPriorityKeywords {
		if strings.Contains(lower, kw) {
			return models.PriorityLow
		}
	}
	return models.PriorityMedium
}
