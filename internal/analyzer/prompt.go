package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mailtriage/internal/models"
)

// maxPromptBody caps the body sent to a provider
const maxPromptBody = 12000

const promptTemplate = `Please analyze the following email and:
1. Generate a concise summary (max 2 sentences)
2. Extract any actionable tasks or requests
3. Assign a priority to each task (low, medium, high) based on urgency

EMAIL DETAILS:
Subject: %s
From: %s
Date: %s

CONTENT:
%s

Respond with JSON only, in this format:
{
  "summary": "Brief summary of the email",
  "tasks": [
    {
      "description": "Task description",
      "priority": "low|medium|high"
    }
  ]
}`

// BuildPrompt renders the analysis prompt for msg
func BuildPrompt(msg models.NormalizedMessage) string {
	body := strings.TrimSpace(msg.Body)
	if body == "" {
		body = "(body not provided)"
	}
	if runes := []rune(body); len(runes) > maxPromptBody {
		body = string(runes[:maxPromptBody]) + "\n[truncated]"
	}

	sender := msg.SenderName
	if msg.SenderEmail != "" {
		sender = fmt.Sprintf("%s <%s>", msg.SenderName, msg.SenderEmail)
	}

	prompt := fmt.Sprintf(promptTemplate, msg.Subject, sender, msg.ReceivedAt.Format(time.RFC1123Z), body)
	if instruction := languageInstruction(DetectLanguage(msg.Subject + "\n" + body)); instruction != "" {
		prompt += "\n\n" + instruction
	}
	return prompt
}

var priorityRank = map[models.Priority]int{
	models.PriorityLow:    0,
	models.PriorityMedium: 1,
	models.PriorityHigh:   2,
}

type rawResult struct {
	Summary string `json:"summary"`
	Tasks   []struct {
		Description string `json:"description"`
		Priority    string `json:"priority"`
	} `json:"tasks"`
}

// ParseResponse decodes a provider reply into an AnalysisResult. Markdown code
// fences are tolerated and priorities normalized. Empty tasks are dropped, and
// repeated tasks are merged into the first one, keeping the higher priority.
func ParseResponse(text string) (models.AnalysisResult, error) {
	text = stripFences(text)
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		text = text[start : end+1]
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("invalid JSON response: %w", err)
	}

	summary := strings.TrimSpace(raw.Summary)
	if summary == "" {
		return models.AnalysisResult{}, fmt.Errorf("response has no summary")
	}

	result := models.AnalysisResult{Summary: summary, Tasks: []models.ExtractedTask{}}
	index := make(map[string]int, len(raw.Tasks))
	for _, t := range raw.Tasks {
		desc := strings.TrimSpace(t.Description)
		if desc == "" {
			continue
		}
		priority := models.ParsePriority(t.Priority)

		key := taskKey(desc)
		if i, dup := index[key]; dup {
			if priorityRank[priority] > priorityRank[result.Tasks[i].Priority] {
				result.Tasks[i].Priority = priority
			}
			continue
		}
		index[key] = len(result.Tasks)
		result.Tasks = append(result.Tasks, models.ExtractedTask{Description: desc, Priority: priority})
	}
	return result, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		// Drop the language tag line, e.g. ```json
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
