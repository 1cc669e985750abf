package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mailtriage/internal/config"
	"mailtriage/internal/models"
	"mailtriage/internal/openai"

	"github.com/rs/zerolog"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func sampleMessage() models.NormalizedMessage {
	return models.NormalizedMessage{
		ExternalID:  "CAH1234@mail.example.com",
		Subject:     "Important Project Update",
		SenderName:  "John Smith",
		SenderEmail: "john.smith@example.com",
		ReceivedAt:  time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		Body:        "Dear team, please find attached the latest project update.",
	}
}

func TestMock_Deterministic(t *testing.T) {
	m := NewMock()
	msg := sampleMessage()

	first, err := m.Analyze(context.Background(), msg)
	require.NoError(t, err)
	second, err := m.Analyze(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, `This is an AI-generated summary of "Important Project Update". The email contains information from John Smith.`, first.Summary)
	require.Len(t, first.Tasks, 2)
	assert.Equal(t, `Review information about "Important Project Update"`, first.Tasks[0].Description)
	assert.Equal(t, models.PriorityMedium, first.Tasks[0].Priority)
	assert.Equal(t, "Follow up with John Smith", first.Tasks[1].Description)
	assert.Equal(t, models.PriorityHigh, first.Tasks[1].Priority)
}

func TestMock_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMock().Analyze(ctx, sampleMessage())
	var analyzerErr *AnalyzerError
	assert.True(t, errors.As(err, &analyzerErr))
}

func TestKeywordPriority(t *testing.T) {
	tests := []struct {
		text     string
		expected models.Priority
	}{
		{"URGENT: server down", models.PriorityHigh},
		{"Please reply asap", models.PriorityHigh},
		{"Deadline is Friday", models.PriorityHigh},
		{"FYI: office closed", models.PriorityLow},
		{"Weekly newsletter", models.PriorityLow},
		{"No action required", models.PriorityLow},
		{"Urgent newsletter", models.PriorityHigh},
		{"Lunch plans", models.PriorityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.expected, KeywordPriority(tt.text))
		})
	}
}

func TestConfigure(t *testing.T) {
	recorder := &recordingAnalyzer{result: models.AnalysisResult{
		Summary: "summary",
		Tasks:   []models.ExtractedTask{{Description: "do it", Priority: models.PriorityLow}},
	}}

	t.Run("defaults pass through unchanged", func(t *testing.T) {
		a := Configure(recorder, OptionsFrom(models.DefaultAISettings("user-1")))
		assert.Same(t, recorder, a)
	})

	t.Run("body withheld", func(t *testing.T) {
		a := Configure(recorder, Options{IncludeBody: false, ExtractTasks: true})
		result, err := a.Analyze(context.Background(), sampleMessage())
		require.NoError(t, err)
		assert.Empty(t, recorder.last.Body)
		assert.Equal(t, "Important Project Update", recorder.last.Subject)
		assert.Len(t, result.Tasks, 1)
	})

	t.Run("tasks dropped", func(t *testing.T) {
		a := Configure(recorder, Options{IncludeBody: true, ExtractTasks: false})
		result, err := a.Analyze(context.Background(), sampleMessage())
		require.NoError(t, err)
		assert.NotEmpty(t, recorder.last.Body)
		assert.Equal(t, "summary", result.Summary)
		assert.Empty(t, result.Tasks)
	})
}

type recordingAnalyzer struct {
	last   models.NormalizedMessage
	result models.AnalysisResult
}

func (r *recordingAnalyzer) Analyze(_ context.Context, msg models.NormalizedMessage) (models.AnalysisResult, error) {
	r.last = msg
	// Return a copy so callers cannot mutate the canned result
	out := r.result
	out.Tasks = append([]models.ExtractedTask(nil), r.result.Tasks...)
	return out, nil
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expectError   bool
		expectedTasks []models.ExtractedTask
	}{
		{
			name:  "plain json",
			input: `{"summary":"Project update.","tasks":[{"description":"Review the update","priority":"HIGH"}]}`,
			expectedTasks: []models.ExtractedTask{
				{Description: "Review the update", Priority: models.PriorityHigh},
			},
		},
		{
			name:  "fenced json with unknown priority and empty task",
			input: "```json\n{\"summary\":\"s\",\"tasks\":[{\"description\":\"a\",\"priority\":\"critical\"},{\"description\":\"  \",\"priority\":\"low\"}]}\n```",
			expectedTasks: []models.ExtractedTask{
				{Description: "a", Priority: models.PriorityMedium},
			},
		},
		{
			name: "repeated task keeps the higher priority",
			input: `{"summary":"s","tasks":[
				{"description":"Send the report to Alice","priority":"low"},
				{"description":"send report to alice!","priority":"high"},
				{"description":"Book a room","priority":"medium"}]}`,
			expectedTasks: []models.ExtractedTask{
				{Description: "Send the report to Alice", Priority: models.PriorityHigh},
				{Description: "Book a room", Priority: models.PriorityMedium},
			},
		},
		{
			name:          "surrounding prose",
			input:         "Here is the analysis:\n{\"summary\":\"s\",\"tasks\":[]}\nThanks",
			expectedTasks: []models.ExtractedTask{},
		},
		{name: "not json", input: "I cannot help with that", expectError: true},
		{name: "missing summary", input: `{"tasks":[]}`, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseResponse(tt.input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedTasks, result.Tasks)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	msg := sampleMessage()
	prompt := BuildPrompt(msg)
	assert.Contains(t, prompt, "Subject: Important Project Update")
	assert.Contains(t, prompt, "From: John Smith <john.smith@example.com>")
	assert.Contains(t, prompt, "max 2 sentences")
	assert.Contains(t, prompt, msg.Body)

	msg.Body = ""
	assert.Contains(t, BuildPrompt(msg), "(body not provided)")

	msg.Body = strings.Repeat("a", maxPromptBody+10)
	assert.Contains(t, BuildPrompt(msg), "[truncated]")
	assert.NotContains(t, BuildPrompt(msg), "Write the summary")

	msg.Body = "Привет, пожалуйста, пришлите отчёт до пятницы."
	assert.Contains(t, BuildPrompt(msg), "Write the summary and the tasks in Russian.")
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		text string
		want language.Tag
	}{
		{"", language.English},
		{"Please review the attached report", language.English},
		{"שלום, נא לאשר את הפגישה", language.Hebrew},
		{"مرحبا، يرجى مراجعة التقرير", language.Arabic},
		{"会議の資料を送ってください", language.Japanese},
		{"请在周五之前发送报告", language.Chinese},
		{"회의 자료를 보내주세요", language.Korean},
		{"Meeting notes attached. Спасибо", language.Russian},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectLanguage(tt.text), tt.text)
	}
}

func newOpenAIClient(t *testing.T, handler http.HandlerFunc) *openai.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := openai.NewClient(&config.Config{OpenAIKey: "test-key", OpenAIBaseURL: srv.URL + "/v1"}, zerolog.Nop())
	require.NoError(t, err)
	return client
}

func TestOpenAIAnalyzer(t *testing.T) {
	var captured goopenai.ChatCompletionRequest
	client := newOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"summary\":\"Project update from John.\",\"tasks\":[{\"description\":\"Reply to John\",\"priority\":\"high\"}]}"}}]}`))
	})

	result, err := NewOpenAI(client, 5*time.Second).Analyze(context.Background(), sampleMessage())
	require.NoError(t, err)
	assert.Equal(t, "Project update from John.", result.Summary)
	assert.Equal(t, []models.ExtractedTask{{Description: "Reply to John", Priority: models.PriorityHigh}}, result.Tasks)

	assert.Equal(t, goopenai.GPT4oMini, captured.Model)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, goopenai.ChatCompletionResponseFormatTypeJSONObject, captured.ResponseFormat.Type)
	require.Len(t, captured.Messages, 2)
	assert.Contains(t, captured.Messages[1].Content, "Important Project Update")
}

func TestOpenAIAnalyzer_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		expectRateLim bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","type":"rate_limit_error"}}`, true},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, false},
		{"invalid content", http.StatusOK, `{"id":"1","choices":[{"index":0,"message":{"role":"assistant","content":"not json"}}]}`, false},
		{"no choices", http.StatusOK, `{"id":"1","choices":[]}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := NewOpenAI(client, 5*time.Second).Analyze(context.Background(), sampleMessage())
			require.Error(t, err)
			assert.Equal(t, tt.expectRateLim, IsRateLimit(err))
			if !tt.expectRateLim {
				var analyzerErr *AnalyzerError
				assert.True(t, errors.As(err, &analyzerErr))
			}
		})
	}
}

type blockingCompleter struct{}

func (blockingCompleter) CreateChatCompletion(ctx context.Context, _ goopenai.ChatCompletionRequest) (*goopenai.ChatCompletionResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestOpenAIAnalyzer_Timeout(t *testing.T) {
	start := time.Now()
	_, err := NewOpenAI(blockingCompleter{}, 50*time.Millisecond).Analyze(context.Background(), sampleMessage())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsRateLimit(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestAnthropicAnalyzer(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest","stop_reason":"end_turn","content":[{"type":"text","text":"` +
			"```json\\n{\\\"summary\\\":\\\"Meeting tomorrow.\\\",\\\"tasks\\\":[{\\\"description\\\":\\\"Prepare progress report\\\",\\\"priority\\\":\\\"medium\\\"}]}\\n```" +
			`"}],"usage":{"input_tokens":10,"output_tokens":20}}`))
	}))
	defer srv.Close()

	a := NewAnthropic("test-key", "claude-3-5-haiku-latest", srv.URL, 5*time.Second)
	result, err := a.Analyze(context.Background(), sampleMessage())
	require.NoError(t, err)
	assert.Equal(t, "Meeting tomorrow.", result.Summary)
	assert.Equal(t, []models.ExtractedTask{{Description: "Prepare progress report", Priority: models.PriorityMedium}}, result.Tasks)
	assert.Equal(t, "claude-3-5-haiku-latest", captured["model"])
}

func TestAnthropicAnalyzer_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	_, err := NewAnthropic("test-key", "claude-3-5-haiku-latest", srv.URL, 5*time.Second).Analyze(context.Background(), sampleMessage())
	require.Error(t, err)
	assert.True(t, IsRateLimit(err))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.Config
		expectError bool
		expectType  interface{}
	}{
		{"default is mock", config.Config{}, false, &Mock{}},
		{"explicit mock", config.Config{AnalyzerProvider: config.AnalyzerMock}, false, &Mock{}},
		{"openai", config.Config{AnalyzerProvider: config.AnalyzerOpenAI, OpenAIKey: "k"}, false, &OpenAIAnalyzer{}},
		{"openai without key", config.Config{AnalyzerProvider: config.AnalyzerOpenAI}, true, nil},
		{"anthropic", config.Config{AnalyzerProvider: config.AnalyzerAnthropic, AnthropicKey: "k"}, false, &AnthropicAnalyzer{}},
		{"anthropic without key", config.Config{AnalyzerProvider: config.AnalyzerAnthropic}, true, nil},
		{"unknown", config.Config{AnalyzerProvider: "gemini"}, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(&tt.cfg, zerolog.Nop())
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.expectType, a)
		})
	}
}
