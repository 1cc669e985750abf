package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"mailtriage/internal/config"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failingServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func embeddingServer(t *testing.T, model *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		var req struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*model = req.Model

		// Out of order on purpose
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0.3,0.4]},
			{"object":"embedding","index":0,"embedding":[0.1,0.2]}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name         string
		cfg          config.Config
		wantErr      bool
		wantProvider string
		wantModel    string
		wantFallback bool
	}{
		{
			name:    "nothing configured",
			wantErr: true,
		},
		{
			name:         "platform only",
			cfg:          config.Config{OpenAIKey: "sk-test"},
			wantProvider: "OpenAI",
			wantModel:    string(openai.SmallEmbedding3),
		},
		{
			name: "azure with platform fallback",
			cfg: config.Config{
				OpenAIKey:                      "sk-test",
				AzureOpenAIKey:                 "az-key",
				AzureOpenAIEndpoint:            "https://example.openai.azure.com",
				AzureOpenAIEmbeddingDeployment: "embed-prod",
			},
			wantProvider: "Azure OpenAI",
			wantModel:    "embed-prod",
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(&tt.cfg, zerolog.Nop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantProvider, client.GetProviderName())
			assert.Equal(t, tt.wantModel, client.GetEmbeddingModel())
			assert.Equal(t, tt.wantFallback, client.fallback != nil)
		})
	}
}

func TestCreateEmbeddings_OrdersByIndex(t *testing.T) {
	var model string
	srv := embeddingServer(t, &model)

	client, err := NewClient(&config.Config{OpenAIKey: "sk-test", OpenAIBaseURL: srv.URL + "/v1"}, zerolog.Nop())
	require.NoError(t, err)

	vectors, err := client.CreateEmbeddings(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, vectors)
	assert.Equal(t, string(openai.SmallEmbedding3), model)
}

func TestCreateEmbeddings_FallsBack(t *testing.T) {
	var azureHits atomic.Int32
	azure := failingServer(t, &azureHits)
	var model string
	platform := embeddingServer(t, &model)

	client, err := NewClient(&config.Config{
		AzureOpenAIKey:                 "az-key",
		AzureOpenAIEndpoint:            azure.URL,
		AzureOpenAIEmbeddingDeployment: "embed-prod",
		OpenAIKey:                      "sk-test",
		OpenAIBaseURL:                  platform.URL + "/v1",
	}, zerolog.Nop())
	require.NoError(t, err)

	vectors, err := client.CreateEmbeddings(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
	assert.Equal(t, int32(1), azureHits.Load())
	// The fallback uses its own model, not the Azure deployment name
	assert.Equal(t, string(openai.SmallEmbedding3), model)
}

func TestCreateChatCompletion_BothFail(t *testing.T) {
	var azureHits, platformHits atomic.Int32
	azure := failingServer(t, &azureHits)
	platform := failingServer(t, &platformHits)

	client, err := NewClient(&config.Config{
		AzureOpenAIKey:           "az-key",
		AzureOpenAIEndpoint:      azure.URL,
		AzureOpenAIGPTDeployment: "gpt-prod",
		OpenAIKey:                "sk-test",
		OpenAIBaseURL:            platform.URL + "/v1",
	}, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both providers failed")
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	assert.Equal(t, int32(1), azureHits.Load())
	assert.Equal(t, int32(1), platformHits.Load())
}

func TestCreateChatCompletion_NoFallbackAfterCancel(t *testing.T) {
	var azureHits, platformHits atomic.Int32
	azure := failingServer(t, &azureHits)
	platform := failingServer(t, &platformHits)

	client, err := NewClient(&config.Config{
		AzureOpenAIKey:      "az-key",
		AzureOpenAIEndpoint: azure.URL,
		OpenAIKey:           "sk-test",
		OpenAIBaseURL:       platform.URL + "/v1",
	}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{})
	require.Error(t, err)
	assert.Zero(t, platformHits.Load())
}
