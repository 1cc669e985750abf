package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"mailtriage/internal/models"
	"mailtriage/internal/store"

	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	calls [][]string
	err   error
}

func (f *fakeEmbedder) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 0.5, 0.25}
	}
	return out, nil
}

type fakePoints struct {
	exists      bool
	created     *qdrant.CreateCollection
	fieldIndex  *qdrant.CreateFieldIndexCollection
	upserts     []*qdrant.UpsertPoints
	lastQuery   *qdrant.QueryPoints
	deleted     *qdrant.DeletePoints
	queryResult []*qdrant.ScoredPoint
}

func (f *fakePoints) CollectionExists(context.Context, string) (bool, error) {
	return f.exists, nil
}

func (f *fakePoints) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.created = req
	return nil
}

func (f *fakePoints) CreateFieldIndex(_ context.Context, req *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error) {
	f.fieldIndex = req
	return &qdrant.UpdateResult{}, nil
}

func (f *fakePoints) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.upserts = append(f.upserts, req)
	return &qdrant.UpdateResult{}, nil
}

func (f *fakePoints) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.lastQuery = req
	return f.queryResult, nil
}

func (f *fakePoints) Delete(_ context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error) {
	f.deleted = req
	return &qdrant.UpdateResult{}, nil
}

func storedEmail(id string) models.StoredEmail {
	summary := "Project status and next steps."
	return models.StoredEmail{
		ID:          id,
		UserID:      "user-1",
		EmailID:     id + "@example.com",
		Subject:     "Important Project Update",
		SenderName:  "John Smith",
		SenderEmail: "john.smith@example.com",
		ReceivedAt:  time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		Body:        "Please review the attached plan.",
		Summary:     &summary,
	}
}

func TestEnsureCollection(t *testing.T) {
	t.Run("creates missing collection", func(t *testing.T) {
		points := &fakePoints{}
		idx := NewIndex(points, &fakeEmbedder{}, "emails", zerolog.Nop())

		require.NoError(t, idx.EnsureCollection(context.Background()))
		require.NotNil(t, points.created)
		assert.Equal(t, "emails", points.created.CollectionName)
		params := points.created.GetVectorsConfig().GetParams()
		assert.Equal(t, uint64(EmbeddingDimensions), params.GetSize())
		assert.Equal(t, qdrant.Distance_Cosine, params.GetDistance())
		require.NotNil(t, points.fieldIndex)
		assert.Equal(t, "user_id", points.fieldIndex.FieldName)
	})

	t.Run("keeps existing collection", func(t *testing.T) {
		points := &fakePoints{exists: true}
		idx := NewIndex(points, &fakeEmbedder{}, "emails", zerolog.Nop())

		require.NoError(t, idx.EnsureCollection(context.Background()))
		assert.Nil(t, points.created)
	})
}

func TestIndex_UpsertsPayload(t *testing.T) {
	points := &fakePoints{}
	embedder := &fakeEmbedder{}
	idx := NewIndex(points, embedder, "emails", zerolog.Nop())

	email := storedEmail("5f0c6a2e-1b7d-4c38-9d4e-0a1b2c3d4e5f")
	require.NoError(t, idx.Index(context.Background(), email))

	require.Len(t, points.upserts, 1)
	require.Len(t, points.upserts[0].Points, 1)
	point := points.upserts[0].Points[0]
	assert.Equal(t, email.ID, point.GetId().GetUuid())
	assert.Equal(t, "user-1", point.GetPayload()["user_id"].GetStringValue())
	assert.Equal(t, "Important Project Update", point.GetPayload()["subject"].GetStringValue())
	assert.Equal(t, "2024-03-01T09:30:00Z", point.GetPayload()["received_at"].GetStringValue())
	assert.Equal(t, "Project status and next steps.", point.GetPayload()["summary"].GetStringValue())

	require.Len(t, embedder.calls, 1)
	assert.Contains(t, embedder.calls[0][0], "Subject: Important Project Update")
}

func TestIndexBatch_Chunks(t *testing.T) {
	points := &fakePoints{}
	embedder := &fakeEmbedder{}
	idx := NewIndex(points, embedder, "emails", zerolog.Nop())

	emails := make([]models.StoredEmail, 250)
	for i := range emails {
		emails[i] = storedEmail(fmt.Sprintf("00000000-0000-0000-0000-%012d", i))
	}

	require.NoError(t, idx.IndexBatch(context.Background(), emails))
	assert.Len(t, embedder.calls, 3)
	assert.Len(t, points.upserts[0].Points, 100)
	assert.Len(t, points.upserts[2].Points, 50)
}

func TestIndex_EmbeddingError(t *testing.T) {
	points := &fakePoints{}
	idx := NewIndex(points, &fakeEmbedder{err: errors.New("quota exceeded")}, "emails", zerolog.Nop())

	err := idx.Index(context.Background(), storedEmail("5f0c6a2e-1b7d-4c38-9d4e-0a1b2c3d4e5f"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Empty(t, points.upserts)
}

func TestSearch(t *testing.T) {
	points := &fakePoints{queryResult: []*qdrant.ScoredPoint{
		{
			Id:    qdrant.NewIDUUID("5f0c6a2e-1b7d-4c38-9d4e-0a1b2c3d4e5f"),
			Score: 0.91,
			Payload: qdrant.NewValueMap(map[string]any{
				"subject":     "Important Project Update",
				"sender_name": "John Smith",
				"summary":     "Project status.",
			}),
		},
	}}
	idx := NewIndex(points, &fakeEmbedder{}, "emails", zerolog.Nop())

	results, err := idx.Search(context.Background(), "user-1", "project plan", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "5f0c6a2e-1b7d-4c38-9d4e-0a1b2c3d4e5f", results[0].EmailID)
	assert.Equal(t, "John Smith", results[0].SenderName)
	assert.InDelta(t, 0.91, results[0].Similarity, 0.0001)

	require.NotNil(t, points.lastQuery)
	assert.Equal(t, uint64(DefaultLimit), points.lastQuery.GetLimit())
	must := points.lastQuery.GetFilter().GetMust()
	require.Len(t, must, 1)
	assert.Equal(t, "user_id", must[0].GetField().GetKey())
	assert.Equal(t, "user-1", must[0].GetField().GetMatch().GetKeyword())
}

func TestSearch_Limits(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  uint64
	}{
		{"default", 0, DefaultLimit},
		{"explicit", 5, 5},
		{"capped", 500, MaxLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := &fakePoints{}
			idx := NewIndex(points, &fakeEmbedder{}, "emails", zerolog.Nop())

			_, err := idx.Search(context.Background(), "user-1", "invoice", tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, points.lastQuery.GetLimit())
		})
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	idx := NewIndex(&fakePoints{}, &fakeEmbedder{}, "emails", zerolog.Nop())
	_, err := idx.Search(context.Background(), "user-1", "   ", 5)
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	points := &fakePoints{}
	idx := NewIndex(points, &fakeEmbedder{}, "emails", zerolog.Nop())

	require.NoError(t, idx.Delete(context.Background(), "5f0c6a2e-1b7d-4c38-9d4e-0a1b2c3d4e5f"))
	require.NotNil(t, points.deleted)
	ids := points.deleted.GetPoints().GetPoints().GetIds()
	require.Len(t, ids, 1)
	assert.Equal(t, "5f0c6a2e-1b7d-4c38-9d4e-0a1b2c3d4e5f", ids[0].GetUuid())
}

func TestBuildEmailText(t *testing.T) {
	email := storedEmail("id")
	email.Body = strings.Repeat("é", maxBodyChars+10)
	email.Summary = nil

	text := BuildEmailText(email)
	assert.True(t, strings.HasPrefix(text, "Subject: Important Project Update | From: John Smith <john.smith@example.com> | Message: "))
	assert.NotContains(t, text, "Summary:")
	assert.True(t, strings.HasSuffix(text, "..."))
}

type pagedLister struct {
	emails  []models.StoredEmail
	filters []store.EmailFilter
}

func (p *pagedLister) ListEmails(_ context.Context, filter store.EmailFilter) ([]models.StoredEmail, error) {
	p.filters = append(p.filters, filter)
	if filter.Offset >= len(p.emails) {
		return nil, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(p.emails) {
		end = len(p.emails)
	}
	return p.emails[filter.Offset:end], nil
}

func TestReindex(t *testing.T) {
	lister := &pagedLister{}
	for i := 0; i < 250; i++ {
		lister.emails = append(lister.emails, storedEmail(fmt.Sprintf("e-%03d", i)))
	}
	points := &fakePoints{exists: true}
	idx := NewIndex(points, &fakeEmbedder{}, "emails", zerolog.Nop())

	n, err := idx.Reindex(context.Background(), lister, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 250, n)
	require.Len(t, lister.filters, 2)
	assert.Equal(t, 200, lister.filters[1].Offset)
	assert.Equal(t, "user-1", lister.filters[0].UserID)
	// Upserts are chunked per embeddings call
	require.Len(t, points.upserts, 3)
	assert.Len(t, points.upserts[2].Points, 50)
}

func TestReindex_EmbedderFailure(t *testing.T) {
	lister := &pagedLister{emails: []models.StoredEmail{storedEmail("e-1")}}
	idx := NewIndex(&fakePoints{exists: true}, &fakeEmbedder{err: errors.New("quota exceeded")}, "emails", zerolog.Nop())

	n, err := idx.Reindex(context.Background(), lister, "user-1")
	assert.Zero(t, n)
	assert.ErrorContains(t, err, "quota exceeded")
}
