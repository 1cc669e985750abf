// Package search keeps a Qdrant vector index of ingested emails and answers
// semantic queries scoped to one user.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mailtriage/internal/config"
	"mailtriage/internal/models"
	"mailtriage/internal/store"

	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
)

const (
	// EmbeddingDimensions matches text-embedding-3-small
	EmbeddingDimensions = 1536
	// DefaultLimit is used when a search asks for no explicit limit
	DefaultLimit = 10
	// MaxLimit bounds a single search
	MaxLimit = 50

	maxBodyChars = 2000
	batchSize    = 100
)

// Embedder turns texts into vectors
type Embedder interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Points is the subset of the Qdrant client used by the index
type Points interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	CreateFieldIndex(ctx context.Context, request *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
}

// Index stores one point per email, keyed by the stored email id
type Index struct {
	points     Points
	embedder   Embedder
	collection string
	logger     zerolog.Logger
}

// NewIndex creates an index over an existing Qdrant connection
func NewIndex(points Points, embedder Embedder, collection string, logger zerolog.Logger) *Index {
	return &Index{
		points:     points,
		embedder:   embedder,
		collection: collection,
		logger:     logger.With().Str("component", "search").Str("collection", collection).Logger(),
	}
}

// Open connects to Qdrant as configured and makes sure the collection exists
func Open(ctx context.Context, cfg *config.Config, embedder Embedder, logger zerolog.Logger) (*Index, *qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantAPIKey,
		UseTLS: cfg.QdrantUseTLS,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := NewIndex(client, embedder, cfg.QdrantCollection, logger)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := idx.EnsureCollection(ctx); err != nil {
		client.Close()
		return nil, nil, err
	}
	return idx, client, nil
}

// EnsureCollection creates the collection and its user_id payload index when missing
func (i *Index) EnsureCollection(ctx context.Context) error {
	exists, err := i.points.CollectionExists(ctx, i.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = i.points.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     EmbeddingDimensions,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	_, err = i.points.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: i.collection,
		FieldName:      "user_id",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create user_id index: %w", err)
	}

	i.logger.Info().Msg("Created search collection")
	return nil
}

// Index embeds and upserts one email
func (i *Index) Index(ctx context.Context, email models.StoredEmail) error {
	return i.IndexBatch(ctx, []models.StoredEmail{email})
}

// IndexBatch embeds and upserts emails in groups sized for the embeddings API
func (i *Index) IndexBatch(ctx context.Context, emails []models.StoredEmail) error {
	for start := 0; start < len(emails); start += batchSize {
		end := start + batchSize
		if end > len(emails) {
			end = len(emails)
		}
		if err := i.indexChunk(ctx, emails[start:end]); err != nil {
			return fmt.Errorf("failed to index emails %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (i *Index) indexChunk(ctx context.Context, emails []models.StoredEmail) error {
	texts := make([]string, len(emails))
	for n, email := range emails {
		texts[n] = BuildEmailText(email)
	}

	vectors, err := i.embedder.CreateEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(emails) {
		return fmt.Errorf("expected %d embeddings, got %d", len(emails), len(vectors))
	}

	points := make([]*qdrant.PointStruct, len(emails))
	for n, email := range emails {
		points[n] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(email.ID),
			Vectors: qdrant.NewVectors(vectors[n]...),
			Payload: qdrant.NewValueMap(payload(email)),
		}
	}

	wait := true
	if _, err := i.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	i.logger.Debug().Int("count", len(points)).Msg("Indexed emails")
	return nil
}

// Search returns the emails of userID closest to query
func (i *Index) Search(ctx context.Context, userID, query string, limit int) ([]models.EmailSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	vectors, err := i.embedder.CreateEmbeddings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}

	n := uint64(limit)
	hits, err := i.points.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(vectors[0]...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("user_id", userID)},
		},
		WithPayload: qdrant.NewWithPayload(true),
		Limit:       &n,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	results := make([]models.EmailSearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, models.EmailSearchResult{
			EmailID:    hit.GetId().GetUuid(),
			Subject:    hit.GetPayload()["subject"].GetStringValue(),
			SenderName: hit.GetPayload()["sender_name"].GetStringValue(),
			Summary:    hit.GetPayload()["summary"].GetStringValue(),
			Similarity: hit.GetScore(),
		})
	}

	i.logger.Debug().Str("user_id", userID).Int("hits", len(results)).Msg("Search finished")
	return results, nil
}

// Delete removes the point of a stored email
func (i *Index) Delete(ctx context.Context, emailID string) error {
	wait := true
	_, err := i.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: i.collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(emailID)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}
	return nil
}

// EmailLister pages through the stored emails of a user
type EmailLister interface {
	ListEmails(ctx context.Context, filter store.EmailFilter) ([]models.StoredEmail, error)
}

// reindexPage matches the largest page ListEmails returns
const reindexPage = 200

// Reindex re-embeds every stored email of userID and returns how many were written
func (i *Index) Reindex(ctx context.Context, emails EmailLister, userID string) (int, error) {
	total := 0
	for offset := 0; ; offset += reindexPage {
		page, err := emails.ListEmails(ctx, store.EmailFilter{UserID: userID, Limit: reindexPage, Offset: offset})
		if err != nil {
			return total, fmt.Errorf("failed to list emails: %w", err)
		}
		if err := i.IndexBatch(ctx, page); err != nil {
			return total, err
		}
		total += len(page)
		if len(page) < reindexPage {
			break
		}
	}
	i.logger.Info().Str("user_id", userID).Int("count", total).Msg("Reindexed emails")
	return total, nil
}

// BuildEmailText is the text embedded for an email
func BuildEmailText(email models.StoredEmail) string {
	parts := []string{"Subject: " + email.Subject}

	from := email.SenderName
	if email.SenderEmail != "" {
		from += " <" + email.SenderEmail + ">"
	}
	parts = append(parts, "From: "+strings.TrimSpace(from))

	if email.Summary != nil && *email.Summary != "" {
		parts = append(parts, "Summary: "+*email.Summary)
	}

	body := strings.TrimSpace(email.Body)
	if r := []rune(body); len(r) > maxBodyChars {
		body = string(r[:maxBodyChars]) + "..."
	}
	if body != "" {
		parts = append(parts, "Message: "+body)
	}

	return strings.Join(parts, " | ")
}

func payload(email models.StoredEmail) map[string]any {
	p := map[string]any{
		"user_id":      email.UserID,
		"email_id":     email.EmailID,
		"subject":      email.Subject,
		"sender_name":  email.SenderName,
		"sender_email": email.SenderEmail,
		"received_at":  email.ReceivedAt.UTC().Format(time.RFC3339),
	}
	if email.Summary != nil {
		p["summary"] = *email.Summary
	}
	return p
}
