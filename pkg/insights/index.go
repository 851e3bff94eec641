package insights

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"

	"github.com/growthdesk/growthdesk-go/pkg/models"
	"github.com/growthdesk/growthdesk-go/utils"
)

const indexCollection = "client_insights"

// Index is a semantic search index over client insights, backed by an
// in-process vector store. The embedding function is injected so tests can
// run without a model endpoint.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	logger     *utils.Logger
}

// SimilarInsight is one semantic search hit.
type SimilarInsight struct {
	InsightID  string  `json:"insight_id"`
	CompanyID  string  `json:"company_id"`
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	Similarity float32 `json:"similarity"`
}

// NewIndex creates an in-memory index. persistDir may be empty for
// ephemeral use.
func NewIndex(persistDir string, embed chromem.EmbeddingFunc) (*Index, error) {
	var db *chromem.DB
	var err error
	if persistDir != "" {
		db, err = chromem.NewPersistentDB(persistDir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open insight index: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}
	collection, err := db.GetOrCreateCollection(indexCollection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to open insight collection: %w", err)
	}
	return &Index{
		db:         db,
		collection: collection,
		logger:     utils.GetLogger(),
	}, nil
}

// Add indexes a batch of insights. Empty titles are skipped.
func (ix *Index) Add(ctx context.Context, items []models.ClientInsight) error {
	docs := make([]chromem.Document, 0, len(items))
	for _, item := range items {
		if item.Title == "" {
			continue
		}
		docs = append(docs, chromem.Document{
			ID:      item.ID,
			Content: item.Title,
			Metadata: map[string]string{
				"company_id": item.CompanyID,
				"lab_id":     string(item.LabID),
				"category":   item.Category,
				"kind":       item.Kind,
				"severity":   string(item.Severity),
			},
		})
	}
	if len(docs) == 0 {
		return nil
	}
	concurrency := 1
	if len(docs) > 10 {
		concurrency = 4
	}
	if err := ix.collection.AddDocuments(ctx, docs, concurrency); err != nil {
		return fmt.Errorf("failed to index insights: %w", err)
	}
	ix.logger.Debug("Indexed insights", utils.Int("count", len(docs)))
	return nil
}

// Search returns the insights most similar to the query text, optionally
// scoped to one company.
func (ix *Index) Search(ctx context.Context, query string, companyID string, limit int) ([]SimilarInsight, error) {
	if limit <= 0 {
		limit = 5
	}
	if count := ix.collection.Count(); count < limit {
		if count == 0 {
			return nil, nil
		}
		limit = count
	}
	var where map[string]string
	if companyID != "" {
		where = map[string]string{"company_id": companyID}
	}
	results, err := ix.collection.Query(ctx, query, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search insights: %w", err)
	}
	hits := make([]SimilarInsight, 0, len(results))
	for _, result := range results {
		hits = append(hits, SimilarInsight{
			InsightID:  result.ID,
			CompanyID:  result.Metadata["company_id"],
			Title:      result.Content,
			Category:   result.Metadata["category"],
			Similarity: result.Similarity,
		})
	}
	return hits, nil
}
