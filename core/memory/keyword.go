package memory

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
)

// KeywordIndex provides full-text search over event content, complementing
// the vector index for queries like "show me past workout notes".
type KeywordIndex struct {
	index bleve.Index
}

type keywordDocument struct {
	EventType string `json:"event_type"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// OpenKeywordIndex opens the bleve index at path, creating it if absent.
func OpenKeywordIndex(path string) (*KeywordIndex, error) {
	index, err := bleve.Open(path)
	if err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("open keyword index: %w", err)
		}
		index, err = bleve.New(path, bleve.NewIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create keyword index: %w", err)
		}
	}
	return &KeywordIndex{index: index}, nil
}

// NewMemKeywordIndex builds an in-memory index, used by tests.
func NewMemKeywordIndex() (*KeywordIndex, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &KeywordIndex{index: index}, nil
}

// Add indexes one event by id.
func (k *KeywordIndex) Add(event Event) error {
	return k.index.Index(event.ID, keywordDocument{
		EventType: event.Type,
		Content:   event.Content,
		CreatedAt: event.CreatedAt.Format("2006-01-02 15:04:05"),
	})
}

// Search runs a match query over content and returns matching event ids
// ranked by relevance.
func (k *KeywordIndex) Search(queryText string, limit int) ([]string, error) {
	query := bleve.NewMatchQuery(queryText)
	query.SetField("content")

	req := bleve.NewSearchRequest(query)
	req.Size = limit

	result, err := k.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func (k *KeywordIndex) Close() error {
	return k.index.Close()
}
