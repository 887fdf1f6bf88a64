package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/viterin/vek/vek32"
)

const (
	cacheNumCounters = 100_000
	cacheMaxCost     = 10_000
	cacheBufferItems = 64
	cacheTTL         = 5 * time.Minute
)

// SearchResult pairs an event with its similarity to the query.
type SearchResult struct {
	Event      Event
	Similarity float64
}

// Index answers similarity queries over stored events. Vectors live in
// memory; sqlite is the durable copy, bleve handles keyword search, and
// ristretto caches repeated similarity queries.
type Index struct {
	store   *EventStore
	embed   *EmbedPool
	keyword *KeywordIndex
	cache   *ristretto.Cache
	logger  *slog.Logger

	mu     sync.RWMutex
	events []Event
}

type IndexConfig struct {
	Keyword *KeywordIndex // Optional
	Logger  *slog.Logger  // Optional, uses slog.Default() if nil
}

func NewIndex(store *EventStore, embed *EmbedPool, cfg IndexConfig) (*Index, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cacheNumCounters,
		MaxCost:     cacheMaxCost,
		BufferItems: cacheBufferItems,
	})
	if err != nil {
		return nil, err
	}

	return &Index{
		store:   store,
		embed:   embed,
		keyword: cfg.Keyword,
		cache:   cache,
		logger:  cfg.Logger,
	}, nil
}

// Load rebuilds the in-memory index from the event store.
func (idx *Index) Load(ctx context.Context) error {
	events, err := idx.store.All(ctx)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	idx.events = events
	idx.mu.Unlock()

	idx.logger.Debug("memory index loaded", "events", len(events))
	return nil
}

// AddEvent embeds the content, persists the event, and makes it
// immediately searchable.
func (idx *Index) AddEvent(ctx context.Context, eventType, content, metadata string, outcome *float64) (string, error) {
	embedding, err := idx.embed.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("embed event: %w", err)
	}

	event := Event{
		Type:      eventType,
		Content:   content,
		Metadata:  metadata,
		Outcome:   outcome,
		Embedding: embedding,
		CreatedAt: time.Now(),
	}

	id, err := idx.store.Insert(ctx, &event)
	if err != nil {
		return "", err
	}

	idx.mu.Lock()
	idx.events = append(idx.events, event)
	idx.mu.Unlock()

	if idx.keyword != nil {
		if err := idx.keyword.Add(event); err != nil {
			idx.logger.Warn("keyword index add failed", "event", id, "error", err)
		}
	}

	idx.cache.Clear()
	return id, nil
}

// SearchSimilar returns the k stored events most similar to the query
// text, ordered by similarity descending. typeFilter narrows to one event
// type when non-empty.
func (idx *Index) SearchSimilar(ctx context.Context, text string, k int, typeFilter string) ([]SearchResult, error) {
	cacheKey := fmt.Sprintf("%s|%d|%s", text, k, typeFilter)
	if cached, ok := idx.cache.Get(cacheKey); ok {
		return cached.([]SearchResult), nil
	}

	query, err := idx.embed.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results := idx.searchVector(query, k, typeFilter)
	idx.cache.SetWithTTL(cacheKey, results, int64(len(results)+1), cacheTTL)
	return results, nil
}

func (idx *Index) searchVector(query []float32, k int, typeFilter string) []SearchResult {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	results := make([]SearchResult, 0, len(idx.events))
	for _, event := range idx.events {
		if typeFilter != "" && event.Type != typeFilter {
			continue
		}
		if len(event.Embedding) != len(query) {
			continue
		}
		distance := float64(vek32.Distance(query, event.Embedding))
		results = append(results, SearchResult{
			Event:      event,
			Similarity: 1.0 / (1.0 + distance),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if k < len(results) {
		results = results[:k]
	}
	return results
}

// SimilarContextOutcomes returns the similarity-weighted average outcome
// of the top-k events matching the query, with the matches that produced
// it. An empty index yields the neutral prior 0.5 and no matches; callers
// must treat that as a normal answer, not an error.
func (idx *Index) SimilarContextOutcomes(ctx context.Context, text string, k int) (float64, []SearchResult, error) {
	results, err := idx.SearchSimilar(ctx, text, k, "")
	if err != nil {
		return 0, nil, err
	}

	var weighted, totalWeight float64
	for _, r := range results {
		if r.Event.Outcome == nil {
			continue
		}
		weighted += r.Similarity * *r.Event.Outcome
		totalWeight += r.Similarity
	}

	if totalWeight == 0 {
		return 0.5, results, nil
	}
	return weighted / totalWeight, results, nil
}

// SearchKeyword returns events whose content matches the query text,
// in bleve relevance order. Without a keyword index it falls back to
// vector similarity so callers always get an answer.
func (idx *Index) SearchKeyword(ctx context.Context, query string, limit int) ([]Event, error) {
	if idx.keyword == nil {
		results, err := idx.SearchSimilar(ctx, query, limit, "")
		if err != nil {
			return nil, err
		}
		events := make([]Event, 0, len(results))
		for _, r := range results {
			events = append(events, r.Event)
		}
		return events, nil
	}

	ids, err := idx.keyword.Search(query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	byID := make(map[string]Event, len(idx.events))
	for _, event := range idx.events {
		byID[event.ID] = event
	}

	events := make([]Event, 0, len(ids))
	for _, id := range ids {
		if event, ok := byID[id]; ok {
			events = append(events, event)
		}
	}
	return events, nil
}

// Count returns the number of indexed events.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.events)
}
