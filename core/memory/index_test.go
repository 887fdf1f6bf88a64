package memory

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/breaking-byts/lifeos/core/database"
)

const testDims = 64

func newTestIndex(t *testing.T) *Index {
	t.Helper()

	manager := database.NewManager(nil)
	pool, err := manager.OpenMemory(strings.ReplaceAll(t.Name(), "/", "_"))
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { _ = manager.CloseAll() })

	migrator := database.NewMigrator(pool, database.Migrations())
	if err := migrator.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := NewEventStore(pool)
	embed := NewEmbedPool(NewHashEmbedder(testDims), 2)
	idx, err := NewIndex(store, embed, IndexConfig{})
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	return idx
}

func floatPtr(v float64) *float64 { return &v }

func TestHashEmbedderIsDeterministicAndNormalized(t *testing.T) {
	ctx := context.Background()
	embedder := NewHashEmbedder(testDims)

	a, err := embedder.Embed(ctx, "morning study session went well")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	b, err := embedder.Embed(ctx, "morning study session went well")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same text gave different vectors at %d: %v vs %v", i, a[i], b[i])
		}
	}

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-5 {
		t.Errorf("vector norm = %v, want 1.0", math.Sqrt(norm))
	}

	other, err := embedder.Embed(ctx, "late evening workout felt exhausting")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	same := true
	for i := range a {
		if a[i] != other[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("distinct texts embedded to identical vectors")
	}
}

func TestCachedEmbedderMemoizes(t *testing.T) {
	ctx := context.Background()
	counter := &countingEmbedder{inner: NewHashEmbedder(testDims)}

	cached, err := NewCachedEmbedder(counter, 16)
	if err != nil {
		t.Fatalf("NewCachedEmbedder() error = %v", err)
	}

	if _, err := cached.Embed(ctx, "repeated phrase"); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if _, err := cached.Embed(ctx, "repeated phrase"); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	if counter.calls != 1 {
		t.Errorf("inner embedder called %d times, want 1", counter.calls)
	}
}

type countingEmbedder struct {
	inner Embedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) Dimension() int { return c.inner.Dimension() }

type blockingEmbedder struct {
	release chan struct{}
}

func (b *blockingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	<-b.release
	return make([]float32, testDims), nil
}

func (b *blockingEmbedder) Dimension() int { return testDims }

func TestEmbedPoolHonorsCancellation(t *testing.T) {
	blocker := &blockingEmbedder{release: make(chan struct{})}
	pool := NewEmbedPool(blocker, 1)

	// Occupy the only slot.
	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = pool.Embed(context.Background(), "holds the slot")
	}()
	<-started
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pool.Embed(ctx, "waits for a slot"); err != context.Canceled {
		t.Errorf("Embed() with cancelled context = %v, want context.Canceled", err)
	}

	close(blocker.release)
}

func TestEmptyIndexReturnsNeutralPrior(t *testing.T) {
	idx := newTestIndex(t)

	outcome, results, err := idx.SimilarContextOutcomes(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("SimilarContextOutcomes() error = %v", err)
	}
	if outcome != 0.5 {
		t.Errorf("outcome = %v, want neutral 0.5", outcome)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
}

func TestAddEventAndSearchSimilar(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	if _, err := idx.AddEvent(ctx, "study_session", "deep focus on linear algebra proofs", "", floatPtr(0.9)); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}
	if _, err := idx.AddEvent(ctx, "workout", "short easy run around the park", "", floatPtr(0.6)); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}

	if idx.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", idx.Count())
	}

	results, err := idx.SearchSimilar(ctx, "focus on linear algebra", 2, "")
	if err != nil {
		t.Fatalf("SearchSimilar() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("SearchSimilar() returned %d results, want 2", len(results))
	}
	if results[0].Event.Type != "study_session" {
		t.Errorf("best match type = %q, want study_session", results[0].Event.Type)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Error("results not ordered by similarity descending")
	}
}

func TestSearchSimilarTypeFilter(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	if _, err := idx.AddEvent(ctx, "study_session", "reviewed flashcards", "", nil); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}
	if _, err := idx.AddEvent(ctx, "workout", "reviewed flashcards while cycling", "", nil); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}

	results, err := idx.SearchSimilar(ctx, "flashcards", 5, "workout")
	if err != nil {
		t.Fatalf("SearchSimilar() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("filtered search returned %d results, want 1", len(results))
	}
	if results[0].Event.Type != "workout" {
		t.Errorf("filtered result type = %q, want workout", results[0].Event.Type)
	}
}

func TestSimilarContextOutcomesWeighting(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	if _, err := idx.AddEvent(ctx, "study_session", "morning deep work block", "", floatPtr(1.0)); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}
	if _, err := idx.AddEvent(ctx, "study_session", "evening cramming before exam", "", floatPtr(0.2)); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}

	outcome, results, err := idx.SimilarContextOutcomes(ctx, "morning deep work", 5)
	if err != nil {
		t.Fatalf("SimilarContextOutcomes() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("matches = %d, want 2", len(results))
	}
	// Weighted average of 1.0 and 0.2, pulled toward the closer match.
	if outcome <= 0.2 || outcome >= 1.0 {
		t.Errorf("outcome = %v, want strictly between 0.2 and 1.0", outcome)
	}
	if outcome <= 0.6 {
		t.Errorf("outcome = %v, want pulled above the plain mean by similarity", outcome)
	}
}

func TestSimilarContextOutcomesAllUnscored(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	if _, err := idx.AddEvent(ctx, "checkin", "quick evening check-in", "", nil); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}

	outcome, results, err := idx.SimilarContextOutcomes(ctx, "evening check-in", 5)
	if err != nil {
		t.Fatalf("SimilarContextOutcomes() error = %v", err)
	}
	if outcome != 0.5 {
		t.Errorf("outcome = %v, want neutral 0.5 when nothing is scored", outcome)
	}
	if len(results) != 1 {
		t.Errorf("matches = %d, want the unscored event returned", len(results))
	}
}

func TestLoadRebuildsFromStore(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	if _, err := idx.AddEvent(ctx, "workout", "long trail run", "", floatPtr(0.8)); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}

	rebuilt, err := NewIndex(idx.store, idx.embed, IndexConfig{})
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	if err := rebuilt.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rebuilt.Count() != 1 {
		t.Errorf("Count() after Load = %d, want 1", rebuilt.Count())
	}

	results, err := rebuilt.SearchSimilar(ctx, "trail run", 1, "")
	if err != nil {
		t.Fatalf("SearchSimilar() error = %v", err)
	}
	if len(results) != 1 || results[0].Event.Content != "long trail run" {
		t.Errorf("rebuilt search = %v, want the persisted event", results)
	}
}

func TestONNXEmbedderFallsBackUntilLoaded(t *testing.T) {
	ctx := context.Background()
	embedder, err := NewONNXEmbedder(ONNXConfig{
		ModelRepo: "sentence-transformers/all-MiniLM-L6-v2",
		CacheDir:  t.TempDir(),
		Dimension: testDims,
	})
	if err != nil {
		t.Fatalf("NewONNXEmbedder() error = %v", err)
	}

	got, err := embedder.Embed(ctx, "high energy, good mood, weekday morning")
	if err != nil {
		t.Fatalf("Embed() before model load error = %v", err)
	}
	want, err := NewHashEmbedder(testDims).Embed(ctx, "high energy, good mood, weekday morning")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unloaded embedder diverged from hash fallback at %d: %v vs %v", i, got[i], want[i])
		}
	}

	// Close without a loaded session is a no-op; embedding keeps working.
	if err := embedder.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, err := embedder.Embed(ctx, "still works"); err != nil {
		t.Errorf("Embed() after Close error = %v", err)
	}
}

func TestSearchKeywordReturnsMatchingEvents(t *testing.T) {
	ctx := context.Background()
	base := newTestIndex(t)

	kw, err := NewMemKeywordIndex()
	if err != nil {
		t.Fatalf("NewMemKeywordIndex() error = %v", err)
	}
	defer kw.Close()

	idx, err := NewIndex(base.store, base.embed, IndexConfig{Keyword: kw})
	if err != nil {
		t.Fatalf("new index: %v", err)
	}

	if _, err := idx.AddEvent(ctx, "workout", "heavy squat session at the gym", "", floatPtr(0.8)); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}
	if _, err := idx.AddEvent(ctx, "study_session", "reading about distributed systems", "", nil); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}

	events, err := idx.SearchKeyword(ctx, "squat", 5)
	if err != nil {
		t.Fatalf("SearchKeyword() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("SearchKeyword(squat) returned %d events, want 1", len(events))
	}
	if events[0].Content != "heavy squat session at the gym" {
		t.Errorf("matched content = %q, want the workout note", events[0].Content)
	}
	if events[0].Outcome == nil || *events[0].Outcome != 0.8 {
		t.Errorf("matched outcome = %v, want 0.8", events[0].Outcome)
	}
}

func TestSearchKeywordFallsBackToVectorSearch(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	if _, err := idx.AddEvent(ctx, "workout", "heavy squat session at the gym", "", nil); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}
	if _, err := idx.AddEvent(ctx, "study_session", "reading about distributed systems", "", nil); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}

	events, err := idx.SearchKeyword(ctx, "squat session gym", 1)
	if err != nil {
		t.Fatalf("SearchKeyword() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("fallback search returned %d events, want 1", len(events))
	}
	if events[0].Type != "workout" {
		t.Errorf("fallback best match type = %q, want workout", events[0].Type)
	}
}

func TestKeywordIndexSearch(t *testing.T) {
	kw, err := NewMemKeywordIndex()
	if err != nil {
		t.Fatalf("NewMemKeywordIndex() error = %v", err)
	}
	defer kw.Close()

	events := []Event{
		{ID: "a", Type: "workout", Content: "heavy squat session at the gym", CreatedAt: time.Now()},
		{ID: "b", Type: "study_session", Content: "reading about distributed systems", CreatedAt: time.Now()},
	}
	for _, e := range events {
		if err := kw.Add(e); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	ids, err := kw.Search("squat", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != "a" {
		t.Errorf("Search(squat) = %v, want [a]", ids)
	}
}
