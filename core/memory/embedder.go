// Package memory stores embedded past events and retrieves them by
// similarity, feeding the "have I been here before" signal into feature
// extraction and recommendation explanations.
package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"runtime"
	"strings"
	"sync"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
	"github.com/knights-analytics/hugot/pipelines"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// ONNXEmbedder runs a sentence-transformer model locally via ONNX runtime.
// Until the model is downloaded and loaded it delegates to a deterministic
// hashing embedder, so the engine works offline out of the box.
type ONNXEmbedder struct {
	modelRepo string
	cacheDir  string
	modelPath string
	dimension int
	fallback  *HashEmbedder
	session   *hugot.Session
	pipeline  *pipelines.FeatureExtractionPipeline
	mu        sync.RWMutex
	loaded    bool
}

type ONNXConfig struct {
	ModelRepo string // HuggingFace repo, e.g. sentence-transformers/all-MiniLM-L6-v2
	CacheDir  string
	Dimension int
}

func NewONNXEmbedder(cfg ONNXConfig) (*ONNXEmbedder, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("create model cache dir: %w", err)
	}

	return &ONNXEmbedder{
		modelRepo: cfg.ModelRepo,
		cacheDir:  cfg.CacheDir,
		dimension: cfg.Dimension,
		fallback:  NewHashEmbedder(cfg.Dimension),
	}, nil
}

func (o *ONNXEmbedder) Dimension() int {
	return o.dimension
}

func (o *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if !o.isLoaded() {
		return o.fallback.Embed(ctx, text)
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	output, err := o.pipeline.RunPipeline([]string{text})
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if len(output.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return output.Embeddings[0], nil
}

func (o *ONNXEmbedder) isLoaded() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.loaded
}

// EnsureModel downloads the model if needed and loads the ONNX pipeline.
// Call it off the request path; embedding works (via the fallback) before
// it completes.
func (o *ONNXEmbedder) EnsureModel(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.loaded {
		return nil
	}

	if o.modelPath == "" {
		modelPath, err := hugot.DownloadModel(o.modelRepo, o.cacheDir, hugot.NewDownloadOptions())
		if err != nil {
			return fmt.Errorf("download model: %w", err)
		}
		o.modelPath = modelPath
	}

	session, err := hugot.NewORTSession(
		options.WithIntraOpNumThreads(runtime.NumCPU()),
	)
	if err != nil {
		return fmt.Errorf("create ORT session: %w", err)
	}

	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: o.modelPath,
		Name:      "context-embedder",
	})
	if err != nil {
		session.Destroy()
		return fmt.Errorf("create pipeline: %w", err)
	}

	o.session = session
	o.pipeline = pipeline
	o.loaded = true
	return nil
}

func (o *ONNXEmbedder) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session != nil {
		o.session.Destroy()
		o.session = nil
	}
	o.pipeline = nil
	o.loaded = false
	return nil
}

// HashEmbedder is a deterministic feature-hashing embedder. It captures
// token overlap well enough for short context descriptions and requires
// no model download.
type HashEmbedder struct {
	dimension int
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	return &HashEmbedder{dimension: dimension}
}

func (h *HashEmbedder) Dimension() int {
	return h.dimension
}

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dimension)

	tokens := tokenize(text)
	for _, tok := range tokens {
		hash := fnvHash(tok)
		// Spread each token across four slots with alternating signs to
		// reduce collisions.
		for i := 0; i < 4; i++ {
			slot := int((hash >> (i * 16)) % uint64(h.dimension))
			sign := float32(1)
			if (hash>>(i*16+15))&1 == 1 {
				sign = -1
			}
			vec[slot] += sign
		}
	}

	normalize(vec)
	return vec, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func fnvHash(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

// CachedEmbedder memoizes text→vector lookups. Context descriptions repeat
// heavily (a handful of phrase buckets), so the hit rate is high.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

func NewCachedEmbedder(inner Embedder, size int) (*CachedEmbedder, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

func (c *CachedEmbedder) Dimension() int {
	return c.inner.Dimension()
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Add(text, vec)
	return vec, nil
}
