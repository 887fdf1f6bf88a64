package memory

import "context"

// EmbedPool bounds concurrent embedding work so CPU-heavy inference never
// starves interactive recommendation calls. Selection paths that need no
// embedding must not go through here.
type EmbedPool struct {
	embedder Embedder
	slots    chan struct{}
}

// NewEmbedPool wraps an embedder with a fixed concurrency cap.
func NewEmbedPool(embedder Embedder, concurrency int) *EmbedPool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &EmbedPool{
		embedder: embedder,
		slots:    make(chan struct{}, concurrency),
	}
}

func (p *EmbedPool) Dimension() int {
	return p.embedder.Dimension()
}

// Embed acquires a slot, runs the embedding, and releases the slot.
// Honors context cancellation while waiting.
func (p *EmbedPool) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.slots }()

	return p.embedder.Embed(ctx, text)
}
