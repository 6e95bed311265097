package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// E5-style models expect an instruction prefix distinguishing queries from
// indexed passages.
const (
	queryPrefix   = "query: "
	passagePrefix = "passage: "
)

// EmbedClient is the slice of the LLM client the embedder needs.
type EmbedClient interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Embedder generates query and passage embeddings with a fixed model.
type Embedder struct {
	client EmbedClient
	model  string
}

// NewEmbedder creates an Embedder using the given client and model name.
func NewEmbedder(client EmbedClient, model string) *Embedder {
	return &Embedder{client: client, model: model}
}

// EmbedQuery returns the embedding for a search query.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.Embed(ctx, e.model, queryPrefix+text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return vec, nil
}

// EmbedPassages returns embeddings for multiple passages, computed
// concurrently with bounded parallelism. Returns nil for empty input.
func (e *Embedder) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // bound concurrency to avoid overwhelming the endpoint

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.client.Embed(gCtx, e.model, passagePrefix+text)
			if err != nil {
				return fmt.Errorf("embedding passage %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
