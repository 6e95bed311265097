package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrNotReady signals that the vector index or embedding model is
// unavailable. Callers are expected to proceed without retrieval context
// rather than failing the whole turn.
var ErrNotReady = errors.New("retrieval not ready")

// Searcher is the vector-search slice of the store the service needs.
type Searcher interface {
	Search(vector []float32, topK int) ([]Hit, error)
	Count() (int, error)
}

// Service ties the embedder and vector store together. It is constructed
// once at process start and shared by every request; both dependencies are
// read-only after construction.
type Service struct {
	embedder *Embedder
	store    Searcher
}

// NewService creates a Service. Either dependency may be nil, in which case
// every call reports ErrNotReady.
func NewService(embedder *Embedder, store Searcher) *Service {
	return &Service{embedder: embedder, store: store}
}

// Ready reports whether the index is loaded and non-empty.
func (s *Service) Ready() bool {
	if s.embedder == nil || s.store == nil {
		return false
	}
	n, err := s.store.Count()
	return err == nil && n > 0
}

// Search embeds the (normalized) query and returns the topK most similar
// passages, best first. Readiness is re-checked on every call, so an index
// built while the process runs is picked up without a restart.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]Hit, error) {
	if !s.Ready() {
		return nil, ErrNotReady
	}

	vec, err := s.embedder.EmbedQuery(ctx, normalizeQuery(query))
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := s.store.Search(vec, topK)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	return hits, nil
}

const blockSeparator = "\n---\n"

// AssembleContext concatenates formatted passage blocks in score order,
// stopping as soon as the next whole block would push the result past
// charBudget (counted in runes). Blocks are never cut mid-text.
func AssembleContext(hits []Hit, charBudget int) string {
	var sb strings.Builder
	used := 0
	for _, h := range hits {
		block := formatBlock(h)
		need := utf8.RuneCountInString(block)
		if used > 0 {
			need += utf8.RuneCountInString(blockSeparator)
		}
		if used+need > charBudget {
			break
		}
		if used > 0 {
			sb.WriteString(blockSeparator)
		}
		sb.WriteString(block)
		used += need
	}
	return sb.String()
}

func formatBlock(h Hit) string {
	label := h.Source.Title
	if label == "" {
		label = h.Source.DocID
	}
	if label == "" {
		label = "doc"
	}
	return fmt.Sprintf("[%s #chunk%d]\n%s\n", label, h.Source.ChunkIndex, h.Text)
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}
