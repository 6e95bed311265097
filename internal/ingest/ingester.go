package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/bapsim/agent/internal/retrieval"
)

// PassageEmbedder produces passage vectors for chunks in index order.
type PassageEmbedder interface {
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)
}

// RecordInserter persists embedded passages.
type RecordInserter interface {
	Insert(records []retrieval.Record) error
}

// Ingester chunks documents, embeds the chunks, and writes them to the
// vector store.
type Ingester struct {
	embedder PassageEmbedder
	store    RecordInserter
	size     int
	overlap  int
}

// NewIngester creates an Ingester. Non-positive size or overlap fall back to
// the package defaults.
func NewIngester(embedder PassageEmbedder, store RecordInserter, chunkSize, chunkOverlap int) *Ingester {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap <= 0 {
		chunkOverlap = defaultChunkOverlap
	}
	return &Ingester{
		embedder: embedder,
		store:    store,
		size:     chunkSize,
		overlap:  chunkOverlap,
	}
}

// IngestText indexes one document body under docID/title and returns the
// number of chunks stored.
func (in *Ingester) IngestText(ctx context.Context, docID, title, text string) (int, error) {
	if strings.TrimSpace(docID) == "" {
		return 0, fmt.Errorf("doc id is required")
	}

	chunks := Chunk(text, in.size, in.overlap)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document %s has no indexable text", docID)
	}

	vectors, err := in.embedder.EmbedPassages(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embedding %d chunks of %s: %w", len(chunks), docID, err)
	}

	records := make([]retrieval.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = retrieval.Record{
			ID:         uuid.NewString(),
			DocID:      docID,
			Title:      title,
			ChunkIndex: i,
			Text:       chunk,
			Embedding:  vectors[i],
		}
	}

	if err := in.store.Insert(records); err != nil {
		return 0, fmt.Errorf("storing %d records of %s: %w", len(records), docID, err)
	}

	slog.Info("document indexed", "doc_id", docID, "chunks", len(records))
	return len(records), nil
}

// IngestFile reads a document from disk and indexes it. The file name (sans
// extension) becomes the document id; title overrides the derived one when
// non-empty.
func (in *Ingester) IngestFile(ctx context.Context, path, title string) (int, error) {
	derived, text, err := ReadDocument(path)
	if err != nil {
		return 0, err
	}
	if title == "" {
		title = derived
	}
	return in.IngestText(ctx, derived, title, text)
}
