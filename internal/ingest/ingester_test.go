package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bapsim/agent/internal/retrieval"
)

type fakeEmbedder struct {
	calls [][]string
	err   error
}

func (f *fakeEmbedder) EmbedPassages(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

type fakeInserter struct {
	records []retrieval.Record
	err     error
}

func (f *fakeInserter) Insert(records []retrieval.Record) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, records...)
	return nil
}

func TestIngestText(t *testing.T) {
	emb := &fakeEmbedder{}
	ins := &fakeInserter{}
	ing := NewIngester(emb, ins, 100, 20)

	text := strings.Repeat("후생관 운영 안내입니다. ", 30)
	n, err := ing.IngestText(context.Background(), "notice-1", "운영안내", text)
	if err != nil {
		t.Fatalf("IngestText: %v", err)
	}
	if n != len(ins.records) {
		t.Fatalf("returned %d, stored %d", n, len(ins.records))
	}
	if n < 2 {
		t.Fatalf("chunks = %d, want several", n)
	}

	seen := make(map[string]bool)
	for i, rec := range ins.records {
		if rec.DocID != "notice-1" || rec.Title != "운영안내" {
			t.Errorf("record %d = %+v", i, rec)
		}
		if rec.ChunkIndex != i {
			t.Errorf("record %d chunk index = %d", i, rec.ChunkIndex)
		}
		if rec.ID == "" || seen[rec.ID] {
			t.Errorf("record %d id not unique: %q", i, rec.ID)
		}
		seen[rec.ID] = true
		if len(rec.Embedding) == 0 {
			t.Errorf("record %d has no embedding", i)
		}
	}
}

func TestIngestText_EmptyDocRejected(t *testing.T) {
	ing := NewIngester(&fakeEmbedder{}, &fakeInserter{}, 0, 0)
	if _, err := ing.IngestText(context.Background(), "d", "t", "   "); err == nil {
		t.Error("expected error for empty document")
	}
	if _, err := ing.IngestText(context.Background(), "", "t", "text"); err == nil {
		t.Error("expected error for missing doc id")
	}
}

func TestIngestText_EmbedFailure(t *testing.T) {
	ing := NewIngester(&fakeEmbedder{err: errors.New("model down")}, &fakeInserter{}, 0, 0)
	if _, err := ing.IngestText(context.Background(), "d", "t", "some text"); err == nil {
		t.Error("expected embed error to surface")
	}
}

func TestIngestFile_Text(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hours.md")
	if err := os.WriteFile(path, []byte("후생관은 11시에 엽니다."), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	ins := &fakeInserter{}
	ing := NewIngester(&fakeEmbedder{}, ins, 0, 0)
	n, err := ing.IngestFile(context.Background(), path, "")
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if n != 1 {
		t.Fatalf("chunks = %d, want 1", n)
	}
	if ins.records[0].DocID != "hours" || ins.records[0].Title != "hours" {
		t.Errorf("record = %+v", ins.records[0])
	}
}

func TestIngestFile_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "menu.docx")
	os.WriteFile(path, []byte("x"), 0o644)

	ing := NewIngester(&fakeEmbedder{}, &fakeInserter{}, 0, 0)
	if _, err := ing.IngestFile(context.Background(), path, ""); err == nil {
		t.Error("expected error for unsupported format")
	}
}
