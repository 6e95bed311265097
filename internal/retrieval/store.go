package retrieval

import (
	"container/heap"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
)

// SQLiteStore provides passage storage and brute-force cosine similarity
// search over the passage_vectors table. Good for index sizes in the tens of
// thousands; revisit with an ANN index if the corpus outgrows that.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an existing *sql.DB for vector operations. The
// passage_vectors table must already exist (created via storage migrations).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Insert adds passage records in a single transaction.
func (s *SQLiteStore) Insert(records []Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO passage_vectors (id, doc_id, title, chunk_index, text_chunk, embedding)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(r.ID, r.DocID, r.Title, r.ChunkIndex, r.Text, encodeVector(r.Embedding)); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting record %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// Count returns the number of indexed passages.
func (s *SQLiteStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM passage_vectors`).Scan(&n)
	return n, err
}

type candidate struct {
	id    string
	score float32
}

// Search scans all stored embeddings, keeping the topK highest cosine
// similarities in a min-heap, then fetches full rows only for the winners.
func (s *SQLiteStore) Search(vector []float32, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, nil
	}
	queryNorm := l2norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(`SELECT id, embedding FROM passage_vectors`)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	h := &candidateHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		buf, err = decodeVectorInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		score := cosine(vector, buf, queryNorm)
		if h.Len() < topK {
			heap.Push(h, candidate{id: id, score: score})
		} else if score > (*h)[0].score {
			(*h)[0] = candidate{id: id, score: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	ids := make([]any, h.Len())
	scores := make(map[string]float32, h.Len())
	for i := range ids {
		c := heap.Pop(h).(candidate)
		ids[i] = c.id
		scores[c.id] = c.score
	}

	query := `SELECT id, doc_id, title, chunk_index, text_chunk
		FROM passage_vectors WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	full, err := s.db.Query(query, ids...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-K passages: %w", err)
	}
	defer full.Close()

	var hits []Hit
	for full.Next() {
		var id string
		var hit Hit
		if err := full.Scan(&id, &hit.Source.DocID, &hit.Source.Title, &hit.Source.ChunkIndex, &hit.Text); err != nil {
			return nil, fmt.Errorf("scanning passage: %w", err)
		}
		hit.Score = scores[id]
		hits = append(hits, hit)
	}
	if err := full.Err(); err != nil {
		return nil, fmt.Errorf("iterating passages: %w", err)
	}

	// The IN query does not preserve score order.
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	return hits, nil
}

// encodeVector serializes a float32 slice to little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVectorInto decodes little-endian bytes into buf, reusing its backing
// array when large enough. A length that is not a multiple of 4 indicates
// corruption.
func decodeVectorInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

func l2norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes dot(a,b) / (aNorm * |b|) with aNorm precomputed.
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

// candidateHeap is a min-heap by score, used to track top-K during the scan.
type candidateHeap []candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return h[i].score < h[j].score }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
