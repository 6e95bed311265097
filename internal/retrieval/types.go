package retrieval

// Source identifies where a retrieved passage came from.
type Source struct {
	DocID      string `json:"doc_id"`
	Title      string `json:"title"`
	ChunkIndex int    `json:"chunk_index"`
}

// Hit is one retrieved passage with its similarity score. Results are
// ordered by descending score.
type Hit struct {
	Text   string  `json:"text"`
	Score  float32 `json:"score"`
	Source Source  `json:"source"`
}

// Record is a passage row as stored in the vector index.
type Record struct {
	ID         string
	DocID      string
	Title      string
	ChunkIndex int
	Text       string
	Embedding  []float32
}
