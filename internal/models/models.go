package models

// Document represents one source file moving through the cleaning pipeline
type Document struct {
	SourceFile string   `json:"source_file"`
	Pages      []string `json:"pages,omitempty"`
	Text       string   `json:"text"`
}

// Chunk represents a window of cleaned document text
type Chunk struct {
	ID         string `json:"id"`
	SourceFile string `json:"source_file"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
}

// Metadata contains the provenance of an indexed chunk
type Metadata struct {
	SourceFile string `json:"source_file"`
	ChunkIndex int    `json:"chunk_index"`
	DocType    string `json:"doc_type"`
}

// IndexEntry is a chunk as persisted in the similarity store
type IndexEntry struct {
	ID       string    `json:"id"`
	Vector   []float32 `json:"-"`
	Text     string    `json:"text"`
	Metadata Metadata  `json:"metadata"`
}

// QueryHit is a single nearest-neighbour result, nearest first
type QueryHit struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Distance float64  `json:"distance"`
}

// QueryFilter narrows a similarity query
type QueryFilter struct {
	SourceFile string `json:"source_file,omitempty"`
}

// RetrievedSource is a deduplicated, truncated citation handed to the answer prompt
type RetrievedSource struct {
	SourceFile string `json:"source_file"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
}

// SourceKey identifies a chunk by its provenance
type SourceKey struct {
	SourceFile string
	ChunkIndex int
}

// Key returns the deduplication key of the source
func (s RetrievedSource) Key() SourceKey {
	return SourceKey{SourceFile: s.SourceFile, ChunkIndex: s.ChunkIndex}
}

// HeaderFooterSet holds the boilerplate lines detected for one document
type HeaderFooterSet struct {
	Headers map[string]struct{}
	Footers map[string]struct{}
}

// Contains reports whether line is a detected header or footer
func (s HeaderFooterSet) Contains(line string) bool {
	if _, ok := s.Headers[line]; ok {
		return true
	}
	_, ok := s.Footers[line]
	return ok
}

// Answer represents the response to a question
type Answer struct {
	Question  string            `json:"question"`
	Answer    string            `json:"answer"`
	Sources   []RetrievedSource `json:"sources"`
	Model     string            `json:"model,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// IngestReport summarises a completed ingest run
type IngestReport struct {
	Collection string `json:"collection"`
	Documents  int    `json:"documents"`
	Chunks     int    `json:"chunks"`
	Batches    int    `json:"batches"`
}

// CompletionRequest is a single system+user exchange sent to a completion service
type CompletionRequest struct {
	System      string  `json:"system"`
	User        string  `json:"user"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}
