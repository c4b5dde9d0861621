package index

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const (
	// ChunkSize is the fixed chunk length for indexed page text.
	ChunkSize = 1000

	// OriginWebScrape tags chunks produced from scraped pages.
	OriginWebScrape = "web_scrape"
)

// Metadata travels with every chunk into the store and back out with hits.
type Metadata struct {
	URL         string    `json:"url"`
	ChunkIndex  int       `json:"chunk_index"`
	TotalChunks int       `json:"total_chunks"`
	Origin      string    `json:"origin"`
	Timestamp   time.Time `json:"timestamp"`
}

// Chunk is one bounded slice of scraped content. ID is derived from the
// content hash so re-indexing identical text lands on the same document.
type Chunk struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

func contentID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "doc_" + hex.EncodeToString(sum[:])[:16]
}

// splitChunks cuts text into fixed-size pieces. The final piece may be short;
// empty input yields nil.
func splitChunks(text string, size int) []string {
	if size <= 0 {
		size = ChunkSize
	}
	var out []string
	for len(text) > size {
		out = append(out, text[:size])
		text = text[size:]
	}
	if len(text) > 0 {
		out = append(out, text)
	}
	return out
}

// makeChunks produces the chunk set for one source URL at the given instant.
func makeChunks(url, text string, now time.Time) []Chunk {
	parts := splitChunks(text, ChunkSize)
	chunks := make([]Chunk, 0, len(parts))
	for i, p := range parts {
		chunks = append(chunks, Chunk{
			ID:      contentID(p),
			Content: p,
			Metadata: Metadata{
				URL:         url,
				ChunkIndex:  i,
				TotalChunks: len(parts),
				Origin:      OriginWebScrape,
				Timestamp:   now,
			},
		})
	}
	return chunks
}
