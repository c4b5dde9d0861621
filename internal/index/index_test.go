package index

import (
	"context"
	"strings"
	"testing"
	"time"
)

type stubEmbedder struct {
	calls int
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		// crude but deterministic: vector derived from text length and first byte
		var b float32
		if len(t) > 0 {
			b = float32(t[0])
		}
		vecs[i] = []float32{float32(len(t)), b, 1}
	}
	return vecs, nil
}

func TestSplitChunksBoundaries(t *testing.T) {
	cases := []struct {
		length int
		want   int
	}{
		{0, 0},
		{1, 1},
		{999, 1},
		{1000, 1},
		{1001, 2},
		{2500, 3},
	}
	for _, c := range cases {
		parts := splitChunks(strings.Repeat("x", c.length), ChunkSize)
		if len(parts) != c.want {
			t.Errorf("length %d: expected %d chunks, got %d", c.length, c.want, len(parts))
		}
		for i, p := range parts {
			if len(p) > ChunkSize {
				t.Errorf("length %d chunk %d exceeds %d chars", c.length, i, ChunkSize)
			}
		}
	}
}

func TestMakeChunksMetadata(t *testing.T) {
	now := time.Now()
	chunks := makeChunks("https://example.com/a", strings.Repeat("y", 2100), now)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Metadata.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, c.Metadata.ChunkIndex)
		}
		if c.Metadata.TotalChunks != 3 {
			t.Errorf("chunk %d total %d, expected 3", i, c.Metadata.TotalChunks)
		}
		if c.Metadata.Origin != OriginWebScrape {
			t.Errorf("chunk %d origin %q", i, c.Metadata.Origin)
		}
		if c.Metadata.URL != "https://example.com/a" {
			t.Errorf("chunk %d url %q", i, c.Metadata.URL)
		}
		if !strings.HasPrefix(c.ID, "doc_") || len(c.ID) != len("doc_")+16 {
			t.Errorf("chunk %d id %q not content-hash shaped", i, c.ID)
		}
	}
}

func TestIndexPagesIdempotent(t *testing.T) {
	ix, err := New(&stubEmbedder{}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	pages := map[string]string{
		"https://example.com/a": "the capital of france is paris, a city on the seine",
	}
	n1, err := ix.IndexPages(context.Background(), pages)
	if err != nil {
		t.Fatalf("first IndexPages failed: %v", err)
	}
	if n1 != 1 {
		t.Fatalf("expected 1 chunk, got %d", n1)
	}
	n2, err := ix.IndexPages(context.Background(), pages)
	if err != nil {
		t.Fatalf("second IndexPages failed: %v", err)
	}
	if n2 != 0 {
		t.Fatalf("re-index of identical content wrote %d chunks, expected 0", n2)
	}
	if ix.Size() != 1 {
		t.Fatalf("expected 1 distinct chunk, got %d", ix.Size())
	}
}

func TestQueryReturnsIndexedContent(t *testing.T) {
	ix, err := New(&stubEmbedder{}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_, err = ix.IndexPages(context.Background(), map[string]string{
		"https://example.com/paris":  "paris is the capital of france and its largest city",
		"https://example.com/whales": "blue whales are the largest animals to have ever lived",
	})
	if err != nil {
		t.Fatalf("IndexPages failed: %v", err)
	}

	res := ix.Query(context.Background(), "capital of france", 5)
	if !res.Success {
		t.Fatal("query on healthy index reported failure")
	}
	if len(res.Hits) == 0 {
		t.Fatal("expected at least one hit")
	}
	if !strings.Contains(res.Hits[0].Content, "paris") {
		t.Errorf("top hit does not mention paris: %q", res.Hits[0].Content)
	}
	for _, h := range res.Hits {
		if h.Distance <= 0 || h.Distance > 1 {
			t.Errorf("distance out of range: %f", h.Distance)
		}
		if h.Metadata.Origin != OriginWebScrape {
			t.Errorf("hit origin %q", h.Metadata.Origin)
		}
	}
}

func TestQueryEmptyIndex(t *testing.T) {
	ix, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	res := ix.Query(context.Background(), "anything", 5)
	if !res.Success {
		t.Fatal("empty index should still report success")
	}
	if len(res.Hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(res.Hits))
	}
}
