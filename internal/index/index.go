package index

import (
	"context"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
)

const rrfK = 60 // reciprocal-rank-fusion constant

// Embedder is the slice of the generation provider the index needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Hit is one retrieval result. Distance is 1/(1+score): lower is closer.
type Hit struct {
	Content  string   `json:"content"`
	Distance float64  `json:"distance"`
	Metadata Metadata `json:"metadata"`
}

// QueryResult reports store lookups without raising: a failed store leaves
// Hits empty and Success false, and the caller falls back to raw content.
type QueryResult struct {
	Success bool  `json:"success"`
	Hits    []Hit `json:"hits"`
}

type embedVec struct {
	docID string
	vec   []float32
}

// Index is an in-memory retrieval store: BM25 over a mem-only bleve index
// fused with embedding vectors by reciprocal rank fusion. Embedding failures
// degrade to BM25-only, never fail an upsert or query.
type Index struct {
	mu       sync.RWMutex
	bleve    bleve.Index
	meta     map[string]Chunk
	vectors  []embedVec
	embedder Embedder
	logger   *log.Logger
	now      func() time.Time
}

func New(embedder Embedder, logger *log.Logger) (*Index, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[INDEX] ", log.LstdFlags)
	}
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{
		bleve:    idx,
		meta:     make(map[string]Chunk),
		embedder: embedder,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// IndexPages chunks every page and upserts the chunks. Returns the number of
// chunks written; chunks whose content hash is already present are skipped,
// so indexing the same page twice is a no-op.
func (ix *Index) IndexPages(ctx context.Context, pages map[string]string) (int, error) {
	urls := make([]string, 0, len(pages))
	for u := range pages {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	now := ix.now()
	var fresh []Chunk
	ix.mu.Lock()
	for _, u := range urls {
		for _, c := range makeChunks(u, pages[u], now) {
			if _, seen := ix.meta[c.ID]; seen {
				continue
			}
			if err := ix.bleve.Index(c.ID, c); err != nil {
				ix.mu.Unlock()
				return 0, err
			}
			ix.meta[c.ID] = c
			fresh = append(fresh, c)
		}
	}
	ix.mu.Unlock()

	if len(fresh) == 0 {
		return 0, nil
	}
	if ix.embedder != nil {
		texts := make([]string, len(fresh))
		for i, c := range fresh {
			texts[i] = c.Content
		}
		vecs, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			ix.logger.Printf("embedding failed, indexing BM25-only: %v", err)
		} else {
			ix.mu.Lock()
			for i, c := range fresh {
				if i < len(vecs) {
					ix.vectors = append(ix.vectors, embedVec{docID: c.ID, vec: vecs[i]})
				}
			}
			ix.mu.Unlock()
		}
	}
	return len(fresh), nil
}

// Query runs a fused nearest-neighbor lookup. Store errors are absorbed into
// an unsuccessful empty result.
func (ix *Index) Query(ctx context.Context, q string, k int) QueryResult {
	if k <= 0 || k > 50 {
		k = 5
	}

	bmHits, err := ix.bm25(q, k)
	if err != nil {
		ix.logger.Printf("bm25 query failed: %v", err)
		return QueryResult{Success: false}
	}
	vecHits := ix.vector(ctx, q, k)

	fused := fuseRRF(bmHits, vecHits, k)
	hits := make([]Hit, 0, len(fused))
	ix.mu.RLock()
	for _, f := range fused {
		c, ok := ix.meta[f.docID]
		if !ok {
			continue
		}
		hits = append(hits, Hit{
			Content:  c.Content,
			Distance: 1.0 / (1.0 + f.score),
			Metadata: c.Metadata,
		})
	}
	ix.mu.RUnlock()
	return QueryResult{Success: true, Hits: hits}
}

// Size reports the number of distinct chunks held.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.meta)
}

type rankedHit struct {
	docID string
	score float64
	rank  int
}

func (ix *Index) bm25(q string, k int) ([]rankedHit, error) {
	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, k*3, 0, false)
	res, err := ix.bleve.Search(req)
	if err != nil {
		return nil, err
	}
	var out []rankedHit
	for i, hit := range res.Hits {
		out = append(out, rankedHit{docID: hit.ID, score: hit.Score, rank: i + 1})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func (ix *Index) vector(ctx context.Context, q string, k int) []rankedHit {
	if ix.embedder == nil {
		return nil
	}
	qvecs, err := ix.embedder.Embed(ctx, []string{q})
	if err != nil || len(qvecs) == 0 {
		if err != nil {
			ix.logger.Printf("query embedding failed, BM25-only: %v", err)
		}
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	scored := make([]rankedHit, 0, len(ix.vectors))
	for _, v := range ix.vectors {
		scored = append(scored, rankedHit{docID: v.docID, score: cosine(qvecs[0], v.vec)})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > k {
		scored = scored[:k]
	}
	for i := range scored {
		scored[i].rank = i + 1
	}
	return scored
}

func fuseRRF(a, b []rankedHit, k int) []rankedHit {
	m := map[string]*rankedHit{}
	add := func(list []rankedHit) {
		for _, h := range list {
			x, ok := m[h.docID]
			if !ok {
				m[h.docID] = &rankedHit{docID: h.docID}
				x = m[h.docID]
			}
			x.score += 1.0 / float64(rrfK+h.rank)
		}
	}
	add(a)
	add(b)

	out := make([]rankedHit, 0, len(m))
	for _, v := range m {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].docID < out[j].docID
	})
	if len(out) > k {
		out = out[:k]
	}
	for i := range out {
		out[i].rank = i + 1
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
