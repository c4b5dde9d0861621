package research

import (
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/deepresearch/internal/index"
)

const (
	contextTopSources = 3
	contextSnippetCap = 500
	contextRawCap     = 300

	noSourcesPlaceholder = "No specific sources found, but conducting research based on general knowledge."
)

// assembleContext builds the synthesizer's context with a strict priority
// fallback: store hits, then scraped snippets, then raw search snippets,
// then the general-knowledge placeholder.
//
// The ambiguity gate fires only when the store and the scraper both came up
// empty AND the analyzer flagged the query unclear — raw search snippets do
// not rescue an unclear query. That asymmetry mirrors the behavior this
// service replaces and is deliberate.
func (o *Orchestrator) assembleContext(rag index.QueryResult, batch *RetrievalBatch, analysis AnalysisResult) (string, error) {
	hasStoreHits := rag.Success && len(rag.Hits) > 0
	hasScraped := len(batch.ScrapedOrder) > 0

	if !hasStoreHits && !hasScraped && !analysis.IsClear {
		return "", errUnclear
	}

	var parts []string
	switch {
	case hasStoreHits:
		for i, h := range rag.Hits {
			if i >= contextTopSources {
				break
			}
			parts = append(parts, fmt.Sprintf("Source: %s", truncate(h.Content, contextSnippetCap)))
		}
	case hasScraped:
		for i, u := range batch.ScrapedOrder {
			if i >= contextTopSources {
				break
			}
			parts = append(parts, fmt.Sprintf("Source (%s): %s", u, truncate(batch.Scraped[u], contextSnippetCap)))
		}
	default:
		for i, r := range batch.WebResults {
			if i >= contextTopSources {
				break
			}
			if r.Title == "" && r.Snippet == "" {
				continue
			}
			parts = append(parts, fmt.Sprintf("Source: %s\n%s", r.Title, truncate(r.Snippet, contextRawCap)))
		}
	}

	if len(parts) == 0 {
		return noSourcesPlaceholder, nil
	}
	return strings.Join(parts, "\n\n"), nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
