package research

import (
	"context"
	"net/url"
	"strings"

	searchmodels "github.com/mohammad-safakhou/deepresearch/tools/websearch/models"
)

const (
	webSearchLimit     = 10
	scrapeLimit        = 5 // top-K URLs fetched per research
	scrapeWorkers      = 5
	imageKeep          = 3
	videoKeep          = 2
	videoDetailWorkers = 2
	newsDomainCap      = 5
	mediaSearchLimit   = 10
)

// webSearch is the one mandatory retrieval step. An empty result set is a
// hard failure surfaced to the caller as a terminal error.
func (o *Orchestrator) webSearch(ctx context.Context, query string) ([]searchmodels.Result, error) {
	results, err := o.searcher.Web(ctx, query, webSearchLimit)
	if err != nil {
		o.logger.Printf("web search failed: %v", err)
		return nil, errNoResults
	}
	if len(results) == 0 {
		return nil, errNoResults
	}
	return results, nil
}

// scrape fetches the top-K result URLs concurrently. Per-URL failures are
// dropped, never propagated; the returned order preserves input URL order.
func (o *Orchestrator) scrape(ctx context.Context, results []searchmodels.Result) (map[string]string, []string) {
	var urls []string
	for _, r := range results {
		if len(urls) >= scrapeLimit {
			break
		}
		urls = append(urls, r.URL)
	}

	pages, order, suppressed := collect(ctx, urls, scrapeWorkers, func(ctx context.Context, u string) (string, error) {
		res, err := o.fetcher.Exec(ctx, u)
		if err != nil {
			return "", err
		}
		return res.Text, nil
	})
	for _, e := range suppressed {
		o.logger.Printf("scrape dropped %s: %v", e.Key, e.Err)
	}
	return pages, order
}

// searchImages keeps the top hits by provider rank. Best-effort.
func (o *Orchestrator) searchImages(ctx context.Context, query string) []searchmodels.ImageItem {
	items, err := o.searcher.Images(ctx, query, mediaSearchLimit)
	if err != nil {
		o.logger.Printf("image search failed, continuing without images: %v", err)
		return nil
	}
	if len(items) > imageKeep {
		items = items[:imageKeep]
	}
	return items
}

// searchNews dedupes by domain (first seen per domain wins) and caps the
// list. Best-effort.
func (o *Orchestrator) searchNews(ctx context.Context, query string) []searchmodels.NewsItem {
	items, err := o.searcher.News(ctx, query, mediaSearchLimit)
	if err != nil {
		o.logger.Printf("news search failed, continuing without news: %v", err)
		return nil
	}
	seen := map[string]bool{}
	var out []searchmodels.NewsItem
	for _, it := range items {
		d := toDomain(it.URL)
		if d != "" && seen[d] {
			continue
		}
		if d != "" {
			seen[d] = true
		}
		out = append(out, it)
		if len(out) >= newsDomainCap {
			break
		}
	}
	return out
}

// searchVideos keeps the top hits and enriches them with details and
// transcripts through a bounded fan-out. Everything here is best-effort.
func (o *Orchestrator) searchVideos(ctx context.Context, query string) []VideoDetail {
	hits, err := o.videos.Search(ctx, query, mediaSearchLimit)
	if err != nil {
		o.logger.Printf("video search failed, continuing without videos: %v", err)
		return nil
	}
	if len(hits) > videoKeep {
		hits = hits[:videoKeep]
	}

	byURL := make(map[string]searchmodels.VideoItem, len(hits))
	var urls []string
	for _, h := range hits {
		byURL[h.URL] = h
		urls = append(urls, h.URL)
	}
	details, _, suppressed := collect(ctx, urls, videoDetailWorkers, func(ctx context.Context, u string) (VideoDetail, error) {
		item := byURL[u]
		enriched, err := o.videos.Details(ctx, item)
		if err != nil {
			enriched = item // keep the plain hit
		}
		transcript, err := o.videos.Transcript(ctx, enriched)
		if err != nil {
			transcript = ""
		}
		return VideoDetail{VideoItem: enriched, Transcript: transcript}, nil
	})
	for _, e := range suppressed {
		o.logger.Printf("video detail dropped %s: %v", e.Key, e.Err)
	}

	out := make([]VideoDetail, 0, len(hits))
	for _, h := range hits { // preserve provider rank
		if d, ok := details[h.URL]; ok {
			out = append(out, d)
		}
	}
	return out
}

func toDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
