package serper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/deepresearch/tools/websearch/models"
	"github.com/mohammad-safakhou/deepresearch/utils"
)

// Search talks to the Serper API (Google results).
// https://serper.dev/ docs
type Search struct {
	ApiKey string
}

func (s Search) do(ctx context.Context, endpoint string, q string, k int) (map[string]any, error) {
	body, _ := json.Marshal(map[string]any{"q": q, "num": k})
	req, err := http.NewRequestWithContext(ctx, "POST", "https://google.serper.dev/"+endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.ApiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper API returned status: %d", resp.StatusCode)
	}
	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (s Search) Web(ctx context.Context, q string, k int) ([]models.Result, error) {
	raw, err := s.do(ctx, "search", q, k)
	if err != nil {
		return nil, err
	}
	var out []models.Result
	if items, ok := raw["organic"].([]any); ok {
		for i, it := range items {
			if i >= k {
				break
			}
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, models.Result{
				Title: utils.Str(m["title"]), URL: utils.Str(m["link"]), Snippet: utils.Str(m["snippet"]),
			})
		}
	}
	return out, nil
}

func (s Search) News(ctx context.Context, q string, k int) ([]models.NewsItem, error) {
	raw, err := s.do(ctx, "news", q, k)
	if err != nil {
		return nil, err
	}
	var out []models.NewsItem
	if items, ok := raw["news"].([]any); ok {
		for i, it := range items {
			if i >= k {
				break
			}
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, models.NewsItem{
				Title: utils.Str(m["title"]), URL: utils.Str(m["link"]), Snippet: utils.Str(m["snippet"]),
				Source: utils.Str(m["source"]), Thumbnail: utils.Str(m["imageUrl"]), Age: utils.Str(m["date"]),
			})
		}
	}
	return out, nil
}

func (s Search) Images(ctx context.Context, q string, k int) ([]models.ImageItem, error) {
	raw, err := s.do(ctx, "images", q, k)
	if err != nil {
		return nil, err
	}
	var out []models.ImageItem
	if items, ok := raw["images"].([]any); ok {
		for i, it := range items {
			if i >= k {
				break
			}
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, models.ImageItem{
				Title: utils.Str(m["title"]), URL: utils.Str(m["link"]),
				ImageURL: utils.Str(m["imageUrl"]), Thumbnail: utils.Str(m["thumbnailUrl"]),
			})
		}
	}
	return out, nil
}

func (s Search) Videos(ctx context.Context, q string, k int) ([]models.VideoItem, error) {
	raw, err := s.do(ctx, "videos", q, k)
	if err != nil {
		return nil, err
	}
	var out []models.VideoItem
	if items, ok := raw["videos"].([]any); ok {
		for i, it := range items {
			if i >= k {
				break
			}
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, models.VideoItem{
				Title: utils.Str(m["title"]), URL: utils.Str(m["link"]),
				Creator: utils.Str(m["channel"]), Duration: utils.Str(m["duration"]),
				Thumbnail: utils.Str(m["imageUrl"]),
			})
		}
	}
	return out, nil
}
