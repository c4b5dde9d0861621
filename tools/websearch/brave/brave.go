package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mohammad-safakhou/deepresearch/tools/websearch/models"
	"github.com/mohammad-safakhou/deepresearch/utils"
)

// Search talks to the Brave Search API.
// https://api.search.brave.com/app/documentation/web-search
type Search struct {
	ApiKey string
}

func (s Search) do(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.ApiKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("brave API returned status: %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s Search) Web(ctx context.Context, q string, k int) ([]models.Result, error) {
	url := fmt.Sprintf("https://api.search.brave.com/res/v1/web/search?q=%s&count=%d", utils.UrlQuery(q), k)
	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := s.do(ctx, url, &raw); err != nil {
		return nil, err
	}
	var out []models.Result
	for i, r := range raw.Web.Results {
		if i >= k {
			break
		}
		out = append(out, models.Result{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	return out, nil
}

func (s Search) News(ctx context.Context, q string, k int) ([]models.NewsItem, error) {
	url := fmt.Sprintf("https://api.search.brave.com/res/v1/news/search?q=%s&count=%d", utils.UrlQuery(q), k)
	var raw struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Snippet string `json:"description"`
			Age     string `json:"age"`
			MetaURL struct {
				Hostname string `json:"hostname"`
			} `json:"meta_url"`
			Thumbnail struct {
				Src string `json:"src"`
			} `json:"thumbnail"`
		} `json:"results"`
	}
	if err := s.do(ctx, url, &raw); err != nil {
		return nil, err
	}
	var out []models.NewsItem
	for i, r := range raw.Results {
		if i >= k {
			break
		}
		out = append(out, models.NewsItem{
			Title: r.Title, URL: r.URL, Snippet: r.Snippet,
			Source: r.MetaURL.Hostname, Thumbnail: r.Thumbnail.Src, Age: r.Age,
		})
	}
	return out, nil
}

func (s Search) Images(ctx context.Context, q string, k int) ([]models.ImageItem, error) {
	url := fmt.Sprintf("https://api.search.brave.com/res/v1/images/search?q=%s&count=%d", utils.UrlQuery(q), k)
	var raw struct {
		Results []struct {
			Title      string `json:"title"`
			URL        string `json:"url"`
			Properties struct {
				URL string `json:"url"`
			} `json:"properties"`
			Thumbnail struct {
				Src string `json:"src"`
			} `json:"thumbnail"`
		} `json:"results"`
	}
	if err := s.do(ctx, url, &raw); err != nil {
		return nil, err
	}
	var out []models.ImageItem
	for i, r := range raw.Results {
		if i >= k {
			break
		}
		out = append(out, models.ImageItem{
			Title: r.Title, URL: r.URL,
			ImageURL: r.Properties.URL, Thumbnail: r.Thumbnail.Src,
		})
	}
	return out, nil
}

func (s Search) Videos(ctx context.Context, q string, k int) ([]models.VideoItem, error) {
	url := fmt.Sprintf("https://api.search.brave.com/res/v1/videos/search?q=%s&count=%d", utils.UrlQuery(q), k)
	var raw struct {
		Results []struct {
			Title string `json:"title"`
			URL   string `json:"url"`
			Video struct {
				Duration string `json:"duration"`
				Views    int64  `json:"views"`
				Creator  string `json:"creator"`
			} `json:"video"`
			Thumbnail struct {
				Src string `json:"src"`
			} `json:"thumbnail"`
		} `json:"results"`
	}
	if err := s.do(ctx, url, &raw); err != nil {
		return nil, err
	}
	var out []models.VideoItem
	for i, r := range raw.Results {
		if i >= k {
			break
		}
		out = append(out, models.VideoItem{
			Title: r.Title, URL: r.URL, Creator: r.Video.Creator,
			Duration: r.Video.Duration, Thumbnail: r.Thumbnail.Src, Views: r.Video.Views,
		})
	}
	return out, nil
}
