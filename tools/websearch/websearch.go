package websearch

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/deepresearch/tools/websearch/brave"
	"github.com/mohammad-safakhou/deepresearch/tools/websearch/models"
	"github.com/mohammad-safakhou/deepresearch/tools/websearch/serper"
)

// Searcher covers the retrieval modalities the pipeline fans out over.
// Every method may return an empty slice; callers decide whether that is
// fatal (web) or degradable (news, images, video).
type Searcher interface {
	Web(ctx context.Context, q string, k int) ([]models.Result, error)
	News(ctx context.Context, q string, k int) ([]models.NewsItem, error)
	Images(ctx context.Context, q string, k int) ([]models.ImageItem, error)
	Videos(ctx context.Context, q string, k int) ([]models.VideoItem, error)
}

type Provider string

const (
	BraveProvider  Provider = "brave"
	SerperProvider Provider = "serper"
)

func NewSearcher(provider Provider, apiKey string) (Searcher, error) {
	switch provider {
	case BraveProvider:
		return brave.Search{ApiKey: apiKey}, nil
	case SerperProvider:
		return serper.Search{ApiKey: apiKey}, nil
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", provider)
	}
}
