package webfetch

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/deepresearch/tools/webfetch/chromedp"
	"github.com/mohammad-safakhou/deepresearch/tools/webfetch/models"
)

const (
	DefaultTimeoutMS = 15000
	MaxCharsDefault  = 20000
)

// Fetcher renders a URL and returns its readable text. A non-nil error means
// the page yielded nothing usable; batch callers drop the URL and move on.
type Fetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

type FetcherType string

const (
	ChromedpFetcherType FetcherType = "chromedp"
)

func NewFetcher(fetcherType FetcherType, timeoutMS time.Duration, maxChars int) (Fetcher, error) {
	if timeoutMS <= 0 {
		timeoutMS = DefaultTimeoutMS
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}

	switch fetcherType {
	case ChromedpFetcherType:
		return &chromedp.Fetch{TimeoutMS: timeoutMS, MaxChars: maxChars}, nil
	default:
		return nil, fmt.Errorf("unsupported fetcher type: %s", fetcherType)
	}
}
