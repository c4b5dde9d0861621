package chromedp

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"
	"github.com/mohammad-safakhou/deepresearch/tools/webfetch/models"
)

type Fetch struct {
	TimeoutMS time.Duration // Timeout in milliseconds
	MaxChars  int           // Maximum characters to return from the article text
}

func (f Fetch) Exec(ctx context.Context, target string) (models.Result, error) {
	if strings.TrimSpace(target) == "" {
		return models.Result{}, errors.New("invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.TimeoutMS*time.Millisecond)
	defer cancel()
	t0 := time.Now()

	// Headless browsing
	html, err := fetchHTML(ctx, target)
	if err != nil {
		return models.Result{URL: target, Status: 599, RenderMS: int(time.Since(t0) / time.Millisecond)},
			fmt.Errorf("render %s: %w", target, err)
	}

	// Extract content using readability
	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(target))
	if err != nil {
		return models.Result{URL: target, Status: 200, RenderMS: int(time.Since(t0) / time.Millisecond)},
			fmt.Errorf("extract %s: %w", target, err)
	}
	text := strings.TrimSpace(article.TextContent)
	if f.MaxChars > 0 && len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}
	if text == "" {
		return models.Result{URL: target, Status: 200, RenderMS: int(time.Since(t0) / time.Millisecond)},
			fmt.Errorf("empty article text for %s", target)
	}

	// Hash raw HTML
	sum := sha1.Sum([]byte(html))

	return models.Result{
		URL:      target,
		Title:    strings.TrimSpace(article.Title),
		Byline:   strings.TrimSpace(article.Byline),
		Text:     text,
		TopImage: article.Image,
		HTMLHash: hex.EncodeToString(sum[:]),
		Status:   200,
		RenderMS: int(time.Since(t0) / time.Millisecond),
	}, nil
}

func fetchHTML(ctx context.Context, target string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("DeepResearchAgent/1.0 (+contact@example.com)"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
