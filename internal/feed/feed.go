// Package feed fetches and parses one syndication feed into NewsItems.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"weeklydigest/internal/metrics"
	"weeklydigest/internal/news"
	"weeklydigest/internal/retry"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Ingestor downloads feeds with a bounded retry budget and turns their
// items into NewsItems.
type Ingestor struct {
	client  *http.Client
	parser  *gofeed.Parser
	retries int
	delay   time.Duration
}

func NewIngestor(timeout time.Duration, retries int, delay time.Duration) *Ingestor {
	return &Ingestor{
		client:  &http.Client{Timeout: timeout},
		parser:  gofeed.NewParser(),
		retries: retries,
		delay:   delay,
	}
}

// Scrape fetches feedURL and returns the items published inside
// [start, end), labeled with category. Fetch failures are retried with a
// fixed delay; when the budget is exhausted the feed contributes zero
// items and the run moves on. Malformed items are dropped one by one,
// never the whole feed.
func (in *Ingestor) Scrape(ctx context.Context, feedURL, category string, start, end time.Time) []news.Item {
	var body string
	err := retry.WithRetry(ctx, retry.Config{MaxAttempts: in.retries, Delay: in.delay}, func() error {
		var fetchErr error
		body, fetchErr = in.fetch(ctx, feedURL)
		if fetchErr != nil {
			slog.Error("feed fetch failed", "url", feedURL, "error", fetchErr)
		}
		return fetchErr
	})
	if err != nil {
		slog.Error("feed unavailable this run", "url", feedURL, "attempts", in.retries)
		metrics.Global.IncrementFeedsFailed()
		return nil
	}

	parsed, err := in.parser.ParseString(body)
	if err != nil {
		slog.Error("feed did not parse", "url", feedURL, "error", err)
		metrics.Global.IncrementFeedsFailed()
		return nil
	}

	var items []news.Item
	for _, raw := range parsed.Items {
		it, ok := convertItem(raw, category, start, end)
		if !ok {
			continue
		}
		items = append(items, it)
	}

	slog.Info("feed scraped", "url", feedURL, "category", category, "items", len(items))
	metrics.Global.AddItemsIngested(len(items))
	return items
}

func (in *Ingestor) fetch(ctx context.Context, feedURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := in.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("feed %s: status %d", feedURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read feed body: %w", err)
	}
	return string(data), nil
}

// convertItem maps one feed entry to a NewsItem. Items without a
// resolvable URL or a parsable publication time, or outside [start, end),
// are silently excluded.
func convertItem(raw *gofeed.Item, category string, start, end time.Time) (news.Item, bool) {
	id := strings.TrimSpace(raw.GUID)
	link := strings.TrimSpace(raw.Link)

	url := link
	if url == "" {
		// A guid that is itself an absolute URL still gives us a page
		// to enrich from.
		if strings.HasPrefix(id, "http") {
			url = id
		} else {
			return news.Item{}, false
		}
	}
	if id == "" {
		id = url
	}

	if raw.PublishedParsed == nil {
		return news.Item{}, false
	}
	pub := raw.PublishedParsed.In(start.Location())
	if pub.Before(start) || !pub.Before(end) {
		return news.Item{}, false
	}

	return news.Item{
		ID:          id,
		Title:       StripHTML(raw.Title),
		Description: StripHTML(raw.Description),
		Category:    category,
		PubDate:     pub,
		URL:         url,
	}, true
}

// StripHTML removes markup tags and trims the result. Descriptions are
// stored as plain text.
func StripHTML(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}
