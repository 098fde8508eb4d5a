// Package enrich fetches full article bodies for a week's batch and
// attaches AI summaries to the items. Extraction is governed by a
// per-domain CSS selector rule set from the config.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"weeklydigest/internal/news"
	"weeklydigest/internal/store"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Enricher struct {
	client *http.Client
	gen    Generator
	store  *store.Store

	// sources maps hostname -> CSS selector of the article body.
	sources map[string]string
	delay   time.Duration
}

func New(gen Generator, st *store.Store, sources map[string]string, timeout, delay time.Duration) *Enricher {
	return &Enricher{
		client:  &http.Client{Timeout: timeout},
		gen:     gen,
		store:   st,
		sources: sources,
		delay:   delay,
	}
}

// EnrichWeek processes every item of the week's batch that has neither
// an ai_summary nor a previous failure mark. The batch is rewritten in
// full after each item, so progress survives an interrupted run, and a
// fixed delay separates consecutive fetches.
func (e *Enricher) EnrichWeek(ctx context.Context, year, week int) error {
	items, _, err := e.store.Load(year, week)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		slog.Info("no batch to enrich", "year", year, "week", week)
		return nil
	}

	var pending []string
	for _, it := range items {
		if it.AISummary == "" && !it.AISummaryFailed {
			pending = append(pending, it.ID)
		}
	}
	if len(pending) == 0 {
		slog.Info("no articles to process", "year", year, "week", week)
		return nil
	}
	slog.Info("enriching batch", "year", year, "week", week, "pending", len(pending))

	processed := 0
	for n, id := range pending {
		idx := indexByID(items, id)
		if idx < 0 {
			continue
		}
		it := items[idx]

		content := e.fetchContent(ctx, it.URL)
		if content == "" {
			items[idx].AISummaryFailed = true
			slog.Error("failed to fetch article content", "title", it.Title, "url", it.URL)
		} else {
			analysis, err := e.gen.Generate(ctx, analysisPrompt(it.Title, content))
			if err != nil {
				items[idx].AISummaryFailed = true
				slog.Error("article analysis failed", "title", it.Title, "error", err)
			} else {
				items[idx].AISummary = strings.TrimSpace(analysis)
				processed++
				slog.Info("article enriched", "title", it.Title, "done", processed, "of", len(pending))
			}
		}

		if err := e.store.Save(year, week, items); err != nil {
			return fmt.Errorf("save enriched batch: %w", err)
		}

		if n < len(pending)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.delay):
			}
		}
	}

	slog.Info("enrichment complete", "processed", processed, "of", len(pending))
	return nil
}

func indexByID(items []news.Item, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// fetchContent pulls the article body for pageURL, or "" when the domain
// has no extraction rule or the page does not cooperate.
func (e *Enricher) fetchContent(ctx context.Context, pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		slog.Warn("article URL is not parseable", "url", pageURL)
		return ""
	}

	selector, ok := e.sources[parsed.Host]
	if !ok {
		slog.Warn("no scraping configuration for domain", "domain", parsed.Host)
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		slog.Error("error fetching article", "url", pageURL, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Error("article fetch returned error status", "url", pageURL, "status", resp.StatusCode)
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		slog.Error("error parsing article HTML", "url", pageURL, "error", err)
		return ""
	}

	body := doc.Find(selector).First()
	if body.Length() == 0 {
		slog.Warn("content selector not found", "url", pageURL, "selector", selector)
		return ""
	}
	return strings.TrimSpace(body.Text())
}

func analysisPrompt(title, content string) string {
	return "Pateik glaustą ir informatyvią straipsnio santrauką (apie 150 žodžių), " +
		"išryškindamas svarbiausius faktus ir įžvalgas. " +
		"Santrauka turi būti aiški, nuosekli ir apimti esminius straipsnio aspektus.\n\n" +
		fmt.Sprintf("Straipsnio pavadinimas: %s\n\nTurinys: %s", title, content)
}
