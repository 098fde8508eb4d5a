// Package app wires the pipeline phases together: ingestion, enrichment
// and the weekly digest run.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"weeklydigest/internal/config"
	"weeklydigest/internal/dedup"
	"weeklydigest/internal/enrich"
	"weeklydigest/internal/feed"
	"weeklydigest/internal/gemini"
	"weeklydigest/internal/mailer"
	"weeklydigest/internal/metrics"
	"weeklydigest/internal/news"
	"weeklydigest/internal/rank"
	"weeklydigest/internal/store"
	"weeklydigest/internal/summary"
)

// Oracle bundles the two capabilities the digest run needs from the
// external model service.
type Oracle interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

const digestSubject = "Savaitės naujienų apžvalga"

// RunScrape ingests every configured feed into the current week's batch.
// A feed that stays unreachable through its retry budget contributes
// zero items; the rest of the run is unaffected.
func RunScrape(ctx context.Context, cfg *config.Config) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	year, week := store.CurrentYearWeek(loc)
	start, end := store.WeekRange(year, week, loc)
	st := store.New(cfg.BaseFolder)

	items, ids, err := st.Load(year, week)
	if err != nil {
		return err
	}

	ingestor := feed.NewIngestor(cfg.RequestTimeout(), cfg.RetryCount, cfg.RetryDelay())

	// Deterministic feed order; one fixed pause between feeds to stay
	// polite with the upstream servers.
	categories := make([]string, 0, len(cfg.Categories))
	for category := range cfg.Categories {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	totalAdded := 0
	for i, category := range categories {
		scraped := ingestor.Scrape(ctx, cfg.Categories[category], category, start, end)

		var added int
		items, added = store.Merge(items, ids, scraped)
		totalAdded += added

		if i < len(categories)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.FeedDelay()):
			}
		}
	}

	if err := st.Save(year, week, items); err != nil {
		return err
	}

	metrics.Global.AddItemsMerged(totalAdded)
	metrics.Global.SetLastRun()
	slog.Info("scrape run complete", "year", year, "week", week,
		"new_items", totalAdded, "batch_size", len(items))
	return nil
}

// RunEnrich attaches AI summaries to the current week's batch.
func RunEnrich(ctx context.Context, cfg *config.Config) error {
	if !cfg.Enrichment.Enabled {
		slog.Info("content enrichment is disabled")
		return nil
	}
	if err := cfg.ValidateOracle(); err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	oracle, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.EmbeddingModel)
	if err != nil {
		return err
	}
	defer oracle.Close()

	st := store.New(cfg.BaseFolder)
	year, week := store.CurrentYearWeek(loc)

	enricher := enrich.New(oracle, st, cfg.Enrichment.Sources, cfg.RequestTimeout(), cfg.ScrapingDelay())
	return enricher.EnrichWeek(ctx, year, week)
}

// BuildDigest runs dedup, ranking and summarization over the latest
// batch and returns one paragraph per category. Categories whose
// summarization fails are logged and skipped; the rest still come back.
func BuildDigest(ctx context.Context, cfg *config.Config, st *store.Store, oracle Oracle) (map[string]string, error) {
	path, err := st.LatestFile()
	if err != nil {
		return nil, err
	}
	items, _, err := st.LoadFile(path)
	if err != nil {
		return nil, err
	}
	slog.Info("building digest", "batch", path, "items", len(items))
	if len(items) == 0 {
		return map[string]string{}, nil
	}

	var embedder dedup.Embedder
	if cfg.Dedup.SemanticEnabled {
		embedder = oracle
	}
	deduplicator := dedup.New(dedup.Options{
		TitleThreshold:    cfg.Dedup.TitleThreshold,
		SemanticThreshold: cfg.Dedup.SemanticThreshold,
		Embedder:          embedder,
	})

	collapsed := deduplicator.Collapse(ctx, items)
	metrics.Global.AddDuplicatesCollapsed(len(items) - len(collapsed))
	slog.Info("deduplicated batch", "before", len(items), "after", len(collapsed))

	ranker := rank.New(oracle, rank.Options{
		Percentage: cfg.Ranking.Percentage,
		MinStories: cfg.Ranking.MinStories,
		MaxStories: cfg.Ranking.MaxStories,
	})
	summarizer := summary.New(oracle)

	grouped := news.GroupByCategory(collapsed)
	categories := make([]string, 0, len(grouped))
	for category := range grouped {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	summaries := make(map[string]string)
	for _, category := range categories {
		selected := ranker.Select(ctx, category, grouped[category])
		slog.Info("category ranked", "category", category,
			"candidates", len(grouped[category]), "selected", len(selected))

		text, err := summarizer.Summarize(ctx, category, selected)
		if err != nil {
			// Recorded as unprocessed; the remaining categories still run.
			slog.Error("category summarization failed", "category", category, "error", err)
			metrics.Global.IncrementSummariesFailed()
			continue
		}
		summaries[category] = text
		metrics.Global.IncrementSummariesGenerated()
	}
	return summaries, nil
}

// RunDigest builds the digest from the latest batch and emails it.
func RunDigest(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateOracle(); err != nil {
		return err
	}
	if err := cfg.ValidateMail(); err != nil {
		return err
	}

	oracle, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.EmbeddingModel)
	if err != nil {
		return err
	}
	defer oracle.Close()

	st := store.New(cfg.BaseFolder)
	summaries, err := BuildDigest(ctx, cfg, st, oracle)
	if err != nil {
		metrics.Global.SetError(err.Error())
		return err
	}
	if len(summaries) == 0 {
		return fmt.Errorf("no category produced a summary")
	}

	m := mailer.New(cfg.MailgunDomain, cfg.MailgunAPIKey,
		cfg.SenderName, cfg.SenderEmail, cfg.RecipientEmail)
	if err := m.Send(ctx, digestSubject, mailer.BuildDigestHTML(summaries)); err != nil {
		metrics.Global.SetError(err.Error())
		return err
	}

	metrics.Global.IncrementEmailsSent()
	metrics.Global.SetLastRun()
	slog.Info("digest run complete", "categories", len(summaries))
	return nil
}
