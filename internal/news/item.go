// Package news holds the data model shared by every pipeline stage.
package news

import "time"

// Item is one reported story. The JSON shape is the persisted batch
// format: one file per ISO week holding a plain array of these.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	PubDate     time.Time `json:"pub_date"`
	URL         string    `json:"url"`

	// AISummary is filled in by the enrichment pass and, when present,
	// supersedes Description for ranking and summarization.
	AISummary string `json:"ai_summary,omitempty"`
	// AISummaryFailed marks items the enricher gave up on, so a later
	// run does not retry them.
	AISummaryFailed bool `json:"ai_summary_failed,omitempty"`
}

// Richness is a proxy for information density: the length of the
// enrichment text, 0 when the item was never enriched.
func (it Item) Richness() int {
	return len(it.AISummary)
}

// SourceText returns the text summarization should work from.
func (it Item) SourceText() string {
	if it.AISummary != "" {
		return it.AISummary
	}
	return it.Description
}

// GroupByCategory buckets items under their category label, preserving
// input order inside each bucket. Items without a label fall under
// "Uncategorized".
func GroupByCategory(items []Item) map[string][]Item {
	grouped := make(map[string][]Item)
	for _, it := range items {
		category := it.Category
		if category == "" {
			category = "Uncategorized"
		}
		grouped[category] = append(grouped[category], it)
	}
	return grouped
}
