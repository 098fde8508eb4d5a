// Package dedup collapses near-duplicate stories inside one batch,
// keeping the most informationally rich version of each.
package dedup

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"

	"weeklydigest/internal/news"
)

// Embedder produces a fixed-length vector for a piece of text. Optional:
// without one, deduplication runs on titles alone.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

const (
	DefaultTitleThreshold    = 0.8
	DefaultSemanticThreshold = 0.70
)

type Options struct {
	TitleThreshold    float64
	SemanticThreshold float64
	// Embedder enables the semantic gate when non-nil.
	Embedder Embedder
}

type Deduplicator struct {
	opts Options
}

func New(opts Options) *Deduplicator {
	if opts.TitleThreshold == 0 {
		opts.TitleThreshold = DefaultTitleThreshold
	}
	if opts.SemanticThreshold == 0 {
		opts.SemanticThreshold = DefaultSemanticThreshold
	}
	return &Deduplicator{opts: opts}
}

// Collapse returns items with near-duplicates removed. Items are walked
// richest-first (stable sort, ties keep input order) so the surviving
// representative of a duplicate group is always the one with the longest
// enrichment text. A candidate is dropped as soon as it matches any
// already-kept item by title similarity or, when an embedder is
// configured, by embedding cosine similarity.
func (d *Deduplicator) Collapse(ctx context.Context, items []news.Item) []news.Item {
	if len(items) == 0 {
		return nil
	}

	byRichness := make([]news.Item, len(items))
	copy(byRichness, items)
	sort.SliceStable(byRichness, func(i, j int) bool {
		return byRichness[i].Richness() > byRichness[j].Richness()
	})

	var kept []news.Item
	vectors := make(map[string][]float64)

	for _, candidate := range byRichness {
		duplicate := false
		for _, existing := range kept {
			if d.sameStory(ctx, candidate, existing, vectors) {
				slog.Debug("collapsed duplicate story",
					"dropped", candidate.Title, "kept", existing.Title)
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, candidate)
		}
	}
	return kept
}

func (d *Deduplicator) sameStory(ctx context.Context, a, b news.Item, vectors map[string][]float64) bool {
	if SimilarTitles(a.Title, b.Title, d.opts.TitleThreshold) {
		return true
	}
	if d.opts.Embedder == nil {
		return false
	}

	va := d.vector(ctx, a.Title, vectors)
	vb := d.vector(ctx, b.Title, vectors)
	return CosineSimilarity(va, vb) > d.opts.SemanticThreshold
}

func (d *Deduplicator) vector(ctx context.Context, title string, cache map[string][]float64) []float64 {
	if v, ok := cache[title]; ok {
		return v
	}
	v, err := d.opts.Embedder.Embed(ctx, title)
	if err != nil {
		slog.Warn("title embedding failed, skipping semantic check", "title", title, "error", err)
		v = nil
	}
	cache[title] = v
	return v
}

// SimilarTitles reports whether two titles read as the same story:
// the longest-common-subsequence ratio of the lowercased titles meets
// the threshold.
func SimilarTitles(a, b string, threshold float64) bool {
	return lcsRatio(strings.ToLower(a), strings.ToLower(b)) >= threshold
}

// lcsRatio is 2*LCS(a,b) / (len(a)+len(b)) over runes; 1.0 for two empty
// strings.
func lcsRatio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra)+len(rb) == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

// CosineSimilarity of two vectors. A zero, empty or mismatched vector
// yields 0, so a failed embedding can never trigger a match.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
