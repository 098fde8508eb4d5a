// Package rank selects the bounded subset of a category's stories judged
// most newsworthy, asking the generation oracle and degrading to a
// deterministic ordering when the oracle fails.
package rank

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"weeklydigest/internal/metrics"
	"weeklydigest/internal/news"
)

// Generator is the text-generation oracle, injected at construction.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const (
	DefaultPercentage = 0.25
	DefaultMinStories = 7
	DefaultMaxStories = 14

	// promptExcerptRunes bounds how much enrichment text goes into the
	// scoring prompt per story.
	promptExcerptRunes = 300
)

type Options struct {
	Percentage float64
	MinStories int
	MaxStories int
}

type Ranker struct {
	gen  Generator
	opts Options
}

func New(gen Generator, opts Options) *Ranker {
	if opts.Percentage == 0 {
		opts.Percentage = DefaultPercentage
	}
	if opts.MinStories == 0 {
		opts.MinStories = DefaultMinStories
	}
	if opts.MaxStories == 0 {
		opts.MaxStories = DefaultMaxStories
	}
	return &Ranker{gen: gen, opts: opts}
}

// TargetStories computes the bounded selection size for n items.
func (r *Ranker) TargetStories(n int) int {
	target := int(math.Round(float64(n) * r.opts.Percentage))
	if target < r.opts.MinStories {
		target = r.opts.MinStories
	}
	if target > r.opts.MaxStories {
		target = r.opts.MaxStories
	}
	return target
}

// Select returns the target-sized ordered subset of items for one
// category. When the category already fits inside the target, the input
// comes back unchanged. Any oracle failure — transport error, empty
// response, unparseable response — falls back to the same deterministic
// ordering: publication time descending, truncated to the target.
func (r *Ranker) Select(ctx context.Context, category string, items []news.Item) []news.Item {
	if len(items) == 0 {
		return items
	}
	target := r.TargetStories(len(items))
	if len(items) <= target {
		return items
	}

	response, err := r.gen.Generate(ctx, buildPrompt(category, items))
	if err != nil {
		slog.Error("importance oracle failed, using date fallback",
			"category", category, "error", err)
		metrics.Global.IncrementRankFallbacks()
		return fallback(items, target)
	}

	sel, ok := parseSelection(response, len(items))
	if !ok {
		slog.Warn("importance response unparseable, using date fallback",
			"category", category)
		metrics.Global.IncrementRankFallbacks()
		return fallback(items, target)
	}

	return sel.apply(items, target)
}

// buildPrompt enumerates every story under a transient 1-based ordinal
// that the response refers back to.
func buildPrompt(category string, items []news.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a news editor picking the most important %q stories of the week.\n", category)
	b.WriteString("Rate the importance of each story from 1 (minor) to 10 (major).\n")
	b.WriteString("Respond with one line per story in the exact form id:score and nothing else.\n\n")

	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s", i+1, it.Title)
		if it.AISummary != "" {
			fmt.Fprintf(&b, "\n%s", truncateRunes(it.AISummary, promptExcerptRunes))
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// selection is the parsed oracle judgment: either an ordered list of
// chosen ordinals, or a score per ordinal. Exactly one side is set.
type selection struct {
	ordinals []int
	scores   map[int]int
}

// parseSelection tries the two accepted response grammars in turn:
// line-per-item "ordinal:score", then a comma-separated ordinal list.
// Both grammars ignore junk around valid entries; a response yielding
// not a single valid entry fails the parse entirely.
func parseSelection(response string, n int) (selection, bool) {
	if scores, ok := parseScores(response, n); ok {
		return selection{scores: scores}, true
	}
	if ordinals, ok := parseOrdinals(response, n); ok {
		return selection{ordinals: ordinals}, true
	}
	return selection{}, false
}

func parseScores(response string, n int) (map[int]int, bool) {
	scores := make(map[int]int)
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		ordinal, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		score, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil {
			continue
		}
		if ordinal < 1 || ordinal > n {
			continue
		}
		scores[ordinal] = score
	}
	return scores, len(scores) > 0
}

func parseOrdinals(response string, n int) ([]int, bool) {
	seen := make(map[int]bool)
	var ordinals []int
	for _, token := range strings.FieldsFunc(response, func(r rune) bool {
		return r == ',' || r == '\n' || r == ' ' || r == '\t'
	}) {
		ordinal, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil {
			return nil, false
		}
		if ordinal < 1 || ordinal > n || seen[ordinal] {
			continue
		}
		seen[ordinal] = true
		ordinals = append(ordinals, ordinal)
	}
	return ordinals, len(ordinals) > 0
}

// apply turns the parsed judgment into the final ordered subset. Scores
// rank every item by (score desc, publication time desc); ordinals are
// taken in the oracle's preference order. Either way a short result is
// padded with the not-yet-selected items in their original order.
func (sel selection) apply(items []news.Item, target int) []news.Item {
	var result []news.Item
	taken := make(map[int]bool)

	if sel.scores != nil {
		order := make([]int, len(items))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			sa, sb := sel.scores[order[a]+1], sel.scores[order[b]+1]
			if sa != sb {
				return sa > sb
			}
			return items[order[a]].PubDate.After(items[order[b]].PubDate)
		})
		for _, idx := range order {
			if len(result) >= target {
				break
			}
			result = append(result, items[idx])
			taken[idx] = true
		}
	} else {
		for _, ordinal := range sel.ordinals {
			if len(result) >= target {
				break
			}
			result = append(result, items[ordinal-1])
			taken[ordinal-1] = true
		}
	}

	// Pad with the remainder in original order until the target is met
	// or the source list runs out.
	for idx := 0; idx < len(items) && len(result) < target; idx++ {
		if taken[idx] {
			continue
		}
		result = append(result, items[idx])
	}
	return result
}

// fallback is the single authoritative "always works" ordering.
func fallback(items []news.Item, target int) []news.Item {
	byDate := make([]news.Item, len(items))
	copy(byDate, items)
	sort.SliceStable(byDate, func(i, j int) bool {
		return byDate[i].PubDate.After(byDate[j].PubDate)
	})
	if len(byDate) > target {
		byDate = byDate[:target]
	}
	return byDate
}
