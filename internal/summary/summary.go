// Package summary turns a ranked category of stories into one narrative
// paragraph via the generation oracle.
package summary

import (
	"context"
	"fmt"
	"strings"

	"weeklydigest/internal/news"
)

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Summarizer struct {
	gen Generator
}

func New(gen Generator) *Summarizer {
	return &Summarizer{gen: gen}
}

// Summarize produces the weekly paragraph for one category. There is no
// retry here: an oracle failure propagates, and the caller records the
// category as unprocessed instead of pretending nothing happened.
func (s *Summarizer) Summarize(ctx context.Context, category string, items []news.Item) (string, error) {
	text, err := s.gen.Generate(ctx, BuildPrompt(items))
	if err != nil {
		return "", fmt.Errorf("summarize category %q: %w", category, err)
	}
	return strings.TrimSpace(text), nil
}

// BuildPrompt lists every story, preferring the enrichment text over the
// feed description.
func BuildPrompt(items []news.Item) string {
	var b strings.Builder
	b.WriteString("Tu esi dirbtinio intelekto naujienų apžvalgininkas. Apibendrink šias naujienas į vieną glaustą paragrafą, " +
		"apie 120 žodžių, pabrėždamas svarbiausius momentus ir labiausiai įtakojančius įvykius. " +
		"Šis apibendrinimas skirtas žmogui, kuris nesekė naujienų ir nori sužinoti svarbiausius įvykius per savaitę. " +
		"Pasirink ir pabrėžk tik pačius svarbiausius ir įtakingiausius įvykius, paversdamas naujienas rišliu ir nuosekliu pasakojimu:\n\n")

	for _, it := range items {
		if it.AISummary != "" {
			fmt.Fprintf(&b, "- %s:\n%s\n\n", it.Title, it.AISummary)
		} else {
			fmt.Fprintf(&b, "- %s: %s\n", it.Title, it.Description)
		}
	}
	return b.String()
}
