package rank

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"weeklydigest/internal/news"
)

type fakeGenerator struct {
	response string
	err      error
	calls    int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.response, f.err
}

func makeItems(n int) []news.Item {
	items := make([]news.Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, news.Item{
			ID:      fmt.Sprintf("item-%d", i+1),
			Title:   fmt.Sprintf("News %d", i+1),
			PubDate: time.Date(2024, time.January, i+1, 12, 0, 0, 0, time.UTC),
		})
	}
	return items
}

func titles(items []news.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title
	}
	return out
}

func TestTargetStories(t *testing.T) {
	r := New(&fakeGenerator{}, Options{})

	cases := []struct{ n, want int }{
		{0, 7},
		{5, 7},
		{20, 7},
		{30, 8},
		{40, 10},
		{56, 14},
		{60, 14},
		{200, 14},
	}
	for _, tc := range cases {
		if got := r.TargetStories(tc.n); got != tc.want {
			t.Errorf("TargetStories(%d) = %d, want %d", tc.n, got, tc.want)
		}
	}
}

func TestSelectBelowTargetUnchanged(t *testing.T) {
	gen := &fakeGenerator{}
	r := New(gen, Options{})
	items := makeItems(5)

	got := r.Select(context.Background(), "Lietuva", items)

	if len(got) != 5 {
		t.Fatalf("got %d items, want 5", len(got))
	}
	for i := range items {
		if got[i].ID != items[i].ID {
			t.Fatalf("item %d reordered: got %q, want %q", i, got[i].ID, items[i].ID)
		}
	}
	if gen.calls != 0 {
		t.Fatalf("oracle called %d times for a small category, want 0", gen.calls)
	}
}

func TestSelectScoredResponse(t *testing.T) {
	items := makeItems(20)

	// Every item scored, 10 is the sole top score. News 10 has the later
	// date among any ties, so it must come first.
	var b strings.Builder
	for i := 1; i <= 20; i++ {
		score := 5
		if i == 10 {
			score = 10
		}
		fmt.Fprintf(&b, "%d: %d\n", i, score)
	}
	gen := &fakeGenerator{response: b.String()}
	r := New(gen, Options{})

	got := r.Select(context.Background(), "Lietuva", items)

	if len(got) < 7 || len(got) > 14 {
		t.Fatalf("selected %d items, want between 7 and 14", len(got))
	}
	if got[0].Title != "News 10" {
		t.Fatalf("top item = %q, want %q", got[0].Title, "News 10")
	}
	// Ties on score break by later publication date.
	if got[1].Title != "News 20" {
		t.Fatalf("second item = %q, want newest of the tied, %q", got[1].Title, "News 20")
	}
}

func TestSelectOrdinalResponse(t *testing.T) {
	items := makeItems(30)
	gen := &fakeGenerator{response: "3, 1, 5"}
	r := New(gen, Options{})

	got := r.Select(context.Background(), "Verslas", items)

	target := r.TargetStories(30)
	if len(got) != target {
		t.Fatalf("selected %d items, want %d", len(got), target)
	}
	wantPrefix := []string{"News 3", "News 1", "News 5"}
	for i, title := range wantPrefix {
		if got[i].Title != title {
			t.Fatalf("item %d = %q, want %q", i, got[i].Title, title)
		}
	}
	// Padding follows original input order, skipping the already taken.
	wantPad := []string{"News 2", "News 4", "News 6", "News 7", "News 8"}
	for i, title := range wantPad {
		if got[len(wantPrefix)+i].Title != title {
			t.Fatalf("pad item %d = %q, want %q", i, got[len(wantPrefix)+i].Title, title)
		}
	}
}

func TestSelectIgnoresOutOfRangeOrdinals(t *testing.T) {
	items := makeItems(30)
	gen := &fakeGenerator{response: "2, 99, 2, 4"}
	r := New(gen, Options{})

	got := r.Select(context.Background(), "Verslas", items)

	if got[0].Title != "News 2" || got[1].Title != "News 4" {
		t.Fatalf("prefix = %v, want News 2 then News 4", titles(got[:2]))
	}
}

// An oracle exception, an empty response and an unparseable response all
// degrade to the same date-descending truncation.
func TestSelectFallbackIdentical(t *testing.T) {
	items := makeItems(20)
	r := New(&fakeGenerator{}, Options{})
	target := r.TargetStories(20)

	gens := map[string]*fakeGenerator{
		"error":       {err: errors.New("oracle down")},
		"empty":       {response: ""},
		"unparseable": {response: "Invalid:Format"},
	}

	var want []string
	for name, gen := range gens {
		got := New(gen, Options{}).Select(context.Background(), "Lietuva", items)
		if len(got) != target {
			t.Fatalf("%s: selected %d items, want %d", name, len(got), target)
		}
		for i := 1; i < len(got); i++ {
			if got[i].PubDate.After(got[i-1].PubDate) {
				t.Fatalf("%s: fallback not date-descending at %d", name, i)
			}
		}
		if want == nil {
			want = titles(got)
			continue
		}
		if strings.Join(titles(got), "|") != strings.Join(want, "|") {
			t.Fatalf("%s: fallback differs: got %v, want %v", name, titles(got), want)
		}
	}
}

func TestSelectScoredSkipsJunkLines(t *testing.T) {
	items := makeItems(20)
	gen := &fakeGenerator{response: "Here are my picks:\n1: 9\n2: 8\n"}
	r := New(gen, Options{})

	got := r.Select(context.Background(), "Lietuva", items)

	if got[0].Title != "News 1" || got[1].Title != "News 2" {
		t.Fatalf("prefix = %v, want News 1 then News 2", titles(got[:2]))
	}
	if len(got) != r.TargetStories(20) {
		t.Fatalf("selected %d items, want %d", len(got), r.TargetStories(20))
	}
}
