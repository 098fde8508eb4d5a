package dedup

import (
	"context"
	"errors"
	"testing"

	"weeklydigest/internal/news"
)

type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

func TestCollapseCaseInsensitiveTitles(t *testing.T) {
	d := New(Options{})
	items := []news.Item{
		{ID: "a", Title: "Storm hits capital", AISummary: "short"},
		{ID: "b", Title: "storm HITS Capital", AISummary: "a much longer enrichment text"},
	}

	got := d.Collapse(context.Background(), items)

	if len(got) != 1 {
		t.Fatalf("got %d items, want 1", len(got))
	}
	if got[0].ID != "b" {
		t.Fatalf("kept %q, want the richer item %q", got[0].ID, "b")
	}
}

func TestCollapseKeepsDistinctStories(t *testing.T) {
	d := New(Options{})
	items := []news.Item{
		{ID: "a", Title: "Parliament passes budget"},
		{ID: "b", Title: "Storm hits capital"},
	}

	got := d.Collapse(context.Background(), items)
	if len(got) != 2 {
		t.Fatalf("got %d items, want 2", len(got))
	}
}

func TestCollapseIdempotent(t *testing.T) {
	d := New(Options{})
	items := []news.Item{
		{ID: "a", Title: "Storm hits capital", AISummary: "short"},
		{ID: "b", Title: "storm hits capital", AISummary: "longer summary"},
		{ID: "c", Title: "Parliament passes budget"},
	}

	once := d.Collapse(context.Background(), items)
	twice := d.Collapse(context.Background(), once)

	if len(once) != len(twice) {
		t.Fatalf("second pass changed size: %d -> %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID {
			t.Fatalf("second pass changed item %d: %q -> %q", i, once[i].ID, twice[i].ID)
		}
	}
}

func TestCollapseEqualRichnessKeepsFirst(t *testing.T) {
	d := New(Options{})
	items := []news.Item{
		{ID: "a", Title: "Storm hits capital"},
		{ID: "b", Title: "storm hits capital"},
	}

	got := d.Collapse(context.Background(), items)
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("got %v, want only item a", got)
	}
}

func TestCollapseSemanticGate(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float64{
		"Government approves new budget": {1, 0, 0},
		"Budget gets cabinet approval":   {0.99, 0.1, 0},
		"Local team wins championship":   {0, 1, 0},
	}}
	d := New(Options{Embedder: emb})

	items := []news.Item{
		{ID: "a", Title: "Government approves new budget"},
		{ID: "b", Title: "Budget gets cabinet approval"},
		{ID: "c", Title: "Local team wins championship"},
	}

	got := d.Collapse(context.Background(), items)
	if len(got) != 2 {
		t.Fatalf("got %d items, want 2", len(got))
	}
	for _, it := range got {
		if it.ID == "b" {
			t.Fatal("semantically duplicate item b survived")
		}
	}
}

func TestCollapseEmbeddingFailureNeverMatches(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("embedding api down")}
	d := New(Options{Embedder: emb})

	items := []news.Item{
		{ID: "a", Title: "Government approves new budget"},
		{ID: "b", Title: "Budget gets cabinet approval"},
	}

	got := d.Collapse(context.Background(), items)
	if len(got) != 2 {
		t.Fatalf("got %d items, want 2 when embeddings fail", len(got))
	}
}

func TestCollapseCachesEmbeddings(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float64{
		"Title one":   {1, 0},
		"Title two":   {0, 1},
		"Title three": {-1, 0},
	}}
	d := New(Options{Embedder: emb})

	items := []news.Item{
		{ID: "a", Title: "Title one"},
		{ID: "b", Title: "Title two"},
		{ID: "c", Title: "Title three"},
	}
	d.Collapse(context.Background(), items)

	if emb.calls > 3 {
		t.Fatalf("embedder called %d times for 3 titles, want at most 3", emb.calls)
	}
}

func TestSimilarTitles(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"Same Title", "same title", true},
		{"Almost Same Title", "Almost Same Title!", true},
		{"Different", "Title", false},
		{"", "", true},
		{"Something", "", false},
	}
	for _, tc := range cases {
		if got := SimilarTitles(tc.a, tc.b, DefaultTitleThreshold); got != tc.want {
			t.Errorf("SimilarTitles(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1.0},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0.0},
		{"zero vector", []float64{0, 0, 0}, []float64{1, 2, 3}, 0.0},
		{"empty", nil, nil, 0.0},
		{"length mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0.0},
	}
	for _, tc := range cases {
		got := CosineSimilarity(tc.a, tc.b)
		if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("%s: CosineSimilarity = %v, want %v", tc.name, got, tc.want)
		}
	}
}
