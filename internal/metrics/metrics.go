package metrics

import (
	"sync"
	"time"
)

// Metrics collects per-process counters for the pipeline runs. The
// digest binary exposes them on its monitoring endpoint.
type Metrics struct {
	mu sync.RWMutex

	ItemsIngested       int64
	ItemsMerged         int64
	FeedsFailed         int64
	DuplicatesCollapsed int64
	RankFallbacks       int64
	SummariesGenerated  int64
	SummariesFailed     int64
	EmailsSent          int64

	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) AddItemsIngested(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsIngested += int64(n)
}

func (m *Metrics) AddItemsMerged(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsMerged += int64(n)
}

func (m *Metrics) IncrementFeedsFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeedsFailed++
}

func (m *Metrics) AddDuplicatesCollapsed(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesCollapsed += int64(n)
}

func (m *Metrics) IncrementRankFallbacks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RankFallbacks++
}

func (m *Metrics) IncrementSummariesGenerated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SummariesGenerated++
}

func (m *Metrics) IncrementSummariesFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SummariesFailed++
}

func (m *Metrics) IncrementEmailsSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EmailsSent++
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"items_ingested":       m.ItemsIngested,
		"items_merged":         m.ItemsMerged,
		"feeds_failed":         m.FeedsFailed,
		"duplicates_collapsed": m.DuplicatesCollapsed,
		"rank_fallbacks":       m.RankFallbacks,
		"summaries_generated":  m.SummariesGenerated,
		"summaries_failed":     m.SummariesFailed,
		"emails_sent":          m.EmailsSent,
		"last_run_time":        m.LastRunTime.Format(time.RFC3339),
		"last_error_time":      m.LastErrorTime.Format(time.RFC3339),
		"last_error":           m.LastError,
		"is_healthy":           m.IsHealthy,
	}
}
