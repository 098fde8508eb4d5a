// Package store owns the durable form of a Period Batch: one JSON file
// per ISO calendar week holding every accepted item of that week.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"weeklydigest/internal/news"
)

// Store reads and writes weekly batch files under a base folder.
type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

// FilePath returns the batch file for a given ISO week, creating the
// base folder on first use.
func (s *Store) FilePath(year, week int) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create base folder: %w", err)
	}
	return filepath.Join(s.dir, fmt.Sprintf("news_%d_%02d.json", year, week)), nil
}

// Load reads the batch for a week and returns its items together with
// the set of already-seen ids. A missing or empty file is an empty
// batch. A file that exists but does not parse is quarantined with a
// .bak suffix and the batch starts over empty; that condition is logged,
// never raised.
func (s *Store) Load(year, week int) ([]news.Item, map[string]bool, error) {
	path, err := s.FilePath(year, week)
	if err != nil {
		return nil, nil, err
	}
	return s.LoadFile(path)
}

// LoadFile is Load for an explicit batch file path.
func (s *Store) LoadFile(path string) ([]news.Item, map[string]bool, error) {
	ids := make(map[string]bool)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ids, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read batch %s: %w", path, err)
	}
	if len(data) == 0 {
		slog.Warn("batch file is empty, starting fresh", "path", path)
		return nil, ids, nil
	}

	var items []news.Item
	if err := json.Unmarshal(data, &items); err != nil {
		slog.Error("batch file is corrupt, quarantining", "path", path, "error", err)
		quarantine(path)
		return nil, ids, nil
	}

	for _, it := range items {
		ids[it.ID] = true
	}
	return items, ids, nil
}

func quarantine(path string) {
	backup := path + ".bak"
	if err := os.Rename(path, backup); err != nil {
		slog.Error("failed to quarantine batch file", "path", path, "error", err)
		return
	}
	slog.Info("quarantined corrupt batch file", "backup", backup)
}

// Merge appends the incoming items whose id has not been seen yet,
// updating ids in place. Order is preserved: survivors keep their
// relative order and go after the existing items. Returns the grown
// slice and the number of items actually added.
func Merge(existing []news.Item, ids map[string]bool, incoming []news.Item) ([]news.Item, int) {
	added := 0
	for _, it := range incoming {
		if ids[it.ID] {
			continue
		}
		existing = append(existing, it)
		ids[it.ID] = true
		added++
	}
	return existing, added
}

// Save rewrites the whole batch file atomically: the JSON is written to
// a temp file in the same directory and renamed over the target, so a
// crash mid-write never leaves a truncated batch behind.
func (s *Store) Save(year, week int, items []news.Item) error {
	path, err := s.FilePath(year, week)
	if err != nil {
		return err
	}
	return s.SaveFile(path, items)
}

// SaveFile is Save for an explicit batch file path.
func (s *Store) SaveFile(path string, items []news.Item) error {
	if items == nil {
		items = []news.Item{}
	}
	data, err := json.MarshalIndent(items, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".batch-*")
	if err != nil {
		return fmt.Errorf("create temp batch: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp batch: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp batch: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace batch %s: %w", path, err)
	}
	return nil
}

// LatestFile returns the most recently modified batch file in the base
// folder. The digest phase works on whichever week was written last.
func (s *Store) LatestFile() (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no batch files in %s", s.dir)
	}

	latest := ""
	var latestMod time.Time
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = m
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no readable batch files in %s", s.dir)
	}
	return latest, nil
}

// CurrentYearWeek returns the ISO year and week of now in loc.
func CurrentYearWeek(loc *time.Location) (int, int) {
	year, week := time.Now().In(loc).ISOWeek()
	return year, week
}

// WeekRange returns the [start, end) span of an ISO week in loc: Monday
// 00:00 up to but excluding the next Monday.
func WeekRange(year, week int, loc *time.Location) (time.Time, time.Time) {
	// Jan 4 is always inside ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	offset := (int(jan4.Weekday()) + 6) % 7 // days since Monday
	monday := jan4.AddDate(0, 0, -offset)
	start := monday.AddDate(0, 0, (week-1)*7)
	end := start.AddDate(0, 0, 7)
	return start, end
}
