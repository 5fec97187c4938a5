package storage

import (
	"sort"
	"time"

	"chemvis/pkg/contracts/domain"
)

// DefaultCapacity is the number of summaries retained when none is configured
const DefaultCapacity = 5

// older reports whether a precedes b in history order.
// CreatedAt decides; equal timestamps fall back to the id.
func older(a, b domain.DatasetSummary) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// oldestIndex returns the position of the entry evicted next, or -1
func oldestIndex(items []domain.DatasetSummary) int {
	idx := -1
	for i := range items {
		if idx < 0 || older(items[i], items[idx]) {
			idx = i
		}
	}
	return idx
}

// sortNewestFirst orders items for listing
func sortNewestFirst(items []domain.DatasetSummary) {
	sort.SliceStable(items, func(i, j int) bool {
		return older(items[j], items[i])
	})
}

// limitItems truncates a newest-first slice
func limitItems(items []domain.DatasetSummary, limit int) []domain.DatasetSummary {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// stamp fills the store-owned fields of a summary
func stamp(s domain.DatasetSummary, id int64, now time.Time) domain.DatasetSummary {
	s.ID = id
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.CreatedAt = s.CreatedAt.UTC().Truncate(time.Microsecond)
	s.Label = domain.FormatLabel(s.CreatedAt, id, s.Filename)
	return s
}

// defaultClock is the store clock; microsecond precision matches postgres
func defaultClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
