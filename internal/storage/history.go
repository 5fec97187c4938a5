package storage

import (
	"time"

	"chemvis/pkg/contracts/domain"
)

// history is the unsynchronised core shared by MemoryStore and FileStore.
// Callers hold the owning store's lock.
type history struct {
	capacity int
	nextID   int64
	items    []domain.DatasetSummary
	rows     map[int64][]domain.EquipmentRecord
	now      func() time.Time
}

func newHistory(capacity int) *history {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &history{
		capacity: capacity,
		nextID:   1,
		items:    make([]domain.DatasetSummary, 0, capacity+1),
		rows:     make(map[int64][]domain.EquipmentRecord, capacity+1),
		now:      defaultClock,
	}
}

func (h *history) insert(s domain.DatasetSummary, records []domain.EquipmentRecord) (InsertResult, error) {
	id := h.nextID
	if s.ID != 0 {
		if s.ID < h.nextID {
			return InsertResult{}, domain.ErrDuplicateID
		}
		id = s.ID
	}

	stored := stamp(s.Clone(), id, h.now())
	h.nextID = id + 1
	h.items = append(h.items, stored)
	h.rows[id] = cloneRecords(records)

	return InsertResult{Summary: stored.Clone(), Evicted: h.evict()}, nil
}

// evict removes the oldest entries and their rows until the capacity holds
func (h *history) evict() []int64 {
	var evicted []int64
	for len(h.items) > h.capacity {
		idx := oldestIndex(h.items)
		id := h.items[idx].ID
		evicted = append(evicted, id)
		h.items = append(h.items[:idx], h.items[idx+1:]...)
		delete(h.rows, id)
	}
	return evicted
}

func (h *history) list(limit int) []domain.DatasetSummary {
	out := make([]domain.DatasetSummary, len(h.items))
	for i, s := range h.items {
		out[i] = s.Clone()
	}
	sortNewestFirst(out)
	return limitItems(out, limit)
}

func (h *history) get(id int64) (domain.DatasetSummary, error) {
	for _, s := range h.items {
		if s.ID == id {
			return s.Clone(), nil
		}
	}
	return domain.DatasetSummary{}, &domain.NotFoundError{ID: id}
}

func (h *history) equipment(id int64) ([]domain.EquipmentRecord, error) {
	for _, s := range h.items {
		if s.ID == id {
			return cloneRecords(h.rows[id]), nil
		}
	}
	return nil, &domain.NotFoundError{ID: id}
}

// snapshot and restore let FileStore undo an insert whose write failed
type historyState struct {
	nextID int64
	items  []domain.DatasetSummary
	rows   map[int64][]domain.EquipmentRecord
}

func (h *history) snapshot() historyState {
	items := make([]domain.DatasetSummary, len(h.items))
	copy(items, h.items)
	rows := make(map[int64][]domain.EquipmentRecord, len(h.rows))
	for id, r := range h.rows {
		rows[id] = r
	}
	return historyState{nextID: h.nextID, items: items, rows: rows}
}

func (h *history) restore(st historyState) {
	h.nextID = st.nextID
	h.items = st.items
	h.rows = st.rows
}

// cloneRecords never returns nil so an empty dataset encodes as []
func cloneRecords(records []domain.EquipmentRecord) []domain.EquipmentRecord {
	out := make([]domain.EquipmentRecord, len(records))
	copy(out, records)
	return out
}
