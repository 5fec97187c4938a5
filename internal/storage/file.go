package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"chemvis/pkg/contracts/domain"
)

// fileFormatVersion is written into every history file
const fileFormatVersion = 1

// fileSnapshot is the on-disk layout of a FileStore
type fileSnapshot struct {
	Version   int                                `json:"version"`
	NextID    int64                              `json:"next_id"`
	Datasets  []domain.DatasetSummary            `json:"datasets"`
	Equipment map[int64][]domain.EquipmentRecord `json:"equipment,omitempty"`
}

// FileStore keeps the history in memory and rewrites a JSON file after each
// insert. The file is replaced atomically.
type FileStore struct {
	mu   sync.RWMutex
	h    *history
	path string
}

// OpenFileStore loads path if it exists and returns a store writing to it
func OpenFileStore(path string, capacity int, opts ...Option) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path is empty")
	}

	h := newHistory(capacity)
	for _, opt := range opts {
		opt(h)
	}
	s := &FileStore{h: h, path: path}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read history file: %w", err)
	}

	var snap fileSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode history file %s: %w", s.path, err)
	}

	s.h.items = append(s.h.items[:0], snap.Datasets...)
	s.h.nextID = snap.NextID
	for _, d := range s.h.items {
		if d.ID >= s.h.nextID {
			s.h.nextID = d.ID + 1
		}
		// Files written before rows were kept load with an empty table.
		s.h.rows[d.ID] = cloneRecords(snap.Equipment[d.ID])
	}
	if s.h.nextID < 1 {
		s.h.nextID = 1
	}

	// A lowered capacity takes effect on the next write.
	s.h.evict()
	return nil
}

func (s *FileStore) persist() error {
	snap := fileSnapshot{
		Version:   fileFormatVersion,
		NextID:    s.h.nextID,
		Datasets:  s.h.items,
		Equipment: s.h.rows,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}

// Insert stores a summary, evicts beyond capacity and writes the file.
// A failed write leaves the in-memory history unchanged.
func (s *FileStore) Insert(ctx context.Context, summary domain.DatasetSummary, records []domain.EquipmentRecord) (InsertResult, error) {
	if err := ctx.Err(); err != nil {
		return InsertResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.h.snapshot()
	res, err := s.h.insert(summary, records)
	if err != nil {
		return InsertResult{}, err
	}
	if err := s.persist(); err != nil {
		s.h.restore(before)
		return InsertResult{}, err
	}
	return res, nil
}

// List returns summaries newest first
func (s *FileStore) List(ctx context.Context, limit int) ([]domain.DatasetSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.h.list(limit), nil
}

// Get retrieves a summary by id
func (s *FileStore) Get(ctx context.Context, id int64) (domain.DatasetSummary, error) {
	if err := ctx.Err(); err != nil {
		return domain.DatasetSummary{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.h.get(id)
}

// Equipment returns the rows of a retained summary
func (s *FileStore) Equipment(ctx context.Context, id int64) ([]domain.EquipmentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.h.equipment(id)
}

// Count returns the number of retained summaries
func (s *FileStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.h.items), nil
}

// Capacity returns the history bound
func (s *FileStore) Capacity() int {
	return s.h.capacity
}

// Path returns the backing file
func (s *FileStore) Path() string {
	return s.path
}

// Close is a no-op; every insert is already on disk
func (s *FileStore) Close() error {
	return nil
}
