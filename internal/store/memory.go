package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"portfolio.admin/internal/models"
)

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

type memRecord struct {
	rec *models.Record
	seq uint64
}

// MemoryStore keeps records in process memory. Used for local development
// and tests.
type MemoryStore struct {
	tables map[string]map[string]*memRecord
	seq    uint64
	mu     sync.RWMutex
	now    func() time.Time
}

// NewMemoryStore creates an empty store that accepts the given tables.
func NewMemoryStore(tables []string) *MemoryStore {
	s := &MemoryStore{
		tables: make(map[string]map[string]*memRecord, len(tables)),
		now:    time.Now,
	}
	for _, t := range tables {
		s.tables[t] = make(map[string]*memRecord)
	}
	return s
}

func (s *MemoryStore) List(ctx context.Context, table string) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.tables[table]
	if !ok {
		return nil, ErrUnknownTable
	}

	entries := make([]*memRecord, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.rec.CreatedAt.Equal(b.rec.CreatedAt) {
			return a.rec.CreatedAt.After(b.rec.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]*models.Record, len(entries))
	for i, e := range entries {
		out[i] = e.rec.Clone()
	}
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, table, id string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.tables[table]
	if !ok {
		return nil, ErrUnknownTable
	}
	r, ok := rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.rec.Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, table string, data map[string]any) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.tables[table]
	if !ok {
		return nil, ErrUnknownTable
	}

	now := s.now().UTC()
	rec := &models.Record{
		ID:        uuid.NewString(),
		Data:      models.StripReserved(data),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.seq++
	rows[rec.ID] = &memRecord{rec: rec, seq: s.seq}
	return rec.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, table, id string, data map[string]any) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.tables[table]
	if !ok {
		return nil, ErrUnknownTable
	}
	r, ok := rows[id]
	if !ok {
		return nil, ErrNotFound
	}

	for k, v := range models.StripReserved(data) {
		r.rec.Data[k] = v
	}
	r.rec.UpdatedAt = s.now().UTC()
	return r.rec.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.tables[table]
	if !ok {
		return ErrUnknownTable
	}
	if _, ok := rows[id]; !ok {
		return ErrNotFound
	}
	delete(rows, id)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables = nil
	return nil
}
