package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/errors"
)

// MemoryStore is an in-memory Store for tests and single-node local runs.
type MemoryStore struct {
	mu         sync.RWMutex
	nextID     int64
	nextLogID  int64
	entries    map[int64]*Entry
	deliveries map[int64]*DeliveryRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:     1,
		nextLogID:  1,
		entries:    make(map[int64]*Entry),
		deliveries: make(map[int64]*DeliveryRecord),
	}
}

func (s *MemoryStore) CreateEntry(_ context.Context, e *Entry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	cp.ID = s.nextID
	if cp.UploadedAt.IsZero() {
		cp.UploadedAt = time.Now().UTC()
	}
	s.entries[cp.ID] = &cp
	s.nextID++
	e.ID = cp.ID
	return cp.ID, nil
}

func (s *MemoryStore) GetEntry(_ context.Context, id int64) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrNotFound, 404, "entry %d", id)
	}
	cp := *e
	return &cp, nil
}

func (s *MemoryStore) IncrementUseCount(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return apperrors.Newf(apperrors.ErrNotFound, 404, "entry %d", id)
	}
	e.UseCount++
	now := time.Now().UTC()
	e.LastAccess = &now
	return nil
}

func (s *MemoryStore) Search(_ context.Context, query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	q := strings.ToLower(strings.TrimSpace(query))
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if strings.Contains(strings.ToLower(e.Title), q) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UseCount != out[j].UseCount {
			return out[i].UseCount > out[j].UseCount
		}
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) LogDelivery(_ context.Context, rec *DeliveryRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	cp.ID = s.nextLogID
	if cp.DeliveredAt.IsZero() {
		cp.DeliveredAt = time.Now().UTC()
	}
	s.deliveries[cp.ID] = &cp
	s.nextLogID++
	rec.ID = cp.ID
	return cp.ID, nil
}

func (s *MemoryStore) MarkCleanupFired(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.deliveries[id]; ok {
		rec.Fired = true
	}
	return nil
}

func (s *MemoryStore) PendingCleanups(_ context.Context) ([]DeliveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []DeliveryRecord
	for _, rec := range s.deliveries {
		if !rec.Fired {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CleanupAt.Before(out[j].CleanupAt) })
	return out, nil
}
