package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is the default history backend. Records live for the
// lifetime of the process.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]DistributionRecord
	order   []string
	claims  map[string]time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]DistributionRecord),
		claims:  make(map[string]time.Time),
	}
}

func (r *MemoryRepository) Save(_ context.Context, rec DistributionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.ID]; exists {
		return fmt.Errorf("insert distribution %s: duplicate id", rec.ID)
	}
	r.records[rec.ID] = copyRecord(rec)
	r.order = append(r.order, rec.ID)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (DistributionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return DistributionRecord{}, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (r *MemoryRepository) List(_ context.Context, limit int) ([]DistributionRecord, error) {
	r.mu.RLock()
	records := r.snapshot(func(DistributionRecord) bool { return true })
	r.mu.RUnlock()

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
	return truncate(records, limit), nil
}

func (r *MemoryRepository) ListPendingExport(_ context.Context, limit int) ([]DistributionRecord, error) {
	r.mu.RLock()
	records := r.snapshot(func(rec DistributionRecord) bool { return !rec.Exported() })
	r.mu.RUnlock()

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return truncate(records, limit), nil
}

func (r *MemoryRepository) MarkExported(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	t := at.UTC()
	rec.ExportedAt = &t
	r.records[id] = rec
	delete(r.claims, id)
	return nil
}

func (r *MemoryRepository) ClaimExport(_ context.Context, id string, at, staleBefore time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || rec.Exported() {
		return false, nil
	}
	if claimed, held := r.claims[id]; held && !claimed.Before(staleBefore) {
		return false, nil
	}
	r.claims[id] = at
	return true, nil
}

func (r *MemoryRepository) ReleaseExport(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claims, id)
	return nil
}

func (r *MemoryRepository) Ping(context.Context) error {
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}

// Len returns the number of stored records
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// snapshot must be called with the read lock held.
func (r *MemoryRepository) snapshot(keep func(DistributionRecord) bool) []DistributionRecord {
	out := make([]DistributionRecord, 0, len(r.order))
	for _, id := range r.order {
		rec := r.records[id]
		if keep(rec) {
			out = append(out, copyRecord(rec))
		}
	}
	return out
}

func truncate(records []DistributionRecord, limit int) []DistributionRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

func copyRecord(rec DistributionRecord) DistributionRecord {
	rec.Request = append([]byte(nil), rec.Request...)
	rec.Response = append([]byte(nil), rec.Response...)
	if rec.ExportedAt != nil {
		t := *rec.ExportedAt
		rec.ExportedAt = &t
	}
	return rec
}
