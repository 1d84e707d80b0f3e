package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kapu/chess-insight/internal/analysis"
)

// memstore is the in-memory repository used when no database is
// configured.
type memstore struct {
	mu      sync.RWMutex
	reports map[string]*analysis.GameReport
}

func NewMemory() Repository {
	return &memstore{reports: make(map[string]*analysis.GameReport)}
}

func (m *memstore) SaveReport(ctx context.Context, report *analysis.GameReport) error {
	if report == nil {
		return ErrNotFound
	}
	copy := *report
	copy.Moves = append([]string(nil), report.Moves...)
	copy.Records = append([]analysis.PlyRecord(nil), report.Records...)

	m.mu.Lock()
	m.reports[report.ID] = &copy
	m.mu.Unlock()
	return nil
}

func (m *memstore) GetReport(ctx context.Context, id string) (*analysis.GameReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	report, ok := m.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *report
	return &copy, nil
}

func (m *memstore) ListRecent(ctx context.Context, limit int) ([]*analysis.GameReport, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*analysis.GameReport, 0, len(m.reports))
	for _, report := range m.reports {
		copy := *report
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memstore) Close() error { return nil }
