package store

import (
	"context"
	"sync"

	"github.com/applyflow/applyflow/internal/queue"
)

// Memory is an in-process queue.Store for tests and demo runs.
type Memory struct {
	mu           sync.Mutex
	items        []*queue.Item
	applications []queue.ApplicationRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) SaveQueue(_ context.Context, items []*queue.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make([]*queue.Item, len(items))
	copy(m.items, items)
	return nil
}

func (m *Memory) LoadQueue(_ context.Context) ([]*queue.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]*queue.Item, len(m.items))
	copy(items, m.items)
	return items, nil
}

func (m *Memory) SaveApplications(_ context.Context, records []queue.ApplicationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applications = make([]queue.ApplicationRecord, len(records))
	copy(m.applications, records)
	return nil
}

func (m *Memory) LoadApplications(_ context.Context) ([]queue.ApplicationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := make([]queue.ApplicationRecord, len(m.applications))
	copy(records, m.applications)
	return records, nil
}
