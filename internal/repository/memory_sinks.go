package repository

import (
	"context"
	"sync"

	"SigRelay/internal/domain/models"
)

// NoopSignalPublisher drops signals. Used when the Kafka leg is disabled.
type NoopSignalPublisher struct{}

func (NoopSignalPublisher) Publish(context.Context, models.Signal) error { return nil }
func (NoopSignalPublisher) Close() error                                 { return nil }

// MemorySignalArchive is a bounded in-process archive, used when the
// ClickHouse leg is disabled. Oldest entries are evicted at capacity.
type MemorySignalArchive struct {
	mu   sync.Mutex
	buf  []models.Signal
	next int
	size int
}

func NewMemorySignalArchive(capacity int) *MemorySignalArchive {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemorySignalArchive{buf: make([]models.Signal, capacity)}
}

func (m *MemorySignalArchive) Append(_ context.Context, s models.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf[m.next] = s
	m.next = (m.next + 1) % len(m.buf)
	if m.size < len(m.buf) {
		m.size++
	}
	return nil
}

// Recent returns up to limit entries, most recent first.
func (m *MemorySignalArchive) Recent(_ context.Context, limit int) ([]models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > m.size {
		limit = m.size
	}
	out := make([]models.Signal, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.buf)) % len(m.buf)
		out = append(out, m.buf[idx])
	}
	return out, nil
}

func (m *MemorySignalArchive) Close() error { return nil }
