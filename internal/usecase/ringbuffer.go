package usecase

import (
	"sync"

	"SigRelay/internal/domain/models"
)

// signalRing is a fixed-capacity ring of recent signals. Insertion is O(1)
// and evicts oldest-first. One lock guards it: writes are one-per-message,
// reads are status polls.
type signalRing struct {
	mu   sync.Mutex
	buf  []models.Signal
	next int // index of the next write
	size int // number of valid entries, <= cap
}

func newSignalRing(capacity int) *signalRing {
	if capacity <= 0 {
		capacity = 200
	}
	return &signalRing{buf: make([]models.Signal, capacity)}
}

func (r *signalRing) append(s models.Signal) {
	r.mu.Lock()
	r.buf[r.next] = s
	r.next = (r.next + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
	r.mu.Unlock()
}

// recent returns up to limit entries, most recent first. limit <= 0 means
// everything retained.
func (r *signalRing) recent(limit int) []models.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.Signal, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

func (r *signalRing) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
