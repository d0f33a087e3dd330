package queue

import (
	"context"
	"sync"
	"time"
)

// MemQ is an unbounded in-process FIFO. Ack is a no-op since nothing
// survives the process anyway.
type MemQ struct {
	mu    sync.Mutex
	items []string
	ready chan struct{}
}

var _ Queue = (*MemQ)(nil)

func NewMemory() *MemQ {
	return &MemQ{ready: make(chan struct{}, 1)}
}

func (q *MemQ) Enqueue(_ context.Context, jobID string) error {
	q.mu.Lock()
	q.items = append(q.items, jobID)
	q.mu.Unlock()
	q.signal()
	return nil
}

func (q *MemQ) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *MemQ) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	id := q.items[0]
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.signal()
	}
	return id, true
}

// Dequeue waits up to block for an item; a zero block waits until ctx is done.
func (q *MemQ) Dequeue(ctx context.Context, block time.Duration) (string, error) {
	var timeout <-chan time.Time
	if block > 0 {
		t := time.NewTimer(block)
		defer t.Stop()
		timeout = t.C
	}
	for {
		if id, ok := q.pop(); ok {
			return id, nil
		}
		select {
		case <-q.ready:
		case <-timeout:
			return "", ErrEmpty
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (q *MemQ) Ack(context.Context, string) error { return nil }

func (q *MemQ) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
