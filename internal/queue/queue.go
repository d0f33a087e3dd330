package queue

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrEmpty is returned by Dequeue when nothing arrived within the block window.
var ErrEmpty = errors.New("queue empty")

// Producer is the API side of the work queue. Enqueue must not wait for consumers.
type Producer interface {
	Enqueue(ctx context.Context, jobID string) error
}

// Consumer is the worker side. Deliveries are at-least-once: an id that is
// dequeued but never acked may be handed out again.
type Consumer interface {
	Dequeue(ctx context.Context, block time.Duration) (string, error)
	Ack(ctx context.Context, jobID string) error
}

type Queue interface {
	Producer
	Consumer
}
