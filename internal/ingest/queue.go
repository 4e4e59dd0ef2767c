package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/metrics"
)

// Notifier delivers the drain completion summary. Failures are logged and
// otherwise ignored; the summary is a courtesy, not a ledger.
type Notifier interface {
	SendText(ctx context.Context, subjectID int64, text string) error
}

// Status is the observable state of the queue.
type Status struct {
	Length   int  `json:"queue_length"`
	Draining bool `json:"is_processing"`
}

// Queue buffers upload items and drains them in paced batches so the
// downstream chat transport is never hammered. Enqueue is cheap and
// non-blocking; all I/O happens on the single drain goroutine and the
// per-item workers it spawns.
type Queue struct {
	processor *Processor
	notifier  Notifier
	adminID   int64

	batchSize  int
	batchDelay time.Duration

	mu       sync.Mutex
	items    []Item
	draining bool
	closed   bool

	sleep func(time.Duration) // swapped out in tests

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewQueue builds a Queue draining batchSize items at a time with batchDelay
// pauses between batches. notifier may be nil.
func NewQueue(processor *Processor, notifier Notifier, adminID int64, batchSize int, batchDelay time.Duration, m *metrics.Metrics) *Queue {
	if batchSize <= 0 {
		batchSize = 5
	}
	return &Queue{
		processor:  processor,
		notifier:   notifier,
		adminID:    adminID,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		sleep:      time.Sleep,
		logger:     slog.Default().With("component", "ingest-queue"),
		metrics:    m,
	}
}

// Enqueue appends the item and returns its 1-based queue position. If no
// drain is running, one is started; at most one drain goroutine exists at a
// time.
func (q *Queue) Enqueue(ctx context.Context, item Item) (int, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0, fmt.Errorf("ingest queue is shut down")
	}
	q.items = append(q.items, item)
	position := len(q.items)
	startDrain := !q.draining
	if startDrain {
		q.draining = true
	}
	if q.metrics != nil {
		q.metrics.QueueDepth.Set(float64(len(q.items)))
	}
	q.mu.Unlock()

	if startDrain {
		go q.drain(context.WithoutCancel(ctx))
	}
	return position, nil
}

// Status reports the current queue length and whether a drain is running.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{Length: len(q.items), Draining: q.draining}
}

// Shutdown stops the queue accepting items and scheduling further batches.
// The batch in flight, if any, runs to completion.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// drain pops and processes batches until the queue empties or the queue is
// shut down. Item failures are counted, never propagated: one bad file must
// not strand the rest of the queue.
func (q *Queue) drain(ctx context.Context) {
	var processed, failed atomic.Int64

	for {
		batch := q.pop()
		if len(batch) == 0 {
			// An enqueue landing between the empty pop and here sees
			// draining == true and counts on this goroutine. Hand the flag
			// back only once the queue is confirmed empty under the lock,
			// otherwise keep going.
			q.mu.Lock()
			if len(q.items) > 0 && !q.closed {
				q.mu.Unlock()
				continue
			}
			q.draining = false
			q.mu.Unlock()
			break
		}
		if q.metrics != nil {
			q.metrics.BatchesTotal.Inc()
		}

		var g errgroup.Group
		for _, item := range batch {
			item := item
			g.Go(func() error {
				if err := q.processor.Process(ctx, item); err != nil {
					failed.Add(1)
					if q.metrics != nil {
						q.metrics.ItemsProcessedTotal.WithLabelValues("failed").Inc()
					}
					q.logger.Error("item failed", "item_id", item.ID, "file_name", item.FileName, "error", err)
					return nil
				}
				processed.Add(1)
				if q.metrics != nil {
					q.metrics.ItemsProcessedTotal.WithLabelValues("ok").Inc()
				}
				return nil
			})
		}
		g.Wait()

		q.mu.Lock()
		remaining := len(q.items)
		stop := q.closed
		if stop {
			q.draining = false
		}
		q.mu.Unlock()
		if stop {
			break
		}
		if remaining > 0 {
			q.sleep(q.batchDelay)
		}
	}

	q.summarize(ctx, processed.Load(), failed.Load())
}

// pop removes and returns up to batchSize items from the head of the queue.
func (q *Queue) pop() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.batchSize
	if n > len(q.items) {
		n = len(q.items)
	}
	batch := make([]Item, n)
	copy(batch, q.items[:n])
	q.items = q.items[n:]

	if q.metrics != nil {
		q.metrics.QueueDepth.Set(float64(len(q.items)))
	}
	return batch
}

func (q *Queue) summarize(ctx context.Context, processed, failed int64) {
	q.logger.Info("drain complete", "processed", processed, "failed", failed)
	if q.notifier == nil || q.adminID == 0 || processed+failed == 0 {
		return
	}
	text := fmt.Sprintf("Bulk upload complete: %d processed, %d failed, %d total",
		processed, failed, processed+failed)
	if err := q.notifier.SendText(ctx, q.adminID, text); err != nil {
		q.logger.Warn("completion summary not delivered", "error", err)
	}
}
