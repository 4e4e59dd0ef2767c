// Package auditlog buffers audit events in memory and flushes them to Kafka
// in bulk, keeping the request paths free of broker latency.
package auditlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/metrics"
)

// Publisher is the broker surface the collector flushes to.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector accumulates audit events and flushes them either when the batch
// reaches a configurable size or after a time interval.
type Collector struct {
	producer      Publisher
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	metrics       *metrics.Metrics
	done          chan struct{}
}

// NewCollector creates a Collector that flushes when the buffer reaches
// batchSize events or after flushInterval, whichever comes first.
func NewCollector(producer Publisher, batchSize int, flushInterval time.Duration, m *metrics.Metrics) *Collector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		producer:      producer,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "audit-collector"),
		metrics:       m,
		done:          make(chan struct{}),
	}
}

// Start launches the background flush loop. It returns immediately; the loop
// runs until ctx is cancelled, then does a final flush.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("audit collector started",
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// TrackSearch records a catalog search.
func (c *Collector) TrackSearch(subjectID int64, query string, results int) {
	c.track("search", SearchEvent{
		Type: EventSearch, SubjectID: subjectID, Query: query,
		Results: results, Timestamp: time.Now().UTC(),
	})
}

// TrackDelivery records a delivery attempt and its outcome.
func (c *Collector) TrackDelivery(subjectID, resourceID int64, outcome string) {
	c.track("delivery", DeliveryEvent{
		Type: EventDelivery, SubjectID: subjectID, ResourceID: resourceID,
		Outcome: outcome, Timestamp: time.Now().UTC(),
	})
}

// TrackVerification records a token resolution outcome.
func (c *Collector) TrackVerification(subjectID int64, outcome string) {
	c.track("verification", VerificationEvent{
		Type: EventVerification, SubjectID: subjectID,
		Outcome: outcome, Timestamp: time.Now().UTC(),
	})
}

// TrackIngest records a cataloged upload.
func (c *Collector) TrackIngest(uploadedBy int64, title string) {
	c.track("ingest", IngestEvent{
		Type: EventIngest, UploadedBy: uploadedBy, EntryTitle: title,
		Timestamp: time.Now().UTC(),
	})
}

func (c *Collector) track(key string, value any) {
	if c.metrics != nil {
		c.metrics.AuditEventsTotal.WithLabelValues(key).Inc()
	}

	c.mu.Lock()
	c.buffer = append(c.buffer, kafka.Event{Key: key, Value: value})
	shouldFlush := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if shouldFlush {
		go c.flush(context.Background())
	}
}

// Close waits for the background flush loop to finish.
func (c *Collector) Close() {
	<-c.done
}

// BufferLen returns the current number of buffered events.
func (c *Collector) BufferLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.batchSize)
	c.mu.Unlock()

	if err := c.producer.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("audit flush failed",
			"batch_size", len(batch),
			"error", err,
		)
		// Re-queue failed events (best-effort, may drop on repeated failure).
		c.mu.Lock()
		c.buffer = append(batch, c.buffer...)
		if len(c.buffer) > c.batchSize*3 {
			dropped := len(c.buffer) - c.batchSize*3
			c.buffer = c.buffer[:c.batchSize*3]
			c.logger.Warn("audit buffer overflow, events dropped", "dropped", dropped)
		}
		c.mu.Unlock()
		return
	}

	c.logger.Debug("audit batch flushed", "events", len(batch))
}
