// Package catalog defines the cataloged file entries, the append-only
// delivery log, and the Store interface implemented by the PostgreSQL and
// in-memory backends.
package catalog

import (
	"context"
	"time"
)

// Entry is one cataloged file eligible for delivery.
type Entry struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Year        int        `json:"year,omitempty"`
	Quality     string     `json:"quality"`
	Part        string     `json:"part"`
	FileRef     string     `json:"file_ref"`
	FileName    string     `json:"file_name"`
	FileSize    int64      `json:"file_size"`
	OriginalURL string     `json:"original_url"`
	ShortURL    string     `json:"short_url"`
	UploadedBy  int64      `json:"uploaded_by"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	UseCount    int64      `json:"use_count"`
	LastAccess  *time.Time `json:"last_access,omitempty"`
}

// DeliveryRecord journals one granted delivery together with its deferred
// cleanup instant. Fired marks the cleanup notification as sent, so a
// restarted process can tell overdue jobs from completed ones.
type DeliveryRecord struct {
	ID          int64
	SubjectID   int64
	ResourceID  int64
	DeliveredAt time.Time
	CleanupAt   time.Time
	Fired       bool
}

// Store is the persistent catalog surface consumed by the ingest and
// delivery paths. "No entry" is a normal outcome reported as
// errors.ErrNotFound, never a panic or a nil dereference.
type Store interface {
	CreateEntry(ctx context.Context, e *Entry) (int64, error)
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	IncrementUseCount(ctx context.Context, id int64) error
	Search(ctx context.Context, query string, limit int) ([]Entry, error)

	// Delivery-log journal, doubling as cleanup-job recovery state.
	LogDelivery(ctx context.Context, rec *DeliveryRecord) (int64, error)
	MarkCleanupFired(ctx context.Context, id int64) error
	PendingCleanups(ctx context.Context) ([]DeliveryRecord, error)
}
