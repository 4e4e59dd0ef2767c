// Package delivery coordinates the grant-or-challenge decision for every
// file request: subjects inside their verification window get the file,
// everyone else gets a verification link.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/auditlog"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/cleanup"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/messaging"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/verify"
	apperrors "github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/tracing"
)

// Status tells the caller whether the file went out or a verification is
// required first.
type Status string

const (
	StatusGranted   Status = "granted"
	StatusChallenge Status = "challenge_issued"
)

// Result is the outcome of a delivery request.
type Result struct {
	Status    Status         `json:"status"`
	Entry     *catalog.Entry `json:"entry,omitempty"`
	VerifyURL string         `json:"verify_url,omitempty"`
	ExpiresAt time.Time      `json:"expires_at,omitempty"`
}

// Shortener turns a long URL into a short one, falling back to the long
// form on upstream trouble.
type Shortener interface {
	Shorten(ctx context.Context, longURL string) string
}

// Orchestrator runs the delivery decision. The catalog lookup happens first
// so unknown resources fail fast without burning a token or a window check.
type Orchestrator struct {
	store       catalog.Store
	ledger      *verify.Ledger
	messenger   messaging.Messenger
	scheduler   *cleanup.Scheduler
	shortener   Shortener
	audit       *auditlog.Collector
	botUsername string
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewOrchestrator wires the delivery path. audit may be nil.
func NewOrchestrator(
	store catalog.Store,
	ledger *verify.Ledger,
	messenger messaging.Messenger,
	scheduler *cleanup.Scheduler,
	shortener Shortener,
	audit *auditlog.Collector,
	botUsername string,
	m *metrics.Metrics,
) *Orchestrator {
	return &Orchestrator{
		store:       store,
		ledger:      ledger,
		messenger:   messenger,
		scheduler:   scheduler,
		shortener:   shortener,
		audit:       audit,
		botUsername: botUsername,
		logger:      slog.Default().With("component", "delivery-orchestrator"),
		metrics:     m,
	}
}

// RequestDelivery decides between granting the file and issuing a
// verification challenge for the subject.
func (o *Orchestrator) RequestDelivery(ctx context.Context, subjectID, resourceID int64) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "delivery.request", uuid.NewString())
	span.SetAttr("subject_id", subjectID)
	span.SetAttr("resource_id", resourceID)
	defer func() {
		span.End()
		span.Log()
	}()

	entry, err := o.store.GetEntry(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	if o.ledger.WindowOpen(subjectID) {
		return o.grant(ctx, subjectID, entry)
	}
	return o.challenge(ctx, subjectID, entry)
}

// HandleRedirect consumes the token carried back by a followed verification
// link. A valid token opens the subject's window and immediately grants the
// file it was issued for.
func (o *Orchestrator) HandleRedirect(ctx context.Context, token string) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "delivery.redirect", uuid.NewString())
	defer func() {
		span.End()
		span.Log()
	}()

	subjectID, resourceID, err := o.ledger.ResolveChallenge(token)
	if err != nil {
		if o.audit != nil {
			o.audit.TrackVerification(subjectID, "rejected")
		}
		return nil, err
	}
	if o.audit != nil {
		o.audit.TrackVerification(subjectID, "verified")
	}

	entry, err := o.store.GetEntry(ctx, resourceID)
	if err != nil {
		// The entry vanished between challenge and redirect. The window is
		// open regardless, so the subject can still request other files.
		return nil, err
	}
	return o.grant(ctx, subjectID, entry)
}

func (o *Orchestrator) grant(ctx context.Context, subjectID int64, entry *catalog.Entry) (*Result, error) {
	ctx, span := tracing.StartChildSpan(ctx, "delivery.grant")
	defer span.End()

	caption := deliveryCaption(entry)
	if err := o.messenger.SendFile(ctx, subjectID, entry.FileRef, caption); err != nil {
		if o.metrics != nil {
			o.metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
		}
		if o.audit != nil {
			o.audit.TrackDelivery(subjectID, entry.ID, "failed")
		}
		return nil, apperrors.Newf(apperrors.ErrDeliveryFailed, 502, "sending file %d: %v", entry.ID, err)
	}

	// Best-effort bookkeeping after the send succeeded.
	if err := o.store.IncrementUseCount(ctx, entry.ID); err != nil {
		o.logger.Warn("use count not bumped", "entry_id", entry.ID, "error", err)
	}
	o.scheduler.Schedule(ctx, subjectID, entry.ID)

	if o.metrics != nil {
		o.metrics.DeliveriesTotal.WithLabelValues("granted").Inc()
	}
	if o.audit != nil {
		o.audit.TrackDelivery(subjectID, entry.ID, "granted")
	}
	o.logger.Info("file delivered", "subject_id", subjectID, "entry_id", entry.ID, "title", entry.Title)

	return &Result{Status: StatusGranted, Entry: entry}, nil
}

func (o *Orchestrator) challenge(ctx context.Context, subjectID int64, entry *catalog.Entry) (*Result, error) {
	ctx, span := tracing.StartChildSpan(ctx, "delivery.challenge")
	defer span.End()

	tok, err := o.ledger.RequestChallenge(subjectID, entry.ID)
	if err != nil {
		return nil, fmt.Errorf("issue challenge: %w", err)
	}

	longURL := fmt.Sprintf("https://t.me/%s?start=verify_%s", o.botUsername, tok.Value)
	verifyURL := o.shortener.Shorten(ctx, longURL)

	if o.metrics != nil {
		o.metrics.DeliveriesTotal.WithLabelValues("challenged").Inc()
	}
	if o.audit != nil {
		o.audit.TrackDelivery(subjectID, entry.ID, "challenged")
	}
	o.logger.Info("challenge issued",
		"subject_id", subjectID,
		"entry_id", entry.ID,
		"expires_at", tok.ExpiresAt,
	)

	return &Result{
		Status:    StatusChallenge,
		VerifyURL: verifyURL,
		ExpiresAt: tok.ExpiresAt,
	}, nil
}

func deliveryCaption(e *catalog.Entry) string {
	if e.Year > 0 {
		return fmt.Sprintf("%s (%d) [%s] %s", e.Title, e.Year, e.Quality, e.Part)
	}
	return fmt.Sprintf("%s [%s] %s", e.Title, e.Quality, e.Part)
}
