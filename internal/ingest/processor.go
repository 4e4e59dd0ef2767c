package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/auditlog"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/catalog"
	apperrors "github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/errors"
)

// Item is one queued upload awaiting cataloging.
type Item struct {
	ID         string    `json:"id"`
	FileRef    string    `json:"file_ref"`
	FileName   string    `json:"file_name"`
	FileSize   int64     `json:"file_size"`
	Caption    string    `json:"caption"`
	UploadedBy int64     `json:"uploaded_by"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewItem assigns the item a fresh ID and enqueue timestamp.
func NewItem(fileRef, fileName string, fileSize int64, caption string, uploadedBy int64) Item {
	return Item{
		ID:         uuid.NewString(),
		FileRef:    fileRef,
		FileName:   fileName,
		FileSize:   fileSize,
		Caption:    caption,
		UploadedBy: uploadedBy,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Shortener turns a long URL into a short one. Implementations never fail:
// on upstream trouble they return the long URL unchanged.
type Shortener interface {
	Shorten(ctx context.Context, longURL string) string
}

// Processor turns a queued item into exactly one catalog entry. A failure at
// any step writes nothing: the catalog insert is the last action taken.
type Processor struct {
	store       catalog.Store
	shortener   Shortener
	botUsername string
	audit       *auditlog.Collector
	logger      *slog.Logger
}

// NewProcessor wires the per-item pipeline: metadata extraction, deep-link
// construction, shortening, catalog insert. audit may be nil.
func NewProcessor(store catalog.Store, shortener Shortener, botUsername string, audit *auditlog.Collector) *Processor {
	return &Processor{
		store:       store,
		shortener:   shortener,
		botUsername: botUsername,
		audit:       audit,
		logger:      slog.Default().With("component", "ingest-processor"),
	}
}

// Process catalogs one item. The caption grammar wins when it parses;
// otherwise metadata is inferred from the filename.
func (p *Processor) Process(ctx context.Context, item Item) error {
	if item.FileRef == "" {
		return apperrors.New(apperrors.ErrInvalidInput, 400, "item has no file reference")
	}

	info := ParseCaption(item.Caption)
	if info == nil {
		info = InferFromFilename(item.FileName)
	}

	longURL := fmt.Sprintf("https://t.me/%s?start=get_%s", p.botUsername, item.FileRef)
	shortURL := p.shortener.Shorten(ctx, longURL)

	entry := &catalog.Entry{
		Title:       info.Title,
		Year:        info.Year,
		Quality:     info.Quality,
		Part:        info.Part,
		FileRef:     item.FileRef,
		FileName:    item.FileName,
		FileSize:    item.FileSize,
		OriginalURL: longURL,
		ShortURL:    shortURL,
		UploadedBy:  item.UploadedBy,
		UploadedAt:  time.Now().UTC(),
	}
	id, err := p.store.CreateEntry(ctx, entry)
	if err != nil {
		return fmt.Errorf("create catalog entry for %q: %w", item.FileName, err)
	}

	if p.audit != nil {
		p.audit.TrackIngest(item.UploadedBy, info.Title)
	}
	p.logger.Info("item cataloged",
		"entry_id", id,
		"title", info.Title,
		"quality", info.Quality,
		"item_id", item.ID,
	)
	return nil
}
