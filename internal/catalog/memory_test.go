package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/errors"
)

func TestMemoryStoreCreateAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.CreateEntry(ctx, &Entry{
		Title:      "Space Odyssey",
		Year:       1968,
		Quality:    "1080p",
		Part:       "Complete",
		FileRef:    "file-abc",
		FileName:   "space.odyssey.1968.1080p.mkv",
		UploadedBy: 42,
	})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	got, err := s.GetEntry(ctx, id)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.Title != "Space Odyssey" || got.FileRef != "file-abc" {
		t.Errorf("GetEntry = %+v", got)
	}

	_, err = s.GetEntry(ctx, 9999)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("GetEntry(9999) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreIncrementUseCount(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id, _ := s.CreateEntry(ctx, &Entry{Title: "A", FileRef: "f", UploadedBy: 1})

	if err := s.IncrementUseCount(ctx, id); err != nil {
		t.Fatalf("IncrementUseCount: %v", err)
	}
	got, _ := s.GetEntry(ctx, id)
	if got.UseCount != 1 {
		t.Errorf("UseCount = %d, want 1", got.UseCount)
	}
	if got.LastAccess == nil {
		t.Error("LastAccess not stamped")
	}

	if err := s.IncrementUseCount(ctx, 555); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("IncrementUseCount(555) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreSearch(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.CreateEntry(ctx, &Entry{Title: "The Great Escape", FileRef: "a", UploadedBy: 1})
	s.CreateEntry(ctx, &Entry{Title: "Great Expectations", FileRef: "b", UploadedBy: 1, UseCount: 5})
	s.CreateEntry(ctx, &Entry{Title: "Unrelated", FileRef: "c", UploadedBy: 1})

	got, err := s.Search(ctx, "great", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Search returned %d entries, want 2", len(got))
	}
	// Higher use count ranks first.
	if got[0].Title != "Great Expectations" {
		t.Errorf("first result = %q, want Great Expectations", got[0].Title)
	}
}

func TestMemoryStoreDeliveryJournal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	id, err := s.LogDelivery(ctx, &DeliveryRecord{
		SubjectID:  7,
		ResourceID: 1,
		CleanupAt:  now.Add(10 * time.Minute),
	})
	if err != nil {
		t.Fatalf("LogDelivery: %v", err)
	}

	pending, err := s.PendingCleanups(ctx)
	if err != nil {
		t.Fatalf("PendingCleanups: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("PendingCleanups = %+v, want one record id=%d", pending, id)
	}

	if err := s.MarkCleanupFired(ctx, id); err != nil {
		t.Fatalf("MarkCleanupFired: %v", err)
	}
	pending, _ = s.PendingCleanups(ctx)
	if len(pending) != 0 {
		t.Errorf("PendingCleanups after fire = %+v, want empty", pending)
	}
}
