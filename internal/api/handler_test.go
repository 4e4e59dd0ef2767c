package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/cleanup"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/delivery"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/messaging"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/verify"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/config"
)

type passthroughShortener struct{}

func (passthroughShortener) Shorten(_ context.Context, longURL string) string { return longURL }

const adminID int64 = 1000

func newTestMux(t *testing.T) (*http.ServeMux, catalog.Store) {
	t.Helper()
	store := catalog.NewMemoryStore()
	ledger := verify.NewLedger(24*time.Hour, 24*time.Hour, nil)
	messenger := messaging.NewLogMessenger()
	scheduler := cleanup.NewScheduler(messenger, store, time.Hour, nil)
	t.Cleanup(scheduler.Shutdown)

	short := passthroughShortener{}
	orchestrator := delivery.NewOrchestrator(store, ledger, messenger, scheduler, short, nil, "filegatebot", nil)

	processor := ingest.NewProcessor(store, short, "filegatebot", nil)
	queue := ingest.NewQueue(processor, nil, 0, 5, 0, nil)
	t.Cleanup(queue.Shutdown)

	limiter := ratelimit.NewMemoryLimiter(map[string]config.ActionLimit{
		"search": {Limit: 3, Window: time.Minute},
		"upload": {Limit: 100, Window: time.Hour},
	})

	h := NewHandler(store, queue, orchestrator, ledger, limiter, nil, []int64{adminID}, nil)
	mux := http.NewServeMux()
	h.Register(mux)
	return mux, store
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func seedEntry(t *testing.T, store catalog.Store, title string) int64 {
	t.Helper()
	id, err := store.CreateEntry(context.Background(), &catalog.Entry{
		Title: title, Quality: "1080p", Part: "Complete",
		FileRef: "file-" + title, FileName: title + ".mkv", UploadedBy: adminID,
	})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	return id
}

func TestUploadRequiresAdmin(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/uploads",
		`{"subject_id": 5, "file_ref": "f1", "file_name": "a.mkv"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d for non-admin, want 403", rec.Code)
	}
}

func TestUploadQueuesItem(t *testing.T) {
	mux, store := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/uploads",
		fmt.Sprintf(`{"subject_id": %d, "file_ref": "f1", "file_name": "The.Matrix.1999.1080p.mkv", "file_size": 42}`, adminID))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body %s", rec.Code, rec.Body)
	}

	var resp struct {
		ItemID   string `json:"item_id"`
		Position int    `json:"position"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ItemID == "" || resp.Position < 1 {
		t.Errorf("response = %+v, want item id and position", resp)
	}

	// The queue drains in the background.
	deadline := time.After(5 * time.Second)
	for {
		entries, _ := store.Search(context.Background(), "matrix", 10)
		if len(entries) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("uploaded item never cataloged")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestQueueStatus(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/queue/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var st ingest.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestDeliveryFlowOverHTTP(t *testing.T) {
	mux, store := newTestMux(t)
	id := seedEntry(t, store, "Inception")

	// Unverified subject gets a challenge.
	rec := doJSON(t, mux, http.MethodPost, "/api/v1/deliveries",
		fmt.Sprintf(`{"subject_id": 7, "resource_id": %d}`, id))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body)
	}
	var res delivery.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Status != delivery.StatusChallenge {
		t.Fatalf("Status = %q, want challenge", res.Status)
	}

	// Following the link verifies and delivers.
	const marker = "?start=verify_"
	token := res.VerifyURL[strings.Index(res.VerifyURL, marker)+len(marker):]
	rec = doJSON(t, mux, http.MethodGet, "/verify?token="+token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body %s", rec.Code, rec.Body)
	}

	// Window open now: direct grant.
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/deliveries",
		fmt.Sprintf(`{"subject_id": 7, "resource_id": %d}`, id))
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Status != delivery.StatusGranted {
		t.Errorf("Status = %q after verification, want granted", res.Status)
	}
}

func TestDeliveryUnknownResource(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/deliveries",
		`{"subject_id": 7, "resource_id": 999}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestVerifyRejectsBadToken(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/verify?token=bogus", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSearchRateLimited(t *testing.T) {
	mux, store := newTestMux(t)
	seedEntry(t, store, "Inception")

	for i := 0; i < 3; i++ {
		rec := doJSON(t, mux, http.MethodGet, "/api/v1/search?q=incep&subject_id=7", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
	rec := doJSON(t, mux, http.MethodGet, "/api/v1/search?q=incep&subject_id=7", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d over the limit, want 429", rec.Code)
	}

	// Another subject is unaffected.
	rec = doJSON(t, mux, http.MethodGet, "/api/v1/search?q=incep&subject_id=8", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d for fresh subject, want 200", rec.Code)
	}
}

func TestSearchValidation(t *testing.T) {
	mux, _ := newTestMux(t)

	if rec := doJSON(t, mux, http.MethodGet, "/api/v1/search?subject_id=7", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing q: status = %d, want 400", rec.Code)
	}
	if rec := doJSON(t, mux, http.MethodGet, "/api/v1/search?q=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing subject_id: status = %d, want 400", rec.Code)
	}
}

func TestVerificationStats(t *testing.T) {
	mux, store := newTestMux(t)
	id := seedEntry(t, store, "Inception")

	doJSON(t, mux, http.MethodPost, "/api/v1/deliveries",
		fmt.Sprintf(`{"subject_id": 7, "resource_id": %d}`, id))

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/verification/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var stats verify.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.Pending != 1 {
		t.Errorf("Pending = %d, want 1", stats.Pending)
	}
}
