// Package api provides the HTTP surface: upload intake, delivery requests,
// catalog search, verification redirects, and the operational endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/auditlog"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/delivery"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/verify"
	apperrors "github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/metrics"
)

// searchLogger is satisfied by stores that persist a search log; the
// in-memory store does not, and that is fine.
type searchLogger interface {
	LogSearch(ctx context.Context, subjectID int64, query string, results int)
}

// Handler exposes the platform over HTTP.
type Handler struct {
	store        catalog.Store
	queue        *ingest.Queue
	orchestrator *delivery.Orchestrator
	ledger       *verify.Ledger
	limiter      ratelimit.Limiter
	audit        *auditlog.Collector
	adminIDs     []int64
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewHandler wires the HTTP surface. audit may be nil.
func NewHandler(
	store catalog.Store,
	queue *ingest.Queue,
	orchestrator *delivery.Orchestrator,
	ledger *verify.Ledger,
	limiter ratelimit.Limiter,
	audit *auditlog.Collector,
	adminIDs []int64,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		store:        store,
		queue:        queue,
		orchestrator: orchestrator,
		ledger:       ledger,
		limiter:      limiter,
		audit:        audit,
		adminIDs:     adminIDs,
		logger:       slog.Default().With("component", "api-handler"),
		metrics:      m,
	}
}

// Register attaches all routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/uploads", h.Upload)
	mux.HandleFunc("GET /api/v1/queue/status", h.QueueStatus)
	mux.HandleFunc("POST /api/v1/deliveries", h.RequestDelivery)
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /verify", h.Verify)
	mux.HandleFunc("GET /api/v1/verification/stats", h.VerificationStats)
	mux.HandleFunc("GET /health", h.Health)
}

// UploadRequest is the JSON body for queueing a file upload.
type UploadRequest struct {
	SubjectID int64  `json:"subject_id"`
	FileRef   string `json:"file_ref"`
	FileName  string `json:"file_name"`
	FileSize  int64  `json:"file_size"`
	Caption   string `json:"caption"`
}

// Upload queues one file for cataloging. Admin-only, rate limited per admin.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !slices.Contains(h.adminIDs, req.SubjectID) {
		h.writeError(w, http.StatusForbidden, "uploads are restricted to admins")
		return
	}
	if req.FileRef == "" || req.FileName == "" {
		h.writeError(w, http.StatusBadRequest, "file_ref and file_name are required")
		return
	}
	if !h.allow(ctx, req.SubjectID, "upload") {
		h.writeError(w, http.StatusTooManyRequests, "upload rate limit exceeded")
		return
	}

	item := ingest.NewItem(req.FileRef, req.FileName, req.FileSize, req.Caption, req.SubjectID)
	position, err := h.queue.Enqueue(ctx, item)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "upload queue unavailable")
		return
	}
	log.Info("upload queued", "item_id", item.ID, "position", position)
	h.writeJSON(w, http.StatusAccepted, map[string]any{
		"item_id":  item.ID,
		"position": position,
	})
}

// QueueStatus reports the ingest queue length and drain state.
func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.queue.Status())
}

// DeliveryRequest is the JSON body for requesting a file.
type DeliveryRequest struct {
	SubjectID  int64 `json:"subject_id"`
	ResourceID int64 `json:"resource_id"`
}

// RequestDelivery grants the file or issues a verification challenge.
func (h *Handler) RequestDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req DeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SubjectID == 0 || req.ResourceID == 0 {
		h.writeError(w, http.StatusBadRequest, "subject_id and resource_id are required")
		return
	}

	res, err := h.orchestrator.RequestDelivery(ctx, req.SubjectID, req.ResourceID)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("delivery request failed",
			"subject_id", req.SubjectID,
			"resource_id", req.ResourceID,
			"error", err,
		)
		h.writeError(w, status, "delivery request failed")
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// Search runs a rate-limited substring search over the catalog.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	subjectID, err := strconv.ParseInt(r.URL.Query().Get("subject_id"), 10, 64)
	if err != nil || subjectID == 0 {
		h.writeError(w, http.StatusBadRequest, "query parameter subject_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	if !h.allow(ctx, subjectID, "search") {
		h.writeError(w, http.StatusTooManyRequests, "search rate limit exceeded")
		return
	}

	entries, err := h.store.Search(ctx, query, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	if sl, ok := h.store.(searchLogger); ok {
		sl.LogSearch(ctx, subjectID, query, len(entries))
	}
	if h.audit != nil {
		h.audit.TrackSearch(subjectID, query, len(entries))
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"total":   len(entries),
		"results": entries,
	})
}

// Verify resolves a verification token from a followed redirect and, on
// success, delivers the file the token was issued for.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	token := r.URL.Query().Get("token")
	if token == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter token is required")
		return
	}

	res, err := h.orchestrator.HandleRedirect(ctx, token)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Warn("verification redirect rejected", "status", status, "error", err)
		h.writeError(w, status, "verification link is invalid or expired, request the file again")
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// VerificationStats reports pending/verified/expired token counts.
func (h *Handler) VerificationStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.ledger.Stats())
}

// Health is the liveness endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) allow(ctx context.Context, subjectID int64, action string) bool {
	if h.limiter == nil || h.limiter.Allow(ctx, subjectID, action) {
		return true
	}
	if h.metrics != nil {
		h.metrics.RateLimitDeniedTotal.WithLabelValues(action).Inc()
	}
	return false
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
