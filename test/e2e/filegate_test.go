//go:build e2e

// Package e2e contains end-to-end tests that exercise a running filegate
// instance over HTTP: upload intake, catalog search, and the full
// challenge-then-deliver verification flow.
//
// Prerequisites:
//   - filegate running (any storage driver)
//   - the test admin ID present in bot.adminIds
//
// Run with:
//
//	go test -v -tags=e2e -timeout=120s ./test/e2e/...
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

func baseURL() string {
	if url := os.Getenv("E2E_FILEGATE_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func adminID() int64 {
	return 1000
}

func postJSON(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(baseURL()+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return resp, decoded
}

func getJSON(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(baseURL() + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return resp, decoded
}

func TestHealth(t *testing.T) {
	resp, body := getJSON(t, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/health status = %d", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("/health body = %v", body)
	}
}

func TestUploadSearchDeliverFlow(t *testing.T) {
	title := fmt.Sprintf("E2E Film %d", time.Now().UnixNano())

	// Admin queues an upload.
	resp, body := postJSON(t, "/api/v1/uploads", map[string]any{
		"subject_id": adminID(),
		"file_ref":   fmt.Sprintf("e2e-ref-%d", time.Now().UnixNano()),
		"file_name":  "e2e.mkv",
		"file_size":  1024,
		"caption":    title + " | 2024 | 1080p | Complete",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("upload status = %d, body %v", resp.StatusCode, body)
	}

	// Wait for the queue to catalog it.
	var resourceID float64
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		_, result := getJSON(t, fmt.Sprintf("/api/v1/search?q=%s&subject_id=%d",
			strings.ReplaceAll(title, " ", "+"), adminID()))
		if results, ok := result["results"].([]any); ok && len(results) == 1 {
			entry := results[0].(map[string]any)
			resourceID = entry["id"].(float64)
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if resourceID == 0 {
		t.Fatal("uploaded file never appeared in search results")
	}

	// A fresh subject gets a verification challenge.
	subjectID := time.Now().UnixNano()
	resp, body = postJSON(t, "/api/v1/deliveries", map[string]any{
		"subject_id":  subjectID,
		"resource_id": resourceID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delivery status = %d, body %v", resp.StatusCode, body)
	}
	if body["status"] != "challenge_issued" {
		t.Fatalf("delivery status field = %v, want challenge_issued", body["status"])
	}
	verifyURL, _ := body["verify_url"].(string)
	const marker = "?start=verify_"
	i := strings.Index(verifyURL, marker)
	if i < 0 {
		t.Fatalf("verify_url %q carries no token", verifyURL)
	}
	token := verifyURL[i+len(marker):]

	// Following the link verifies the subject and delivers the file.
	resp, body = getJSON(t, "/verify?token="+token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d, body %v", resp.StatusCode, body)
	}
	if body["status"] != "granted" {
		t.Fatalf("verify status field = %v, want granted", body["status"])
	}

	// A second use of the token is rejected.
	resp, _ = getJSON(t, "/verify?token="+token)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("token reuse status = %d, want 404", resp.StatusCode)
	}

	// The window is open now: delivery goes straight through.
	resp, body = postJSON(t, "/api/v1/deliveries", map[string]any{
		"subject_id":  subjectID,
		"resource_id": resourceID,
	})
	if resp.StatusCode != http.StatusOK || body["status"] != "granted" {
		t.Fatalf("post-verification delivery = %d / %v, want granted", resp.StatusCode, body["status"])
	}
}

func TestVerificationStatsExposed(t *testing.T) {
	resp, body := getJSON(t, "/api/v1/verification/stats")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status = %d", resp.StatusCode)
	}
	for _, key := range []string{"pending", "verified", "expired"} {
		if _, ok := body[key]; !ok {
			t.Errorf("stats response missing %q: %v", key, body)
		}
	}
}
