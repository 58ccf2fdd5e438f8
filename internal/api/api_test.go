package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"crisisrelay/internal/gdacs"
	"crisisrelay/internal/model"
	"crisisrelay/internal/storage"
)

type mockTransport struct {
	body       string
	statusCode int
	err        error
	calls      int
	gotURLs    []string
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.calls++
	m.gotURLs = append(m.gotURLs, req.URL.String())
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

// alwaysSender delivers every message with a fixed outcome.
type alwaysSender struct {
	err   error
	calls int
}

func (s *alwaysSender) Deliver(_ context.Context, _ model.QueuedMessage) error {
	s.calls++
	return s.err
}

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test-only fixture loading
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(data)
}

func newTestHandler(t *testing.T, transport *mockTransport, sender *alwaysSender) *Handler {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if sender == nil {
		sender = &alwaysSender{}
	}
	return New(log, store, gdacs.New(transport), sender, 360*time.Second)
}

func doRequest(t *testing.T, h *Handler, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestFeedSuccess(t *testing.T) {
	transport := &mockTransport{
		body:       loadFixture(t, "../gdacs/testdata/gdacs_sample.xml"),
		statusCode: 200,
	}
	h := newTestHandler(t, transport, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/feed?feed=earthquakes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	got := decode[feedSuccess](t, rec)
	if !got.Success {
		t.Error("expected success true")
	}
	if got.Count != 3 || len(got.Incidents) != 3 {
		t.Errorf("expected 3 incidents, got count=%d len=%d", got.Count, len(got.Incidents))
	}
	if diff := cmp.Diff("GDACS", got.Source); diff != "" {
		t.Errorf("source mismatch (-want +got):\n%s", diff)
	}
	if got.LastUpdated == "" {
		t.Error("expected non-empty lastUpdated")
	}
	if len(transport.gotURLs) != 1 || !strings.Contains(transport.gotURLs[0], "rss_eq") {
		t.Errorf("expected earthquake feed URL, got %v", transport.gotURLs)
	}
}

// Upstream failure degrades to an empty-but-valid 200 response.
func TestFeedUpstreamDown(t *testing.T) {
	transport := &mockTransport{err: errors.New("connection refused")}
	h := newTestHandler(t, transport, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/feed", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 despite upstream failure, got %d", rec.Code)
	}

	got := decode[feedFailure](t, rec)
	if got.Success {
		t.Error("expected success false")
	}
	if diff := cmp.Diff("Failed to fetch live disaster data", got.Error); diff != "" {
		t.Errorf("error mismatch (-want +got):\n%s", diff)
	}
	if got.Message == "" {
		t.Error("expected non-empty message")
	}
	if got.Incidents == nil || len(got.Incidents) != 0 {
		t.Errorf("expected empty incidents slice, got %v", got.Incidents)
	}
}

func TestFeedUnknownKeyDefaults(t *testing.T) {
	transport := &mockTransport{
		body:       loadFixture(t, "../gdacs/testdata/gdacs_sample.xml"),
		statusCode: 200,
	}
	h := newTestHandler(t, transport, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/feed?feed=asteroids", "")
	got := decode[feedSuccess](t, rec)
	if !got.Success {
		t.Fatal("expected success")
	}
	if len(transport.gotURLs) != 1 || !strings.Contains(transport.gotURLs[0], "rss_24h") {
		t.Errorf("expected fallback to the 24h feed, got %v", transport.gotURLs)
	}
}

func TestFeedCaching(t *testing.T) {
	transport := &mockTransport{
		body:       loadFixture(t, "../gdacs/testdata/gdacs_sample.xml"),
		statusCode: 200,
	}
	h := newTestHandler(t, transport, nil)

	for i := 0; i < 3; i++ {
		rec := doRequest(t, h, http.MethodGet, "/api/feed?feed=floods", "")
		if got := decode[feedSuccess](t, rec); !got.Success {
			t.Fatalf("request %d: expected success", i)
		}
	}
	if transport.calls != 1 {
		t.Errorf("expected 1 upstream call for 3 requests, got %d", transport.calls)
	}

	// A different feed key misses the cache.
	doRequest(t, h, http.MethodGet, "/api/feed?feed=cyclones", "")
	if transport.calls != 2 {
		t.Errorf("expected a second upstream call for a new key, got %d", transport.calls)
	}
}

func TestFeedFailureNotCached(t *testing.T) {
	transport := &mockTransport{err: errors.New("boom")}
	h := newTestHandler(t, transport, nil)

	doRequest(t, h, http.MethodGet, "/api/feed", "")

	transport.err = nil
	transport.body = loadFixture(t, "../gdacs/testdata/gdacs_sample.xml")
	transport.statusCode = 200

	rec := doRequest(t, h, http.MethodGet, "/api/feed", "")
	got := decode[feedSuccess](t, rec)
	if !got.Success {
		t.Error("expected recovery on second fetch, failure must not be cached")
	}
	if transport.calls != 2 {
		t.Errorf("expected 2 upstream calls, got %d", transport.calls)
	}
}

func TestConnectionStateRoundTrip(t *testing.T) {
	h := newTestHandler(t, &mockTransport{}, nil)

	tests := []struct {
		name string
		body string
		want model.ConnectionState
	}{
		{"online", `{"reachable":true,"peers":0}`, model.StateOnline},
		{"mesh", `{"reachable":false,"peers":3}`, model.StateMesh},
		{"isolated", `{"reachable":false,"peers":0}`, model.StateIsolated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPut, "/api/connection", tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			got := decode[connectionResponse](t, rec)
			if got.State != tt.want {
				t.Errorf("expected state %q, got %q", tt.want, got.State)
			}
			if got.Label == "" || got.Description == "" {
				t.Error("expected label and description")
			}

			rec = doRequest(t, h, http.MethodGet, "/api/connection", "")
			if got := decode[connectionResponse](t, rec); got.State != tt.want {
				t.Errorf("GET after PUT: expected %q, got %q", tt.want, got.State)
			}
		})
	}
}

func TestEnqueue(t *testing.T) {
	h := newTestHandler(t, &mockTransport{}, nil)

	rec := doRequest(t, h, http.MethodPost, "/api/queue/messages",
		`{"type":"sos","payload":{"lat":1,"lng":2}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	msg := decode[model.QueuedMessage](t, rec)
	if msg.Type != model.TypeSOS {
		t.Errorf("expected type sos, got %q", msg.Type)
	}
	if msg.Status != model.StatusQueued || msg.Retries != 0 {
		t.Errorf("bad initial state: status=%q retries=%d", msg.Status, msg.Retries)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/queue", "")
	q := decode[queueResponse](t, rec)
	if q.Count != 1 || len(q.Messages) != 1 {
		t.Errorf("expected 1 queued message, got count=%d len=%d", q.Count, len(q.Messages))
	}
}

func TestEnqueueInvalidType(t *testing.T) {
	h := newTestHandler(t, &mockTransport{}, nil)

	rec := doRequest(t, h, http.MethodPost, "/api/queue/messages",
		`{"type":"broadcast","payload":{}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid type, got %d", rec.Code)
	}
	got := decode[errorBody](t, rec)
	if got.Success || got.Error == "" {
		t.Errorf("expected error envelope, got %+v", got)
	}
}

func TestDrainSuccessRemovesMessages(t *testing.T) {
	sender := &alwaysSender{}
	h := newTestHandler(t, &mockTransport{}, sender)

	doRequest(t, h, http.MethodPost, "/api/queue/messages", `{"type":"sos","payload":{}}`)
	doRequest(t, h, http.MethodPost, "/api/queue/messages", `{"type":"report","payload":{}}`)

	rec := doRequest(t, h, http.MethodPost, "/api/queue/drain", "")
	got := decode[drainResponse](t, rec)
	if !got.Success || got.Processed != 2 {
		t.Fatalf("expected 2 processed, got %+v", got)
	}
	if len(got.Successful) != 2 || len(got.Failed) != 0 {
		t.Errorf("expected all successful, got %+v", got)
	}
	if got.Remaining != 0 {
		t.Errorf("expected empty queue, got %d remaining", got.Remaining)
	}
	if sender.calls != 2 {
		t.Errorf("expected 2 deliveries, got %d", sender.calls)
	}
}

func TestDrainFailureKeepsMessages(t *testing.T) {
	sender := &alwaysSender{err: errors.New("no route")}
	h := newTestHandler(t, &mockTransport{}, sender)

	doRequest(t, h, http.MethodPost, "/api/queue/messages", `{"type":"verification","payload":{}}`)

	rec := doRequest(t, h, http.MethodPost, "/api/queue/drain", "")
	got := decode[drainResponse](t, rec)
	if len(got.Failed) != 1 || got.Remaining != 1 {
		t.Fatalf("expected 1 failed message kept, got %+v", got)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/queue", "")
	q := decode[queueResponse](t, rec)
	if len(q.Messages) != 1 {
		t.Fatalf("expected 1 message still queued, got %d", len(q.Messages))
	}
	if q.Messages[0].Status != model.StatusFailed {
		t.Errorf("expected status failed, got %q", q.Messages[0].Status)
	}
	if q.Messages[0].Retries != 1 {
		t.Errorf("expected retries 1 after failed drain, got %d", q.Messages[0].Retries)
	}
}

func TestClearQueue(t *testing.T) {
	h := newTestHandler(t, &mockTransport{}, nil)

	doRequest(t, h, http.MethodPost, "/api/queue/messages", `{"type":"sos","payload":{}}`)
	doRequest(t, h, http.MethodDelete, "/api/queue", "")

	rec := doRequest(t, h, http.MethodGet, "/api/queue", "")
	q := decode[queueResponse](t, rec)
	if q.Count != 0 {
		t.Errorf("expected empty queue after clear, got %d", q.Count)
	}
}

// blockingSender holds every delivery until released, so a test can
// keep a drain in flight.
type blockingSender struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingSender) Deliver(ctx context.Context, _ model.QueuedMessage) error {
	s.started <- struct{}{}
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestConcurrentDrainRefused(t *testing.T) {
	sender := &blockingSender{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(log, store, gdacs.New(&mockTransport{}), sender, time.Minute)

	doRequest(t, h, http.MethodPost, "/api/queue/messages", `{"type":"sos","payload":{}}`)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- doRequest(t, h, http.MethodPost, "/api/queue/drain", "")
	}()

	<-sender.started

	rec := doRequest(t, h, http.MethodPost, "/api/queue/drain", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for concurrent drain, got %d", rec.Code)
	}

	close(sender.release)
	first := <-done
	if first.Code != http.StatusOK {
		t.Errorf("expected first drain to finish with 200, got %d", first.Code)
	}
}

func TestPrefsRoundTrip(t *testing.T) {
	h := newTestHandler(t, &mockTransport{}, nil)

	rec := doRequest(t, h, http.MethodPut, "/api/prefs/theme", `{"value":"dark"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put: expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/prefs/theme", "")
	pref := decode[model.Pref](t, rec)
	if diff := cmp.Diff("dark", pref.Value); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/prefs", "")
	prefs := decode[[]model.Pref](t, rec)
	if len(prefs) != 1 {
		t.Errorf("expected 1 pref, got %d", len(prefs))
	}

	rec = doRequest(t, h, http.MethodDelete, "/api/prefs/theme", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/prefs/theme", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, &mockTransport{}, nil)
	rec := doRequest(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
