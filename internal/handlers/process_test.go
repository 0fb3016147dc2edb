package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"videotemplate-render-service/internal/fingerprint"
	"videotemplate-render-service/internal/jobstore"
	"videotemplate-render-service/internal/queue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestProcessHandler(t *testing.T) (*ProcessHandler, *jobstore.Store) {
	t.Helper()
	store := jobstore.New(nil, nil, time.Hour)
	t.Cleanup(store.Close)

	q := queue.New(store, nil, 2, 2, time.Minute)

	return &ProcessHandler{
		Store:                 store,
		Queue:                 q,
		MaxActiveJobsPerOwner: 2,
	}, store
}

func performEnqueue(h *ProcessHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	h.Enqueue(c)
	return rec
}

func TestEnqueue_RejectsEmptyVideos(t *testing.T) {
	h, _ := newTestProcessHandler(t)
	rec := performEnqueue(h, `{"videos":[],"templates":{"vertical":{"url":"https://example.com/t.png","originalName":"t.png"}}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestEnqueue_RejectsEmptyTemplates(t *testing.T) {
	h, _ := newTestProcessHandler(t)
	rec := performEnqueue(h, `{"videos":[{"url":"https://example.com/v.mp4","originalName":"v.mp4"}],"templates":{}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestEnqueue_RejectsOverCap(t *testing.T) {
	h, store := newTestProcessHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/process", nil)
	owner := fingerprint.Derive(req)

	store.Create(&jobstore.Job{ID: "a", Owner: owner, Status: jobstore.StatusPending})
	store.Create(&jobstore.Job{ID: "b", Owner: owner, Status: jobstore.StatusProcessing})

	body := `{"videos":[{"url":"https://example.com/v.mp4","originalName":"v.mp4"}],"templates":{"vertical":{"url":"https://example.com/t.png","originalName":"t.png"}}}`
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/process", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Enqueue(c)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStatus_NotFound(t *testing.T) {
	h, _ := newTestProcessHandler(t)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/process/does-not-exist", nil)
	c.Params = gin.Params{{Key: "jobId", Value: "does-not-exist"}}

	h.Status(c)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStatusMessage(t *testing.T) {
	cases := []struct {
		job  jobstore.Job
		want string
	}{
		{jobstore.Job{Status: jobstore.StatusPending}, "queued, waiting for a worker"},
		{jobstore.Job{Status: jobstore.StatusCompleted}, "all variants rendered"},
		{jobstore.Job{Status: jobstore.StatusFailed, Error: "boom"}, "boom"},
	}
	for _, tc := range cases {
		if got := statusMessage(&tc.job); got != tc.want {
			t.Errorf("statusMessage(%v) = %q, want %q", tc.job.Status, got, tc.want)
		}
	}
}
