package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/qcjiangqianchen/bolt.diy/internal/analytics"
	"github.com/qcjiangqianchen/bolt.diy/internal/log"
	"github.com/qcjiangqianchen/bolt.diy/internal/web/handlers"
)

func newAnalyticsHandler(limit rate.Limit, burst int) (*handlers.Analytics, *analytics.MemoryStore) {
	store := analytics.NewMemoryStore(1000, 0, log.NewNop())
	h := handlers.NewAnalytics(handlers.AnalyticsConfig{
		Logger:    log.NewNop(),
		Store:     store,
		RateLimit: limit,
		RateBurst: burst,
		Now:       func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) },
	})
	return h, store
}

func TestAnalytics_RecordAndSummarize(t *testing.T) {
	t.Parallel()

	h, _ := newAnalyticsHandler(100, 100)

	post := func(query string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.Handle(rec, httptest.NewRequest(http.MethodPost, "/analytics?"+query, nil))
		return rec
	}

	rec := post("app=demo&path=/&sid=s1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	post("app=demo&path=/&sid=s2")
	post("app=demo&path=/about&sid=s1")

	rec = httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/analytics?app=demo", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var summary analytics.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.TotalViews)
	assert.Equal(t, 2, summary.UniqueSessions)
	require.NotEmpty(t, summary.TopPages)
	assert.Equal(t, "/", summary.TopPages[0].Path)
}

func TestAnalytics_TimestampParameter(t *testing.T) {
	t.Parallel()

	h, store := newAnalyticsHandler(100, 100)
	at := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodPost,
		"/analytics?app=demo&path=/&sid=s1&ts="+strconv.FormatInt(at.UnixMilli(), 10), nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	events, err := store.EventsFor(context.Background(), "demo")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].At.Equal(at))
}

func TestAnalytics_Preflight(t *testing.T) {
	t.Parallel()

	h, _ := newAnalyticsHandler(100, 100)
	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodOptions, "/analytics", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAnalytics_MissingApp(t *testing.T) {
	t.Parallel()

	h, _ := newAnalyticsHandler(100, 100)

	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodPost, "/analytics?path=/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/analytics", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalytics_RateLimited(t *testing.T) {
	t.Parallel()

	h, _ := newAnalyticsHandler(1, 1)

	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodPost, "/analytics?app=demo", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodPost, "/analytics?app=demo", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAnalytics_WrongMethod(t *testing.T) {
	t.Parallel()

	h, _ := newAnalyticsHandler(100, 100)
	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodDelete, "/analytics?app=demo", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
