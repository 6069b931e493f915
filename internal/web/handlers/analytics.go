package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/qcjiangqianchen/bolt.diy/internal/analytics"
	"github.com/qcjiangqianchen/bolt.diy/internal/log"
)

// AnalyticsConfig configures the analytics handler.
type AnalyticsConfig struct {
	Logger    log.Logger
	Store     analytics.Store
	RateLimit rate.Limit
	RateBurst int
	// Now is overridable in tests. nil means time.Now.
	Now func() time.Time
}

// Analytics handles the page-view ingest and summary endpoints. Both are
// CORS-open: the tracer posts from deployed apps on foreign origins.
type Analytics struct {
	logger  log.Logger
	store   analytics.Store
	limiter *rate.Limiter
	now     func() time.Time
}

// NewAnalytics creates the analytics handler.
func NewAnalytics(cfg AnalyticsConfig) *Analytics {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Analytics{
		logger:  logger,
		store:   cfg.Store,
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		now:     now,
	}
}

// RegisterRoutes registers the analytics routes on the given mux.
func (a *Analytics) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/analytics", a.Handle)
}

func (a *Analytics) Handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPost:
		a.record(w, r)
	case http.MethodGet:
		a.summary(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *Analytics) record(w http.ResponseWriter, r *http.Request) {
	if !a.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	q := r.URL.Query()
	app := q.Get("app")
	if app == "" {
		writeError(w, http.StatusBadRequest, "app is required")
		return
	}

	at := a.now()
	if ts := q.Get("ts"); ts != "" {
		if ms, err := strconv.ParseInt(ts, 10, 64); err == nil && ms > 0 {
			at = time.UnixMilli(ms)
		}
	}

	ev := analytics.Event{
		App:       app,
		Path:      q.Get("path"),
		SessionID: q.Get("sid"),
		At:        at,
	}
	if err := a.store.RecordEvent(r.Context(), ev); err != nil {
		a.logger.Error("record analytics event failed", "app", app, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Analytics) summary(w http.ResponseWriter, r *http.Request) {
	app := r.URL.Query().Get("app")
	if app == "" {
		writeError(w, http.StatusBadRequest, "app is required")
		return
	}

	events, err := a.store.EventsFor(r.Context(), app)
	if err != nil {
		a.logger.Error("load analytics events failed", "app", app, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	writeJSON(w, http.StatusOK, analytics.Summarize(events, a.now()))
}
