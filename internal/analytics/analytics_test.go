package analytics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qcjiangqianchen/bolt.diy/internal/log"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 9, 1, 15, 30, 0, 0, time.UTC)
	events := []Event{
		{App: "demo", Path: "/", SessionID: "s1", At: now.Add(-10 * time.Minute)},
		{App: "demo", Path: "/", SessionID: "s2", At: now.Add(-2 * time.Hour)},
		{App: "demo", Path: "/about", SessionID: "s1", At: now.Add(-25 * time.Hour)},
		{App: "demo", Path: "/", SessionID: "s3", At: now.AddDate(0, 0, -3)},
	}

	s := Summarize(events, now)

	assert.Equal(t, 4, s.TotalViews)
	assert.Equal(t, 3, s.UniqueSessions)

	require.Len(t, s.TopPages, 2)
	assert.Equal(t, PageCount{Path: "/", Views: 3}, s.TopPages[0])
	assert.Equal(t, PageCount{Path: "/about", Views: 1}, s.TopPages[1])

	require.Len(t, s.ViewsByHour, 24)
	assert.Equal(t, 1, s.ViewsByHour[23], "current hour")
	assert.Equal(t, 1, s.ViewsByHour[21], "two hours ago")

	require.Len(t, s.ViewsByDay, 7)
	assert.Equal(t, "2026-09-01", s.ViewsByDay[6].Day)
	assert.Equal(t, 2, s.ViewsByDay[6].Views)
	assert.Equal(t, 1, s.ViewsByDay[5].Views, "yesterday")
	assert.Equal(t, 1, s.ViewsByDay[3].Views, "three days ago")
}

func TestSummarize_TopPagesCappedAtTen(t *testing.T) {
	t.Parallel()

	now := time.Now()
	var events []Event
	for _, p := range []string{"/a", "/b", "/c", "/d", "/e", "/f", "/g", "/h", "/i", "/j", "/k", "/l"} {
		events = append(events, Event{App: "demo", Path: p, At: now})
	}

	s := Summarize(events, now)
	assert.Len(t, s.TopPages, 10)
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()

	s := Summarize(nil, time.Now())
	assert.Zero(t, s.TotalViews)
	assert.Zero(t, s.UniqueSessions)
	assert.Empty(t, s.TopPages)
	assert.Len(t, s.ViewsByHour, 24)
	assert.Len(t, s.ViewsByDay, 7)
}

func TestMemoryStore_RecordAndQuery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(100, 0, log.NewNop())

	require.NoError(t, store.RecordEvent(ctx, Event{App: "demo", Path: "/", SessionID: "s1"}))
	require.NoError(t, store.RecordEvent(ctx, Event{App: "other", Path: "/", SessionID: "s2"}))

	events, err := store.EventsFor(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "demo", events[0].App)
	assert.False(t, events[0].At.IsZero())
}

func TestMemoryStore_AppRequired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(10, 0, log.NewNop())

	assert.ErrorIs(t, store.RecordEvent(ctx, Event{Path: "/"}), ErrAppRequired)

	_, err := store.EventsFor(ctx, "")
	assert.ErrorIs(t, err, ErrAppRequired)
}

func TestMemoryStore_CapEvictsOldest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(3, 0, log.NewNop())

	for _, p := range []string{"/1", "/2", "/3", "/4"} {
		require.NoError(t, store.RecordEvent(ctx, Event{App: "demo", Path: p}))
	}

	events, err := store.EventsFor(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "/2", events[0].Path)
	assert.Equal(t, "/4", events[2].Path)
}

func TestMemoryStore_Prune(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(0, 0, log.NewNop())
	now := time.Now()

	require.NoError(t, store.RecordEvent(ctx, Event{App: "demo", Path: "/old", At: now.Add(-48 * time.Hour)}))
	require.NoError(t, store.RecordEvent(ctx, Event{App: "demo", Path: "/new", At: now}))

	dropped, err := store.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), dropped)

	events, err := store.EventsFor(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "/new", events[0].Path)
}

func TestPrunePeriodically_DropsExpiredEvents(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewMemoryStore(0, 0, log.NewNop())
	require.NoError(t, store.RecordEvent(ctx, Event{App: "demo", Path: "/old", At: time.Now().Add(-48 * time.Hour)}))
	require.NoError(t, store.RecordEvent(ctx, Event{App: "demo", Path: "/new", At: time.Now()}))

	go PrunePeriodically(ctx, store, 24*time.Hour, 5*time.Millisecond, log.NewNop())

	require.Eventually(t, func() bool {
		events, err := store.EventsFor(ctx, "demo")
		return err == nil && len(events) == 1
	}, 2*time.Second, 5*time.Millisecond, "expired event should be pruned on a tick")

	events, err := store.EventsFor(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "/new", events[0].Path)
}

func TestPrunePeriodically_DisabledWithoutRetention(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(0, 0, log.NewNop())
	PrunePeriodically(context.Background(), store, 0, time.Millisecond, log.NewNop())
}

func TestInjectTracer_BeforeBody(t *testing.T) {
	t.Parallel()

	html := "<html><body><h1>hi</h1></body></html>"
	out := InjectTracer(html, "https://boltd.example.com", "demo-ab12")

	assert.Contains(t, out, tracerMarker)
	assert.Less(t, strings.Index(out, tracerMarker), strings.Index(out, "</body>"))
	assert.Contains(t, out, `"https://boltd.example.com"`)
	assert.Contains(t, out, `"demo-ab12"`)
}

func TestInjectTracer_Fallbacks(t *testing.T) {
	t.Parallel()

	noBody := InjectTracer("<html><p>hi</p></html>", "https://o", "a")
	assert.Less(t, strings.Index(noBody, tracerMarker), strings.Index(noBody, "</html>"))

	bare := InjectTracer("<p>hi</p>", "https://o", "a")
	assert.Contains(t, bare, tracerMarker)
	assert.True(t, strings.HasPrefix(bare, "<p>hi</p>"))
}

func TestInjectTracer_Idempotent(t *testing.T) {
	t.Parallel()

	once := InjectTracer("<body></body>", "https://o", "a")
	twice := InjectTracer(once, "https://o", "a")
	assert.Equal(t, once, twice)
}
