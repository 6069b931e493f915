package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qcjiangqianchen/bolt.diy/internal/log"
	"github.com/qcjiangqianchen/bolt.diy/internal/testutil"
	"github.com/qcjiangqianchen/bolt.diy/internal/watch"
	"github.com/qcjiangqianchen/bolt.diy/internal/web/handlers"
)

type fakeWatcher struct {
	events chan watch.Change
	closed bool
}

func (f *fakeWatcher) Events() <-chan watch.Change { return f.events }

func (f *fakeWatcher) Close() error {
	f.closed = true
	return nil
}

func TestFilesWatch_StreamsChanges(t *testing.T) {
	t.Parallel()

	fw := &fakeWatcher{events: make(chan watch.Change, 2)}
	fw.events <- watch.Change{Path: "src/App.tsx", Kind: watch.KindModify}
	fw.events <- watch.Change{Path: "old.txt", Kind: watch.KindRemove}
	close(fw.events)

	var gotSession string
	h := handlers.NewFiles(handlers.FilesConfig{
		Logger: log.NewNop(),
		NewWatcher: func(sessionID string) (watch.Watcher, error) {
			gotSession = sessionID
			return fw, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/files/watch?sessionId=sess-1", nil)
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	require.Equal(t, "sess-1", gotSession)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.True(t, fw.closed, "watcher should be closed when the stream ends")

	events := testutil.FindAllEvents(testutil.ParseSSEEvents(t, rec.Body.String()), "fileChange")
	require.Len(t, events, 2)

	var change map[string]string
	require.NoError(t, json.Unmarshal([]byte(events[0].Data), &change))
	assert.Equal(t, "src/App.tsx", change["path"])
	assert.Equal(t, "modify", change["kind"])

	require.NoError(t, json.Unmarshal([]byte(events[1].Data), &change))
	assert.Equal(t, "old.txt", change["path"])
	assert.Equal(t, "remove", change["kind"])
}

func TestFilesWatch_Errors(t *testing.T) {
	t.Parallel()

	h := handlers.NewFiles(handlers.FilesConfig{
		Logger: log.NewNop(),
		NewWatcher: func(string) (watch.Watcher, error) {
			return nil, errors.New("boom")
		},
	})

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
	}{
		{name: "wrong method", method: http.MethodPost, target: "/api/files/watch?sessionId=s1", wantStatus: http.StatusMethodNotAllowed},
		{name: "missing session id", method: http.MethodGet, target: "/api/files/watch", wantStatus: http.StatusBadRequest},
		{name: "traversal session id", method: http.MethodGet, target: "/api/files/watch?sessionId=..%2Fetc", wantStatus: http.StatusBadRequest},
		{name: "watcher setup fails", method: http.MethodGet, target: "/api/files/watch?sessionId=s1", wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, tt.target, nil)
			rec := httptest.NewRecorder()
			h.Handle(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
