package desksdk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
	ch    chan Snapshot
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Snapshot, 256)}
}

func (r *recorder) record(s Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
	select {
	case r.ch <- s:
	default:
	}
}

// statuses returns the status sequence with consecutive duplicates removed.
func (r *recorder) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Status
	for _, s := range r.snaps {
		if len(out) == 0 || out[len(out)-1] != s.Status {
			out = append(out, s.Status)
		}
	}
	return out
}

func (r *recorder) waitFor(t *testing.T, pred func(Snapshot) bool) Snapshot {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case s := <-r.ch:
			if pred(s) {
				return s
			}
		case <-timeout:
			t.Fatal("timed out waiting for driver state")
			return Snapshot{}
		}
	}
}

func newTestDriver(t *testing.T, h http.HandlerFunc) (*Driver, *recorder) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(srv.URL)
	c.BearerToken = "token"
	c.HTTPClient = srv.Client()
	c.StreamClient = srv.Client()
	d := NewDriver(c)
	rec := newRecorder()
	d.OnChange = rec.record
	return d, rec
}

func decodeChat(t *testing.T, r *http.Request) ChatRequest {
	t.Helper()
	var req ChatRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func writeChunks(w http.ResponseWriter, chunks ...string) {
	f := w.(http.Flusher)
	for _, c := range chunks {
		io.WriteString(w, c)
		f.Flush()
	}
}

func TestDriverAppendsChunksInOrder(t *testing.T) {
	reqs := make(chan ChatRequest, 1)
	d, rec := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		reqs <- decodeChat(t, r)
		w.Header().Set(ConversationHeader, "conv-1")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		writeChunks(w, "Hel", "lo ", "world")
	})

	require.NoError(t, d.Send(context.Background(), "hi"))
	snap := d.Snapshot()
	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, "conv-1", snap.ConversationID)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, Message{Role: "user", Content: "hi"}, snap.Messages[0])
	assert.Equal(t, Message{Role: "assistant", Content: "Hello world"}, snap.Messages[1])
	assert.Nil(t, snap.Err)

	got := <-reqs
	assert.Equal(t, []Message{{Role: "user", Content: "hi"}}, got.Messages)
	assert.Empty(t, got.ConversationID)
	statuses := rec.statuses()
	assert.Equal(t, StatusStreaming, statuses[0])
	assert.Equal(t, StatusReady, statuses[len(statuses)-1])
}

func TestDriverSendsConversationIDOnNextTurn(t *testing.T) {
	reqs := make(chan ChatRequest, 2)
	d, _ := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		reqs <- decodeChat(t, r)
		w.Header().Set(ConversationHeader, "conv-9")
		writeChunks(w, "ok")
	})
	require.NoError(t, d.Send(context.Background(), "one"))
	require.NoError(t, d.Send(context.Background(), "two"))

	<-reqs
	second := <-reqs
	assert.Equal(t, "conv-9", second.ConversationID)
	assert.Equal(t, []Message{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "ok"},
		{Role: "user", Content: "two"},
	}, second.Messages)
}

func TestDriverReportsActingWhileBodyIsSilent(t *testing.T) {
	release := make(chan struct{})
	d, rec := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(ConversationHeader, "conv-2")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		writeChunks(w, "You have 3 brands.")
	})
	d.ActingAfter = 20 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- d.Send(context.Background(), "status?") }()
	rec.waitFor(t, func(s Snapshot) bool { return s.Status == StatusActing })
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, []Status{StatusStreaming, StatusActing, StatusStreaming, StatusReady}, rec.statuses())
	assert.Equal(t, "You have 3 brands.", d.Snapshot().Messages[1].Content)
}

func TestDriverFramedEvents(t *testing.T) {
	d, rec := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, NDJSONContentType, r.Header.Get("Accept"))
		w.Header().Set(ConversationHeader, "conv-3")
		w.Header().Set("Content-Type", NDJSONContentType)
		writeChunks(w,
			`{"type":"tool-start","tool":"get_pipeline_status","callId":"c1"}`+"\n",
			`{"type":"tool-result","tool":"get_pipeline_status","callId":"c1"}`+"\n",
			`{"type":"text-delta","text":"All "}`+"\n",
			`{"type":"text-delta","text":"good."}`+"\n",
			`{"type":"done","conversationId":"conv-3"}`+"\n",
		)
	})
	d.Framed = true
	d.ActingAfter = time.Hour

	require.NoError(t, d.Send(context.Background(), "status?"))
	assert.Equal(t, []Status{StatusStreaming, StatusActing, StatusStreaming, StatusReady}, rec.statuses())

	var sawTool bool
	rec.mu.Lock()
	for _, s := range rec.snaps {
		if s.Status == StatusActing && s.Tool == "get_pipeline_status" {
			sawTool = true
		}
	}
	rec.mu.Unlock()
	assert.True(t, sawTool)
	snap := d.Snapshot()
	assert.Equal(t, "All good.", snap.Messages[1].Content)
	assert.Equal(t, "conv-3", snap.ConversationID)
}

func TestDriverFramedErrorEvent(t *testing.T) {
	d, _ := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(ConversationHeader, "conv-4")
		w.Header().Set("Content-Type", NDJSONContentType)
		writeChunks(w,
			`{"type":"text-delta","text":"Working on it"}`+"\n",
			`{"type":"error","code":"invalid_credentials","message":"Update your API key in Settings."}`+"\n",
		)
	})
	d.Framed = true

	err := d.Send(context.Background(), "draft an email")
	var se *StreamError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "invalid_credentials", se.Code)
	snap := d.Snapshot()
	assert.Equal(t, "Working on it"+ErrorMarker+"Update your API key in Settings.", snap.Messages[1].Content)
	assert.ErrorAs(t, snap.Err, &se)
}

func TestDriverFramedStreamCutBeforeDone(t *testing.T) {
	d, _ := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(ConversationHeader, "conv-5")
		w.Header().Set("Content-Type", NDJSONContentType)
		writeChunks(w, `{"type":"text-delta","text":"Half an ans"}`+"\n")
	})
	d.Framed = true

	err := d.Send(context.Background(), "summarize my pipeline")
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	snap := d.Snapshot()
	assert.Equal(t, StatusReady, snap.Status)
	assert.ErrorIs(t, snap.Err, io.ErrUnexpectedEOF)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "Half an ans"+ErrorMarker+streamCutMessage, snap.Messages[1].Content)
}

func TestDriverPreStreamError(t *testing.T) {
	d, _ := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPreconditionFailed)
		io.WriteString(w, `{"error":{"code":"missing_credentials","message":"Add your API key in Settings."}}`)
	})
	err := d.Send(context.Background(), "hi")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusPreconditionFailed, apiErr.StatusCode)
	assert.Equal(t, "missing_credentials", apiErr.Code)

	snap := d.Snapshot()
	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, []Message{{Role: "user", Content: "hi"}}, snap.Messages)
	assert.Empty(t, snap.ConversationID)
}

func TestDriverAbortDiscardsPartialAnswer(t *testing.T) {
	d, rec := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(ConversationHeader, "conv-5")
		writeChunks(w, "partial")
		<-r.Context().Done()
	})

	done := make(chan error, 1)
	go func() { done <- d.Send(context.Background(), "write me a pitch") }()
	rec.waitFor(t, func(s Snapshot) bool {
		return len(s.Messages) == 2 && s.Messages[1].Content == "partial"
	})

	busy := d.Send(context.Background(), "another")
	assert.ErrorIs(t, busy, ErrBusy)

	d.Abort()
	require.ErrorIs(t, <-done, ErrAborted)
	snap := d.Snapshot()
	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, []Message{{Role: "user", Content: "write me a pitch"}}, snap.Messages)
	assert.Nil(t, snap.Err)
	assert.Equal(t, "conv-5", snap.ConversationID)
}

func TestDriverResetDuringTurn(t *testing.T) {
	d, rec := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(ConversationHeader, "conv-6")
		writeChunks(w, "thinking")
		<-r.Context().Done()
	})
	done := make(chan error, 1)
	go func() { done <- d.Send(context.Background(), "hi") }()
	rec.waitFor(t, func(s Snapshot) bool { return len(s.Messages) == 2 && s.Messages[1].Content != "" })

	d.Reset()
	require.True(t, errors.Is(<-done, ErrAborted))
	snap := d.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.ConversationID)
}

func TestDriverLoadConversation(t *testing.T) {
	d, _ := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/conversations/conv-7", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"conv-7","title":"hi","createdAt":"2025-03-01T09:00:00.000000Z","updatedAt":"2025-03-01T09:00:02.000000Z",
"messages":[{"id":"m1","role":"user","content":"hi","createdAt":"2025-03-01T09:00:01.000000Z"},{"id":"m2","role":"assistant","content":"hello","createdAt":"2025-03-01T09:00:02.000000Z"}]}`)
	})
	require.NoError(t, d.Load(context.Background(), "conv-7"))
	snap := d.Snapshot()
	assert.Equal(t, "conv-7", snap.ConversationID)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "user", snap.Messages[0].Role)
	assert.Equal(t, "hi", snap.Messages[0].Content)
	assert.Equal(t, "assistant", snap.Messages[1].Role)
	assert.Equal(t, "hello", snap.Messages[1].Content)
}
