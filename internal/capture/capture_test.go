package capture

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/Babel/internal/audio"
	"github.com/gorilla/websocket"
)

func newTranscriber(t *testing.T, url string, retries uint) *HTTPTranscriber {
	t.Helper()
	tr, err := NewHTTPTranscriber(TranscriberConfig{
		Endpoint:        url,
		Language:        "tr",
		MaxRetries:      retries,
		InitialInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestTranscriberSendsMultipartFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if string(data) != "RIFF-data" || r.FormValue("language") != "tr" {
			http.Error(w, "unexpected form", http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, "  merhaba dünya\n")
	}))
	defer srv.Close()

	text, err := newTranscriber(t, srv.URL, 0).Transcribe(context.Background(), []byte("RIFF-data"))
	if err != nil {
		t.Fatal(err)
	}
	if text != "merhaba dünya" {
		t.Fatalf("got %q", text)
	}
}

func TestTranscriberRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	text, err := newTranscriber(t, srv.URL, 3).Transcribe(context.Background(), []byte("wav"))
	if err != nil || text != "ok" {
		t.Fatalf("Transcribe = %q, %v", text, err)
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestTranscriberClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad audio", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := newTranscriber(t, srv.URL, 3).Transcribe(context.Background(), []byte("wav"))
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected HTTPError 422, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", n)
	}
}

func TestTranscriberGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := newTranscriber(t, srv.URL, 2).Transcribe(context.Background(), []byte("wav")); err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("expected 1 try plus 2 retries, got %d", n)
	}
}

type fakeTranscriber struct {
	mu    sync.Mutex
	texts []string
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, wav []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, _, err := audio.DecodeWAVBytes(wav); err != nil {
		return "", err
	}
	text := f.texts[f.calls%len(f.texts)]
	f.calls++
	return text, nil
}

type sentVoice struct{ room, text, gender string }

type fakeSender struct {
	mu   sync.Mutex
	sent []sentVoice
}

func (f *fakeSender) SendVoice(_ context.Context, room, text, gender string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentVoice{room, text, gender})
	return nil
}

func speechFrames(loudFrames, quietFrames int) []audio.Frame {
	samples := make([]float32, 0, (loudFrames+quietFrames)*1024)
	for i := 0; i < loudFrames*1024; i++ {
		samples = append(samples, 0.2)
	}
	samples = append(samples, make([]float32, quietFrames*1024)...)
	return audio.SplitFrames(samples, 1024, audio.DefaultSampleRate)
}

func TestPipelineSendsTranscribedSegments(t *testing.T) {
	chunker, err := audio.NewChunker(audio.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	tr := &fakeTranscriber{texts: []string{"merhaba", ""}}
	relay := &fakeSender{}
	p := &Pipeline{Chunker: chunker, Transcriber: tr, Relay: relay, Room: "r1", Gender: "F", QueueSize: 4}

	// Speech then a silence flush, then trailing silence flushed at end of stream.
	frames := speechFrames(3, 8)
	stats, err := p.Run(context.Background(), StreamFrames(context.Background(), frames, false))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Frames != uint64(len(frames)) || stats.Segments != 2 || stats.Dropped != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.Sent != 1 {
		t.Fatalf("empty transcripts must be skipped, stats %+v", stats)
	}
	if len(relay.sent) != 1 || relay.sent[0] != (sentVoice{"r1", "merhaba", "F"}) {
		t.Fatalf("unexpected sends %+v", relay.sent)
	}
}

func TestStreamFramesStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := StreamFrames(ctx, speechFrames(100, 0), true)
	<-ch
	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not stop")
		}
	}
}

func TestRelayClientSendsAndReceives(t *testing.T) {
	got := make(chan map[string]string, 4)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			var msg map[string]string
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}
			got <- msg
			if msg["type"] == "join" {
				_ = ws.WriteJSON(map[string]any{"type": "room_membership", "data": map[string]any{"room": msg["room"]}})
			}
		}
	}))
	defer srv.Close()

	c, err := DialRelay(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.Join(context.Background(), "r1", "alice"); err != nil {
		t.Fatal(err)
	}
	if msg := <-got; msg["type"] != "join" || msg["room"] != "r1" || msg["name"] != "alice" {
		t.Fatalf("unexpected join %v", msg)
	}
	select {
	case ev := <-c.Incoming():
		if ev.Type != "room_membership" || !strings.Contains(string(ev.Data), "r1") {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	if err := c.SendVoice(context.Background(), "r1", "hello", "M"); err != nil {
		t.Fatal(err)
	}
	if msg := <-got; msg["type"] != "send_voice" || msg["text"] != "hello" || msg["gender"] != "M" {
		t.Fatalf("unexpected voice %v", msg)
	}

	c.Close()
	if err := c.SendVoice(context.Background(), "r1", "late", "M"); !errors.Is(err, ErrRelayClosed) {
		t.Fatalf("expected ErrRelayClosed, got %v", err)
	}
}

func TestRelayClientFailsFastAfterServerDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = ws.Close()
	}))
	defer srv.Close()

	c, err := DialRelay(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	for range c.Incoming() {
	}

	done := make(chan error, 1)
	go func() {
		var err error
		for i := 0; i < 100 && err == nil; i++ {
			err = c.SendVoice(context.Background(), "r1", "hello", "M")
		}
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, ErrRelayClosed) {
			t.Fatalf("expected ErrRelayClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendVoice blocked after the relay dropped the connection")
	}
}

func TestRelayClientSendHonoursContext(t *testing.T) {
	c := &RelayClient{outgoing: make(chan any), done: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.SendVoice(ctx, "r1", "hello", "M"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
