package orch

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dkeye/Babel/internal/app"
	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
)

type nopConn struct {
	closed atomic.Int32
}

func (c *nopConn) TrySend(core.Frame) error { return nil }
func (c *nopConn) Close()                   { c.closed.Add(1) }

// recorder is a core.Deliverer that keeps every event per member and
// refuses members listed in gone.
type recorder struct {
	mu     sync.Mutex
	events map[domain.MemberID][]core.Outbound
	gone   map[domain.MemberID]bool
	notify chan domain.MemberID
}

func newRecorder() *recorder {
	return &recorder{
		events: make(map[domain.MemberID][]core.Outbound),
		gone:   make(map[domain.MemberID]bool),
	}
}

func (r *recorder) Deliver(to domain.MemberID, ev core.Outbound) error {
	r.mu.Lock()
	if r.gone[to] {
		r.mu.Unlock()
		return app.ErrNotConnected
	}
	r.events[to] = append(r.events[to], ev)
	notify := r.notify
	r.mu.Unlock()
	if notify != nil {
		notify <- to
	}
	return nil
}

func (r *recorder) markGone(id domain.MemberID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gone[id] = true
}

func (r *recorder) texts(id domain.MemberID) []domain.TextDelivered {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TextDelivered
	for _, ev := range r.events[id] {
		if td, ok := ev.(domain.TextDelivered); ok {
			out = append(out, td)
		}
	}
	return out
}

func (r *recorder) voices(id domain.MemberID) []domain.VoiceDelivered {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.VoiceDelivered
	for _, ev := range r.events[id] {
		if vd, ok := ev.(domain.VoiceDelivered); ok {
			out = append(out, vd)
		}
	}
	return out
}

func (r *recorder) memberships(id domain.MemberID) []domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RoomSnapshot
	for _, ev := range r.events[id] {
		if snap, ok := ev.(domain.RoomSnapshot); ok {
			out = append(out, snap)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = make(map[domain.MemberID][]core.Outbound)
}

func newTestOrchestrator(t *testing.T, tr core.Translator, synth core.SpeechSynthesizer) (*Orchestrator, *recorder) {
	t.Helper()
	rec := newRecorder()
	o := &Orchestrator{
		Rooms:      app.NewRoomRegistry(),
		Sessions:   app.NewSessions(nil),
		Translator: tr,
		Synth:      synth,
		Deliverer:  rec,
	}
	return o, rec
}

func mustConnect(t *testing.T, o *Orchestrator, ids ...domain.MemberID) {
	t.Helper()
	for _, id := range ids {
		if err := o.Connect(id, &nopConn{}, nil); err != nil {
			t.Fatalf("connect %s: %v", id, err)
		}
	}
}

func mustJoin(t *testing.T, o *Orchestrator, room domain.RoomKey, id domain.MemberID, name domain.DisplayName) {
	t.Helper()
	if err := o.Join(id, room, name); err != nil {
		t.Fatalf("join %s: %v", id, err)
	}
}
