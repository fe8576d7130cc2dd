package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func TestSessionsDeliverEncodesEnvelope(t *testing.T) {
	s := NewSessions(nil)
	conn := &fakeConn{}
	if !s.Bind("a", conn, nil) {
		t.Fatal("expected first bind to succeed")
	}
	if s.Bind("a", conn, nil) {
		t.Fatal("expected duplicate bind to fail")
	}

	ev := domain.TextDelivered{Room: "r1", SenderName: "bob", OriginalText: "hi", TranslatedText: "salut"}
	if err := s.Deliver("a", ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conn.frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(conn.frames))
	}
	var got struct {
		Type string               `json:"type"`
		Data domain.TextDelivered `json:"data"`
	}
	if err := json.Unmarshal(conn.frames[0], &got); err != nil {
		t.Fatalf("bad frame: %v", err)
	}
	if got.Type != domain.EventText || got.Data.TranslatedText != "salut" {
		t.Fatalf("unexpected envelope %+v", got)
	}
}

func TestSessionsDeliverToUnknownMember(t *testing.T) {
	s := NewSessions(nil)
	err := s.Deliver("ghost", domain.RoomSnapshot{Room: "r1"})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestSessionsKickPolicyCancelsSlowConsumer(t *testing.T) {
	s := NewSessions(SimplePolicy{Action: KickMember})
	ctx, cancel := context.WithCancel(context.Background())
	conn := &fakeConn{full: true}
	s.Bind("a", conn, cancel)

	err := s.Deliver("a", domain.RoomSnapshot{Room: "r1"})
	if !errors.Is(err, core.ErrBackpressure) {
		t.Fatalf("expected back-pressure error, got %v", err)
	}
	select {
	case <-ctx.Done():
	default:
		t.Fatal("kick policy must cancel the session context")
	}
}

func TestSessionsDropPolicyKeepsSession(t *testing.T) {
	s := NewSessions(SimplePolicy{Action: DropDelivery})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Bind("a", &fakeConn{full: true}, cancel)

	_ = s.Deliver("a", domain.RoomSnapshot{Room: "r1"})
	if ctx.Err() != nil {
		t.Fatal("drop policy must not cancel the session")
	}
	if !s.IsBound("a") {
		t.Fatal("session must stay bound")
	}
}

func TestSessionsUnbind(t *testing.T) {
	s := NewSessions(nil)
	s.Bind("a", &fakeConn{}, nil)
	if _, ok := s.Unbind("a"); !ok {
		t.Fatal("expected unbind to report bound session")
	}
	if _, ok := s.Unbind("a"); ok {
		t.Fatal("second unbind must report false")
	}
	if s.Count() != 0 {
		t.Fatalf("expected 0 sessions, got %d", s.Count())
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    BackpressureAction
		wantErr bool
	}{
		{in: "", want: DropDelivery},
		{in: "drop", want: DropDelivery},
		{in: "kick", want: KickMember},
		{in: "explode", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParsePolicy(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := p.OnBackPressure("x"); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
