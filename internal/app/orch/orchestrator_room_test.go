package orch

import (
	"errors"
	"testing"

	"github.com/dkeye/Babel/internal/app"
	"github.com/dkeye/Babel/internal/domain"
)

func TestJoinRequiresConnection(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil, nil)
	if err := o.Join("A", "r1", "alice"); !errors.Is(err, app.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if o.Rooms.HasRoom("r1") {
		t.Fatal("rejected join must not touch the registry")
	}
	if err := o.SetLanguage("A", "fr"); !errors.Is(err, app.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestConnectTwiceFails(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil, nil)
	mustConnect(t, o, "A")
	if err := o.Connect("A", &nopConn{}, nil); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("expected ErrAlreadyConnected, got %v", err)
	}
}

func TestJoinPushesMembershipToRoom(t *testing.T) {
	o, rec := newTestOrchestrator(t, nil, nil)
	mustConnect(t, o, "A", "B")
	mustJoin(t, o, "r1", "A", "alice")
	mustJoin(t, o, "r1", "B", "bob")

	a := rec.memberships("A")
	if len(a) != 2 || len(a[1].Members) != 2 {
		t.Fatalf("A should see both joins, got %+v", a)
	}
	b := rec.memberships("B")
	if len(b) != 1 || b[0].Members[0].ID != "A" || b[0].Members[1].ID != "B" {
		t.Fatalf("B should get the ordered snapshot, got %+v", b)
	}
}

func TestLeaveIsRoomLocal(t *testing.T) {
	o, rec := newTestOrchestrator(t, nil, nil)
	mustConnect(t, o, "A", "B")
	mustJoin(t, o, "r1", "A", "alice")
	mustJoin(t, o, "r2", "A", "alice")
	mustJoin(t, o, "r1", "B", "bob")
	rec.reset()

	if err := o.Leave("A", "r1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := o.Rooms.RoomsOf("A"); len(got) != 1 || got[0] != "r2" {
		t.Fatalf("A should still be in r2, got %v", got)
	}
	b := rec.memberships("B")
	if len(b) != 1 || len(b[0].Members) != 1 || b[0].Members[0].ID != "B" {
		t.Fatalf("B should be told A left, got %+v", b)
	}

	// Redundant leave is safe.
	if err := o.Leave("A", "r1"); err != nil {
		t.Fatalf("redundant leave: %v", err)
	}
	if err := o.Leave("A", "unknown"); err != nil {
		t.Fatalf("leave of unknown room: %v", err)
	}
}

func TestDisconnectCleansUpOnce(t *testing.T) {
	o, rec := newTestOrchestrator(t, nil, nil)
	connA := &nopConn{}
	if err := o.Connect("A", connA, nil); err != nil {
		t.Fatal(err)
	}
	mustConnect(t, o, "B")
	_ = o.SetLanguage("A", "fr")
	mustJoin(t, o, "r1", "A", "alice")
	mustJoin(t, o, "r2", "A", "alice")
	mustJoin(t, o, "r2", "B", "bob")
	rec.reset()

	o.Disconnect("A")
	o.Disconnect("A")

	if got := connA.closed.Load(); got != 1 {
		t.Fatalf("connection must be closed exactly once, got %d", got)
	}
	if o.Rooms.HasRoom("r1") {
		t.Fatal("r1 must be removed with its last member")
	}
	if members := o.Rooms.MembersOf("r2"); len(members) != 1 || members[0].ID != "B" {
		t.Fatalf("unexpected r2 members %+v", members)
	}
	if got := o.Rooms.LanguageOf("A"); got != domain.DefaultLanguage {
		t.Fatalf("language preference must be dropped, got %q", got)
	}
	if got := rec.memberships("B"); len(got) != 1 {
		t.Fatalf("B should get exactly one membership update, got %+v", got)
	}
	if err := o.Join("A", "r1", "alice"); !errors.Is(err, app.ErrNotConnected) {
		t.Fatalf("disconnected member must not rejoin, got %v", err)
	}
}

func TestEvictRoomCancelsMembers(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil, nil)
	canceled := 0
	if err := o.Connect("A", &nopConn{}, func() { canceled++ }); err != nil {
		t.Fatal(err)
	}
	mustJoin(t, o, "r1", "A", "alice")
	if n := o.EvictRoom("r1"); n != 1 {
		t.Fatalf("EvictRoom = %d, want 1", n)
	}
	if n := o.EvictRoom("missing"); n != 0 {
		t.Fatalf("evicting an absent room = %d, want 0", n)
	}
	if canceled != 1 {
		t.Fatalf("expected member to be canceled, got %d", canceled)
	}
}
