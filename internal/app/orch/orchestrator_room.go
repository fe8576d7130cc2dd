package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Babel/internal/app"
	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrAlreadyConnected = errors.New("member already connected")

// Connect moves a fresh connection from Disconnected to Connected.
func (o *Orchestrator) Connect(sid domain.MemberID, conn core.SignalConnection, cancel context.CancelFunc) error {
	if !o.Sessions.Bind(sid, conn, cancel) {
		return ErrAlreadyConnected
	}
	o.Metrics.SetConnections(o.Sessions.Count())
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("connected")
	return nil
}

// Join adds the member to a room; a member may be in several rooms at once.
func (o *Orchestrator) Join(sid domain.MemberID, room domain.RoomKey, name domain.DisplayName) error {
	if !o.Sessions.IsBound(sid) {
		return app.ErrNotConnected
	}
	snap := o.Rooms.Join(room, sid, name)
	o.Metrics.SetRooms(o.Rooms.RoomCount())
	o.pushMembership(snap)
	return nil
}

// Leave only affects the given room; leaving a room the member is not in is a no-op.
func (o *Orchestrator) Leave(sid domain.MemberID, room domain.RoomKey) error {
	if !o.Sessions.IsBound(sid) {
		return app.ErrNotConnected
	}
	snap, ok := o.Rooms.Leave(room, sid)
	if !ok {
		return nil
	}
	o.Metrics.SetRooms(o.Rooms.RoomCount())
	o.pushMembership(snap)
	return nil
}

func (o *Orchestrator) SetLanguage(sid domain.MemberID, code domain.LanguageCode) error {
	if !o.Sessions.IsBound(sid) {
		return app.ErrNotConnected
	}
	o.Rooms.SetLanguage(sid, code)
	return nil
}

// Disconnect is the terminal transition. The registry cleanup runs once per
// connection no matter how many times teardown is signalled.
func (o *Orchestrator) Disconnect(sid domain.MemberID) {
	conn, ok := o.Sessions.Unbind(sid)
	if !ok {
		return
	}
	snaps := o.Rooms.Disconnect(sid)
	if conn != nil {
		conn.Close()
	}
	o.Metrics.SetConnections(o.Sessions.Count())
	o.Metrics.SetRooms(o.Rooms.RoomCount())
	for _, snap := range snaps {
		o.pushMembership(snap)
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Int("rooms", len(snaps)).Msg("disconnected")
}

// EvictRoom disconnects every member of the room and reports how many
// connections were canceled. Each one then runs the usual disconnect path.
func (o *Orchestrator) EvictRoom(room domain.RoomKey) int {
	n := 0
	for _, m := range o.Rooms.MembersOf(room) {
		if o.Sessions.Cancel(m.ID) {
			n++
		}
	}
	log.Info().Str("module", "orch").Str("room", string(room)).Int("members", n).Msg("room evicted")
	return n
}

func (o *Orchestrator) pushMembership(snap domain.RoomSnapshot) {
	d := o.deliverer()
	for _, m := range snap.Members {
		if err := d.Deliver(m.ID, snap); err != nil {
			log.Debug().Err(err).Str("module", "orch").Str("sid", string(m.ID)).Str("room", string(snap.Room)).Msg("membership push failed")
		}
	}
}
