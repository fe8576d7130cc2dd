package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrNotConnected = errors.New("member not connected")

type sessionEntry struct {
	Conn   core.SignalConnection
	Cancel context.CancelFunc
}

// Sessions maps live member ids to their transport endpoint.
// It implements core.Deliverer.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[domain.MemberID]*sessionEntry
	policy   Policy
}

func NewSessions(policy Policy) *Sessions {
	if policy == nil {
		policy = SimplePolicy{Action: DropDelivery}
	}
	return &Sessions{
		sessions: make(map[domain.MemberID]*sessionEntry),
		policy:   policy,
	}
}

// Bind reports false if the id is already bound.
func (s *Sessions) Bind(id domain.MemberID, conn core.SignalConnection, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		return false
	}
	s.sessions[id] = &sessionEntry{Conn: conn, Cancel: cancel}
	log.Info().Str("module", "app.sessions").Str("sid", string(id)).Msg("bound signal")
	return true
}

// Unbind removes the session and reports whether it was bound.
func (s *Sessions) Unbind(id domain.MemberID) (core.SignalConnection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	delete(s.sessions, id)
	log.Info().Str("module", "app.sessions").Str("sid", string(id)).Msg("unbind session")
	return e.Conn, true
}

func (s *Sessions) IsBound(id domain.MemberID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Cancel stops the connection's pumps; teardown then runs the usual disconnect path.
func (s *Sessions) Cancel(id domain.MemberID) bool {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.sessions").Str("sid", string(id)).Msg("canceled session")
	return true
}

func (s *Sessions) Deliver(to domain.MemberID, ev core.Outbound) error {
	s.mu.RLock()
	e, ok := s.sessions[to]
	s.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	frame, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	err = e.Conn.TrySend(frame)
	if errors.Is(err, core.ErrBackpressure) {
		action := s.policy.OnBackPressure(to)
		log.Warn().Str("module", "app.sessions").Str("sid", string(to)).Str("action", action.String()).Msg("slow consumer")
		if action == KickMember {
			s.Cancel(to)
		}
	}
	return err
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// EncodeEvent renders ev as {"type": ..., "data": ...}.
func EncodeEvent(ev core.Outbound) (core.Frame, error) {
	b, err := json.Marshal(envelope{Type: ev.EventType(), Data: ev})
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", ev.EventType(), err)
	}
	return b, nil
}
