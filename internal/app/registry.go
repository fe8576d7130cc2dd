package app

import (
	"sort"
	"sync"

	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomRegistry owns three relations behind one lock:
//   - rooms:     Room -> ordered [Member]
//   - joined:    Member -> set of Rooms (reverse index of rooms)
//   - languages: Member -> LanguageCode
//
// A room key is present in rooms iff its member list is non-empty.
type RoomRegistry struct {
	mu        sync.RWMutex
	rooms     map[domain.RoomKey]*core.Room
	joined    map[domain.MemberID]map[domain.RoomKey]struct{}
	languages map[domain.MemberID]domain.LanguageCode
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:     make(map[domain.RoomKey]*core.Room),
		joined:    make(map[domain.MemberID]map[domain.RoomKey]struct{}),
		languages: make(map[domain.MemberID]domain.LanguageCode),
	}
}

// Join creates the room if absent and adds or renames the member.
// The returned snapshot already contains the member.
func (r *RoomRegistry) Join(key domain.RoomKey, id domain.MemberID, name domain.DisplayName) domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[key]
	if !ok {
		room = core.NewRoom(key)
		r.rooms[key] = room
		log.Info().Str("module", "app.registry").Str("room", string(key)).Msg("room created")
	}
	room.Put(id, name)
	set, ok := r.joined[id]
	if !ok {
		set = make(map[domain.RoomKey]struct{})
		r.joined[id] = set
	}
	set[key] = struct{}{}
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Str("room", string(key)).Msg("member joined")
	return room.Snapshot()
}

// Leave removes the member from one room. The bool reports whether the member
// was actually in the room; the snapshot has no members if the room was deleted.
func (r *RoomRegistry) Leave(key domain.RoomKey, id domain.MemberID) (domain.RoomSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.leaveLocked(key, id)
	if ok {
		log.Info().Str("module", "app.registry").Str("sid", string(id)).Str("room", string(key)).Msg("member left")
	}
	return snap, ok
}

func (r *RoomRegistry) leaveLocked(key domain.RoomKey, id domain.MemberID) (domain.RoomSnapshot, bool) {
	room, ok := r.rooms[key]
	if !ok || !room.Remove(id) {
		return domain.RoomSnapshot{Room: key}, false
	}
	if set, ok := r.joined[id]; ok {
		delete(set, key)
		if len(set) == 0 {
			delete(r.joined, id)
		}
	}
	if room.Empty() {
		delete(r.rooms, key)
		log.Info().Str("module", "app.registry").Str("room", string(key)).Msg("room removed")
		return domain.RoomSnapshot{Room: key}, true
	}
	return room.Snapshot(), true
}

// SetLanguage upserts the preference regardless of room membership.
func (r *RoomRegistry) SetLanguage(id domain.MemberID, code domain.LanguageCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.languages[id] = code
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Str("lang", string(code)).Msg("language set")
}

func (r *RoomRegistry) LanguageOf(id domain.MemberID) domain.LanguageCode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if code, ok := r.languages[id]; ok {
		return code
	}
	return domain.DefaultLanguage
}

// MembersOf returns a copy of the room's members in join order; nil if the room is absent.
func (r *RoomRegistry) MembersOf(key domain.RoomKey) []domain.MemberEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[key]
	if !ok {
		return nil
	}
	return room.Snapshot().Members
}

func (r *RoomRegistry) DisplayNameOf(key domain.RoomKey, id domain.MemberID) (domain.DisplayName, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[key]
	if !ok {
		return "", false
	}
	return room.Name(id)
}

// RoomsOf lists the rooms the member is in, sorted by key.
func (r *RoomRegistry) RoomsOf(id domain.MemberID) []domain.RoomKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.RoomKey, 0, len(r.joined[id]))
	for key := range r.joined[id] {
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Disconnect drops the language preference and every membership of id.
// It returns the post-removal snapshot of each room the member left.
// Calling it for an unknown member is a no-op.
func (r *RoomRegistry) Disconnect(id domain.MemberID) []domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.languages, id)
	set := r.joined[id]
	if len(set) == 0 {
		delete(r.joined, id)
		return nil
	}
	keys := make([]domain.RoomKey, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]domain.RoomSnapshot, 0, len(keys))
	for _, key := range keys {
		if snap, ok := r.leaveLocked(key, id); ok {
			out = append(out, snap)
		}
	}
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Int("rooms", len(out)).Msg("member disconnected")
	return out
}

func (r *RoomRegistry) HasRoom(key domain.RoomKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[key]
	return ok
}

func (r *RoomRegistry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *RoomRegistry) Rooms() []domain.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.RoomInfo, 0, len(r.rooms))
	for key, room := range r.rooms {
		out = append(out, domain.RoomInfo{Room: key, MemberCount: room.Len()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Room < out[j].Room })
	return out
}
