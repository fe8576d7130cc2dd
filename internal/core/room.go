package core

import "github.com/dkeye/Babel/internal/domain"

// Room is the ordered member list of one room.
// It is not safe for concurrent use; the owning registry serialises access.
type Room struct {
	Key     domain.RoomKey
	members []domain.MemberEntry
	index   map[domain.MemberID]int
}

func NewRoom(key domain.RoomKey) *Room {
	return &Room{
		Key:   key,
		index: make(map[domain.MemberID]int),
	}
}

// Put adds the member or overwrites its display name in place,
// keeping the original join position.
func (r *Room) Put(id domain.MemberID, name domain.DisplayName) {
	if i, ok := r.index[id]; ok {
		r.members[i].Name = name
		return
	}
	r.index[id] = len(r.members)
	r.members = append(r.members, domain.MemberEntry{ID: id, Name: name})
}

// Remove reports whether the member was present.
func (r *Room) Remove(id domain.MemberID) bool {
	i, ok := r.index[id]
	if !ok {
		return false
	}
	delete(r.index, id)
	r.members = append(r.members[:i], r.members[i+1:]...)
	for j := i; j < len(r.members); j++ {
		r.index[r.members[j].ID] = j
	}
	return true
}

func (r *Room) Name(id domain.MemberID) (domain.DisplayName, bool) {
	i, ok := r.index[id]
	if !ok {
		return "", false
	}
	return r.members[i].Name, true
}

func (r *Room) Len() int { return len(r.members) }

func (r *Room) Empty() bool { return len(r.members) == 0 }

// Snapshot copies the member list so callers may use it after the lock is released.
func (r *Room) Snapshot() domain.RoomSnapshot {
	out := make([]domain.MemberEntry, len(r.members))
	copy(out, r.members)
	return domain.RoomSnapshot{Room: r.Key, Members: out}
}
