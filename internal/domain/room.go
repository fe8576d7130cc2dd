package domain

import "errors"

var ErrRoomKeyEmpty = errors.New("room key empty")

// RoomKey is supplied by members and compared case-sensitively.
type RoomKey string

// RoomSnapshot is the member list of a room at one instant, in join order.
// An empty Members slice means the room no longer exists.
type RoomSnapshot struct {
	Room    RoomKey       `json:"room"`
	Members []MemberEntry `json:"members"`
}

type RoomInfo struct {
	Room        RoomKey `json:"room"`
	MemberCount int     `json:"member_count"`
}

func NewRoomKey(raw string) (RoomKey, error) {
	if raw == "" {
		return "", ErrRoomKeyEmpty
	}
	return RoomKey(raw), nil
}
