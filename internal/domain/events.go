package domain

// Outbound event types, addressed to one member connection at a time.
const (
	EventText           = "text"
	EventVoice          = "voice"
	EventRoomMembership = "room_membership"
)

type TextDelivered struct {
	Room           RoomKey     `json:"room"`
	SenderID       MemberID    `json:"sender_id"`
	SenderName     DisplayName `json:"sender_name"`
	OriginalText   string      `json:"original_text"`
	TranslatedText string      `json:"translated_text"`
}

func (TextDelivered) EventType() string { return EventText }

type VoiceDelivered struct {
	Room       RoomKey     `json:"room"`
	SenderID   MemberID    `json:"sender_id"`
	SenderName DisplayName `json:"sender_name"`
	Audio      []byte      `json:"audio"`
}

func (VoiceDelivered) EventType() string { return EventVoice }

func (RoomSnapshot) EventType() string { return EventRoomMembership }
