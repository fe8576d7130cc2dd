package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Babel/internal/domain"
	"github.com/rs/zerolog/log"
)

// sender resolves the sender's display name in room; only members may send.
func (ctl *SignalWSController) sender(cl *client, rawRoom string) (domain.RoomKey, domain.DisplayName, bool) {
	room, err := domain.NewRoomKey(rawRoom)
	if err != nil {
		ctl.reject(cl, "invalid_room")
		return "", "", false
	}
	name, ok := ctl.Orch.Rooms.DisplayNameOf(room, cl.sid)
	if !ok {
		ctl.reject(cl, "not_a_member")
		return "", "", false
	}
	return room, name, true
}

// routeCtx outlives the sender's connection: a sender leaving mid fan-out
// does not cancel delivery to everybody else.
func routeCtx(cl *client) context.Context {
	return context.WithoutCancel(cl.ctx)
}

func (ctl *SignalWSController) handleSendText(cl *client, data []byte) {
	type textPayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
		Text string `json:"text"`
	}
	var p textPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.reject(cl, "bad_payload")
		return
	}
	if err := domain.ValidateText(p.Text, ctl.opts.MaxTextLen); err != nil {
		ctl.reject(cl, "invalid_text")
		return
	}
	room, name, ok := ctl.sender(cl, p.Room)
	if !ok {
		return
	}

	msg := domain.TextMessage{Room: room, SenderID: cl.sid, SenderName: name, Text: p.Text}
	log.Debug().Str("module", "signal").Str("sid", string(cl.sid)).Str("room", string(room)).Msg("send text")
	go ctl.Orch.RouteText(routeCtx(cl), msg)
}

func (ctl *SignalWSController) handleSendVoice(cl *client, data []byte) {
	type voicePayload struct {
		Type   string `json:"type"`
		Room   string `json:"room"`
		Text   string `json:"text"`
		Gender string `json:"gender"`
	}
	var p voicePayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.reject(cl, "bad_payload")
		return
	}
	if err := domain.ValidateText(p.Text, ctl.opts.MaxTextLen); err != nil {
		ctl.reject(cl, "invalid_text")
		return
	}
	room, name, ok := ctl.sender(cl, p.Room)
	if !ok {
		return
	}

	msg := domain.VoiceMessage{
		Room:       room,
		SenderID:   cl.sid,
		SenderName: name,
		SourceText: p.Text,
		Voice:      domain.VoiceAttributes{Gender: p.Gender},
	}
	log.Debug().Str("module", "signal").Str("sid", string(cl.sid)).Str("room", string(room)).Msg("send voice")
	go ctl.Orch.RouteVoice(routeCtx(cl), msg)
}
