package signal

import (
	"encoding/json"

	"github.com/dkeye/Babel/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(cl *client, data []byte) {
	type joinPayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
		Name string `json:"name"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.reject(cl, "bad_payload")
		return
	}
	room, err := domain.NewRoomKey(p.Room)
	if err != nil {
		ctl.reject(cl, "invalid_room")
		return
	}
	name, err := domain.NewDisplayName(p.Name)
	if err != nil {
		ctl.reject(cl, "invalid_name")
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(cl.sid)).Str("room", string(room)).Msg("join")
	// The membership push reaches the joiner as well.
	if err := ctl.Orch.Join(cl.sid, room, name); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(cl.sid)).Msg("join")
		ctl.reject(cl, "not_connected")
	}
}

// handleLeave leaves one room; the connection and other rooms are kept.
func (ctl *SignalWSController) handleLeave(cl *client, data []byte) {
	type leavePayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
	}
	var p leavePayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.reject(cl, "bad_payload")
		return
	}
	room, err := domain.NewRoomKey(p.Room)
	if err != nil {
		ctl.reject(cl, "invalid_room")
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(cl.sid)).Str("room", string(room)).Msg("leave")
	if err := ctl.Orch.Leave(cl.sid, room); err != nil {
		ctl.reject(cl, "not_connected")
		return
	}
	ctl.sendJSON(cl.conn, map[string]any{
		"type": "left",
		"room": room,
	})
}
