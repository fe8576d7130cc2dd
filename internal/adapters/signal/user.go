package signal

import (
	"encoding/json"
	"strings"

	"github.com/dkeye/Babel/internal/domain"
	"github.com/dkeye/Babel/internal/langdir"
	"github.com/rs/zerolog/log"
)

// handleSetLanguage stores the preference as the client sent it, spelled like
// the directory entry when one matches. Codes the translator does not know
// degrade to untranslated text at delivery time.
func (ctl *SignalWSController) handleSetLanguage(cl *client, data []byte) {
	type languagePayload struct {
		Type     string `json:"type"`
		Language string `json:"language"`
	}
	var p languagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.reject(cl, "bad_payload")
		return
	}
	raw := strings.TrimSpace(p.Language)
	if raw == "" {
		ctl.reject(cl, "invalid_language")
		return
	}
	code := domain.LanguageCode(ctl.languages().Normalize(raw))

	log.Info().Str("module", "signal").Str("sid", string(cl.sid)).Str("lang", string(code)).Msg("set language")
	if err := ctl.Orch.SetLanguage(cl.sid, code); err != nil {
		ctl.reject(cl, "not_connected")
		return
	}
	ctl.handleWhoAmI(cl)
}

func (ctl *SignalWSController) languages() *langdir.Directory {
	if ctl.Languages != nil {
		return ctl.Languages
	}
	return langdir.Default()
}

func (ctl *SignalWSController) handleWhoAmI(cl *client) {
	resp := struct {
		Type     string              `json:"type"`
		ID       domain.MemberID     `json:"id"`
		Language domain.LanguageCode `json:"language"`
		Rooms    []domain.RoomKey    `json:"rooms"`
	}{
		Type:     "whoami",
		ID:       cl.sid,
		Language: ctl.Orch.Rooms.LanguageOf(cl.sid),
		Rooms:    ctl.Orch.Rooms.RoomsOf(cl.sid),
	}
	if resp.Rooms == nil {
		resp.Rooms = []domain.RoomKey{}
	}
	ctl.sendJSON(cl.conn, resp)
}
