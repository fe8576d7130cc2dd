package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, cancel context.CancelFunc, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		// Unblocks the read pump, which owns the disconnect.
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, cl *client) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(cl.sid)).Msg("readPump closing")
		cancel()
		ctl.Orch.Disconnect(cl.sid)
	}()

	ws := cl.conn.conn
	ws.SetReadLimit(ctl.opts.ReadLimit)
	pongWait := ctl.opts.PingPeriod * 10 / 9
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(cl.sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(cl.sid)).Msg("readPump read error")
				}
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(pongWait))
			ctl.handleSignal(cl, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(cl *client, data []byte) {
	if !cl.limiter.Allow() {
		ctl.reject(cl, "rate_limited")
		return
	}
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(cl.sid)).Msg("bad json")
		ctl.reject(cl, "bad_json")
		return
	}

	switch env.Type {
	case "join":
		ctl.handleJoin(cl, data)
	case "leave":
		ctl.handleLeave(cl, data)
	case "set_language":
		ctl.handleSetLanguage(cl, data)
	case "send_text":
		ctl.handleSendText(cl, data)
	case "send_voice":
		ctl.handleSendVoice(cl, data)
	case "ping":
		ctl.handlePing(cl)
	case "whoami":
		ctl.handleWhoAmI(cl)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.reject(cl, "unknown_type")
	}
}

// reject answers a malformed event with an error and counts it.
func (ctl *SignalWSController) reject(cl *client, reason string) {
	ctl.Metrics.Rejected(reason)
	ctl.sendJSON(cl.conn, map[string]any{
		"type":  "error",
		"error": reason,
	})
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("sendJSON dropped")
	}
}
