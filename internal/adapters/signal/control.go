package signal

import "time"

// handlePing answers with the server clock so clients can estimate latency.
func (ctl *SignalWSController) handlePing(cl *client) {
	ctl.sendJSON(cl.conn, struct {
		Type string `json:"type"`
		TS   int64  `json:"ts"`
	}{
		Type: "pong",
		TS:   time.Now().UnixMilli(),
	})
}
