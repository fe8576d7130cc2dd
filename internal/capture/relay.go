// Package capture turns a local audio stream into voice messages on the relay.
package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 << 20
)

var ErrRelayClosed = errors.New("relay connection closed")

// Event is one message from the relay. Data is left raw; its shape depends on Type.
type Event struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// RelayClient is a websocket client for the relay signal endpoint.
type RelayClient struct {
	conn     *websocket.Conn
	incoming chan Event
	outgoing chan any
	done     chan struct{}
	once     sync.Once
}

func DialRelay(ctx context.Context, url string) (*RelayClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	c := &RelayClient{
		conn:     conn,
		incoming: make(chan Event, 16),
		outgoing: make(chan any, 16),
		done:     make(chan struct{}),
	}
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()
	return c, nil
}

func (c *RelayClient) readPump() {
	defer func() {
		c.Close()
		_ = c.conn.Close()
		close(c.incoming)
	}()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var ev Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "capture.relay").Msg("read")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		select {
		case c.incoming <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *RelayClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				log.Warn().Err(err).Str("module", "capture.relay").Msg("write")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever was queued before Close.
func (c *RelayClient) flush() {
	for {
		select {
		case message := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// send queues v for the write pump. It fails once the connection is gone
// and gives up when ctx is done.
func (c *RelayClient) send(ctx context.Context, v any) error {
	select {
	case <-c.done:
		return ErrRelayClosed
	default:
	}
	select {
	case c.outgoing <- v:
		return nil
	case <-c.done:
		return ErrRelayClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *RelayClient) Join(ctx context.Context, room, name string) error {
	return c.send(ctx, map[string]string{"type": "join", "room": room, "name": name})
}

func (c *RelayClient) SetLanguage(ctx context.Context, lang string) error {
	return c.send(ctx, map[string]string{"type": "set_language", "language": lang})
}

func (c *RelayClient) SendVoice(ctx context.Context, room, text, gender string) error {
	return c.send(ctx, map[string]string{"type": "send_voice", "room": room, "text": text, "gender": gender})
}

// Done is closed when the connection ends or Close is called.
func (c *RelayClient) Done() <-chan struct{} {
	return c.done
}

// Incoming is closed when the connection ends.
func (c *RelayClient) Incoming() <-chan Event {
	return c.incoming
}

func (c *RelayClient) Close() {
	c.once.Do(func() { close(c.done) })
}
