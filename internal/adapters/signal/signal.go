package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Babel/internal/app/orch"
	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
	"github.com/dkeye/Babel/internal/langdir"
	"github.com/dkeye/Babel/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ReadLimit       int64
	PingPeriod      time.Duration
	SendBuffer      int
	EventsPerSecond float64
	EventBurst      int
	MaxTextLen      int
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 1 << 20
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.EventsPerSecond <= 0 {
		o.EventsPerSecond = 10
	}
	if o.EventBurst <= 0 {
		o.EventBurst = 20
	}
	if o.MaxTextLen <= 0 {
		o.MaxTextLen = domain.DefaultMaxTextLen
	}
	return o
}

type SignalWSController struct {
	Orch      *orch.Orchestrator
	Metrics   *metrics.Metrics
	Languages *langdir.Directory
	opts      Options
}

func NewSignalWSController(o *orch.Orchestrator, m *metrics.Metrics, opts Options) *SignalWSController {
	return &SignalWSController{
		Orch:    o,
		Metrics: m,
		opts:    opts.withDefaults(),
	}
}

// WsSignalConn implements core.SignalConnection over a websocket. Frames are
// queued for the write pump; a full queue is back-pressure.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// client is the per-connection state owned by the read pump.
type client struct {
	sid     domain.MemberID
	conn    *WsSignalConn
	ctx     context.Context
	limiter *eventLimiter
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and serves one member until the socket
// closes or ctx is canceled. Every connection gets a fresh member id, so two
// tabs sharing a client token are still distinct members.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := domain.MemberID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("client", c.GetString("client_token")).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}
	ctx, cancel := context.WithCancel(ctx)
	if err := ctl.Orch.Connect(sid, conn, cancel); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("connect")
		cancel()
		conn.Close()
		return
	}

	cl := &client{
		sid:     sid,
		conn:    conn,
		ctx:     ctx,
		limiter: newEventLimiter(ctl.opts.EventsPerSecond, ctl.opts.EventBurst),
	}
	go ctl.writePump(ctx, cancel, conn)
	go ctl.readPump(ctx, cancel, cl)
}
