package orch

import (
	"time"

	"github.com/dkeye/Babel/internal/app"
	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/metrics"
	"go.opentelemetry.io/otel"
)

const DefaultCallTimeout = 10 * time.Second

var tracer = otel.Tracer("github.com/dkeye/Babel/internal/app/orch")

// Orchestrator binds connections to the registry (ConnectionLifecycle) and
// fans inbound messages out to room members (MessageRouter).
//
// Lifecycle calls for one member must come from a single goroutine, the
// connection's read loop; calls for different members may run concurrently.
type Orchestrator struct {
	Rooms      *app.RoomRegistry
	Sessions   *app.Sessions
	Translator core.Translator
	Synth      core.SpeechSynthesizer

	// Deliverer defaults to Sessions.
	Deliverer   core.Deliverer
	Metrics     *metrics.Metrics
	CallTimeout time.Duration
}

func (o *Orchestrator) deliverer() core.Deliverer {
	if o.Deliverer != nil {
		return o.Deliverer
	}
	return o.Sessions
}

func (o *Orchestrator) callTimeout() time.Duration {
	if o.CallTimeout > 0 {
		return o.CallTimeout
	}
	return DefaultCallTimeout
}
