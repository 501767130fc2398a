package monitor

import (
	"encoding/json"

	"github.com/edaniels/golog"

	"github.com/eike-welk/donkeypart-bluetooth-game-controller/internal/ingest"
)

// Observer implements ingest.Observer by fanning each resolved event into
// the websocket hub and the metrics counters. Both paths drop rather than
// block, so the ingest loop is never held up by a slow observer.
type Observer struct {
	hub     *Hub
	metrics *Metrics
	logger  golog.Logger
}

// NewObserver wires an observer. hub may be nil when only metrics are wanted.
func NewObserver(hub *Hub, metrics *Metrics, logger golog.Logger) *Observer {
	return &Observer{hub: hub, metrics: metrics, logger: logger}
}

// Resolved implements ingest.Observer.
func (o *Observer) Resolved(ev ingest.Resolved) {
	o.metrics.CountEvent(string(ev.Kind))
	if o.hub == nil {
		return
	}
	data, err := json.Marshal(NewMessage(ev))
	if err != nil {
		o.logger.Errorw("marshaling event message", "error", err)
		return
	}
	o.hub.Broadcast(data)
}

// Unknown implements ingest.Observer.
func (o *Observer) Unknown(uint16) {
	o.metrics.CountUnknown()
}
