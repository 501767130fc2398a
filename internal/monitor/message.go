package monitor

import (
	"time"

	"github.com/eike-welk/donkeypart-bluetooth-game-controller/internal/ingest"
)

// Message is one resolved input sample as streamed to observers. The same
// shape is printed by the log run mode, so profile authors see identical
// output on the console and over the wire.
type Message struct {
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds
}

// NewMessage wraps a resolved event with its arrival time.
func NewMessage(ev ingest.Resolved) *Message {
	return &Message{
		Name:      ev.Name,
		Kind:      string(ev.Kind),
		Value:     ev.Value,
		Timestamp: time.Now().UnixMilli(),
	}
}
