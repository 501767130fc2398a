// Package ingest runs the blocking read loop against the controller device
// and folds raw events into the published vehicle control state.
package ingest

import (
	"context"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/eike-welk/donkeypart-bluetooth-game-controller/internal/drive"
	"github.com/eike-welk/donkeypart-bluetooth-game-controller/internal/mapping"
	"github.com/eike-welk/donkeypart-bluetooth-game-controller/internal/profile"
)

// RawEvent is one hardware input report, consumed immediately.
type RawEvent struct {
	Code  uint16
	Kind  profile.Kind
	Value int32
}

// Source yields raw events from a device. ReadEvent waits until an event
// arrives, the source fails, or ctx is done; implementations must honor
// cancellation themselves rather than rely on Close to interrupt a read.
type Source interface {
	ReadEvent(ctx context.Context) (RawEvent, error)
	Close() error
}

// Resolved is a raw event after profile lookup and normalization. Axis values
// are the normalized -1.0..1.0 position, button values 0 or 1.
type Resolved struct {
	Name  string
	Kind  profile.Kind
	Value float64
}

// Observer watches the resolved event stream without touching the drive
// path. Implementations must not block.
type Observer interface {
	Resolved(ev Resolved)
	Unknown(code uint16)
}

// Options tune the ingestor's failure policy and observation.
type Options struct {
	// MaxRetries bounds consecutive read failures before the ingestor gives
	// up. 0 selects the default.
	MaxRetries int
	// Backoff is the base delay between retries, growing linearly with the
	// attempt count. 0 selects the default.
	Backoff  time.Duration
	Observer Observer
}

const (
	defaultMaxRetries = 5
	defaultBackoff    = 100 * time.Millisecond
)

// Ingestor owns the shared control state: it resolves each raw event via the
// profile, routes axis events through the stick transform and button events
// into the mode machine, and publishes the merged snapshot.
type Ingestor struct {
	src     Source
	table   *profile.Table
	machine *drive.Machine
	pub     *drive.Publisher
	obs     Observer
	logger  golog.Logger

	maxRetries int
	backoff    time.Duration

	// Last normalized drive stick readings, kept between events.
	x, y float64
}

// New wires an ingestor. The machine and publisher are owned by the caller so
// diagnostics can share them, but only the ingestor mutates them.
func New(
	src Source,
	table *profile.Table,
	machine *drive.Machine,
	pub *drive.Publisher,
	logger golog.Logger,
	opts Options,
) *Ingestor {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	return &Ingestor{
		src:        src,
		table:      table,
		machine:    machine,
		pub:        pub,
		obs:        opts.Observer,
		logger:     logger,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
	}
}

// Run reads events until ctx is cancelled or the source fails past the retry
// bound. Cancellation surfaces through the source's ctx-aware read and
// returns nil; the source is closed on the way out, and the publisher keeps
// serving the last snapshot either way.
func (ing *Ingestor) Run(ctx context.Context) error {
	defer func() {
		if err := ing.src.Close(); err != nil {
			ing.logger.Debugw("closing event source", "error", err)
		}
	}()

	retries := 0
	for {
		ev, err := ing.src.ReadEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			retries++
			if retries > ing.maxRetries {
				return errors.Wrapf(err, "controller read failed %d times", retries)
			}
			ing.logger.Warnw("controller read failed, retrying",
				"error", err, "attempt", retries)
			if !goutils.SelectContextOrWait(ctx, time.Duration(retries)*ing.backoff) {
				return nil
			}
			continue
		}
		retries = 0
		ing.handle(ev)
	}
}

func (ing *Ingestor) handle(ev RawEvent) {
	entry, ok := ing.table.Resolve(ev.Code)
	if !ok {
		ing.logger.Debugw("unknown event code", "code", ev.Code, "value", ev.Value)
		if ing.obs != nil {
			ing.obs.Unknown(ev.Code)
		}
		return
	}

	var resolved Resolved
	switch entry.Kind {
	case profile.Axis:
		norm := mapping.Normalize(entry, ev.Value)
		ing.handleAxis(entry.Name, norm)
		resolved = Resolved{Name: entry.Name, Kind: profile.Axis, Value: norm}
	case profile.Button:
		pressed := ev.Value != 0
		ing.machine.HandleButton(entry.Name, pressed)
		var level float64
		if pressed {
			level = 1
		}
		resolved = Resolved{Name: entry.Name, Kind: profile.Button, Value: level}
	}

	ing.publish()
	if ing.obs != nil {
		ing.obs.Resolved(resolved)
	}
}

func (ing *Ingestor) handleAxis(name string, norm float64) {
	switch stick := ing.table.Stick(); name {
	case stick.Steering:
		ing.x = norm
	case stick.Throttle:
		ing.y = norm
	}
	// Other axes are observed for calibration but do not drive the vehicle.
}

// publish composes the merged snapshot: square-mapped stick position, scaled,
// plus the machine's mode, recording flag and scales. One whole-snapshot
// write per raw event keeps cross-field atomicity within an event's effects.
func (ing *Ingestor) publish() {
	u, v := mapping.SquareMap(ing.x, ing.y)
	st := drive.State{}
	ing.machine.Fold(&st)
	st.Steering = u * st.SteeringScale
	st.Throttle = v * st.ThrottleScale
	ing.pub.Publish(st)
}
