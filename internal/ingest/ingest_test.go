package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/eike-welk/donkeypart-bluetooth-game-controller/internal/drive"
	"github.com/eike-welk/donkeypart-bluetooth-game-controller/internal/profile"
)

func testTable(t *testing.T) *profile.Table {
	t.Helper()
	table, err := profile.NewTable("test",
		profile.Stick{Steering: "left_stick_x", Throttle: "left_stick_y"},
		[]profile.Entry{
			{Code: 0, Name: "left_stick_x", Kind: profile.Axis, Min: -1280, Max: 1280},
			{Code: 1, Name: "left_stick_y", Kind: profile.Axis, Min: -1280, Max: 1280},
			{Code: 3, Name: "right_stick_x", Kind: profile.Axis, Min: -1280, Max: 1280},
			{Code: 0x131, Name: drive.ButtonA, Kind: profile.Button},
			{Code: 0x222, Name: drive.PadLeft, Kind: profile.Button},
		})
	test.That(t, err, test.ShouldBeNil)
	return table
}

// scriptSource feeds events pushed by the test and fails over to injected
// errors, mimicking the blocking device read.
type scriptSource struct {
	events chan RawEvent
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

func newScriptSource() *scriptSource {
	return &scriptSource{
		events: make(chan RawEvent, 16),
		errs:   make(chan error, 16),
		closed: make(chan struct{}),
	}
}

func (s *scriptSource) ReadEvent(ctx context.Context) (RawEvent, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case err := <-s.errs:
		return RawEvent{}, err
	case <-s.closed:
		return RawEvent{}, errors.New("device closed")
	case <-ctx.Done():
		return RawEvent{}, ctx.Err()
	}
}

func (s *scriptSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// chanObserver forwards every resolved event so tests can wait for the
// ingestor to catch up.
type chanObserver struct {
	resolved chan Resolved
	unknown  chan uint16
}

func newChanObserver() *chanObserver {
	return &chanObserver{
		resolved: make(chan Resolved, 16),
		unknown:  make(chan uint16, 16),
	}
}

func (o *chanObserver) Resolved(ev Resolved) { o.resolved <- ev }
func (o *chanObserver) Unknown(code uint16)  { o.unknown <- code }

func (o *chanObserver) waitResolved(t *testing.T) Resolved {
	t.Helper()
	select {
	case ev := <-o.resolved:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Resolved{}
	}
}

type harness struct {
	src     *scriptSource
	obs     *chanObserver
	machine *drive.Machine
	pub     *drive.Publisher
	ing     *Ingestor
	done    chan struct{}
	err     error
}

func startHarness(t *testing.T, ctx context.Context, opts Options) *harness {
	t.Helper()
	h := &harness{
		src:     newScriptSource(),
		obs:     newChanObserver(),
		machine: drive.NewMachine(0.05),
		pub:     drive.NewPublisher(),
		done:    make(chan struct{}),
	}
	opts.Observer = h.obs
	h.ing = New(h.src, testTable(t), h.machine, h.pub, golog.NewTestLogger(t), opts)
	go func() {
		h.err = h.ing.Run(ctx)
		close(h.done)
	}()
	return h
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ingestor to stop")
	}
}

func TestEndToEndScenario(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := startHarness(t, ctx, Options{})

	// Stick at midpoint of range on both axes, then an A press.
	h.src.events <- RawEvent{Code: 0, Kind: profile.Axis, Value: 0}
	h.src.events <- RawEvent{Code: 1, Kind: profile.Axis, Value: 0}
	h.src.events <- RawEvent{Code: 0x131, Kind: profile.Button, Value: 1}

	ev := h.obs.waitResolved(t)
	test.That(t, ev.Name, test.ShouldEqual, "left_stick_x")
	test.That(t, ev.Value, test.ShouldEqual, 0.0)
	h.obs.waitResolved(t)
	ev = h.obs.waitResolved(t)
	test.That(t, ev.Name, test.ShouldEqual, drive.ButtonA)
	test.That(t, ev.Value, test.ShouldEqual, 1.0)

	st := h.pub.Latest()
	test.That(t, st.Steering, test.ShouldEqual, 0.0)
	test.That(t, st.Throttle, test.ShouldEqual, 0.0)
	test.That(t, st.Mode, test.ShouldEqual, drive.ModeAutonomous)
	test.That(t, st.Recording, test.ShouldBeFalse)
	test.That(t, st.SteeringScale, test.ShouldEqual, 1.0)
	test.That(t, st.ThrottleScale, test.ShouldEqual, 1.0)

	cancel()
	h.wait(t)
	test.That(t, h.err, test.ShouldBeNil)
}

func TestAxisDeflectionAndScale(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := startHarness(t, ctx, Options{})

	// Full steering deflection.
	h.src.events <- RawEvent{Code: 0, Kind: profile.Axis, Value: 1280}
	h.obs.waitResolved(t)
	test.That(t, h.pub.Latest().Steering, test.ShouldEqual, 1.0)
	test.That(t, h.pub.Latest().Throttle, test.ShouldEqual, 0.0)

	// One pad-left press lowers the steering scale; the already-deflected
	// stick output follows it on the next publish.
	h.src.events <- RawEvent{Code: 0x222, Kind: profile.Button, Value: 1}
	h.obs.waitResolved(t)
	st := h.pub.Latest()
	test.That(t, st.SteeringScale, test.ShouldAlmostEqual, 0.95)
	test.That(t, st.Steering, test.ShouldAlmostEqual, 0.95)

	cancel()
	h.wait(t)
}

func TestLastValueSemanticsBetweenEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := startHarness(t, ctx, Options{})

	h.src.events <- RawEvent{Code: 0, Kind: profile.Axis, Value: 1280}
	h.src.events <- RawEvent{Code: 0x131, Kind: profile.Button, Value: 1}
	h.obs.waitResolved(t)
	h.obs.waitResolved(t)

	// The axis value persists across the unrelated button event.
	st := h.pub.Latest()
	test.That(t, st.Steering, test.ShouldEqual, 1.0)
	test.That(t, st.Mode, test.ShouldEqual, drive.ModeAutonomous)

	cancel()
	h.wait(t)
}

func TestUnknownCodeDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := startHarness(t, ctx, Options{})

	before := h.pub.Latest()
	h.src.events <- RawEvent{Code: 999, Kind: profile.Axis, Value: 1280}

	select {
	case code := <-h.obs.unknown:
		test.That(t, code, test.ShouldEqual, uint16(999))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for unknown-code report")
	}
	test.That(t, h.pub.Latest(), test.ShouldResemble, before)

	cancel()
	h.wait(t)
}

func TestNonStickAxisObservedOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := startHarness(t, ctx, Options{})

	h.src.events <- RawEvent{Code: 3, Kind: profile.Axis, Value: 1280}
	ev := h.obs.waitResolved(t)
	test.That(t, ev.Name, test.ShouldEqual, "right_stick_x")
	test.That(t, ev.Value, test.ShouldEqual, 1.0)

	// The right stick is not the drive stick; the command tuple stays put.
	st := h.pub.Latest()
	test.That(t, st.Steering, test.ShouldEqual, 0.0)
	test.That(t, st.Throttle, test.ShouldEqual, 0.0)

	cancel()
	h.wait(t)
}

func TestTransientReadErrorRecovers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := startHarness(t, ctx, Options{MaxRetries: 5, Backoff: time.Millisecond})

	h.src.errs <- errors.New("transient disconnect")
	h.src.errs <- errors.New("transient disconnect")
	h.src.events <- RawEvent{Code: 0, Kind: profile.Axis, Value: 1280}

	h.obs.waitResolved(t)
	test.That(t, h.pub.Latest().Steering, test.ShouldEqual, 1.0)

	cancel()
	h.wait(t)
	test.That(t, h.err, test.ShouldBeNil)
}

func TestReadFailurePastBoundIsFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := startHarness(t, ctx, Options{MaxRetries: 2, Backoff: time.Millisecond})

	h.src.events <- RawEvent{Code: 0, Kind: profile.Axis, Value: 1280}
	h.obs.waitResolved(t)

	for i := 0; i < 3; i++ {
		h.src.errs <- errors.New("gone for good")
	}

	h.wait(t)
	test.That(t, h.err, test.ShouldNotBeNil)

	// A stale last-good command beats an undefined one: the publisher keeps
	// serving the final snapshot after the ingestor has died.
	test.That(t, h.pub.Latest().Steering, test.ShouldEqual, 1.0)
}

func TestShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := startHarness(t, ctx, Options{})

	h.src.events <- RawEvent{Code: 0, Kind: profile.Axis, Value: 1280}
	h.obs.waitResolved(t)
	last := h.pub.Latest()

	cancel()
	h.wait(t)
	test.That(t, h.err, test.ShouldBeNil)

	// Run owns the source and releases it on the way out.
	select {
	case <-h.src.closed:
	default:
		t.Fatal("source was not closed on shutdown")
	}

	// Events after shutdown are not processed; the last snapshot remains.
	h.src.events <- RawEvent{Code: 0, Kind: profile.Axis, Value: -1280}
	time.Sleep(10 * time.Millisecond)
	test.That(t, h.pub.Latest(), test.ShouldResemble, last)
}
