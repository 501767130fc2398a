// Package evdev reads bluetooth game controller input from the Linux event
// layer (/dev/input/event*).
package evdev

import (
	"context"
	"strings"
	"syscall"
	"time"

	"github.com/edaniels/golog"
	evdev "github.com/gvalkov/golang-evdev"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"golang.org/x/sys/unix"

	"github.com/eike-welk/donkeypart-bluetooth-game-controller/internal/ingest"
	"github.com/eike-welk/donkeypart-bluetooth-game-controller/internal/profile"
)

// How long to wait between scans while the controller is not yet paired or
// powered on.
const findRetryDelay = 3 * time.Second

// How long a single poll on the device fd may block before the read loop
// re-checks its context. Bounds shutdown latency on an idle controller.
const readPollInterval = 100 * time.Millisecond

// Synthetic button codes emitted for hat (cross-pad) motion. They equal the
// kernel's BTN_DPAD_* codes, so a profile maps the pad the same way whether
// the device reports it as keys or as a hat axis.
const (
	BtnDpadUp    uint16 = 0x220
	BtnDpadDown  uint16 = 0x221
	BtnDpadLeft  uint16 = 0x222
	BtnDpadRight uint16 = 0x223
)

// Device wraps a Linux input device as an ingest.Source.
type Device struct {
	dev  *evdev.InputDevice
	fd   int
	hatX int32
	hatY int32
	// Synthetic pad events not yet handed out by ReadEvent.
	pending []ingest.RawEvent
}

// newDevice switches the device fd to non-blocking mode. The fd has left the
// runtime poller (the setup ioctls go through File.Fd()), so a plain read
// would block in the kernel where nothing can interrupt it; instead the read
// loop multiplexes the fd itself with a bounded poll.
func newDevice(dev *evdev.InputDevice) (*Device, error) {
	fd := int(dev.File.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		dev.File.Close()
		return nil, errors.Wrap(err, "setting input device non-blocking")
	}
	return &Device{dev: dev, fd: fd}, nil
}

// Find returns the input device whose name contains term, case-insensitive,
// scanning again every few seconds until one appears. Multiple matches are an
// error: the search term must identify the controller unambiguously.
func Find(ctx context.Context, term string, logger golog.Logger) (*Device, error) {
	for {
		dev, err := findOne(term)
		if err != nil {
			return nil, err
		}
		if dev != nil {
			logger.Infow("controller found", "name", dev.Name, "path", dev.Fn)
			return newDevice(dev)
		}
		logger.Infof("no input device matching %q, scanning again in %s", term, findRetryDelay)
		if !goutils.SelectContextOrWait(ctx, findRetryDelay) {
			return nil, ctx.Err()
		}
	}
}

func findOne(term string) (*evdev.InputDevice, error) {
	devices, err := evdev.ListInputDevices()
	if err != nil {
		return nil, errors.Wrap(err, "listing input devices")
	}
	var matches []*evdev.InputDevice
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), strings.ToLower(term)) {
			matches = append(matches, d)
		}
	}
	if len(matches) > 1 {
		names := make([]string, 0, len(matches))
		for _, d := range matches {
			names = append(names, d.Name)
		}
		return nil, errors.Errorf("multiple input devices match %q: %s",
			term, strings.Join(names, ", "))
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

// Open wraps an already-located device node.
func Open(path string) (*Device, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening input device %q", path)
	}
	return newDevice(dev)
}

// Name returns the kernel-reported device name.
func (d *Device) Name() string {
	return d.dev.Name
}

// ReadEvent waits until the device delivers a usable event or ctx is done.
// The fd is polled with a bounded timeout and the context re-checked between
// polls, so cancellation takes effect within readPollInterval even when the
// controller is idle. Key events map to buttons, absolute-axis events to
// axes, and hat axes are rewritten into press/release pairs on the synthetic
// pad button codes. Sync reports and other event types are skipped.
func (d *Device) ReadEvent(ctx context.Context) (ingest.RawEvent, error) {
	for {
		if len(d.pending) > 0 {
			ev := d.pending[0]
			d.pending = d.pending[1:]
			return ev, nil
		}
		if err := ctx.Err(); err != nil {
			return ingest.RawEvent{}, err
		}
		fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, int(readPollInterval/time.Millisecond))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return ingest.RawEvent{}, errors.Wrap(err, "polling input device")
		}
		if n == 0 {
			// Timeout, loop to re-check ctx.
			continue
		}
		ev, err := d.dev.ReadOne()
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) {
				continue
			}
			return ingest.RawEvent{}, errors.Wrap(err, "reading input event")
		}
		switch ev.Type {
		case evdev.EV_KEY:
			return ingest.RawEvent{Code: ev.Code, Kind: profile.Button, Value: ev.Value}, nil
		case evdev.EV_ABS:
			switch ev.Code {
			case evdev.ABS_HAT0X:
				d.pending = hatTransitions(&d.hatX, ev.Value, BtnDpadLeft, BtnDpadRight)
			case evdev.ABS_HAT0Y:
				// Negative hat Y is up.
				d.pending = hatTransitions(&d.hatY, ev.Value, BtnDpadUp, BtnDpadDown)
			default:
				return ingest.RawEvent{Code: ev.Code, Kind: profile.Axis, Value: ev.Value}, nil
			}
		}
	}
}

// Close closes the device node.
func (d *Device) Close() error {
	return d.dev.File.Close()
}

// hatTransitions turns a hat axis level change into button press/release
// events: leaving a direction releases it, entering one presses it.
func hatTransitions(state *int32, value int32, negCode, posCode uint16) []ingest.RawEvent {
	if *state == value {
		return nil
	}
	var evs []ingest.RawEvent
	if *state < 0 {
		evs = append(evs, ingest.RawEvent{Code: negCode, Kind: profile.Button, Value: 0})
	}
	if *state > 0 {
		evs = append(evs, ingest.RawEvent{Code: posCode, Kind: profile.Button, Value: 0})
	}
	if value < 0 {
		evs = append(evs, ingest.RawEvent{Code: negCode, Kind: profile.Button, Value: 1})
	}
	if value > 0 {
		evs = append(evs, ingest.RawEvent{Code: posCode, Kind: profile.Button, Value: 1})
	}
	*state = value
	return evs
}
