// Package profile maps a controller's raw hardware event codes to semantic
// control names and calibration ranges. A profile is loaded once at startup;
// supporting a different controller model means supplying a different table,
// not new code.
package profile

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Kind distinguishes continuous axis controls from discrete buttons.
type Kind string

const (
	Axis   Kind = "axis"
	Button Kind = "button"
)

// Entry describes one physical control on a device.
type Entry struct {
	Code uint16 `mapstructure:"code"`
	Name string `mapstructure:"name"`
	Kind Kind   `mapstructure:"kind"`
	// Min and Max bound the raw readings of an axis. Unused for buttons.
	Min int32 `mapstructure:"min"`
	Max int32 `mapstructure:"max"`
	// Invert flips the normalized axis value. Sticks report pushing forward
	// as negative raw values on most devices.
	Invert bool `mapstructure:"invert"`
}

// Stick designates which two axis names form the drive stick and the vehicle
// semantic each one maps to.
type Stick struct {
	Steering string `mapstructure:"steering"`
	Throttle string `mapstructure:"throttle"`
}

// Table is the immutable profile for one controller model.
type Table struct {
	name    string
	stick   Stick
	entries map[uint16]Entry
}

// ConfigError reports a malformed profile table. The daemon refuses to start
// on a ConfigError rather than run with an ambiguous mapping.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "profile config: " + e.Reason
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err stems from profile validation.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// NewTable validates the given entries and builds a lookup table from them.
func NewTable(name string, stick Stick, entries []Entry) (*Table, error) {
	if len(entries) == 0 {
		return nil, configErrorf("table %q has no entries", name)
	}
	byCode := make(map[uint16]Entry, len(entries))
	byName := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return nil, configErrorf("table %q: code %d has no name", name, e.Code)
		}
		if e.Kind != Axis && e.Kind != Button {
			return nil, configErrorf("table %q: entry %q has unknown kind %q", name, e.Name, e.Kind)
		}
		if prev, ok := byCode[e.Code]; ok {
			return nil, configErrorf("table %q: code %d mapped to both %q and %q", name, e.Code, prev.Name, e.Name)
		}
		if e.Kind == Axis && e.Min == e.Max {
			return nil, configErrorf("table %q: axis %q has degenerate range [%d, %d]", name, e.Name, e.Min, e.Max)
		}
		byCode[e.Code] = e
		byName[e.Name] = e
	}
	for _, axis := range []string{stick.Steering, stick.Throttle} {
		if axis == "" {
			return nil, configErrorf("table %q: stick axes not designated", name)
		}
		e, ok := byName[axis]
		if !ok {
			return nil, configErrorf("table %q: stick axis %q has no entry", name, axis)
		}
		if e.Kind != Axis {
			return nil, configErrorf("table %q: stick axis %q is a %s", name, axis, e.Kind)
		}
	}
	return &Table{name: name, stick: stick, entries: byCode}, nil
}

// Name returns the profile's controller model name.
func (t *Table) Name() string {
	return t.name
}

// Stick returns the drive stick axis designation.
func (t *Table) Stick() Stick {
	return t.stick
}

// Resolve looks up the entry for a raw event code. A miss means the code is
// not part of this mapping, not a fault.
func (t *Table) Resolve(code uint16) (Entry, bool) {
	e, ok := t.entries[code]
	return e, ok
}

// Load reads a profile table from a YAML file.
func Load(path string) (*Table, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading profile %q", path)
	}
	var raw struct {
		Name    string  `mapstructure:"name"`
		Stick   Stick   `mapstructure:"stick"`
		Entries []Entry `mapstructure:"entries"`
	}
	if err := v.Unmarshal(&raw); err != nil {
		return nil, errors.Wrapf(err, "parsing profile %q", path)
	}
	return NewTable(raw.Name, raw.Stick, raw.Entries)
}

// Select returns the builtin profile named by spec, or loads spec as a YAML
// file path when no builtin matches.
func Select(spec string) (*Table, error) {
	if t, ok := Builtin(spec); ok {
		return t, nil
	}
	return Load(spec)
}
