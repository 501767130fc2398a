package drive

// DefaultScaleStep is how far one cross-pad press moves a scale factor.
const DefaultScaleStep = 0.05

// Machine is the mode state machine. It acts on button press edges (a 0→1
// level transition), never on held levels or releases, by keeping the
// previous level of every button it has seen.
//
// Machine is not synchronized; it is owned by the ingest goroutine.
type Machine struct {
	mode          Mode
	recording     bool
	steeringScale float64
	throttleScale float64
	step          float64
	levels        map[string]bool
}

// NewMachine returns a machine in the startup state. A step of 0 selects
// DefaultScaleStep.
func NewMachine(step float64) *Machine {
	if step <= 0 {
		step = DefaultScaleStep
	}
	return &Machine{
		mode:          ModeManual,
		steeringScale: 1.0,
		throttleScale: 1.0,
		step:          step,
		levels:        make(map[string]bool),
	}
}

// HandleButton feeds one raw button level into the machine. Transitions fire
// only on the press edge; releases and repeated levels only update the stored
// level. Unknown button names are tracked but trigger nothing.
func (m *Machine) HandleButton(name string, pressed bool) {
	wasPressed := m.levels[name]
	m.levels[name] = pressed
	if pressed && !wasPressed {
		m.press(name)
	}
}

func (m *Machine) press(name string) {
	switch name {
	case ButtonA:
		if m.mode == ModeManual {
			m.mode = ModeAutonomous
		} else {
			m.mode = ModeManual
		}
	case ButtonB:
		m.mode = ModeManual
	case ButtonX:
		m.recording = true
	case ButtonY:
		m.recording = false
	case PadUp:
		m.throttleScale = clampScale(m.throttleScale + m.step)
	case PadDown:
		m.throttleScale = clampScale(m.throttleScale - m.step)
	case PadRight:
		m.steeringScale = clampScale(m.steeringScale + m.step)
	case PadLeft:
		m.steeringScale = clampScale(m.steeringScale - m.step)
	}
}

// Fold stamps the machine's mode, recording flag and scale factors onto a
// snapshot under construction.
func (m *Machine) Fold(s *State) {
	s.Mode = m.mode
	s.Recording = m.recording
	s.SteeringScale = m.steeringScale
	s.ThrottleScale = m.throttleScale
}

// Mode returns the current drive mode.
func (m *Machine) Mode() Mode {
	return m.mode
}

// Recording reports whether session recording is on.
func (m *Machine) Recording() bool {
	return m.recording
}

// Scales returns the current steering and throttle scale factors.
func (m *Machine) Scales() (steering, throttle float64) {
	return m.steeringScale, m.throttleScale
}

func clampScale(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
