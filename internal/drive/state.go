// Package drive holds the vehicle control state produced from controller
// input and the edge-triggered state machine that mutates it.
package drive

// Mode selects who is steering the vehicle.
type Mode string

const (
	// ModeManual means the human on the controller drives.
	ModeManual Mode = "manual"
	// ModeAutonomous hands control to the autopilot.
	ModeAutonomous Mode = "autonomous"
)

// Button names the state machine reacts to. They match the builtin profile
// tables; any other name is a no-op.
const (
	ButtonA = "a"
	ButtonB = "b"
	ButtonX = "x"
	ButtonY = "y"

	PadUp    = "pad_up"
	PadDown  = "pad_down"
	PadLeft  = "pad_left"
	PadRight = "pad_right"
)

// State is the command tuple consumed by the drive loop each tick.
type State struct {
	Steering      float64 `json:"steering"`       // -1.0..1.0
	Throttle      float64 `json:"throttle"`       // -1.0..1.0
	SteeringScale float64 `json:"steering_scale"` // 0.0..1.0
	ThrottleScale float64 `json:"throttle_scale"` // 0.0..1.0
	Mode          Mode    `json:"mode"`
	Recording     bool    `json:"recording"`
}

// NewState returns the startup state: centered stick, full scales, manual
// drive, not recording.
func NewState() State {
	return State{
		SteeringScale: 1.0,
		ThrottleScale: 1.0,
		Mode:          ModeManual,
	}
}
