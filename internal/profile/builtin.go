package profile

// Builtin mapping tables for known controllers. Mirrors the device-specific
// tables approach: semantic names and calibration ranges live here, the rest
// of the system only ever sees names.

// Control names shared by the builtin tables. A custom profile may use any
// names for extra controls, but the drive state machine and stick routing
// only react to these.
const (
	LeftStickX  = "left_stick_x"
	LeftStickY  = "left_stick_y"
	RightStickX = "right_stick_x"
	RightStickY = "right_stick_y"

	ButtonA = "a"
	ButtonB = "b"
	ButtonX = "x"
	ButtonY = "y"

	PadUp    = "pad_up"
	PadDown  = "pad_down"
	PadLeft  = "pad_left"
	PadRight = "pad_right"
)

// Linux event codes as delivered by hid-wiimote for the Wii U Pro Controller.
// Sticks report roughly -1280..1280; the dpad arrives as BTN_DPAD_* keys.
var wiiuEntries = []Entry{
	{Code: 0, Name: LeftStickX, Kind: Axis, Min: -1280, Max: 1280},
	{Code: 1, Name: LeftStickY, Kind: Axis, Min: -1280, Max: 1280, Invert: true},
	{Code: 3, Name: RightStickX, Kind: Axis, Min: -1280, Max: 1280},
	{Code: 4, Name: RightStickY, Kind: Axis, Min: -1280, Max: 1280, Invert: true},

	{Code: 0x131, Name: ButtonA, Kind: Button}, // BTN_EAST
	{Code: 0x130, Name: ButtonB, Kind: Button}, // BTN_SOUTH
	{Code: 0x133, Name: ButtonX, Kind: Button}, // BTN_NORTH
	{Code: 0x134, Name: ButtonY, Kind: Button}, // BTN_WEST

	{Code: 0x220, Name: PadUp, Kind: Button},
	{Code: 0x221, Name: PadDown, Kind: Button},
	{Code: 0x222, Name: PadLeft, Kind: Button},
	{Code: 0x223, Name: PadRight, Kind: Button},

	{Code: 0x136, Name: "lb", Kind: Button}, // BTN_TL
	{Code: 0x137, Name: "rb", Kind: Button}, // BTN_TR
	{Code: 0x13a, Name: "select", Kind: Button},
	{Code: 0x13b, Name: "start", Kind: Button},
	{Code: 0x13c, Name: "home", Kind: Button},
}

var builtins = map[string]*Table{}

func init() {
	for name, spec := range map[string]struct {
		stick   Stick
		entries []Entry
	}{
		"wiiu": {Stick{Steering: LeftStickX, Throttle: LeftStickY}, wiiuEntries},
	} {
		t, err := NewTable(name, spec.stick, spec.entries)
		if err != nil {
			panic(err) // builtin tables must validate
		}
		builtins[name] = t
	}
}

// Builtin returns the builtin profile with the given name.
func Builtin(name string) (*Table, bool) {
	t, ok := builtins[name]
	return t, ok
}

// Builtins lists the names of all builtin profiles.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	return names
}
