package event

import "github.com/karabiner-grabberd/grabberd/internal/devid"

// FrontmostApplication describes the OS-reported focused application,
// fed in by the peer datagram channel (spec.md §6, out of scope as a
// producer, consumed here only).
type FrontmostApplication struct {
	BundleIdentifier string
	FilePath         string
}

// InputSource describes the active keyboard input source.
type InputSource struct {
	LanguageCode string
	InputSourceID string
	Identifier    string
}

// SystemPreferences is the subset of OS-wide preferences manipulator
// conditions may gate on (e.g. "use fkeys as standard function keys").
type SystemPreferences struct {
	UseFKeysAsStandardFunctionKeys bool
	KeyRepeat                      bool
}

// Environment is the manipulator-visible cache of frontmost
// application, input source, system preferences, per-device properties
// and named variables (spec.md §3 "Queue", GLOSSARY "Manipulator
// environment").
type Environment struct {
	frontmostApplication FrontmostApplication
	inputSource          InputSource
	systemPreferences    SystemPreferences
	deviceProperties     map[devid.ID]devid.Properties
	variables            map[string]int
	virtualHIDCountryCode int
}

// NewEnvironment returns an empty environment.
func NewEnvironment() *Environment {
	return &Environment{
		deviceProperties: map[devid.ID]devid.Properties{},
		variables:        map[string]int{},
	}
}

func (e *Environment) SetFrontmostApplication(a FrontmostApplication) { e.frontmostApplication = a }
func (e *Environment) FrontmostApplication() FrontmostApplication     { return e.frontmostApplication }

func (e *Environment) SetInputSource(s InputSource) { e.inputSource = s }
func (e *Environment) InputSource() InputSource     { return e.inputSource }

func (e *Environment) SetSystemPreferences(p SystemPreferences) { e.systemPreferences = p }
func (e *Environment) SystemPreferences() SystemPreferences     { return e.systemPreferences }

// InsertDeviceProperties records a device as grabbed, caching its
// properties for device-if/device-unless conditions.
func (e *Environment) InsertDeviceProperties(id devid.ID, p devid.Properties) {
	e.deviceProperties[id] = p
}

// EraseDeviceProperties forgets a device on ungrab.
func (e *Environment) EraseDeviceProperties(id devid.ID) {
	delete(e.deviceProperties, id)
}

// DeviceProperties looks up a cached device's properties.
func (e *Environment) DeviceProperties(id devid.ID) (devid.Properties, bool) {
	p, ok := e.deviceProperties[id]
	return p, ok
}

// SetVariable sets a named variable's integer value.
func (e *Environment) SetVariable(name string, value int) {
	e.variables[name] = value
}

// Variable reads a named variable, defaulting to 0 when unset (matching
// the original source's variable-if condition semantics: an unset
// variable compares equal to 0).
func (e *Environment) Variable(name string) int {
	return e.variables[name]
}

func (e *Environment) SetVirtualHIDKeyboardCountryCode(code int) { e.virtualHIDCountryCode = code }
func (e *Environment) VirtualHIDKeyboardCountryCode() int        { return e.virtualHIDCountryCode }
