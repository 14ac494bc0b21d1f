// Package config owns the CoreConfiguration snapshot's lifecycle
// (spec.md §6 "Configuration input"): loading, schema validation, and
// atomic swap-and-refcount so in-flight manipulator managers keep
// running against the snapshot they were built from while a reload
// builds the next one. The core does not parse manipulator *rule* JSON
// itself (that remains an external profile compiler's job); it only
// owns the handful of device-level flags the grabber and connector
// consult directly.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/karabiner-grabberd/grabberd/internal/devid"
)

// DeviceConfig is the set of device-level flags the core interprets
// directly, as opposed to manipulator rules (an external compiler's
// output, out of this package's scope per spec.md's Non-goals).
type DeviceConfig struct {
	Identifiers                    devid.Identifiers `json:"identifiers"`
	Disabled                       bool              `json:"disabled,omitempty"`
	IgnoreInput                    bool              `json:"ignore_input,omitempty"`
	ManipulateCapsLockLED          bool              `json:"manipulate_caps_lock_led,omitempty"`
	DisableBuiltInKeyboardIfExists bool              `json:"disable_built_in_keyboard_if_exists,omitempty"`
}

// CoreConfiguration is the validated snapshot handed to the grabber and
// connector on (re)load.
type CoreConfiguration struct {
	Devices []DeviceConfig `json:"devices"`
}

// deviceConfigFor returns the first DeviceConfig whose identifiers match
// p, if any.
func (c *CoreConfiguration) deviceConfigFor(p devid.Properties) (DeviceConfig, bool) {
	for _, dc := range c.Devices {
		if p.Matches(dc.Identifiers) {
			return dc, true
		}
	}
	return DeviceConfig{}, false
}

// IgnoreInput reports whether a device's configuration marks it
// wake/presence-only (spec.md §4.2, §4.7.1).
func (c *CoreConfiguration) IgnoreInput(p devid.Properties) bool {
	dc, ok := c.deviceConfigFor(p)
	return ok && dc.IgnoreInput
}

// ManipulateCapsLockLED reports whether the grabber should drive this
// device's caps-lock LED from the virtual HID keyboard's caps-lock state
// notifications.
func (c *CoreConfiguration) ManipulateCapsLockLED(p devid.Properties) bool {
	dc, ok := c.deviceConfigFor(p)
	return ok && dc.ManipulateCapsLockLED
}

// Disabled reports whether configuration explicitly excludes this
// device from being grabbed at all.
func (c *CoreConfiguration) Disabled(p devid.Properties) bool {
	dc, ok := c.deviceConfigFor(p)
	return ok && dc.Disabled
}

//nolint:gochecknoglobals // read-only; each New call compiles it
const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "devices": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "identifiers": {
            "type": "object",
            "properties": {
              "vendor_id": {"type": "integer"},
              "product_id": {"type": "integer"},
              "is_keyboard": {"type": "boolean"},
              "is_pointing_device": {"type": "boolean"},
              "is_game_pad": {"type": "boolean"},
              "device_address": {"type": "string"}
            }
          },
          "disabled": {"type": "boolean"},
          "ignore_input": {"type": "boolean"},
          "manipulate_caps_lock_led": {"type": "boolean"},
          "disable_built_in_keyboard_if_exists": {"type": "boolean"}
        },
        "required": ["identifiers"]
      }
    }
  },
  "required": ["devices"]
}`

func compileSchema() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("core_configuration.json", schemaJSON)
}

// Store holds the current CoreConfiguration snapshot behind an atomic
// pointer, so readers never block on a reload in progress (spec.md §6:
// "atomic swap-and-refcount" of the snapshot).
type Store struct {
	schema  *jsonschema.Schema
	current atomic.Pointer[CoreConfiguration]
}

// New returns a Store with an empty initial snapshot (no devices
// configured), ready for Load to populate.
func New() (*Store, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile core configuration schema: %w", err)
	}
	s := &Store{schema: schema}
	s.current.Store(&CoreConfiguration{})
	return s, nil
}

// Current returns the snapshot currently in effect.
func (s *Store) Current() *CoreConfiguration {
	return s.current.Load()
}

// Load reads path, validates it against the core configuration schema,
// and atomically swaps it in as the current snapshot. A malformed file
// leaves the current snapshot untouched and returns the validation
// error for the caller to log (spec.md §7 "Configuration malformed").
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read core configuration: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse core configuration: %w", err)
	}
	if err := s.schema.Validate(raw); err != nil {
		return fmt.Errorf("validate core configuration: %w", err)
	}

	var cfg CoreConfiguration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("decode core configuration: %w", err)
	}

	s.current.Store(&cfg)
	return nil
}
