// Package state persists the daemon's "Persisted state files" (spec.md
// §6): a snapshot of currently matched devices, their resolved
// properties, and the grabber's current grab/ungrab decision per
// device. Each file is written atomically (write-temp-then-rename),
// the same idiom HopIT-Hub-R1-Control's internal/config.Config.Save
// uses for its single config file, generalized to three independently
// triggered snapshots.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/karabiner-grabberd/grabberd/internal/devid"
)

// GrabStatus is one device's last known grab decision, persisted so a
// restart can report its prior state before the next HID enumeration
// pass completes.
type GrabStatus string

const (
	GrabStatusGrabbed            GrabStatus = "grabbed"
	GrabStatusUngrabbedTemporary GrabStatus = "ungrabbed_temporarily"
	GrabStatusUngrabbedPermanent GrabStatus = "ungrabbed_permanently"
	GrabStatusNone               GrabStatus = "none"
)

// Store owns the three persisted snapshots and writes each to its own
// file under dir.
type Store struct {
	dir string

	mu             sync.RWMutex
	devices        map[devid.ID]bool
	deviceDetails  map[devid.ID]devid.Properties
	grabberState   map[devid.ID]GrabStatus
}

// New returns a Store rooted at dir. Every write creates the directory
// if it is missing.
func New(dir string) *Store {
	return &Store{
		dir:           dir,
		devices:       map[devid.ID]bool{},
		deviceDetails: map[devid.ID]devid.Properties{},
		grabberState:  map[devid.ID]GrabStatus{},
	}
}

func (s *Store) devicesPath() string      { return filepath.Join(s.dir, "devices.json") }
func (s *Store) deviceDetailsPath() string { return filepath.Join(s.dir, "device_details.json") }
func (s *Store) grabberStatePath() string { return filepath.Join(s.dir, "grabber_state.json") }

// SetDeviceMatched records a device as currently matched and caches its
// properties, then persists both snapshots.
func (s *Store) SetDeviceMatched(id devid.ID, p devid.Properties) error {
	s.mu.Lock()
	s.devices[id] = true
	s.deviceDetails[id] = p
	s.mu.Unlock()

	if err := s.saveDevices(); err != nil {
		return err
	}
	return s.saveDeviceDetails()
}

// SetDeviceTerminated forgets a device and persists the updated
// snapshots.
func (s *Store) SetDeviceTerminated(id devid.ID) error {
	s.mu.Lock()
	delete(s.devices, id)
	delete(s.deviceDetails, id)
	delete(s.grabberState, id)
	s.mu.Unlock()

	if err := s.saveDevices(); err != nil {
		return err
	}
	if err := s.saveDeviceDetails(); err != nil {
		return err
	}
	return s.saveGrabberState()
}

// SetGrabStatus records a device's current grab decision and persists
// the grabber-state snapshot.
func (s *Store) SetGrabStatus(id devid.ID, status GrabStatus) error {
	s.mu.Lock()
	s.grabberState[id] = status
	s.mu.Unlock()
	return s.saveGrabberState()
}

func (s *Store) saveDevices() error {
	s.mu.RLock()
	ids := make([]devid.ID, 0, len(s.devices))
	for id, matched := range s.devices {
		if matched {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()
	return s.writeJSON(s.devicesPath(), ids)
}

func (s *Store) saveDeviceDetails() error {
	s.mu.RLock()
	details := make(map[devid.ID]devid.Properties, len(s.deviceDetails))
	for id, p := range s.deviceDetails {
		details[id] = p
	}
	s.mu.RUnlock()
	return s.writeJSON(s.deviceDetailsPath(), details)
}

func (s *Store) saveGrabberState() error {
	s.mu.RLock()
	snapshot := make(map[devid.ID]GrabStatus, len(s.grabberState))
	for id, st := range s.grabberState {
		snapshot[id] = st
	}
	s.mu.RUnlock()
	return s.writeJSON(s.grabberStatePath(), snapshot)
}

func (s *Store) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
