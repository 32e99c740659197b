/*
 * Copyright 2025 Urko Serrano.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package identity owns the current logged-in user, its known-device
// whitelist, and the sealed-profile persistence.
package identity

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/urko/smoothlink/pkg/kv"
	"github.com/urko/smoothlink/pkg/logger"
	"github.com/urko/smoothlink/pkg/models"
)

const (
	deviceIDKey = "deviceId"

	// validatedMarker is stored under a user id that has been accepted on
	// this device but has no sealed profile here.
	validatedMarker = "true"
)

// EnsureDeviceID returns the stable agent id of this installation, generating
// and persisting one on first run.
func EnsureDeviceID(store kv.Store) (string, error) {
	id, ok, err := store.Get(deviceIDKey)
	if err != nil {
		return "", fmt.Errorf("failed to read device id: %w", err)
	}

	if ok && id != "" {
		return id, nil
	}

	id = uuid.NewString()
	if err := store.Put(deviceIDKey, id); err != nil {
		return "", fmt.Errorf("failed to persist device id: %w", err)
	}

	return id, nil
}

// Manager holds at most one unsealed user profile in memory. Durable storage
// is touched only through the kv.Store it owns, and only sealed profiles or
// validated markers ever reach it. Inbound relay events and the local caller
// run on different goroutines, so every access to the in-memory profile goes
// through the mutex.
type Manager struct {
	store kv.Store
	log   logger.Logger

	mu       sync.RWMutex
	current  *models.UserProfile
	password string
}

// NewManager wires a trust manager over the given durable store.
func NewManager(store kv.Store, log logger.Logger) *Manager {
	return &Manager{store: store, log: log}
}

// CreateUser creates a brand-new in-memory profile for id and holds password
// for the eventual logout seal. It refuses when a user is already logged in or
// a sealed profile for id exists locally.
func (m *Manager) CreateUser(id, password string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return false
	}

	if sealed, _ := m.readSealed(id); sealed != "" {
		return false
	}

	m.current = models.NewUserProfile(id)
	m.password = password

	m.log.Info().Str("user_id", id).Msg("Created new user profile")

	return true
}

// Login unseals a locally stored profile. A validated marker without a
// profile does not log in.
func (m *Manager) Login(id, password string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return false
	}

	sealed, err := m.readSealed(id)
	if err != nil || sealed == "" {
		return false
	}

	profile, err := unsealProfile(sealed, password)
	if err != nil {
		m.log.Warn().Str("user_id", id).Msg("Invalid password")
		return false
	}

	m.current = profile
	m.password = password

	return true
}

// RemoteLogin logs in a user arriving over the wire. The user id must already
// be validated on this device and the wire profile must unseal with the wire
// password.
func (m *Manager) RemoteLogin(user models.WireUser) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return false
	}

	if !m.readValid(user.ID) {
		m.log.Warn().Str("user_id", user.ID).Msg("Remote user not validated on this device")
		return false
	}

	profile, err := unsealProfile(user.Profile, user.Password)
	if err != nil {
		m.log.Warn().Str("user_id", user.ID).Msg("Remote profile did not unseal")
		return false
	}

	m.current = profile
	m.password = user.Password

	return true
}

// AdoptProfile logs in from a sealed profile discovered on the network,
// keyed by a password the user typed on this device. Unlike RemoteLogin no
// prior validation is required; knowing the password is the proof.
func (m *Manager) AdoptProfile(id, sealed, password string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return false
	}

	profile, err := unsealProfile(sealed, password)
	if err != nil {
		m.log.Warn().Str("user_id", id).Msg("Discovered profile did not unseal")
		return false
	}

	if profile.UserID != id {
		m.log.Warn().Str("user_id", id).Msg("Discovered profile carries a different user id")
		return false
	}

	m.current = profile
	m.password = password

	return true
}

// Logout seals the current profile with the held password, persists it under
// the user id, and clears the in-memory identity. This is the only operation
// that writes a sealed profile to durable storage.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return ErrNotLoggedIn
	}

	sealed, err := sealProfile(m.current, m.password)
	if err != nil {
		return fmt.Errorf("failed to seal profile: %w", err)
	}

	userID := m.current.UserID
	if err := m.store.Put(userID, sealed); err != nil {
		return fmt.Errorf("failed to persist profile: %w", err)
	}

	m.current = nil
	m.password = ""

	m.log.Info().Str("user_id", userID).Msg("User logged out")

	return nil
}

// ClearProfile marks id as validated-but-empty and drops the in-memory
// identity. Used on the source side of a migration, where the profile has
// already left with the handoff message.
func (m *Manager) ClearProfile(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Put(id, validatedMarker); err != nil {
		return fmt.Errorf("failed to clear profile: %w", err)
	}

	m.current = nil
	m.password = ""

	return nil
}

// ValidateUser durably marks id as accepted on this device without storing a
// profile. An existing sealed profile is left untouched.
func (m *Manager) ValidateUser(id string) error {
	if sealed, _ := m.readSealed(id); sealed != "" {
		return nil
	}

	return m.store.Put(id, validatedMarker)
}

// UserValid reports whether id has been validated or has a profile here.
func (m *Manager) UserValid(id string) bool {
	return m.readValid(id)
}

// SealedProfile returns the locally stored sealed profile for id, or "" when
// only the validated marker (or nothing) is present.
func (m *Manager) SealedProfile(id string) string {
	sealed, _ := m.readSealed(id)
	return sealed
}

// RemoveUser deletes the current user's durable entry and logs it out.
func (m *Manager) RemoveUser() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return ErrNotLoggedIn
	}

	if err := m.store.Delete(m.current.UserID); err != nil {
		return fmt.Errorf("failed to remove user: %w", err)
	}

	m.current = nil
	m.password = ""

	return nil
}

// LoggedIn reports whether a user is currently unsealed in memory.
func (m *Manager) LoggedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.current != nil
}

// CurrentUser returns the logged-in user id, or "".
func (m *Manager) CurrentUser() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return ""
	}

	return m.current.UserID
}

// Password returns the password held for the current session.
func (m *Manager) Password() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.password
}

// Snapshot returns a copy of the current profile for wire transfer.
func (m *Manager) Snapshot() (models.UserProfile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return models.UserProfile{}, false
	}

	out := *m.current
	out.KnownDevices = make(map[string]string, len(m.current.KnownDevices))

	for k, v := range m.current.KnownDevices {
		out.KnownDevices[k] = v
	}

	return out, true
}

// AddKnownDevice marks deviceID as trusted. An existing entry keeps its
// display name.
func (m *Manager) AddKnownDevice(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return
	}

	if _, ok := m.current.KnownDevices[deviceID]; !ok {
		m.current.KnownDevices[deviceID] = deviceID
	}
}

// SetKnownDevices replaces the whole known-device map.
func (m *Manager) SetKnownDevices(devices map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return
	}

	m.current.KnownDevices = devices
}

// KnownDevices returns a copy of the known-device map.
func (m *Manager) KnownDevices() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil
	}

	out := make(map[string]string, len(m.current.KnownDevices))
	for k, v := range m.current.KnownDevices {
		out[k] = v
	}

	return out
}

// IsKnownDevice reports whether deviceID is a trusted migration target.
// Membership is key presence; the value may be the raw id or a display name.
func (m *Manager) IsKnownDevice(deviceID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return false
	}

	_, ok := m.current.KnownDevices[deviceID]

	return ok
}

// SetDeviceName labels a known device. Unknown devices are ignored.
func (m *Manager) SetDeviceName(deviceID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return
	}

	if _, ok := m.current.KnownDevices[deviceID]; !ok {
		return
	}

	m.current.KnownDevices[deviceID] = name
}

// DeviceName returns the display name of a known device, falling back to the
// id itself.
func (m *Manager) DeviceName(deviceID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return deviceID
	}

	if name, ok := m.current.KnownDevices[deviceID]; ok && name != "" {
		return name
	}

	return deviceID
}

// Auto reports the auto-migration mode of the current user.
func (m *Manager) Auto() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.current != nil && m.current.Auto
}

// SetAuto sets the auto-migration mode.
func (m *Manager) SetAuto(auto bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.Auto = auto
	}
}

// readSealed reads the durable entry for id, filtering out the validated
// marker. The store has its own locking; m.mu is not required here.
func (m *Manager) readSealed(id string) (string, error) {
	v, ok, err := m.store.Get(id)
	if err != nil || !ok || v == validatedMarker {
		return "", err
	}

	return v, nil
}

func (m *Manager) readValid(id string) bool {
	v, ok, err := m.store.Get(id)
	if err != nil {
		return false
	}

	return ok && v != ""
}

func sealProfile(profile *models.UserProfile, password string) (string, error) {
	plaintext, err := json.Marshal(profile)
	if err != nil {
		return "", err
	}

	return Seal(plaintext, password)
}

func unsealProfile(sealed, password string) (*models.UserProfile, error) {
	plaintext, err := Unseal(sealed, password)
	if err != nil {
		return nil, err
	}

	var profile models.UserProfile
	if err := json.Unmarshal(plaintext, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}

	if profile.KnownDevices == nil {
		profile.KnownDevices = make(map[string]string)
	}

	return &profile, nil
}
