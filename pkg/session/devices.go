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

package session

import (
	"context"
	"fmt"
	"math"

	"github.com/urko/smoothlink/pkg/geo"
	"github.com/urko/smoothlink/pkg/models"
)

// GetDevices queries the relay for live peers and returns their distance in
// meters from this device. With all false the result is filtered to the
// current user's known devices.
func (o *Orchestrator) GetDevices(ctx context.Context, all bool) (map[string]float64, error) {
	if !o.trust.LoggedIn() {
		return nil, ErrNotLoggedIn
	}

	ch := make(chan models.DeviceList, 1)

	o.mu.Lock()
	o.devicesCh = ch
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		if o.devicesCh == ch {
			o.devicesCh = nil
		}
		o.mu.Unlock()
	}()

	pos := o.position.Current()
	if err := o.relay.Send(models.KindDevices, models.DevicesMessage{Coords: pos}); err != nil {
		return nil, fmt.Errorf("failed to request device list: %w", err)
	}

	timeout, cancel := context.WithTimeout(ctx, o.cfg.DevicesTimeout)
	defer cancel()

	select {
	case list := <-ch:
		return o.distances(pos, list, all), nil
	case <-timeout.Done():
		return nil, fmt.Errorf("device list request: %w", timeout.Err())
	}
}

func (o *Orchestrator) distances(pos models.Coordinates, list models.DeviceList, all bool) map[string]float64 {
	out := make(map[string]float64, len(list))

	for id, info := range list {
		if !all && !o.trust.IsKnownDevice(id) {
			continue
		}

		out[id] = geo.Distance(pos, info.Coords)
	}

	return out
}

// RequestAccept asks each listed device to trust the current user. Devices
// already known are skipped; confirmation arrives asynchronously as an
// acceptAck per device.
func (o *Orchestrator) RequestAccept(deviceIDs []string) error {
	if !o.trust.LoggedIn() {
		return ErrNotLoggedIn
	}

	req := make(map[string]string)

	for _, id := range deviceIDs {
		if id == o.deviceID || o.trust.IsKnownDevice(id) {
			continue
		}

		req[id] = id
	}

	if len(req) == 0 {
		return nil
	}

	msg := models.AcceptMessage{
		ID:      o.deviceID,
		UserID:  o.trust.CurrentUser(),
		DevList: req,
	}

	return o.relay.Send(models.KindAccept, msg)
}

// AcceptUser validates the requesting user on this device and confirms back
// to the requester. Called either automatically for already-validated users
// or by the application after the OnAccept callback.
func (o *Orchestrator) AcceptUser(msg models.AcceptMessage) error {
	if err := o.trust.ValidateUser(msg.UserID); err != nil {
		return fmt.Errorf("failed to validate user: %w", err)
	}

	ack := models.AcceptAckMessage{
		ID:       o.deviceID,
		TargetID: msg.ID,
		UserID:   msg.UserID,
	}

	return o.relay.Send(models.KindAcceptAck, ack)
}

func (o *Orchestrator) handleAccept(env models.Envelope) {
	var msg models.AcceptMessage
	if err := env.Decode(&msg); err != nil {
		o.log.Warn().Err(err).Msg("Malformed accept request")
		return
	}

	if o.trust.UserValid(msg.UserID) {
		if err := o.AcceptUser(msg); err != nil {
			o.log.Warn().Err(err).Str("user_id", msg.UserID).Msg("Failed to re-confirm accept")
		}

		return
	}

	if o.onAccept != nil {
		o.onAccept(msg)
	}
}

// handleAcceptAck records the confirming device as a trusted handoff target.
// Re-delivery is harmless; membership is a set.
func (o *Orchestrator) handleAcceptAck(env models.Envelope) {
	var msg models.AcceptAckMessage
	if err := env.Decode(&msg); err != nil {
		o.log.Warn().Err(err).Msg("Malformed accept ack")
		return
	}

	if !o.trust.LoggedIn() || msg.UserID != o.trust.CurrentUser() {
		return
	}

	o.trust.AddKnownDevice(msg.ID)
	o.log.Info().Str("device_id", msg.ID).Msg("Device accepted handoffs for current user")
}

func (o *Orchestrator) handleDevicesAck(env models.Envelope) {
	var list models.DeviceList
	if err := env.Decode(&list); err != nil {
		o.log.Warn().Err(err).Msg("Malformed device list")
		return
	}

	o.dir.Update(list)

	o.mu.Lock()
	ch := o.devicesCh
	o.mu.Unlock()

	if ch != nil {
		select {
		case ch <- list:
		default:
		}
	}
}

// HandlePause reacts to playback pausing. In auto mode the session migrates
// to the nearest known device without asking; otherwise the menu callback
// gets the live devices with distances.
func (o *Orchestrator) HandlePause(ctx context.Context, handle MediaHandle) error {
	if !o.trust.LoggedIn() {
		return ErrNotLoggedIn
	}

	devices, err := o.GetDevices(ctx, !o.trust.Auto())
	if err != nil {
		return err
	}

	if !o.trust.Auto() {
		if o.onMenu != nil {
			o.onMenu(handle, devices)
		}

		return nil
	}

	target := ""
	best := math.Inf(1)

	for id, dist := range devices {
		if dist < best {
			target, best = id, dist
		}
	}

	if target == "" {
		o.log.Debug().Msg("No known device nearby, staying put")
		return nil
	}

	return o.Migrate(handle, target)
}

// HandlePositionChange forwards a position fix to the rendezvous layer, which
// may reattach to a closer relay.
func (o *Orchestrator) HandlePositionChange() error {
	return o.relay.UpdatePosition(o.position.Current())
}
