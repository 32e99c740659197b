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
	"time"

	"github.com/urko/smoothlink/pkg/models"
)

// Login resolves a user id and password into a logged-in session. A locally
// stored profile wins immediately; otherwise a discovery probe goes out and
// the first matching answer that unseals with password is adopted. When no
// peer answers within the discovery timeout, a brand-new user is created.
//
// Login must not be called from the event handler goroutine.
func (o *Orchestrator) Login(ctx context.Context, userID, password string) (bool, error) {
	if o.trust.LoggedIn() {
		return false, nil
	}

	if o.trust.Login(userID, password) {
		o.log.Info().Str("user_id", userID).Msg("Logged in from local profile")
		return true, nil
	}

	wait := &discoveryWait{
		userID:   userID,
		password: password,
		done:     make(chan bool, 1),
	}

	o.mu.Lock()
	o.discovery = wait
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		if o.discovery == wait {
			o.discovery = nil
		}
		o.mu.Unlock()
	}()

	probe := models.ProfileMessage{ID: o.deviceID, UserID: userID}
	if err := o.relay.Send(models.KindProfile, probe); err != nil {
		// Offline: skip the wait and create locally right away.
		o.log.Warn().Err(err).Msg("Profile probe failed, creating user locally")
		return o.trust.CreateUser(userID, password), nil
	}

	timer := time.NewTimer(o.cfg.DiscoveryTimeout)
	defer timer.Stop()

	select {
	case ok := <-wait.done:
		return ok, nil
	case <-timer.C:
		if o.trust.CreateUser(userID, password) {
			o.log.Info().Str("user_id", userID).Msg("Discovery timed out, creating user locally")
			return true, nil
		}

		// A matching answer can be adopted in the same instant the timer
		// fires; the login stands if the profile arrived.
		return o.trust.CurrentUser() == userID, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Logout seals and persists the current profile, then clears the session.
func (o *Orchestrator) Logout() error {
	if err := o.trust.Logout(); err != nil {
		return err
	}

	o.dir.SetOriginID("")
	o.notifyLogout()

	return nil
}

// handleProfileProbe answers a peer's discovery probe when this device holds
// a sealed profile for the requested user.
func (o *Orchestrator) handleProfileProbe(env models.Envelope) {
	var msg models.ProfileMessage
	if err := env.Decode(&msg); err != nil {
		o.log.Warn().Err(err).Msg("Malformed profile probe")
		return
	}

	sealed := o.trust.SealedProfile(msg.UserID)
	if sealed == "" {
		return
	}

	ack := models.ProfileAckMessage{
		ID:       o.deviceID,
		TargetID: msg.ID,
		User:     models.WireUser{ID: msg.UserID, Profile: sealed},
	}

	if err := o.relay.Send(models.KindProfileAck, ack); err != nil {
		o.log.Warn().Err(err).Str("target_id", msg.ID).Msg("Failed to answer profile probe")
	}
}

// handleProfileAck completes an outstanding discovery login. Acks are fanned
// out to every peer, so the target filter happens here.
func (o *Orchestrator) handleProfileAck(env models.Envelope) {
	var msg models.ProfileAckMessage
	if err := env.Decode(&msg); err != nil {
		o.log.Warn().Err(err).Msg("Malformed profile ack")
		return
	}

	if msg.TargetID != o.deviceID {
		return
	}

	o.mu.Lock()
	wait := o.discovery
	o.mu.Unlock()

	if wait == nil || msg.User.ID != wait.userID {
		return
	}

	if !o.trust.AdoptProfile(wait.userID, msg.User.Profile, wait.password) {
		return
	}

	o.log.Info().
		Str("user_id", wait.userID).
		Str("origin_id", msg.ID).
		Msg("Logged in from discovered profile")

	select {
	case wait.done <- true:
	default:
	}
}
