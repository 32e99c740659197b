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
	"fmt"
	"strings"

	"github.com/urko/smoothlink/pkg/models"
)

// Migrate hands the playing session to targetID. The local user is logged out
// before the message leaves; delivery is fire-and-forget, so a dead target
// means re-login on this device, never a duplicated session.
func (o *Orchestrator) Migrate(handle MediaHandle, targetID string) error {
	if handle == nil {
		return ErrNoMedia
	}

	if !o.trust.LoggedIn() {
		return ErrNotLoggedIn
	}

	if !o.dir.Known(targetID) {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, targetID)
	}

	desc := handle.Descriptor()
	desc.CurrentTime = handle.CurrentTime()

	var hint *models.NetInfo

	if o.netinfo != nil && isLocalSource(handle.CurrentSource()) {
		h, err := o.netinfo.Get(handle.CurrentSource())
		if err != nil {
			o.log.Warn().Err(err).Msg("No transport hint for local source")
		} else {
			hint = h
		}
	}

	// The source device stays a valid target for migrating back.
	o.trust.AddKnownDevice(o.deviceID)

	userID := o.trust.CurrentUser()
	password := o.trust.Password()

	if err := o.trust.Logout(); err != nil {
		return fmt.Errorf("failed to seal profile for handoff: %w", err)
	}

	sealed := o.trust.SealedProfile(userID)

	if err := o.trust.ClearProfile(userID); err != nil {
		return fmt.Errorf("failed to clear profile: %w", err)
	}

	o.dir.SetOriginID("")
	o.notifyLogout()

	msg := models.MigrateMessage{
		ID:       o.deviceID,
		TargetID: targetID,
		Coords:   o.position.Current(),
		User:     models.WireUser{ID: userID, Password: password, Profile: sealed},
		Media:    desc,
		NetInfo:  hint,
	}

	o.log.Info().
		Str("target_id", targetID).
		Str("media_id", desc.ID).
		Float64("current_time", desc.CurrentTime).
		Msg("Handing off session")

	return o.relay.Send(models.KindMigrate, msg)
}

// MigrateBack returns the session to the device it arrived from.
func (o *Orchestrator) MigrateBack(handle MediaHandle) error {
	origin := o.dir.OriginID()
	if origin == "" {
		return ErrNoOrigin
	}

	return o.Migrate(handle, origin)
}

// AcceptMigration consumes an inbound handoff: logs the wire user in,
// rebuilds the media session, and resumes playback at the carried offset.
// A rejected login drops the handoff entirely.
func (o *Orchestrator) AcceptMigration(msg models.MigrateMessage) (MediaHandle, error) {
	if !o.trust.RemoteLogin(msg.User) {
		return nil, fmt.Errorf("%w: %s", ErrLoginRejected, msg.User.ID)
	}

	o.dir.Update(models.DeviceList{msg.ID: {Coords: msg.Coords}})
	o.dir.SetOriginID(msg.ID)

	if msg.NetInfo != nil && o.netinfo != nil {
		for _, src := range msg.Media.Sources {
			if !isLocalSource(src) {
				continue
			}

			if err := o.netinfo.Set(src, msg.NetInfo); err != nil {
				o.log.Warn().Err(err).Str("source", src).Msg("Failed to apply transport hint")
			}
		}
	}

	handle, err := o.media.Materialize(msg.Media)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild media session: %w", err)
	}

	if err := handle.Seek(msg.Media.CurrentTime); err != nil {
		o.log.Warn().Err(err).Msg("Failed to seek to handoff offset")
	}

	if err := handle.Play(); err != nil {
		return nil, fmt.Errorf("failed to resume playback: %w", err)
	}

	o.log.Info().
		Str("origin_id", msg.ID).
		Str("user_id", msg.User.ID).
		Float64("current_time", msg.Media.CurrentTime).
		Msg("Session handed off to this device")

	if o.onMedia != nil {
		o.onMedia(handle)
	}

	return handle, nil
}

// isLocalSource reports whether a media URL is served by a gateway on the
// source device itself, in which case a transport hint must travel with it.
func isLocalSource(source string) bool {
	return strings.Contains(source, "localhost") || strings.Contains(source, "127.0.0.1")
}
