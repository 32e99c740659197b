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
	"github.com/urko/smoothlink/pkg/models"
)

// RelayClient is the send surface the orchestrator needs from the
// rendezvous layer.
type RelayClient interface {
	// Send queues a typed message for the relay.
	Send(kind models.MessageKind, payload interface{}) error

	// UpdatePosition reports a new device position, possibly reattaching to
	// a closer relay.
	UpdatePosition(coords models.Coordinates) error
}

// PositionSource yields the device's last known position. The positioning
// hardware itself lives outside the core.
type PositionSource interface {
	Current() models.Coordinates
}

// MediaHandle is an opaque playing media surface owned by the application
// layer.
type MediaHandle interface {
	// Descriptor describes the session well enough to rebuild it elsewhere.
	Descriptor() models.MediaDescriptor

	// CurrentTime is the playback offset in seconds.
	CurrentTime() float64

	// CurrentSource is the URL currently being played.
	CurrentSource() string

	Seek(seconds float64) error
	Play() error
}

// MediaController materializes an incoming media descriptor into a playable
// surface on this device.
type MediaController interface {
	Materialize(desc models.MediaDescriptor) (MediaHandle, error)
}

// NetInfoProvider carries optional transport hints for media served through
// a local gateway. Implementations may be nil-safe no-ops.
type NetInfoProvider interface {
	Get(source string) (*models.NetInfo, error)
	Set(source string, info *models.NetInfo) error
}
