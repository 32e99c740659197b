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

// Package session drives the login, trust, and handoff protocol on top of the
// rendezvous client. It owns no transport and no storage of its own; those
// live in the rendezvous and identity packages it composes.
package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/urko/smoothlink/pkg/directory"
	"github.com/urko/smoothlink/pkg/identity"
	"github.com/urko/smoothlink/pkg/logger"
	"github.com/urko/smoothlink/pkg/models"
)

const (
	defaultDiscoveryTimeout = 2000 * time.Millisecond
	defaultDevicesTimeout   = 5 * time.Second
)

// Config tunes orchestrator timeouts. The zero value picks the defaults.
type Config struct {
	// DiscoveryTimeout bounds how long a login waits for a peer to answer the
	// profile probe before creating the user locally.
	DiscoveryTimeout time.Duration

	// DevicesTimeout bounds how long GetDevices waits for the relay reply.
	DevicesTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.DiscoveryTimeout <= 0 {
		c.DiscoveryTimeout = defaultDiscoveryTimeout
	}

	if c.DevicesTimeout <= 0 {
		c.DevicesTimeout = defaultDevicesTimeout
	}

	return c
}

// discoveryWait is an outstanding network login attempt.
type discoveryWait struct {
	userID   string
	password string
	done     chan bool
}

// Orchestrator composes identity, directory, and relay client into the
// device-side protocol engine. Wire its HandleEvent as the rendezvous client
// handler.
type Orchestrator struct {
	deviceID string
	trust    *identity.Manager
	dir      *directory.Directory
	relay    RelayClient
	position PositionSource
	media    MediaController
	netinfo  NetInfoProvider
	cfg      Config
	log      zerolog.Logger

	mu        sync.Mutex
	discovery *discoveryWait
	devicesCh chan models.DeviceList

	onAccept func(models.AcceptMessage)
	onMenu   func(MediaHandle, map[string]float64)
	onMedia  func(MediaHandle)
	onLogout func()
}

// New wires an orchestrator. media is required; netinfo may be nil when the
// device serves no local-gateway sources.
func New(
	deviceID string,
	trust *identity.Manager,
	dir *directory.Directory,
	relay RelayClient,
	position PositionSource,
	media MediaController,
	netinfo NetInfoProvider,
	cfg Config,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		deviceID: deviceID,
		trust:    trust,
		dir:      dir,
		relay:    relay,
		position: position,
		media:    media,
		netinfo:  netinfo,
		cfg:      cfg.withDefaults(),
		log:      log.WithComponent("session"),
	}
}

// DeviceID returns the stable agent id this orchestrator speaks as.
func (o *Orchestrator) DeviceID() string {
	return o.deviceID
}

// OnAccept registers the callback for trust requests that need a user
// decision. Requests for an already-validated user are acknowledged without
// the callback.
func (o *Orchestrator) OnAccept(fn func(models.AcceptMessage)) {
	o.onAccept = fn
}

// OnMenu registers the callback that offers a handoff target choice when auto
// mode is off. The map carries distances in meters.
func (o *Orchestrator) OnMenu(fn func(MediaHandle, map[string]float64)) {
	o.onMenu = fn
}

// OnMedia registers the callback fired when an inbound handoff starts playing.
func (o *Orchestrator) OnMedia(fn func(MediaHandle)) {
	o.onMedia = fn
}

// OnLogout registers the callback fired whenever the local user logs out,
// including the implicit logout on an outbound handoff.
func (o *Orchestrator) OnLogout(fn func()) {
	o.onLogout = fn
}

// HandleEvent routes one relay frame. It is called from the rendezvous client
// read loop, so handlers must never block on another inbound frame.
func (o *Orchestrator) HandleEvent(env models.Envelope) {
	switch env.Kind {
	case models.KindInitAck:
		// The rendezvous client already merged the map; reporting the current
		// position lets it settle on the nearest relay.
		if err := o.relay.UpdatePosition(o.position.Current()); err != nil {
			o.log.Warn().Err(err).Msg("Failed to report position after init")
		}
	case models.KindProfile:
		o.handleProfileProbe(env)
	case models.KindProfileAck:
		o.handleProfileAck(env)
	case models.KindDevicesAck:
		o.handleDevicesAck(env)
	case models.KindAccept:
		o.handleAccept(env)
	case models.KindAcceptAck:
		o.handleAcceptAck(env)
	case models.KindMigrate:
		o.handleMigrate(env)
	default:
		o.log.Debug().Str("kind", string(env.Kind)).Msg("Ignoring frame")
	}
}

func (o *Orchestrator) handleMigrate(env models.Envelope) {
	var msg models.MigrateMessage
	if err := env.Decode(&msg); err != nil {
		o.log.Warn().Err(err).Msg("Malformed migrate message")
		return
	}

	if _, err := o.AcceptMigration(msg); err != nil {
		o.log.Warn().Err(err).Str("origin_id", msg.ID).Msg("Dropped inbound handoff")
	}
}

func (o *Orchestrator) notifyLogout() {
	if o.onLogout != nil {
		o.onLogout()
	}
}
