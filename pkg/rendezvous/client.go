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

// Package rendezvous maintains a device's single live connection to a relay
// and performs nearest-rendezvous re-selection as the device moves.
package rendezvous

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/urko/smoothlink/pkg/logger"
	"github.com/urko/smoothlink/pkg/models"
)

const dialTimeout = 10 * time.Second

// Handler receives every inbound envelope from the relay, invoked from the
// client's single reader goroutine.
type Handler func(models.Envelope)

// Client owns at most one live transport to one relay address at a time and
// exposes a typed send surface over it. Messages sent while no transport is
// up are buffered and flushed once the next connection has completed init;
// kinds like migrate are not idempotent to silently drop.
type Client struct {
	agentID string
	log     zerolog.Logger
	handler Handler

	mu         sync.Mutex
	ws         *websocket.Conn
	current    string
	rendezvous models.RendezvousMap
	pending    []models.Envelope
}

// NewClient builds a client for the given stable agent id. handler may not
// be nil.
func NewClient(agentID string, handler Handler, log logger.Logger) *Client {
	return &Client{
		agentID: agentID,
		log:     log.WithComponent("rendezvous"),
		handler: handler,
	}
}

// Connect attaches to the relay at addr, tearing down any existing transport
// first, and registers this device with an init message. There is never a
// dual-homed window; messages in flight during the swap may be lost, which
// the at-most-once delivery policy accepts.
func (c *Client) Connect(addr string, coords models.Coordinates) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked()

	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = dialTimeout

	ws, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to relay %q: %w", addr, err)
	}

	c.ws = ws
	c.current = addr

	go c.readLoop(ws)

	c.log.Info().Str("relay", addr).Msg("Connected to relay")

	return c.writeLocked(models.KindInit, models.InitMessage{ID: c.agentID, Coords: coords})
}

// Close tears down the transport.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked()
}

// Current returns the address of the currently attached relay, or "".
func (c *Client) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

// Rendezvous returns the most recently received relay map.
func (c *Client) Rendezvous() models.RendezvousMap {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(models.RendezvousMap, len(c.rendezvous))
	for addr, coords := range c.rendezvous {
		out[addr] = coords
	}

	return out
}

// UpdatePosition runs one round of nearest-rendezvous selection from coords.
// A strictly closer relay than the attached one triggers a reconnect and
// re-init; otherwise the position is reported on the existing connection.
// The selection is greedy and non-preemptive: it reconverges only on the
// next position or init event.
func (c *Client) UpdatePosition(coords models.Coordinates) error {
	c.mu.Lock()

	if len(c.rendezvous) == 0 || c.ws == nil {
		// No map yet: (re-)register on the current relay.
		err := c.writeLocked(models.KindInit, models.InitMessage{ID: c.agentID, Coords: coords})
		c.mu.Unlock()

		return err
	}

	current := c.current

	target := Nearest(coords, c.rendezvous, current)
	if target == current {
		err := c.writeLocked(models.KindLocation, models.LocationMessage{Coords: coords})
		c.mu.Unlock()

		return err
	}

	c.mu.Unlock()

	c.log.Info().
		Str("from", current).
		Str("to", target).
		Msg("Switching to closer relay")

	return c.Connect(target, coords)
}

// Send queues an envelope of the given kind. It is safe to call while a
// reconnect is in flight.
func (c *Client) Send(kind models.MessageKind, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.writeLocked(kind, payload)
}

func (c *Client) writeLocked(kind models.MessageKind, payload interface{}) error {
	env, err := models.NewEnvelope(kind, payload)
	if err != nil {
		return err
	}

	if c.ws == nil {
		c.pending = append(c.pending, env)
		return nil
	}

	if err := c.ws.WriteJSON(env); err != nil {
		return fmt.Errorf("failed to send %s: %w", kind, err)
	}

	return nil
}

// readLoop is the single reader for one transport. It terminates when the
// socket dies or is torn down by a reconnect.
func (c *Client) readLoop(ws *websocket.Conn) {
	for {
		var env models.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			c.mu.Lock()
			if c.ws == ws {
				// The live transport died rather than being replaced.
				c.ws = nil
			}
			c.mu.Unlock()

			return
		}

		if env.Kind == models.KindInitAck {
			c.handleInitAck(env)
		}

		c.handler(env)
	}
}

// handleInitAck merges the advertised relay map and flushes anything queued
// while the transport was down.
func (c *Client) handleInitAck(env models.Envelope) {
	var relays models.RendezvousMap
	if err := env.Decode(&relays); err != nil {
		c.log.Warn().Err(err).Msg("Bad rendezvous map")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rendezvous == nil {
		c.rendezvous = make(models.RendezvousMap, len(relays))
	}

	// The device keeps the relays it already learned about; new entries are
	// merged in.
	for addr, coords := range relays {
		c.rendezvous[addr] = coords
	}

	if len(c.pending) > 0 && c.ws != nil {
		queued := c.pending
		c.pending = nil

		for _, q := range queued {
			if err := c.ws.WriteJSON(q); err != nil {
				c.log.Warn().Err(err).Str("kind", string(q.Kind)).Msg("Failed to flush queued message")
				break
			}
		}
	}
}

func (c *Client) teardownLocked() {
	if c.ws != nil {
		_ = c.ws.Close()
		c.ws = nil
	}

	c.current = ""
}
