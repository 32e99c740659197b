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

package relay

import (
	"sync"

	"github.com/urko/smoothlink/pkg/models"
)

const outboundBuffer = 32

// connection is one live transport session. The connection id is ephemeral
// and reassigned on every reconnect; the agent id is the device's stable
// identity and stays unset until the init message arrives. Entries with an
// unset agent id are invisible to discovery and routing.
type connection struct {
	id string

	mu      sync.Mutex
	agentID string
	coords  *models.Coordinates

	outbound  chan models.Envelope
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(id string) *connection {
	return &connection{
		id:       id,
		outbound: make(chan models.Envelope, outboundBuffer),
		done:     make(chan struct{}),
	}
}

// setIdentity registers the stable agent id and position from init.
func (c *connection) setIdentity(agentID string, coords models.Coordinates) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.agentID = agentID
	c.coords = &coords
}

func (c *connection) setCoords(coords models.Coordinates) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.coords = &coords
}

// identity returns the agent id and coordinates, with ok false until both
// have been set by init.
func (c *connection) identity() (agentID string, coords models.Coordinates, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.agentID == "" || c.coords == nil {
		return "", models.Coordinates{}, false
	}

	return c.agentID, *c.coords, true
}

// send queues an envelope for the writer goroutine. A closed or backlogged
// connection drops the message; delivery is at-most-once by contract.
func (c *connection) send(env models.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.outbound <- env:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

func (c *connection) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *connection) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// registry is the shared table of live connections. Broadcasts take a
// snapshot and iterate over it, so a peer disconnecting mid-fan-out is
// skipped rather than corrupting the iteration.
type registry struct {
	mu    sync.RWMutex
	conns map[string]*connection
}

func newRegistry() *registry {
	return &registry{conns: make(map[string]*connection)}
}

func (r *registry) add(c *connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[c.id] = c
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, id)
}

func (r *registry) snapshot() []*connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}

	return out
}

func (r *registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}
