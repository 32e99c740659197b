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

package main

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/urko/smoothlink/pkg/models"
	"github.com/urko/smoothlink/pkg/session"
)

// consolePlayer is a headless media surface for the terminal agent. It keeps
// a wall clock running while "playing" so handoffs carry a live offset.
type consolePlayer struct {
	log zerolog.Logger

	mu     sync.Mutex
	handle *consoleHandle
}

func newConsolePlayer(log zerolog.Logger) *consolePlayer {
	return &consolePlayer{log: log}
}

func (p *consolePlayer) Materialize(desc models.MediaDescriptor) (session.MediaHandle, error) {
	h := &consoleHandle{desc: desc, offset: desc.CurrentTime}

	p.mu.Lock()
	p.handle = h
	p.mu.Unlock()

	p.log.Info().Str("media_id", desc.ID).Str("type", desc.Type).Msg("Media session materialized")

	return h, nil
}

// current returns the handle being played, or nil.
func (p *consolePlayer) current() *consoleHandle {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.handle
}

// start begins a fresh local session, as if the user opened the media here.
func (p *consolePlayer) start(desc models.MediaDescriptor) *consoleHandle {
	h := &consoleHandle{desc: desc}
	h.playing = true
	h.started = time.Now()

	p.mu.Lock()
	p.handle = h
	p.mu.Unlock()

	return h
}

func (p *consolePlayer) drop() {
	p.mu.Lock()
	p.handle = nil
	p.mu.Unlock()
}

type consoleHandle struct {
	mu      sync.Mutex
	desc    models.MediaDescriptor
	offset  float64
	playing bool
	started time.Time
}

func (h *consoleHandle) Descriptor() models.MediaDescriptor {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.desc
}

func (h *consoleHandle) CurrentTime() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.playing {
		return h.offset
	}

	return h.offset + time.Since(h.started).Seconds()
}

func (h *consoleHandle) CurrentSource() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.desc.Sources) == 0 {
		return ""
	}

	return h.desc.Sources[0]
}

func (h *consoleHandle) Seek(seconds float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.offset = seconds
	h.started = time.Now()

	return nil
}

func (h *consoleHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.playing {
		h.playing = true
		h.started = time.Now()
	}

	return nil
}

func (h *consoleHandle) pause() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.playing {
		h.offset += time.Since(h.started).Seconds()
		h.playing = false
	}
}
