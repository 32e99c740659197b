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

// Package directory keeps the per-process registry of discovered devices.
package directory

import (
	"sync"

	"github.com/urko/smoothlink/pkg/models"
)

// Directory maps agent ids to their last known coordinates. Entries are never
// removed here; a stale device simply fails silently at send time, and the
// relay's live-connection filter drops it from the next discovery reply.
type Directory struct {
	mu       sync.RWMutex
	devices  map[string]models.Coordinates
	originID string
}

func New() *Directory {
	return &Directory{devices: make(map[string]models.Coordinates)}
}

// Update merges a discovery reply by id: known ids get a coordinate update,
// unknown ids get inserted.
func (d *Directory) Update(list models.DeviceList) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, info := range list {
		d.devices[id] = info.Coords
	}
}

// Devices returns the devices matching ids, or every device when ids is nil.
func (d *Directory) Devices(ids []string) map[string]models.Coordinates {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]models.Coordinates)

	if ids == nil {
		for id, coords := range d.devices {
			out[id] = coords
		}

		return out
	}

	for _, id := range ids {
		if coords, ok := d.devices[id]; ok {
			out[id] = coords
		}
	}

	return out
}

// Known reports whether id has been discovered.
func (d *Directory) Known(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.devices[id]

	return ok
}

// SetOriginID records the device a migration arrived from, for migrate-back.
// An empty id clears it.
func (d *Directory) SetOriginID(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.originID = id
}

// OriginID returns the recorded migration origin, or "".
func (d *Directory) OriginID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.originID
}
