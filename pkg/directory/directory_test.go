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

package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/urko/smoothlink/pkg/models"
)

func TestUpdateMergesByID(t *testing.T) {
	d := New()

	d.Update(models.DeviceList{
		"dev-a": {Coords: models.Coordinates{Latitude: 1, Longitude: 1}},
		"dev-b": {Coords: models.Coordinates{Latitude: 2, Longitude: 2}},
	})

	// Partial update: dev-a moves, dev-c appears, dev-b untouched.
	d.Update(models.DeviceList{
		"dev-a": {Coords: models.Coordinates{Latitude: 5, Longitude: 5}},
		"dev-c": {Coords: models.Coordinates{Latitude: 3, Longitude: 3}},
	})

	all := d.Devices(nil)
	assert.Len(t, all, 3)
	assert.Equal(t, models.Coordinates{Latitude: 5, Longitude: 5}, all["dev-a"])
	assert.Equal(t, models.Coordinates{Latitude: 2, Longitude: 2}, all["dev-b"])
}

func TestDevicesFiltered(t *testing.T) {
	d := New()
	d.Update(models.DeviceList{
		"dev-a": {},
		"dev-b": {},
	})

	got := d.Devices([]string{"dev-b", "dev-missing"})
	assert.Len(t, got, 1)
	assert.Contains(t, got, "dev-b")
}

func TestKnown(t *testing.T) {
	d := New()
	assert.False(t, d.Known("dev-a"))

	d.Update(models.DeviceList{"dev-a": {}})
	assert.True(t, d.Known("dev-a"))
}

func TestOriginID(t *testing.T) {
	d := New()
	assert.Empty(t, d.OriginID())

	d.SetOriginID("dev-src")
	assert.Equal(t, "dev-src", d.OriginID())

	d.SetOriginID("")
	assert.Empty(t, d.OriginID())
}
