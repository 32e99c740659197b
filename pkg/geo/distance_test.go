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

package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/urko/smoothlink/pkg/models"
)

func TestDistanceIdentity(t *testing.T) {
	p := models.Coordinates{Latitude: 59.404734, Longitude: 17.944558}
	assert.InDelta(t, 0, Distance(p, p), 1e-9)
}

func TestDistanceSymmetry(t *testing.T) {
	cases := []struct {
		name string
		a, b models.Coordinates
	}{
		{
			name: "lab buildings",
			a:    models.Coordinates{Latitude: 59.404734, Longitude: 17.944558},
			b:    models.Coordinates{Latitude: 59.405062, Longitude: 17.943678},
		},
		{
			name: "antipodal-ish",
			a:    models.Coordinates{Latitude: 45.0, Longitude: 90.0},
			b:    models.Coordinates{Latitude: -45.0, Longitude: -90.0},
		},
		{
			name: "equator",
			a:    models.Coordinates{Latitude: 0, Longitude: 0},
			b:    models.Coordinates{Latitude: 0, Longitude: 1},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, Distance(tc.a, tc.b), Distance(tc.b, tc.a), 1e-6)
		})
	}
}

func TestDistanceKnownValue(t *testing.T) {
	// One degree of longitude at the equator is roughly 111.19 km.
	a := models.Coordinates{Latitude: 0, Longitude: 0}
	b := models.Coordinates{Latitude: 0, Longitude: 1}
	assert.InDelta(t, 111195, Distance(a, b), 50)
}

func TestDistanceShortRange(t *testing.T) {
	// The two lab positions are well under 100 m apart.
	a := models.Coordinates{Latitude: 59.404734, Longitude: 17.944558}
	b := models.Coordinates{Latitude: 59.405062, Longitude: 17.943678}

	d := Distance(a, b)
	assert.Greater(t, d, 10.0)
	assert.Less(t, d, 100.0)
}
