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

package rendezvous

import (
	"math"
	"sort"

	"github.com/urko/smoothlink/pkg/geo"
	"github.com/urko/smoothlink/pkg/models"
)

// Nearest picks the relay to attach to from pos: the entry strictly closer
// than the currently attached relay, or current when no such entry exists.
// Ties keep the current relay; stability beats micro-optimality. A current
// relay absent from the map is treated as infinitely far away.
func Nearest(pos models.Coordinates, relays models.RendezvousMap, current string) string {
	if len(relays) == 0 {
		return current
	}

	best := current
	bestDist := math.Inf(1)

	if coords, ok := relays[current]; ok {
		bestDist = geo.Distance(pos, coords)
	}

	// Sorted iteration keeps the choice deterministic when two candidate
	// relays are equally close.
	addrs := make([]string, 0, len(relays))
	for addr := range relays {
		addrs = append(addrs, addr)
	}

	sort.Strings(addrs)

	for _, addr := range addrs {
		if d := geo.Distance(pos, relays[addr]); d < bestDist {
			best = addr
			bestDist = d
		}
	}

	return best
}
