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
	"errors"

	"github.com/urko/smoothlink/pkg/logger"
	"github.com/urko/smoothlink/pkg/models"
)

var errListenAddrRequired = errors.New("listen_addr is required")

// Config configures a relay instance.
type Config struct {
	// ListenAddr is the host:port the relay serves on.
	ListenAddr string `json:"listen_addr"`

	// AdvertiseAddr is the address clients should dial to reach this relay.
	// Defaults to ListenAddr.
	AdvertiseAddr string `json:"advertise_addr,omitempty"`

	// Coords is the geographic position of this relay instance.
	Coords models.Coordinates `json:"coords"`

	// Rendezvous is the static table of known relay addresses and their
	// coordinates returned to clients on init. When empty, the relay
	// advertises itself as the only entry.
	Rendezvous models.RendezvousMap `json:"rendezvous,omitempty"`

	Logging *logger.Config `json:"logging,omitempty"`
}

// Validate checks the config and fills derived defaults.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errListenAddrRequired
	}

	if c.AdvertiseAddr == "" {
		c.AdvertiseAddr = c.ListenAddr
	}

	if len(c.Rendezvous) == 0 {
		c.Rendezvous = models.RendezvousMap{c.AdvertiseAddr: c.Coords}
	}

	return nil
}
