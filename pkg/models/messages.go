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

// Package models holds the wire message catalog and the domain types shared
// between the relay server, the rendezvous client, and the session layer.
package models

import (
	"encoding/json"
	"fmt"
)

// MessageKind identifies a frame on the relay wire.
type MessageKind string

const (
	// Request/event kinds, one per relay operation.
	KindInit       MessageKind = "init"
	KindLocation   MessageKind = "location"
	KindProfile    MessageKind = "profile"
	KindProfileAck MessageKind = "profileAck"
	KindDevices    MessageKind = "devices"
	KindAccept     MessageKind = "accept"
	KindAcceptAck  MessageKind = "acceptAck"
	KindMigrate    MessageKind = "migrate"

	// Reply kinds sent only by the relay.
	KindInitAck    MessageKind = "initAck"
	KindDevicesAck MessageKind = "devicesAck"
)

// Envelope is the single frame type exchanged over a relay connection.
type Envelope struct {
	Kind    MessageKind     `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an Envelope of the given kind.
func NewEnvelope(kind MessageKind, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}

	return Envelope{Kind: kind, Payload: raw}, nil
}

// Decode unmarshals the envelope payload into dst.
func (e Envelope) Decode(dst interface{}) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Kind, err)
	}

	return nil
}

// Coordinates is a geographic position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RendezvousMap advertises relay addresses and their coordinates. Clients use it
// for nearest-rendezvous selection.
type RendezvousMap map[string]Coordinates

// DeviceInfo is what the relay knows about a registered peer.
type DeviceInfo struct {
	Coords Coordinates `json:"coords"`
}

// DeviceList maps agent ids to their last reported coordinates.
type DeviceList map[string]DeviceInfo

// InitMessage registers the sender's stable agent id and position.
type InitMessage struct {
	ID     string      `json:"id"`
	Coords Coordinates `json:"coords"`
}

// LocationMessage updates the sender's position.
type LocationMessage struct {
	Coords Coordinates `json:"coords"`
}

// ProfileMessage is the user-profile discovery probe, fanned out to all peers.
type ProfileMessage struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
}

// WireUser carries a user identity over the relay. Profile is the sealed form;
// Password travels in the clear inside migrate messages (trusted-network wire
// contract, see DESIGN.md).
type WireUser struct {
	ID       string `json:"id"`
	Password string `json:"password,omitempty"`
	Profile  string `json:"profile"`
}

// ProfileAckMessage answers a discovery probe with a sealed profile. The relay
// fans it out to all peers; receivers filter on TargetID themselves.
type ProfileAckMessage struct {
	ID       string   `json:"id"`
	TargetID string   `json:"targetId"`
	User     WireUser `json:"user"`
}

// DevicesMessage requests the list of live registered peers.
type DevicesMessage struct {
	Coords Coordinates `json:"coords"`
}

// AcceptMessage asks the devices keyed in DevList to trust UserID.
type AcceptMessage struct {
	ID      string            `json:"id"`
	UserID  string            `json:"userId"`
	DevList map[string]string `json:"devList,omitempty"`
}

// AcceptAckMessage confirms an accept request back to the requester.
type AcceptAckMessage struct {
	ID       string `json:"id"`
	TargetID string `json:"targetId"`
	UserID   string `json:"userId"`
}

// MigrateMessage hands a playing session to the target device. It is consumed
// exactly once by the target and never persisted.
type MigrateMessage struct {
	ID       string           `json:"id"`
	TargetID string           `json:"targetId"`
	Coords   Coordinates      `json:"coords"`
	User     WireUser         `json:"user"`
	Media    MediaDescriptor  `json:"media"`
	NetInfo  *NetInfo         `json:"netInfo,omitempty"`
}

// NetInfo is an opaque transport hint attached when the media source is served
// by a local gateway.
type NetInfo struct {
	Protocol string   `json:"protocol"`
	Info     []string `json:"info"`
}
