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
	"github.com/urko/smoothlink/pkg/models"
)

// handleInit registers the sender's agent id and position, then replies with
// the static rendezvous map. The sender is never added to that map.
func (s *Server) handleInit(conn *connection, env models.Envelope) error {
	var msg models.InitMessage
	if err := env.Decode(&msg); err != nil {
		return err
	}

	conn.setIdentity(msg.ID, msg.Coords)

	s.log.Info().
		Str("conn_id", conn.id).
		Str("agent_id", msg.ID).
		Msg("Device registered")

	ack, err := models.NewEnvelope(models.KindInitAck, s.config.Rendezvous)
	if err != nil {
		return err
	}

	conn.send(ack)

	return nil
}

func (s *Server) handleLocation(conn *connection, env models.Envelope) error {
	var msg models.LocationMessage
	if err := env.Decode(&msg); err != nil {
		return err
	}

	conn.setCoords(msg.Coords)

	return nil
}

// handleProfile fans the discovery probe out to every other registered
// connection. The registry holds no profile data; peers answer themselves.
func (s *Server) handleProfile(conn *connection, env models.Envelope) error {
	var msg models.ProfileMessage
	if err := env.Decode(&msg); err != nil {
		return err
	}

	s.broadcast(conn, env)

	return nil
}

// handleProfileAck fans the response out to every other registered
// connection; receivers filter on the embedded targetId themselves. Targeted
// delivery like accept/acceptAck would also work, but the broadcast is the
// established wire behavior and clients rely on self-filtering.
func (s *Server) handleProfileAck(conn *connection, env models.Envelope) error {
	var msg models.ProfileAckMessage
	if err := env.Decode(&msg); err != nil {
		return err
	}

	s.broadcast(conn, env)

	return nil
}

// handleDevices updates the sender's coordinates and replies with a snapshot
// of every other live registered connection.
func (s *Server) handleDevices(conn *connection, env models.Envelope) error {
	var msg models.DevicesMessage
	if err := env.Decode(&msg); err != nil {
		return err
	}

	conn.setCoords(msg.Coords)

	list := make(models.DeviceList)

	for _, peer := range s.registry.snapshot() {
		if peer.id == conn.id || peer.closed() {
			continue
		}

		agentID, coords, ok := peer.identity()
		if !ok {
			continue
		}

		list[agentID] = models.DeviceInfo{Coords: coords}
	}

	ack, err := models.NewEnvelope(models.KindDevicesAck, list)
	if err != nil {
		return err
	}

	conn.send(ack)

	return nil
}

// handleAccept delivers an individual accept message to every connection
// whose agent id is keyed in the request's device list.
func (s *Server) handleAccept(conn *connection, env models.Envelope) error {
	var msg models.AcceptMessage
	if err := env.Decode(&msg); err != nil {
		return err
	}

	out, err := models.NewEnvelope(models.KindAccept, models.AcceptMessage{
		ID:     msg.ID,
		UserID: msg.UserID,
	})
	if err != nil {
		return err
	}

	for _, peer := range s.registry.snapshot() {
		agentID, _, ok := peer.identity()
		if !ok {
			continue
		}

		if _, wanted := msg.DevList[agentID]; wanted {
			peer.send(out)
		}
	}

	return nil
}

func (s *Server) handleAcceptAck(conn *connection, env models.Envelope) error {
	var msg models.AcceptAckMessage
	if err := env.Decode(&msg); err != nil {
		return err
	}

	s.sendToAgent(msg.TargetID, env)

	return nil
}

// handleMigrate updates the sender's coordinates and forwards the handoff to
// the target device. An unknown or dead target drops the message silently;
// delivery is at-most-once, fire-and-forget.
func (s *Server) handleMigrate(conn *connection, env models.Envelope) error {
	var msg models.MigrateMessage
	if err := env.Decode(&msg); err != nil {
		return err
	}

	conn.setCoords(msg.Coords)

	delivered := s.sendToAgent(msg.TargetID, env)

	s.log.Info().
		Str("origin", msg.ID).
		Str("target", msg.TargetID).
		Bool("delivered", delivered).
		Msg("Migration forwarded")

	return nil
}

// broadcast fans env out to every registered connection except the sender.
func (s *Server) broadcast(sender *connection, env models.Envelope) {
	for _, peer := range s.registry.snapshot() {
		if peer.id == sender.id {
			continue
		}

		if _, _, ok := peer.identity(); !ok {
			continue
		}

		peer.send(env)
	}
}

// sendToAgent delivers env to every live connection registered under agentID.
func (s *Server) sendToAgent(agentID string, env models.Envelope) bool {
	delivered := false

	for _, peer := range s.registry.snapshot() {
		id, _, ok := peer.identity()
		if !ok || id != agentID {
			continue
		}

		if peer.send(env) {
			delivered = true
		}
	}

	return delivered
}
