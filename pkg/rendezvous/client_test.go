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
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urko/smoothlink/pkg/logger"
	"github.com/urko/smoothlink/pkg/models"
	"github.com/urko/smoothlink/pkg/relay"
)

// startRelay runs a relay on a pre-reserved listener so its address can be
// advertised in another relay's rendezvous map.
func startRelay(t *testing.T, l net.Listener, cfg relay.Config) {
	t.Helper()

	require.NoError(t, cfg.Validate())

	s := relay.NewServer(cfg, logger.NewTestLogger())
	ts := httptest.NewUnstartedServer(s.Handler())
	ts.Listener = l
	ts.Start()
	t.Cleanup(ts.Close)
}

func listen(t *testing.T) (net.Listener, string) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	return l, l.Addr().String()
}

func collectEvents(buf chan models.Envelope) Handler {
	return func(env models.Envelope) {
		select {
		case buf <- env:
		default:
		}
	}
}

func waitFor(t *testing.T, events chan models.Envelope, kind models.MessageKind) models.Envelope {
	t.Helper()

	deadline := time.After(2 * time.Second)

	for {
		select {
		case env := <-events:
			if env.Kind == kind {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
			return models.Envelope{}
		}
	}
}

func TestConnectReceivesRendezvousMap(t *testing.T) {
	l, addr := listen(t)
	startRelay(t, l, relay.Config{
		ListenAddr:    addr,
		AdvertiseAddr: addr,
		Coords:        posA,
	})

	events := make(chan models.Envelope, 16)
	c := NewClient("dev-1", collectEvents(events), logger.NewTestLogger())
	t.Cleanup(c.Close)

	require.NoError(t, c.Connect(addr, posA))
	waitFor(t, events, models.KindInitAck)

	assert.Equal(t, addr, c.Current())
	assert.Contains(t, c.Rendezvous(), addr)
}

func TestUpdatePositionSwitchesToCloserRelay(t *testing.T) {
	l1, addr1 := listen(t)
	l2, addr2 := listen(t)

	// Relay 1 sits far north, relay 2 near the equator; both advertise the
	// full map.
	far := models.Coordinates{Latitude: 60, Longitude: 17}
	near := models.Coordinates{Latitude: 0, Longitude: 17}
	full := models.RendezvousMap{addr1: far, addr2: near}

	startRelay(t, l1, relay.Config{ListenAddr: addr1, AdvertiseAddr: addr1, Coords: far, Rendezvous: full})
	startRelay(t, l2, relay.Config{ListenAddr: addr2, AdvertiseAddr: addr2, Coords: near, Rendezvous: full})

	events := make(chan models.Envelope, 16)
	c := NewClient("dev-1", collectEvents(events), logger.NewTestLogger())
	t.Cleanup(c.Close)

	require.NoError(t, c.Connect(addr1, far))
	waitFor(t, events, models.KindInitAck)

	// Device moves to the equator: relay 2 is now strictly closer.
	require.NoError(t, c.UpdatePosition(models.Coordinates{Latitude: 1, Longitude: 17}))
	assert.Equal(t, addr2, c.Current())

	// The re-init on the new relay advertises the map again.
	waitFor(t, events, models.KindInitAck)

	// Moving within relay 2's neighborhood keeps the attachment.
	require.NoError(t, c.UpdatePosition(models.Coordinates{Latitude: 2, Longitude: 17}))
	assert.Equal(t, addr2, c.Current())
}

func TestSendWhileDisconnectedIsFlushedAfterInit(t *testing.T) {
	l, addr := listen(t)
	startRelay(t, l, relay.Config{ListenAddr: addr, AdvertiseAddr: addr, Coords: posA})

	// A registered observer to prove delivery.
	url := "ws://" + addr + relay.WSPath
	observer, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = observer.Close() })

	obsInit, err := models.NewEnvelope(models.KindInit, models.InitMessage{ID: "dev-obs"})
	require.NoError(t, err)
	require.NoError(t, observer.WriteJSON(obsInit))

	var ack models.Envelope
	require.NoError(t, observer.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, observer.ReadJSON(&ack))

	events := make(chan models.Envelope, 16)
	c := NewClient("dev-1", collectEvents(events), logger.NewTestLogger())
	t.Cleanup(c.Close)

	// Queued before any transport exists.
	require.NoError(t, c.Send(models.KindProfile, models.ProfileMessage{ID: "dev-1", UserID: "bob"}))

	require.NoError(t, c.Connect(addr, posA))
	waitFor(t, events, models.KindInitAck)

	// The queued probe must arrive at the observer after the init handshake.
	require.NoError(t, observer.SetReadDeadline(time.Now().Add(2*time.Second)))

	var env models.Envelope
	require.NoError(t, observer.ReadJSON(&env))
	require.Equal(t, models.KindProfile, env.Kind)

	var msg models.ProfileMessage
	require.NoError(t, env.Decode(&msg))
	assert.Equal(t, "bob", msg.UserID)
}

func TestConnectTearsDownPreviousTransport(t *testing.T) {
	l1, addr1 := listen(t)
	l2, addr2 := listen(t)

	startRelay(t, l1, relay.Config{ListenAddr: addr1, AdvertiseAddr: addr1, Coords: posA})
	startRelay(t, l2, relay.Config{ListenAddr: addr2, AdvertiseAddr: addr2, Coords: posB})

	events := make(chan models.Envelope, 16)
	c := NewClient("dev-1", collectEvents(events), logger.NewTestLogger())
	t.Cleanup(c.Close)

	require.NoError(t, c.Connect(addr1, posA))
	waitFor(t, events, models.KindInitAck)

	require.NoError(t, c.Connect(addr2, posA))
	assert.Equal(t, addr2, c.Current())
	waitFor(t, events, models.KindInitAck)
}
