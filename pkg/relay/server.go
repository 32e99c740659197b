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

// Package relay implements the rendezvous service that routes typed control
// messages between currently connected devices, keyed by stable agent id. It
// holds no durable state; a restart forgets every registration.
package relay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/urko/smoothlink/pkg/logger"
	"github.com/urko/smoothlink/pkg/models"
)

const (
	// WSPath is the WebSocket endpoint devices dial.
	WSPath = "/ws"

	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Server is a single relay instance.
type Server struct {
	config   Config
	log      zerolog.Logger
	registry *registry
	upgrader websocket.Upgrader
}

// NewServer builds a relay server from config. The config must already be
// validated.
func NewServer(config Config, log logger.Logger) *Server {
	return &Server{
		config:   config,
		log:      log.WithComponent("relay"),
		registry: newRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Same-trust-domain deployment; the relay accepts any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler serving the relay endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(WSPath, s.handleWS)

	return mux
}

// Serve runs the relay until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		s.log.Info().
			Str("listen_addr", s.config.ListenAddr).
			Int("rendezvous_entries", len(s.config.Rendezvous)).
			Msg("Relay listening")

		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Failed to upgrade to WebSocket")
		return
	}

	conn := newConnection(uuid.NewString())
	s.registry.add(conn)

	s.log.Debug().
		Str("conn_id", conn.id).
		Str("remote_addr", r.RemoteAddr).
		Msg("Device connected")

	go s.writeLoop(ws, conn)
	s.readLoop(ws, conn)

	s.registry.remove(conn.id)
	conn.close()
	_ = ws.Close()

	agentID, _, _ := conn.identity()
	s.log.Debug().
		Str("conn_id", conn.id).
		Str("agent_id", agentID).
		Msg("Device disconnected")
}

// readLoop decodes envelopes off the socket and dispatches them until the
// peer goes away.
func (s *Server) readLoop(ws *websocket.Conn, conn *connection) {
	for {
		var env models.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Str("conn_id", conn.id).Msg("Read failed")
			}

			return
		}

		s.dispatch(conn, env)
	}
}

// writeLoop is the single writer for one socket. Everything addressed to the
// connection flows through its outbound channel.
func (s *Server) writeLoop(ws *websocket.Conn, conn *connection) {
	for {
		select {
		case env := <-conn.outbound:
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))

			if err := ws.WriteJSON(env); err != nil {
				// Stale connection: purge lazily on send failure.
				conn.close()
				_ = ws.Close()

				return
			}
		case <-conn.done:
			return
		}
	}
}

var errUnknownKind = errors.New("unexpected message kind")

func (s *Server) dispatch(conn *connection, env models.Envelope) {
	var err error

	switch env.Kind {
	case models.KindInit:
		err = s.handleInit(conn, env)
	case models.KindLocation:
		err = s.handleLocation(conn, env)
	case models.KindProfile:
		err = s.handleProfile(conn, env)
	case models.KindProfileAck:
		err = s.handleProfileAck(conn, env)
	case models.KindDevices:
		err = s.handleDevices(conn, env)
	case models.KindAccept:
		err = s.handleAccept(conn, env)
	case models.KindAcceptAck:
		err = s.handleAcceptAck(conn, env)
	case models.KindMigrate:
		err = s.handleMigrate(conn, env)
	default:
		err = errUnknownKind
	}

	if err != nil {
		s.log.Warn().
			Err(err).
			Str("conn_id", conn.id).
			Str("kind", string(env.Kind)).
			Msg("Dropped message")
	}
}
