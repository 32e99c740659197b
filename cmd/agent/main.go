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

// The agent is the device-side daemon plus a small interactive console for
// driving logins, trust, and handoffs from a terminal.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/urko/smoothlink/pkg/directory"
	"github.com/urko/smoothlink/pkg/identity"
	"github.com/urko/smoothlink/pkg/kv"
	"github.com/urko/smoothlink/pkg/logger"
	"github.com/urko/smoothlink/pkg/models"
	"github.com/urko/smoothlink/pkg/rendezvous"
	"github.com/urko/smoothlink/pkg/session"
)

func main() {
	var (
		relayAddr = flag.String("relay", "localhost:8090", "Initial relay address (host:port)")
		dataDir   = flag.String("data", defaultDataDir(), "Directory for durable agent state")
		lat       = flag.Float64("lat", 0, "Device latitude")
		lon       = flag.Float64("lon", 0, "Device longitude")
	)

	flag.Parse()

	if err := run(*relayAddr, *dataDir, models.Coordinates{Latitude: *lat, Longitude: *lon}); err != nil {
		fmt.Fprintf(os.Stderr, "agent: %v\n", err)
		os.Exit(1)
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".smoothlink"
	}

	return filepath.Join(home, ".smoothlink")
}

func run(relayAddr, dataDir string, coords models.Coordinates) error {
	log, err := logger.New(logger.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	store, err := kv.NewFileStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer func() { _ = store.Close() }()

	deviceID, err := identity.EnsureDeviceID(store)
	if err != nil {
		return err
	}

	trust := identity.NewManager(store, log)
	dir := directory.New()
	pos := &staticPosition{coords: coords}
	player := newConsolePlayer(log.WithComponent("player"))

	// The client and the orchestrator reference each other; the handler only
	// fires after Connect, by which point orch is set.
	var orch *session.Orchestrator

	client := rendezvous.NewClient(deviceID, func(env models.Envelope) { orch.HandleEvent(env) }, log)

	orch = session.New(deviceID, trust, dir, client, pos, player, nil, session.Config{}, log)

	var (
		pendingMu sync.Mutex
		pending   *models.AcceptMessage
	)

	orch.OnAccept(func(msg models.AcceptMessage) {
		pendingMu.Lock()
		pending = &msg
		pendingMu.Unlock()

		fmt.Printf("\ntrust request: user %q from device %s (type 'trust' to accept)\n> ", msg.UserID, msg.ID)
	})

	orch.OnMenu(func(_ session.MediaHandle, devices map[string]float64) {
		fmt.Println("\nhandoff candidates:")

		for id, dist := range devices {
			fmt.Printf("  %s (%s)  %.0f m\n", trust.DeviceName(id), id, dist)
		}

		fmt.Print("> ")
	})

	orch.OnMedia(func(h session.MediaHandle) {
		desc := h.Descriptor()
		fmt.Printf("\nsession arrived: %s %q at %.1fs\n> ", desc.Type, desc.ID, h.CurrentTime())
	})

	orch.OnLogout(func() {
		player.drop()
	})

	if err := client.Connect(relayAddr, pos.Current()); err != nil {
		return fmt.Errorf("failed to reach relay %s: %w", relayAddr, err)
	}
	defer client.Close()

	fmt.Printf("device %s attached to %s\n", deviceID, relayAddr)

	repl(orch, trust, player, pos, func() *models.AcceptMessage {
		pendingMu.Lock()
		defer pendingMu.Unlock()

		msg := pending
		pending = nil

		return msg
	})

	return nil
}

func repl(
	orch *session.Orchestrator,
	trust *identity.Manager,
	player *consolePlayer,
	pos *staticPosition,
	takePending func() *models.AcceptMessage,
) {
	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	fmt.Print("> ")

	for scanner.Scan() {
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			fmt.Print("> ")
			continue
		}

		switch cmd := args[0]; cmd {
		case "login":
			if len(args) != 3 {
				fmt.Println("usage: login <user> <password>")
				break
			}

			ok, err := orch.Login(ctx, args[1], args[2])
			report(ok, err, "logged in as "+args[1], "login failed")
		case "logout":
			if err := orch.Logout(); err != nil {
				fmt.Println("error:", err)
			}
		case "remove":
			if err := trust.RemoveUser(); err != nil {
				fmt.Println("error:", err)
			}
		case "devices":
			all := len(args) > 1 && args[1] == "all"

			devices, err := orch.GetDevices(ctx, all)
			if err != nil {
				fmt.Println("error:", err)
				break
			}

			for id, dist := range devices {
				fmt.Printf("  %s (%s)  %.0f m\n", trust.DeviceName(id), id, dist)
			}
		case "accept":
			if len(args) < 2 {
				fmt.Println("usage: accept <deviceId> [...]")
				break
			}

			if err := orch.RequestAccept(args[1:]); err != nil {
				fmt.Println("error:", err)
			}
		case "trust":
			msg := takePending()
			if msg == nil {
				fmt.Println("no pending trust request")
				break
			}

			if err := orch.AcceptUser(*msg); err != nil {
				fmt.Println("error:", err)
			}
		case "name":
			if len(args) != 3 {
				fmt.Println("usage: name <deviceId> <name>")
				break
			}

			trust.SetDeviceName(args[1], args[2])
		case "auto":
			if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
				fmt.Println("usage: auto on|off")
				break
			}

			trust.SetAuto(args[1] == "on")
		case "play":
			if len(args) < 4 {
				fmt.Println("usage: play <type> <id> <source> [...]")
				break
			}

			player.start(models.MediaDescriptor{Type: args[1], ID: args[2], Sources: args[3:]})
			fmt.Println("playing", args[2])
		case "pause":
			h := player.current()
			if h == nil {
				fmt.Println("nothing playing")
				break
			}

			h.pause()

			if err := orch.HandlePause(ctx, h); err != nil {
				fmt.Println("error:", err)
			}
		case "migrate":
			if len(args) != 2 {
				fmt.Println("usage: migrate <deviceId>")
				break
			}

			h := player.current()
			if h == nil {
				fmt.Println("nothing playing")
				break
			}

			if err := orch.Migrate(h, args[1]); err != nil {
				fmt.Println("error:", err)
			}
		case "back":
			h := player.current()
			if h == nil {
				fmt.Println("nothing playing")
				break
			}

			if err := orch.MigrateBack(h); err != nil {
				fmt.Println("error:", err)
			}
		case "pos":
			if len(args) != 3 {
				fmt.Println("usage: pos <lat> <lon>")
				break
			}

			latV, errLat := strconv.ParseFloat(args[1], 64)
			lonV, errLon := strconv.ParseFloat(args[2], 64)

			if errLat != nil || errLon != nil {
				fmt.Println("usage: pos <lat> <lon>")
				break
			}

			pos.set(models.Coordinates{Latitude: latV, Longitude: lonV})

			if err := orch.HandlePositionChange(); err != nil {
				fmt.Println("error:", err)
			}
		case "id":
			fmt.Println(orch.DeviceID())
		case "quit", "exit":
			return
		default:
			fmt.Println("commands: login logout remove devices accept trust name auto play pause migrate back pos id quit")
		}

		fmt.Print("> ")
	}
}

func report(ok bool, err error, success, failure string) {
	switch {
	case err != nil:
		fmt.Println("error:", err)
	case ok:
		fmt.Println(success)
	default:
		fmt.Println(failure)
	}
}

// staticPosition is a manually driven position source for the console agent.
type staticPosition struct {
	mu     sync.Mutex
	coords models.Coordinates
}

func (p *staticPosition) Current() models.Coordinates {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.coords
}

func (p *staticPosition) set(coords models.Coordinates) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.coords = coords
}
