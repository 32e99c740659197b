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

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urko/smoothlink/pkg/models"
)

func loginTestUser(t *testing.T, rig *testRig, userID string) {
	t.Helper()
	require.True(t, rig.trust.CreateUser(userID, "hunter2"))
}

func playingHandle() *fakeHandle {
	return &fakeHandle{
		desc: models.MediaDescriptor{
			Type:    "video",
			ID:      "ep-42",
			Sources: []string{"https://cdn.example/ep-42.mp4"},
		},
		current: 42.5,
		source:  "https://cdn.example/ep-42.mp4",
	}
}

func TestMigrate(t *testing.T) {
	rig := newTestRig(t, "dev-a")
	loginTestUser(t, rig, "carol")

	rig.dir.Update(models.DeviceList{
		"dev-b": {Coords: models.Coordinates{Latitude: 41.4, Longitude: 2.1}},
	})

	var loggedInAtSend bool

	rig.relay.onSend = func(kind models.MessageKind, _ interface{}) {
		if kind == models.KindMigrate {
			loggedInAtSend = rig.trust.LoggedIn()
		}
	}

	require.NoError(t, rig.orch.Migrate(playingHandle(), "dev-b"))

	frames := rig.relay.sent(models.KindMigrate)
	require.Len(t, frames, 1)

	msg := frames[0].payload.(models.MigrateMessage)
	assert.Equal(t, "dev-a", msg.ID)
	assert.Equal(t, "dev-b", msg.TargetID)
	assert.Equal(t, "ep-42", msg.Media.ID)
	assert.InDelta(t, 42.5, msg.Media.CurrentTime, 0.001)
	assert.Equal(t, "carol", msg.User.ID)
	assert.Equal(t, "hunter2", msg.User.Password)
	assert.NotEmpty(t, msg.User.Profile)
	assert.Nil(t, msg.NetInfo)

	assert.False(t, loggedInAtSend, "logout happens before the message leaves")
	assert.False(t, rig.trust.LoggedIn())

	// The profile left with the message; only the validated marker stays.
	assert.True(t, rig.trust.UserValid("carol"))
	assert.Empty(t, rig.trust.SealedProfile("carol"))
}

func TestMigrateRequiresKnownTargetAndLogin(t *testing.T) {
	rig := newTestRig(t, "dev-a")

	err := rig.orch.Migrate(playingHandle(), "dev-b")
	require.ErrorIs(t, err, ErrNotLoggedIn)

	loginTestUser(t, rig, "carol")

	err = rig.orch.Migrate(playingHandle(), "dev-b")
	require.ErrorIs(t, err, ErrUnknownTarget)
	assert.True(t, rig.trust.LoggedIn(), "a refused handoff must not log out")

	require.ErrorIs(t, rig.orch.Migrate(nil, "dev-b"), ErrNoMedia)
	assert.Empty(t, rig.relay.sent(models.KindMigrate))
}

func TestMigrateAttachesLocalGatewayHint(t *testing.T) {
	rig := newTestRig(t, "dev-a")
	loginTestUser(t, rig, "carol")

	rig.dir.Update(models.DeviceList{"dev-b": {}})

	hint := &models.NetInfo{Protocol: "dlna", Info: []string{"192.168.1.20:8200"}}
	require.NoError(t, rig.netinfo.Set("http://localhost:8200/ep-42.mp4", hint))

	handle := playingHandle()
	handle.source = "http://localhost:8200/ep-42.mp4"
	handle.desc.Sources = []string{"http://localhost:8200/ep-42.mp4"}

	require.NoError(t, rig.orch.Migrate(handle, "dev-b"))

	msg := rig.relay.sent(models.KindMigrate)[0].payload.(models.MigrateMessage)
	require.NotNil(t, msg.NetInfo)
	assert.Equal(t, "dlna", msg.NetInfo.Protocol)
}

func TestAcceptMigration(t *testing.T) {
	rig := newTestRig(t, "dev-b")

	require.NoError(t, rig.trust.ValidateUser("carol"))

	sealed := sealedProfileFor(t, "carol", "hunter2", "dev-a")

	msg := models.MigrateMessage{
		ID:       "dev-a",
		TargetID: "dev-b",
		Coords:   models.Coordinates{Latitude: 41.4, Longitude: 2.1},
		User:     models.WireUser{ID: "carol", Password: "hunter2", Profile: sealed},
		Media: models.MediaDescriptor{
			Type:        "video",
			ID:          "ep-42",
			Sources:     []string{"https://cdn.example/ep-42.mp4"},
			CurrentTime: 42.5,
		},
	}

	var notified MediaHandle

	rig.orch.OnMedia(func(h MediaHandle) { notified = h })

	handle, err := rig.orch.AcceptMigration(msg)
	require.NoError(t, err)

	assert.Equal(t, "carol", rig.trust.CurrentUser())
	assert.Equal(t, "dev-a", rig.dir.OriginID())
	assert.True(t, rig.dir.Known("dev-a"), "origin coordinates join the directory")

	got := handle.(*fakeHandle)
	assert.InDelta(t, 42.5, got.seeked, 0.001)
	assert.True(t, got.playing)
	assert.Same(t, handle, notified)
}

func TestAcceptMigrationRejectsUnvalidatedUser(t *testing.T) {
	rig := newTestRig(t, "dev-b")

	sealed := sealedProfileFor(t, "carol", "hunter2")

	_, err := rig.orch.AcceptMigration(models.MigrateMessage{
		ID:   "dev-a",
		User: models.WireUser{ID: "carol", Password: "hunter2", Profile: sealed},
	})

	require.ErrorIs(t, err, ErrLoginRejected)
	assert.False(t, rig.trust.LoggedIn())
	assert.Nil(t, rig.media.last, "a rejected handoff must not touch the player")
}

func TestAcceptMigrationAppliesTransportHint(t *testing.T) {
	rig := newTestRig(t, "dev-b")

	require.NoError(t, rig.trust.ValidateUser("carol"))

	sealed := sealedProfileFor(t, "carol", "hunter2")
	hint := &models.NetInfo{Protocol: "dlna", Info: []string{"192.168.1.20:8200"}}

	_, err := rig.orch.AcceptMigration(models.MigrateMessage{
		ID:   "dev-a",
		User: models.WireUser{ID: "carol", Password: "hunter2", Profile: sealed},
		Media: models.MediaDescriptor{
			Type:    "video",
			ID:      "ep-42",
			Sources: []string{"http://localhost:8200/ep-42.mp4"},
		},
		NetInfo: hint,
	})
	require.NoError(t, err)

	applied, err := rig.netinfo.Get("http://localhost:8200/ep-42.mp4")
	require.NoError(t, err)
	assert.Equal(t, hint, applied)
}

func TestMigrateBack(t *testing.T) {
	rig := newTestRig(t, "dev-b")

	require.NoError(t, rig.trust.ValidateUser("carol"))

	sealed := sealedProfileFor(t, "carol", "hunter2", "dev-a")

	handle, err := rig.orch.AcceptMigration(models.MigrateMessage{
		ID:     "dev-a",
		Coords: models.Coordinates{Latitude: 41.4, Longitude: 2.1},
		User:   models.WireUser{ID: "carol", Password: "hunter2", Profile: sealed},
		Media: models.MediaDescriptor{
			Type:        "video",
			ID:          "ep-42",
			Sources:     []string{"https://cdn.example/ep-42.mp4"},
			CurrentTime: 42.5,
		},
	})
	require.NoError(t, err)

	require.NoError(t, rig.orch.MigrateBack(handle))

	frames := rig.relay.sent(models.KindMigrate)
	require.Len(t, frames, 1)
	assert.Equal(t, "dev-a", frames[0].payload.(models.MigrateMessage).TargetID)
}

func TestMigrateBackWithoutOrigin(t *testing.T) {
	rig := newTestRig(t, "dev-b")
	loginTestUser(t, rig, "carol")

	require.ErrorIs(t, rig.orch.MigrateBack(playingHandle()), ErrNoOrigin)
}

func TestLogoutClearsOrigin(t *testing.T) {
	rig := newTestRig(t, "dev-b")

	require.NoError(t, rig.trust.ValidateUser("carol"))

	sealed := sealedProfileFor(t, "carol", "hunter2")

	_, err := rig.orch.AcceptMigration(models.MigrateMessage{
		ID:    "dev-a",
		User:  models.WireUser{ID: "carol", Password: "hunter2", Profile: sealed},
		Media: models.MediaDescriptor{Type: "video", ID: "ep-42"},
	})
	require.NoError(t, err)

	var notified bool

	rig.orch.OnLogout(func() { notified = true })

	require.NoError(t, rig.orch.Logout())

	assert.Empty(t, rig.dir.OriginID())
	assert.True(t, notified)
	assert.NotEmpty(t, rig.trust.SealedProfile("carol"), "logout persists the sealed profile")
}

func TestHandleEventRoutesMigrate(t *testing.T) {
	rig := newTestRig(t, "dev-b")

	require.NoError(t, rig.trust.ValidateUser("carol"))

	sealed := sealedProfileFor(t, "carol", "hunter2")

	rig.orch.HandleEvent(envelope(t, models.KindMigrate, models.MigrateMessage{
		ID:   "dev-a",
		User: models.WireUser{ID: "carol", Password: "hunter2", Profile: sealed},
		Media: models.MediaDescriptor{
			Type:        "video",
			ID:          "ep-42",
			CurrentTime: 7.5,
		},
	}))

	require.NotNil(t, rig.media.last)
	assert.InDelta(t, 7.5, rig.media.last.seeked, 0.001)
	assert.True(t, rig.media.last.playing)
}
