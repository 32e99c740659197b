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

import "errors"

var (
	// ErrNotLoggedIn is returned by operations that require an active user.
	ErrNotLoggedIn = errors.New("no user logged in")

	// ErrUnknownTarget is returned when a handoff names a device that is not
	// in the local directory.
	ErrUnknownTarget = errors.New("target device not in directory")

	// ErrNoOrigin is returned by MigrateBack when no inbound handoff has
	// recorded an origin device.
	ErrNoOrigin = errors.New("no origin device recorded")

	// ErrNoMedia is returned when a handoff is attempted without a playing
	// media session.
	ErrNoMedia = errors.New("no media session to hand off")

	// ErrLoginRejected is returned when an inbound handoff carries a user this
	// device has not validated or whose profile does not unseal.
	ErrLoginRejected = errors.New("wire user rejected")
)
