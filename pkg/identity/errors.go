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

package identity

import "errors"

var (
	// ErrWrongPassword is returned when a sealed profile does not open with
	// the supplied password.
	ErrWrongPassword = errors.New("wrong password or corrupted profile")

	// ErrNotLoggedIn is returned by operations that require a current user.
	ErrNotLoggedIn = errors.New("no user logged in")
)
