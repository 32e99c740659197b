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

package models

// UserProfile is the plaintext form of a user identity. Its JSON encoding is
// what gets sealed under the user's password.
type UserProfile struct {
	UserID       string            `json:"userId"`
	KnownDevices map[string]string `json:"knownDevices"`
	Auto         bool              `json:"auto"`
}

// NewUserProfile returns an empty profile for the given user id.
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:       userID,
		KnownDevices: make(map[string]string),
	}
}
