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

// MediaDescriptor captures everything needed to rebuild a playing media session
// on another device. CurrentTime is the playback offset in seconds at the
// moment the migration was requested.
type MediaDescriptor struct {
	Type        string   `json:"type"`
	ID          string   `json:"id"`
	Sources     []string `json:"sources"`
	CurrentTime float64  `json:"currentTime"`
}
