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

package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Put("deviceId", "dev-1234"))
	require.NoError(t, s.Put("alice", "sealed-blob"))

	v, ok, err := s.Get("deviceId")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dev-1234", v)

	// Reopen and confirm persistence.
	s2, err := NewFileStore(dir)
	require.NoError(t, err)

	v, ok, err = s2.Get("alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sealed-blob", v)

	keys, err := s2.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"deviceId", "alice"}, keys)
}

func TestFileStoreDelete(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put("k", "v"))
	require.NoError(t, s.Delete("k"))

	_, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting a missing key is not an error.
	assert.NoError(t, s.Delete("missing"))
}

func TestMemStore(t *testing.T) {
	s := NewMemStore()

	require.NoError(t, s.Put("k", "v1"))
	require.NoError(t, s.Put("k", "v2"))

	v, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
}
