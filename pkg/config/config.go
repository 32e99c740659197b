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

// Package config loads JSON configuration files for the daemons.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var errInvalidConfig = errors.New("invalid configuration")

// Validator is implemented by config structs that can check themselves after
// loading.
type Validator interface {
	Validate() error
}

// FromFile reads the JSON file at path into dst and validates it when dst
// implements Validator.
func FromFile(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal JSON from %q: %w", path, err)
	}

	if v, ok := dst.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %w", errInvalidConfig, err)
		}
	}

	return nil
}
