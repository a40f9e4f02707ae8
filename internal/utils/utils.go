// Copyright 2025 The A2A Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package utils contains small generic helpers shared across host packages.
package utils

import (
	"encoding/json"
	"fmt"
)

// DeepCopy returns a deep copy of v produced by a JSON round-trip. Protocol
// types carry their own JSON codecs, which keeps interface-typed fields such
// as message parts intact across the copy.
func DeepCopy[T any](v T) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("deep copy marshal failed: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("deep copy unmarshal failed: %w", err)
	}
	return out, nil
}

// Ptr returns a pointer to v. Useful for optional literal fields.
func Ptr[T any](v T) *T {
	return &v
}
