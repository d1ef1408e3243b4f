// Copyright 2025 Poiesic Systems
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

package core

import (
	"fmt"
	"strings"
	"time"
)

// ValidateOrderRecord validates an OrderRecord before it is inserted.
//
// Validation rules:
//   - OriginalText must contain something other than whitespace
//   - CreatedAt must not be in the future
//
// NOT validated (populated later):
//   - Structured fields (empty until enrichment runs)
//   - ID (assigned by the store)
func ValidateOrderRecord(record *OrderRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidOrderRecord)
	}

	if strings.TrimSpace(record.OriginalText) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidOrderRecord, ErrEmptyOriginalText)
	}

	if !IsValidTimestamp(record.CreatedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidOrderRecord, ErrInvalidTimestamp)
	}

	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
