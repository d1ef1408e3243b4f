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

package mock

import (
	"context"
	"sync"

	"github.com/poiesic/tutorder/core"
)

// MockFieldExtractor is a test double for ai.FieldExtractor.
type MockFieldExtractor struct {
	// ExtractFieldsFunc is called by ExtractFields if set.
	// If nil, the order text itself is returned as the address.
	ExtractFieldsFunc func(ctx context.Context, orderText string) core.Fields

	mu        sync.Mutex
	callCount int
}

func NewMockFieldExtractor() *MockFieldExtractor {
	return &MockFieldExtractor{}
}

// WithExtractFieldsFunc sets custom behavior and returns the mock for chaining.
func (m *MockFieldExtractor) WithExtractFieldsFunc(fn func(ctx context.Context, orderText string) core.Fields) *MockFieldExtractor {
	m.ExtractFieldsFunc = fn
	return m
}

func (m *MockFieldExtractor) ExtractFields(ctx context.Context, orderText string) core.Fields {
	m.mu.Lock()
	m.callCount++
	fn := m.ExtractFieldsFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, orderText)
	}
	return core.Fields{core.FieldAddress: orderText}
}

func (m *MockFieldExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *MockFieldExtractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.ExtractFieldsFunc = nil
}
