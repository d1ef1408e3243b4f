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
	"strings"
	"sync"
)

// MockOrderSplitter is a test double for ai.OrderSplitter.
type MockOrderSplitter struct {
	// SplitOrdersFunc is called by SplitOrders if set.
	// If nil, each non-blank line of the chunk is treated as one order.
	SplitOrdersFunc func(ctx context.Context, chunk string) []string

	mu        sync.Mutex
	callCount int
	chunks    []string
}

// NewMockOrderSplitter creates a splitter with default line-based behavior.
func NewMockOrderSplitter() *MockOrderSplitter {
	return &MockOrderSplitter{}
}

// WithSplitOrdersFunc sets custom behavior and returns the mock for chaining.
func (m *MockOrderSplitter) WithSplitOrdersFunc(fn func(ctx context.Context, chunk string) []string) *MockOrderSplitter {
	m.SplitOrdersFunc = fn
	return m
}

func (m *MockOrderSplitter) SplitOrders(ctx context.Context, chunk string) []string {
	m.mu.Lock()
	m.callCount++
	m.chunks = append(m.chunks, chunk)
	fn := m.SplitOrdersFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, chunk)
	}

	orders := []string{}
	for _, line := range strings.Split(chunk, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			orders = append(orders, line)
		}
	}
	return orders
}

func (m *MockOrderSplitter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Chunks returns the chunks received so far, in call order.
func (m *MockOrderSplitter) Chunks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.chunks...)
}

func (m *MockOrderSplitter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.chunks = nil
	m.SplitOrdersFunc = nil
}
