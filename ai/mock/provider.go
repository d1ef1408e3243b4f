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

import "github.com/poiesic/tutorder/ai"

type MockProvider struct {
	splitter  *MockOrderSplitter
	extractor *MockFieldExtractor
	closed    bool
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		splitter:  NewMockOrderSplitter(),
		extractor: NewMockFieldExtractor(),
	}
}

func NewMockProviderWithServices(splitter *MockOrderSplitter, extractor *MockFieldExtractor) *MockProvider {
	return &MockProvider{
		splitter:  splitter,
		extractor: extractor,
	}
}

func (p *MockProvider) Splitter() ai.OrderSplitter {
	return p.splitter
}

func (p *MockProvider) Extractor() ai.FieldExtractor {
	return p.extractor
}

func (p *MockProvider) Close() error {
	p.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (p *MockProvider) Closed() bool {
	return p.closed
}

func (p *MockProvider) GetMockSplitter() *MockOrderSplitter {
	return p.splitter
}

func (p *MockProvider) GetMockExtractor() *MockFieldExtractor {
	return p.extractor
}

var _ ai.Provider = (*MockProvider)(nil)
