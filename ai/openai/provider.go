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

package openai

import (
	"log/slog"

	"github.com/poiesic/tutorder/ai"
)

// Provider implements ai.Provider using an OpenAI-compatible service.
// Splitter and extractor share one underlying client.
type Provider struct {
	config    *ai.Config
	splitter  *OrderSplitter
	extractor *FieldExtractor
	logger    *slog.Logger
}

// NewProvider creates a new provider for an OpenAI-compatible service.
// The config is validated and normalized before use.
//
// Returns ai.Provider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := newModel(config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:    config,
		splitter:  newOrderSplitter(client),
		extractor: newFieldExtractor(client),
		logger:    slog.Default().With("component", "openai-provider"),
	}, nil
}

// Splitter returns the order segmentation service.
func (p *Provider) Splitter() ai.OrderSplitter {
	return p.splitter
}

// Extractor returns the field extraction service.
func (p *Provider) Extractor() ai.FieldExtractor {
	return p.extractor
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying client doesn't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
