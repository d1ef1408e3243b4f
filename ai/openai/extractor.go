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
	"context"
	"log/slog"

	"github.com/poiesic/tutorder/ai"
	"github.com/poiesic/tutorder/core"
	"github.com/tmc/langchaingo/llms"
)

// FieldExtractor implements ai.FieldExtractor using an OpenAI-compatible chat API.
type FieldExtractor struct {
	client       llms.Model
	systemPrompt string
	logger       *slog.Logger
}

func newFieldExtractor(client llms.Model) *FieldExtractor {
	return &FieldExtractor{
		client:       client,
		systemPrompt: buildExtractSystemPrompt(),
		logger:       slog.Default().With("component", "openai-extractor"),
	}
}

// NewFieldExtractor creates a field extractor using the provided configuration.
//
// Returns ai.FieldExtractor interface to enforce abstraction.
func NewFieldExtractor(config *ai.Config) (ai.FieldExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client, err := newModel(config)
	if err != nil {
		return nil, err
	}
	return newFieldExtractor(client), nil
}

// ExtractFields asks the model for the structured fields of one order.
// Any failure is logged and yields an empty mapping.
func (e *FieldExtractor) ExtractFields(ctx context.Context, orderText string) core.Fields {
	response, err := complete(ctx, e.client, e.systemPrompt, orderText)
	if err != nil {
		e.logger.Error("failed to generate content", "err", err)
		return core.Fields{}
	}

	fields, err := parseFields(response)
	if err != nil {
		e.logger.Warn("error parsing extraction response", "response", response, "err", err)
		return core.Fields{}
	}

	e.logger.Debug("extracted fields", "count", len(fields))
	return fields
}
