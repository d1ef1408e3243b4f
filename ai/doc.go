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

// Package ai provides abstractions for the text-understanding service used by
// tutorder.
//
// The package defines two capabilities:
//
//   - OrderSplitter: segments a chunk of raw text into individual orders
//   - FieldExtractor: extracts structured fields from one order
//
// and a Provider that aggregates them. Pipelines depend on these interfaces,
// so tests run without a live service.
//
// # Implementation Packages
//
//   - ai/openai: production implementation for OpenAI-compatible chat APIs
//     such as DeepSeek
//   - ai/mock: test doubles with injectable behavior and call counts
//
// # Failure Semantics
//
// Neither capability returns an error. Malformed responses are repaired
// where possible; anything unrecoverable yields an empty result, which the
// pipelines treat as "nothing found" for that input.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithAPIKey(os.Getenv("DEEPSEEK_API_KEY")))
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	orders := provider.Splitter().SplitOrders(ctx, chunk)
package ai
