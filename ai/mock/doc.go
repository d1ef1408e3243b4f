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

// Package mock provides test doubles for the ai service interfaces.
//
// The mocks let pipeline tests run without a live text-understanding
// service and give them controlled, deterministic behavior.
//
// # Usage in Tests
//
//	splitter := mock.NewMockOrderSplitter().
//	    WithSplitOrdersFunc(func(ctx context.Context, chunk string) []string {
//	        return []string{"order one", "order two"}
//	    })
//	provider := mock.NewMockProviderWithServices(splitter, mock.NewMockFieldExtractor())
//
//	count := splitter.CallCount()
//
// # Default Behavior
//
//   - MockOrderSplitter: every non-blank line is one order
//   - MockFieldExtractor: the order text is returned as the address
//   - MockProvider: aggregates a splitter and an extractor
package mock
