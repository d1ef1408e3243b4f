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

// Package openai provides the ai.Provider implementation for OpenAI-compatible
// chat APIs such as DeepSeek.
//
// Requests go through the langchaingo openai client at temperature 0. Model
// output is unwrapped from Markdown fences and repaired before decoding; a
// response that still cannot be decoded produces an empty result.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithHost("https://api.deepseek.com"), // /v1 added automatically
//	    ai.WithAPIKey(os.Getenv("DEEPSEEK_API_KEY")),
//	)
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	orders := provider.Splitter().SplitOrders(ctx, chunk)
//	fields := provider.Extractor().ExtractFields(ctx, orders[0])
package openai
