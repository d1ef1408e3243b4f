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

// Package ingestion turns raw tutoring-order text into persisted order records.
//
// Raw text is cut into chunks with Split, each chunk is segmented into
// individual orders by an ai.OrderSplitter, and the resulting records are
// stored unparsed under one batch ID per run.
//
//	p, err := ingestion.NewPipeline(orders, provider.Splitter(), ingestion.WithMaxChars(4000))
//	if err != nil {
//	    return err
//	}
//	result, err := p.Run(ctx, text, progress.NewWriter(os.Stderr))
package ingestion
