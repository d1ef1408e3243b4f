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

package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/tutorder/ai"
	"github.com/poiesic/tutorder/core"
	"github.com/poiesic/tutorder/metrics"
	"github.com/poiesic/tutorder/progress"
	"github.com/poiesic/tutorder/storage"
)

// Pipeline turns raw order text into persisted, unparsed order records.
// Chunks are processed one at a time, in order.
type Pipeline struct {
	orders   storage.OrderRepository
	splitter ai.OrderSplitter
	maxChars int
	now      func() time.Time
	metrics  *metrics.Registry
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithMaxChars sets the chunk size in characters.
// Default is DefaultMaxChars; values below 1 restore the default.
func WithMaxChars(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = DefaultMaxChars
		}
		p.maxChars = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithMetrics records chunk and order counts in m.
func WithMetrics(m *metrics.Registry) Option {
	return func(p *Pipeline) error {
		p.metrics = m
		return nil
	}
}

// WithClock overrides the time source used for batch IDs and timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) error {
		if now != nil {
			p.now = now
		}
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(orders storage.OrderRepository, splitter ai.OrderSplitter, opts ...Option) (*Pipeline, error) {
	if orders == nil {
		return nil, ErrOrderRepositoryRequired
	}
	if splitter == nil {
		return nil, ErrSplitterRequired
	}

	p := &Pipeline{
		orders:   orders,
		splitter: splitter,
		maxChars: DefaultMaxChars,
		now:      time.Now,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// Result summarizes one ingestion run.
type Result struct {
	Processed int    // Records persisted
	Batches   int    // Chunks sent to the splitter
	BatchID   string // Shared by every record of the run
}

// String renders the caller-facing summary.
func (r Result) String() string {
	return fmt.Sprintf("processed %d orders in %d batches (batch %s)", r.Processed, r.Batches, r.BatchID)
}

// Run splits rawText into chunks, segments each chunk into orders and
// persists them. Each chunk is committed on its own: a store error aborts
// the run but earlier chunks stay committed. A chunk yielding no orders
// only advances progress.
func (p *Pipeline) Run(ctx context.Context, rawText string, sink progress.Sink) (result Result, err error) {
	if strings.TrimSpace(rawText) == "" {
		return Result{}, ErrEmptyInput
	}
	sink = progress.OrNop(sink)

	start := p.now()
	defer func() { p.metrics.ObserveStage("ingest", start, err) }()

	chunks := Split(rawText, p.maxChars)
	result = Result{
		Batches: len(chunks),
		BatchID: core.NewBatchID(start),
	}
	p.logger.Info("starting ingestion", "batch", result.BatchID, "chunks", len(chunks), "chars", len([]rune(rawText)))

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		records := p.buildRecords(result.BatchID, p.splitter.SplitOrders(ctx, chunk))
		if len(records) > 0 {
			if err := p.orders.Insert(ctx, records...); err != nil {
				p.logger.Error("failed to save orders", "chunk", i+1, "err", err)
				return result, fmt.Errorf("saving chunk %d of %d: %w", i+1, len(chunks), err)
			}
		} else {
			p.logger.Warn("chunk produced no orders", "chunk", i+1)
		}

		result.Processed += len(records)
		p.metrics.AddIngested(len(records))
		sink.Report(progress.Fraction(i+1, len(chunks), 100),
			fmt.Sprintf("processed %d orders (batch %d of %d)", result.Processed, i+1, len(chunks)))
	}

	p.logger.Info("processed order batches",
		"batches", len(chunks),
		"orders", result.Processed,
		"batch", result.BatchID,
		"processing_number", start.Format("01-02-1504"))

	return result, nil
}

func (p *Pipeline) buildRecords(batchID string, orders []string) []*core.OrderRecord {
	records := make([]*core.OrderRecord, 0, len(orders))
	now := p.now()
	for _, text := range orders {
		if strings.TrimSpace(text) == "" {
			continue
		}
		records = append(records, core.NewOrderRecord(batchID, text, now))
	}
	return records
}
