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

// Package enrich fills the structured fields of unparsed order records and
// exports the newly parsed records as a spreadsheet artifact.
package enrich

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/tutorder/ai"
	"github.com/poiesic/tutorder/artifact"
	"github.com/poiesic/tutorder/core"
	"github.com/poiesic/tutorder/metrics"
	"github.com/poiesic/tutorder/progress"
	"github.com/poiesic/tutorder/storage"
	"github.com/poiesic/tutorder/tabular"
)

var (
	ErrOrderRepositoryRequired = errors.New("order repository required")
	ErrExtractorRequired       = errors.New("field extractor required")
	ErrArtifactStoreRequired   = errors.New("artifact store required")
)

// ArtifactPrefix names exported spreadsheets.
const ArtifactPrefix = "parsed_orders"

// Enricher runs field extraction over every unparsed record.
type Enricher struct {
	orders    storage.OrderRepository
	extractor ai.FieldExtractor
	artifacts artifact.Store
	batchID   string
	now       func() time.Time
	metrics   *metrics.Registry
	logger    *slog.Logger
}

type Option func(*Enricher)

// WithBatch restricts enrichment to records of one batch.
func WithBatch(batchID string) Option {
	return func(e *Enricher) { e.batchID = batchID }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Enricher) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Registry) Option {
	return func(e *Enricher) { e.metrics = m }
}

// WithClock overrides the time source used for artifact names.
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Enricher.
func New(orders storage.OrderRepository, extractor ai.FieldExtractor, artifacts artifact.Store, opts ...Option) (*Enricher, error) {
	switch {
	case orders == nil:
		return nil, ErrOrderRepositoryRequired
	case extractor == nil:
		return nil, ErrExtractorRequired
	case artifacts == nil:
		return nil, ErrArtifactStoreRequired
	}
	e := &Enricher{
		orders:    orders,
		extractor: extractor,
		artifacts: artifacts,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "enrich")
	return e, nil
}

// Result summarizes one enrichment run.
type Result struct {
	Parsed   int
	Skipped  int
	Artifact string // empty when nothing was parsed
}

func (r Result) String() string {
	if r.Artifact == "" {
		return fmt.Sprintf("parsed %d orders, skipped %d", r.Parsed, r.Skipped)
	}
	return fmt.Sprintf("parsed %d orders, skipped %d, exported %s", r.Parsed, r.Skipped, r.Artifact)
}

// Run extracts fields for each unparsed record in ID order. Records the
// extractor returns nothing for are left untouched. All parsed records are
// written back in one update after the loop; if that fails nothing is
// written and no artifact is produced. Progress runs to 90 over the records
// and reaches 100 once the export is stored.
func (e *Enricher) Run(ctx context.Context, sink progress.Sink) (result Result, err error) {
	sink = progress.OrNop(sink)
	start := time.Now()
	defer func() { e.metrics.ObserveStage("enrich", start, err) }()

	pending, err := e.unparsed(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("loading unparsed orders: %w", err)
	}
	if len(pending) == 0 {
		sink.Report(100, "no unparsed orders")
		return Result{}, nil
	}
	e.logger.Info("starting enrichment", "records", len(pending), "batch", e.batchID)

	var parsed []*core.OrderRecord
	table := tabular.New(core.ExportColumns()...)
	for i, rec := range pending {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		fields := e.extractor.ExtractFields(ctx, rec.OriginalText)
		if len(fields) == 0 {
			e.logger.Warn("skipping order, no fields extracted", "id", rec.ID)
			result.Skipped++
		} else {
			rec.ApplyFields(fields)
			parsed = append(parsed, rec)
			table.Append(rec.ExportRow())
		}
		sink.Report(progress.Fraction(i+1, len(pending), 90),
			fmt.Sprintf("parsed %d of %d orders", i+1, len(pending)))
	}
	result.Parsed = len(parsed)

	if len(parsed) == 0 {
		e.metrics.AddEnriched(0, result.Skipped)
		sink.Report(100, "no orders parsed")
		return result, nil
	}

	if err := e.orders.Update(ctx, parsed...); err != nil {
		e.logger.Error("failed to save parsed orders", "err", err)
		return Result{}, fmt.Errorf("saving parsed orders: %w", err)
	}
	e.metrics.AddEnriched(result.Parsed, result.Skipped)

	name := artifact.Name(ArtifactPrefix, e.now(), "xlsx")
	if err := e.export(ctx, name, table); err != nil {
		return result, err
	}
	result.Artifact = name
	sink.Report(100, "exported "+name)

	e.logger.Info("enrichment complete", "parsed", result.Parsed, "skipped", result.Skipped, "artifact", name)
	return result, nil
}

func (e *Enricher) unparsed(ctx context.Context) ([]*core.OrderRecord, error) {
	if e.batchID != "" {
		return e.orders.QueryUnparsedByBatch(ctx, e.batchID)
	}
	return e.orders.QueryUnparsed(ctx)
}

func (e *Enricher) export(ctx context.Context, name string, table *tabular.Table) error {
	var buf bytes.Buffer
	if err := tabular.WriteXLSX(&buf, table); err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}
	if err := e.artifacts.Put(ctx, name, &buf); err != nil {
		return fmt.Errorf("storing %s: %w", name, err)
	}
	return nil
}
