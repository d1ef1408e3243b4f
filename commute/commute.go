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

// Package commute adds an estimated travel time to a target address to
// every row of an exported order table.
package commute

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/tutorder/artifact"
	"github.com/poiesic/tutorder/core"
	"github.com/poiesic/tutorder/geo"
	"github.com/poiesic/tutorder/metrics"
	"github.com/poiesic/tutorder/progress"
	"github.com/poiesic/tutorder/tabular"
)

const (
	// Column is the header of the added column.
	Column = "通勤时间"

	// ArtifactPrefix names the augmented spreadsheets.
	ArtifactPrefix = "commute_times"

	Unresolvable = "address unresolvable"
)

// RequiredColumns lists the headers an input table must carry.
func RequiredColumns() []string { return core.ExportColumns() }

// Augmenter computes commute times row by row.
type Augmenter struct {
	geocoder  geo.Geocoder
	router    geo.Router
	artifacts artifact.Store
	now       func() time.Time
	metrics   *metrics.Registry
	logger    *slog.Logger
}

type Option func(*Augmenter)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Augmenter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Registry) Option {
	return func(a *Augmenter) { a.metrics = m }
}

// WithClock overrides the time source used for artifact names.
func WithClock(now func() time.Time) Option {
	return func(a *Augmenter) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an Augmenter.
func New(geocoder geo.Geocoder, router geo.Router, artifacts artifact.Store, opts ...Option) (*Augmenter, error) {
	switch {
	case geocoder == nil:
		return nil, ErrGeocoderRequired
	case router == nil:
		return nil, ErrRouterRequired
	case artifacts == nil:
		return nil, ErrArtifactStoreRequired
	}
	a := &Augmenter{
		geocoder:  geocoder,
		router:    router,
		artifacts: artifacts,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "commute")
	return a, nil
}

// Run reads the table at tablePath, appends a commute time column and
// stores the result as a new artifact whose name it returns.
//
// Missing columns and an unresolvable target fail the run before any row is
// processed. Per-row failures become placeholder values in the new column.
func (a *Augmenter) Run(ctx context.Context, tablePath, target string, sink progress.Sink) (name string, err error) {
	sink = progress.OrNop(sink)
	start := time.Now()
	defer func() { a.metrics.ObserveStage("commute", start, err) }()

	table, err := readTable(tablePath)
	if err != nil {
		return "", err
	}
	if missing := table.MissingColumns(RequiredColumns()); len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	origin, err := a.geocoder.Geocode(ctx, target)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrTargetUnresolvable, target, err)
	}
	a.logger.Info("computing commute times", "rows", len(table.Rows), "target", target)

	values := make([]string, len(table.Rows))
	for i := range table.Rows {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		values[i] = a.commute(ctx, origin, table.Value(i, core.FieldAddress), i)
		sink.Report(progress.Fraction(i+1, len(table.Rows), 100),
			fmt.Sprintf("computed commute for row %d of %d", i+1, len(table.Rows)))
	}

	if err := setColumn(table, Column, values); err != nil {
		return "", err
	}

	name = artifact.Name(ArtifactPrefix, a.now(), "xlsx")
	var buf bytes.Buffer
	if err := tabular.WriteXLSX(&buf, table); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	if err := a.artifacts.Put(ctx, name, &buf); err != nil {
		return "", fmt.Errorf("storing %s: %w", name, err)
	}

	a.logger.Info("commute times written", "artifact", name)
	return name, nil
}

// commute returns the cell value for one row's address.
func (a *Augmenter) commute(ctx context.Context, origin geo.Coordinates, address string, row int) string {
	if strings.TrimSpace(address) == "" {
		a.metrics.AddCommuteRow("unresolvable")
		a.logger.Warn("row has no address", "row", row+1)
		return Unresolvable
	}

	dest, err := a.geocoder.Geocode(ctx, address)
	if err != nil {
		a.metrics.AddCommuteRow("unresolvable")
		a.logger.Warn("address unresolvable", "row", row+1, "address", address, "err", err)
		return Unresolvable
	}

	km := geo.DistanceKm(origin, dest)
	mode := geo.SelectMode(km)
	d, err := a.router.Duration(ctx, dest, origin, mode)
	if err != nil {
		a.metrics.AddCommuteRow("error")
		a.logger.Warn("route lookup failed", "row", row+1, "mode", mode, "err", err)
		return "error: " + err.Error()
	}

	a.metrics.AddCommuteRow("ok")
	a.logger.Debug("commute computed", "row", row+1, "km", km, "mode", mode, "duration", d)
	return FormatDuration(d)
}

// FormatDuration renders d as whole minutes, e.g. "26 分钟".
func FormatDuration(d time.Duration) string {
	return fmt.Sprintf("%d 分钟", int64(math.Round(d.Minutes())))
}

func readTable(path string) (*tabular.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening table: %w", err)
	}
	defer f.Close()

	t, err := tabular.Read(filepath.Base(path), f)
	if err != nil {
		return nil, fmt.Errorf("reading table %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// setColumn overwrites an existing column of that name or appends one.
func setColumn(t *tabular.Table, name string, values []string) error {
	col := t.ColumnIndex(name)
	if col < 0 {
		return t.AddColumn(name, values)
	}
	if len(values) != len(t.Rows) {
		return errors.New("commute values do not match row count")
	}
	for i := range t.Rows {
		t.Rows[i][col] = values[i]
	}
	return nil
}
