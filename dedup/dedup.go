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

// Package dedup removes order records whose original text repeats,
// keeping the most recently inserted copy.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/tutorder/metrics"
	"github.com/poiesic/tutorder/progress"
	"github.com/poiesic/tutorder/storage"
)

var ErrOrderRepositoryRequired = errors.New("order repository required")

// Deduplicator collapses each group of identical orders to its highest ID.
type Deduplicator struct {
	orders  storage.OrderRepository
	metrics *metrics.Registry
	logger  *slog.Logger
}

// Option configures a Deduplicator.
type Option func(*Deduplicator)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Deduplicator) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records removed duplicates in m.
func WithMetrics(m *metrics.Registry) Option {
	return func(d *Deduplicator) {
		d.metrics = m
	}
}

// New creates a Deduplicator.
func New(orders storage.OrderRepository, opts ...Option) (*Deduplicator, error) {
	if orders == nil {
		return nil, ErrOrderRepositoryRequired
	}
	d := &Deduplicator{
		orders: orders,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dedup")
	return d, nil
}

// Run deletes every record that shares its original text with a record of
// higher ID and returns the number removed. Groups are handled in ascending
// survivor ID order inside one transaction; any failure rolls back every
// deletion. Running again immediately removes nothing.
func (d *Deduplicator) Run(ctx context.Context, sink progress.Sink) (removed int, err error) {
	sink = progress.OrNop(sink)
	start := time.Now()
	defer func() { d.metrics.ObserveStage("dedup", start, err) }()

	err = d.orders.WithTransaction(ctx, func(ctx context.Context) error {
		groups, err := d.orders.DuplicateGroups(ctx)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			return nil
		}

		removed = 0
		for i, g := range groups {
			n, err := d.orders.DeleteWhere(ctx, g.OriginalText, g.SurvivorID)
			if err != nil {
				return fmt.Errorf("removing duplicates of order %d: %w", g.SurvivorID, err)
			}
			removed += int(n)
			sink.Report(progress.Fraction(i+1, len(groups), 100),
				fmt.Sprintf("checked %d of %d duplicate groups", i+1, len(groups)))
		}
		return nil
	})
	if err != nil {
		d.logger.Error("failed to remove duplicates", "err", err)
		return 0, err
	}

	d.metrics.AddDuplicatesRemoved(removed)
	if removed > 0 {
		d.logger.Info("removed duplicate orders", "count", removed)
	}
	return removed, nil
}
