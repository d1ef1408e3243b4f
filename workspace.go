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

// Package tutorder wires the order pipeline stages to their shared
// resources: the order store, the extraction service, the artifact store
// and the maps services.
package tutorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/tutorder/ai"
	"github.com/poiesic/tutorder/ai/openai"
	"github.com/poiesic/tutorder/artifact"
	artifactfs "github.com/poiesic/tutorder/artifact/fs"
	artifacts3 "github.com/poiesic/tutorder/artifact/s3"
	"github.com/poiesic/tutorder/commute"
	"github.com/poiesic/tutorder/config"
	"github.com/poiesic/tutorder/dedup"
	"github.com/poiesic/tutorder/enrich"
	"github.com/poiesic/tutorder/geo"
	"github.com/poiesic/tutorder/geo/cache"
	"github.com/poiesic/tutorder/geo/google"
	"github.com/poiesic/tutorder/ingestion"
	"github.com/poiesic/tutorder/metrics"
	"github.com/poiesic/tutorder/progress"
	"github.com/poiesic/tutorder/progress/kafka"
	"github.com/poiesic/tutorder/storage"
	"github.com/poiesic/tutorder/storage/sqldb"
)

// ErrMapsNotConfigured is returned when a commute run is requested without
// a maps API key or injected geo services.
var ErrMapsNotConfigured = errors.New("maps services not configured")

// Workspace holds every long-lived resource. Create one per process and
// share it; stage constructors are cheap.
type Workspace struct {
	cfg       *config.Config
	store     *sqldb.Store
	orders    *sqldb.OrderRepository
	provider  ai.Provider
	artifacts artifact.Store
	geocoder  geo.Geocoder
	router    geo.Router
	geoCache  *cache.Geocoder
	publisher *kafka.Publisher
	metrics   *metrics.Registry
	logger    *slog.Logger
}

// WorkspaceOption configures a Workspace.
type WorkspaceOption func(*workspaceOptions)

type workspaceOptions struct {
	provider  ai.Provider
	artifacts artifact.Store
	geocoder  geo.Geocoder
	router    geo.Router
	metrics   *metrics.Registry
	logger    *slog.Logger
}

// WithProvider uses p instead of building an OpenAI-compatible provider.
func WithProvider(p ai.Provider) WorkspaceOption {
	return func(o *workspaceOptions) { o.provider = p }
}

// WithArtifactStore overrides the configured artifact store.
func WithArtifactStore(s artifact.Store) WorkspaceOption {
	return func(o *workspaceOptions) { o.artifacts = s }
}

// WithGeo overrides the configured maps services.
func WithGeo(g geo.Geocoder, r geo.Router) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.geocoder = g
		o.router = r
	}
}

func WithMetrics(m *metrics.Registry) WorkspaceOption {
	return func(o *workspaceOptions) { o.metrics = m }
}

func WithLogger(logger *slog.Logger) WorkspaceOption {
	return func(o *workspaceOptions) { o.logger = logger }
}

// OpenWorkspace connects to the order store and builds the services named
// by cfg. The extraction provider is only built when an API key is set;
// stages that need it report ai.ErrMissingAPIKey otherwise.
func OpenWorkspace(ctx context.Context, cfg *config.Config, opts ...WorkspaceOption) (*Workspace, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &workspaceOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = metrics.NewRegistry()
	}

	ws := &Workspace{
		cfg:      cfg,
		provider: o.provider,
		geocoder: o.geocoder,
		router:   o.router,
		metrics:  o.metrics,
		logger:   o.logger.With("component", "workspace"),
	}
	if err := ws.open(ctx, o); err != nil {
		ws.Close()
		return nil, err
	}
	return ws, nil
}

func (ws *Workspace) open(ctx context.Context, o *workspaceOptions) (err error) {
	cfg := ws.cfg
	ws.store, err = sqldb.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening order store: %w", err)
	}
	ws.orders = sqldb.NewOrderRepository(ws.store)

	if ws.provider == nil && cfg.LLM.APIKey != "" {
		ws.provider, err = openai.NewProvider(cfg.AIConfig())
		if err != nil {
			return err
		}
	}

	ws.artifacts = o.artifacts
	if ws.artifacts == nil {
		ws.artifacts, err = openArtifacts(ctx, cfg.Artifacts)
		if err != nil {
			return err
		}
	}

	if ws.geocoder == nil && cfg.Maps.APIKey != "" {
		if err := ws.openMaps(cfg.Maps); err != nil {
			return err
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		ws.publisher = kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}

	return nil
}

func openArtifacts(ctx context.Context, cfg config.Artifacts) (artifact.Store, error) {
	if cfg.Driver == "s3" {
		return artifacts3.New(ctx, artifacts3.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			Prefix:    cfg.S3Prefix,
			PathStyle: cfg.S3PathStyle,
		})
	}
	return artifactfs.New(cfg.Dir)
}

func (ws *Workspace) openMaps(cfg config.Maps) error {
	client, err := google.New(cfg.APIKey,
		google.WithBaseURL(cfg.BaseURL),
		google.WithRateLimit(cfg.RequestsPerSecond),
		google.WithLogger(ws.logger))
	if err != nil {
		return err
	}
	ws.geoCache, err = cache.Open(cfg.CacheDir, client,
		cache.WithMetrics(ws.metrics),
		cache.WithLogger(ws.logger))
	if err != nil {
		return fmt.Errorf("opening geocode cache: %w", err)
	}
	ws.geocoder = ws.geoCache
	ws.router = client
	return nil
}

// Close releases every resource. It is safe to call on a partially
// opened workspace.
func (ws *Workspace) Close() error {
	var errs []error
	if ws.provider != nil {
		errs = append(errs, ws.provider.Close())
	}
	if ws.publisher != nil {
		errs = append(errs, ws.publisher.Close())
	}
	if ws.geoCache != nil {
		errs = append(errs, ws.geoCache.Close())
	}
	if ws.store != nil {
		errs = append(errs, ws.store.Close())
	}
	err := errors.Join(errs...)
	if err != nil {
		ws.logger.Error("error closing workspace", "err", err)
	}
	return err
}

func (ws *Workspace) Config() *config.Config         { return ws.cfg }
func (ws *Workspace) Orders() storage.OrderRepository { return ws.orders }
func (ws *Workspace) Artifacts() artifact.Store       { return ws.artifacts }
func (ws *Workspace) Metrics() *metrics.Registry      { return ws.metrics }

// Ping checks the order store connection.
func (ws *Workspace) Ping(ctx context.Context) error {
	return ws.store.Ping(ctx)
}

// SinkFactory returns per-job sinks publishing to Kafka, or nil when no
// brokers are configured.
func (ws *Workspace) SinkFactory() func(jobID, stage string) progress.Sink {
	if ws.publisher == nil {
		return nil
	}
	return ws.publisher.Sink
}

func (ws *Workspace) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	if ws.provider == nil {
		return nil, ai.ErrMissingAPIKey
	}
	base := []ingestion.Option{
		ingestion.WithMaxChars(ws.cfg.Ingestion.MaxChars),
		ingestion.WithMetrics(ws.metrics),
		ingestion.WithLogger(ws.logger),
	}
	return ingestion.NewPipeline(ws.orders, ws.provider.Splitter(), append(base, opts...)...)
}

func (ws *Workspace) NewDeduplicator(opts ...dedup.Option) (*dedup.Deduplicator, error) {
	base := []dedup.Option{dedup.WithMetrics(ws.metrics), dedup.WithLogger(ws.logger)}
	return dedup.New(ws.orders, append(base, opts...)...)
}

func (ws *Workspace) NewEnricher(opts ...enrich.Option) (*enrich.Enricher, error) {
	if ws.provider == nil {
		return nil, ai.ErrMissingAPIKey
	}
	base := []enrich.Option{enrich.WithMetrics(ws.metrics), enrich.WithLogger(ws.logger)}
	return enrich.New(ws.orders, ws.provider.Extractor(), ws.artifacts, append(base, opts...)...)
}

func (ws *Workspace) NewAugmenter(opts ...commute.Option) (*commute.Augmenter, error) {
	if ws.geocoder == nil || ws.router == nil {
		return nil, ErrMapsNotConfigured
	}
	base := []commute.Option{commute.WithMetrics(ws.metrics), commute.WithLogger(ws.logger)}
	return commute.New(ws.geocoder, ws.router, ws.artifacts, append(base, opts...)...)
}
