// Package cache remembers geocoding results in BadgerDB so repeated
// addresses across commute runs cost one lookup.
package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-crypt/x/blake2b"

	"github.com/poiesic/tutorder/geo"
	"github.com/poiesic/tutorder/metrics"
)

const keyPrefix = "geo:"

// DefaultTTL is how long a cached position stays valid.
const DefaultTTL = 30 * 24 * time.Hour

// Geocoder wraps another geo.Geocoder with a persistent cache. Only
// successful lookups are cached.
type Geocoder struct {
	next    geo.Geocoder
	db      *badger.DB
	ttl     time.Duration
	metrics *metrics.Registry
	logger  *slog.Logger
}

var _ geo.Geocoder = (*Geocoder)(nil)

type Option func(*Geocoder)

// WithTTL sets the entry lifetime. Zero keeps entries forever.
func WithTTL(ttl time.Duration) Option {
	return func(g *Geocoder) { g.ttl = ttl }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(g *Geocoder) { g.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Geocoder) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Open creates a caching geocoder backed by a database in dir.
// An empty dir keeps the cache in memory.
func Open(dir string, next geo.Geocoder, opts ...Option) (*Geocoder, error) {
	if next == nil {
		return nil, errors.New("underlying geocoder required")
	}
	g := &Geocoder{
		next:   next,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "geocache")

	db, err := openDB(dir, g.logger)
	if err != nil {
		return nil, err
	}
	g.db = db
	return g, nil
}

// Close closes the underlying database.
func (g *Geocoder) Close() error {
	return g.db.Close()
}

func (g *Geocoder) Geocode(ctx context.Context, address string) (geo.Coordinates, error) {
	key := cacheKey(address)

	if c, ok := g.lookup(key); ok {
		g.metrics.AddGeocodeCache(true)
		return c, nil
	}
	g.metrics.AddGeocodeCache(false)

	c, err := g.next.Geocode(ctx, address)
	if err != nil {
		return geo.Coordinates{}, err
	}

	err = g.db.Update(func(tx *badger.Txn) error {
		e := badger.NewEntry(key, geo.MarshalCoordinates(c))
		if g.ttl > 0 {
			e = e.WithTTL(g.ttl)
		}
		return tx.SetEntry(e)
	})
	if err != nil {
		g.logger.Warn("failed to cache geocode result", "err", err)
	}
	return c, nil
}

func (g *Geocoder) lookup(key []byte) (geo.Coordinates, bool) {
	var c geo.Coordinates
	err := g.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			c, err = geo.UnmarshalCoordinates(val)
			return err
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			g.logger.Warn("geocode cache read failed", "err", err)
		}
		return geo.Coordinates{}, false
	}
	return c, true
}

// cacheKey hashes the address with whitespace collapsed so formatting
// differences share an entry.
func cacheKey(address string) []byte {
	normalized := strings.Join(strings.Fields(address), " ")
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(normalized))
	return []byte(keyPrefix + hex.EncodeToString(h.Sum(nil)))
}
