// Package cache holds short-lived upstream responses so repeated dashboard
// polls do not hit the spreadsheet quota.
package cache

import (
	"context"
	"sort"
	"time"

	"github.com/dennisdiepolder/callboard/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Cache is a TTL cache over a Store. Store failures degrade to misses.
type Cache struct {
	store  Store
	mode   string
	ttl    time.Duration
	group  singleflight.Group
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a cache with a default TTL
func New(store Store, mode string, ttl time.Duration, logger zerolog.Logger) *Cache {
	return &Cache{
		store:  store,
		mode:   mode,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

// TTL returns the default entry lifetime
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns a live entry's data
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		ok = false
	}
	if ok && e.Expired(c.now()) {
		ok = false
	}

	if ok {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return e.Data, true
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	return nil, false
}

// Set stores data for ttl (0 uses the default)
func (c *Cache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now()
	err := c.store.Set(ctx, key, Entry{Data: data, CreatedAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return err
}

// Invalidate drops one key
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// InvalidatePrefix drops every key starting with prefix
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	n, err := c.store.DeletePrefix(ctx, prefix)
	if err != nil {
		return n, err
	}
	if n > 0 {
		c.logger.Debug().Str("prefix", prefix).Int("removed", n).Msg("cache entries invalidated")
	}
	return n, nil
}

// Clear drops everything
func (c *Cache) Clear(ctx context.Context) (int, error) {
	n, err := c.store.DeletePrefix(ctx, "")
	if err != nil {
		return n, err
	}
	c.logger.Info().Int("removed", n).Msg("cache cleared")
	return n, nil
}

// GetOrLoad returns the cached value or calls load once for all concurrent
// callers of the same key. cached reports whether the value came from the store.
func (c *Cache) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	if data, ok := c.Get(ctx, key); ok {
		return data, true, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		data, err := load(ctx)
		if err != nil {
			return nil, err
		}
		_ = c.Set(ctx, key, data, 0)
		return data, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

// EntryStatus describes one cached key
type EntryStatus struct {
	Key              string  `json:"key"`
	AgeSeconds       float64 `json:"age_seconds"`
	ExpiresInSeconds float64 `json:"expires_in_seconds"`
	Valid            bool    `json:"valid"`
}

// Status is the cache summary reported by /health
type Status struct {
	Mode       string        `json:"mode"`
	TTLSeconds int           `json:"ttl_seconds"`
	Entries    []EntryStatus `json:"entries"`
	Error      string        `json:"error,omitempty"`
}

// Status reports every stored key with its age and validity
func (c *Cache) Status(ctx context.Context) Status {
	st := Status{Mode: c.mode, TTLSeconds: int(c.ttl.Seconds()), Entries: []EntryStatus{}}

	entries, err := c.store.Entries(ctx)
	if err != nil {
		st.Error = err.Error()
		return st
	}

	now := c.now()
	for k, e := range entries {
		st.Entries = append(st.Entries, EntryStatus{
			Key:              k,
			AgeSeconds:       now.Sub(e.CreatedAt).Round(time.Second).Seconds(),
			ExpiresInSeconds: e.ExpiresAt.Sub(now).Round(time.Second).Seconds(),
			Valid:            !e.Expired(now),
		})
	}
	sort.Slice(st.Entries, func(i, j int) bool { return st.Entries[i].Key < st.Entries[j].Key })
	return st
}
