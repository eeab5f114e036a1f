// Package cache implements the visitor's local cache: a TTL-bound player
// lookup cache and the bounded list of recently searched nicknames, both
// persisted as JSON blobs in a storage.Store.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vimestats/internal/metrics"
	"github.com/vimestats/internal/storage"
)

// Persisted key names
const (
	RecentNicksKey = "recentNicks"
	PlayerCacheKey = "playerCache"
)

// Defaults
const (
	DefaultTTL     = 5 * time.Minute
	MaxRecentNicks = 5
)

// PlayerData is the part of a player record kept in the cache
type PlayerData struct {
	Rank         string   `json:"rank"`
	CustomColors []string `json:"customColors"`
	Username     string   `json:"username"`
}

// Entry is a cached player record stamped with its save time in epoch milliseconds
type Entry struct {
	PlayerData
	Timestamp int64 `json:"timestamp"`
}

// SavedAt returns the entry timestamp as a time.Time
func (e Entry) SavedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Options configures a LocalCache
type Options struct {
	// Scope prefixes every key, e.g. a session id; empty means unscoped
	Scope     string
	TTL       time.Duration
	MaxRecent int
	Now       func() time.Time
}

// LocalCache is a storage-backed player cache and recent-nicks list.
// Storage and decoding failures are logged and never returned: callers always
// get a structurally valid, possibly empty, result.
type LocalCache struct {
	store     storage.Store
	scope     string
	ttl       time.Duration
	maxRecent int
	now       func() time.Time
	logger    *slog.Logger

	// mu serializes read-modify-write cycles of every cache derived from the same root
	mu *sync.Mutex
}

// New creates a LocalCache over store
func New(store storage.Store, opts Options, logger *slog.Logger) *LocalCache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxRecent <= 0 {
		opts.MaxRecent = MaxRecentNicks
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &LocalCache{
		store:     store,
		scope:     opts.Scope,
		ttl:       opts.TTL,
		maxRecent: opts.MaxRecent,
		now:       opts.Now,
		logger:    logger,
		mu:        &sync.Mutex{},
	}
}

// WithScope returns a cache over the same store and settings under another scope
func (c *LocalCache) WithScope(scope string) *LocalCache {
	cp := *c
	cp.scope = scope
	return &cp
}

// TTL returns how long a player entry stays valid
func (c *LocalCache) TTL() time.Duration {
	return c.ttl
}

func (c *LocalCache) key(name string) string {
	if c.scope == "" {
		return name
	}
	return c.scope + ":" + name
}

// SavePlayerData upserts data for nick stamped with the current time and
// persists the whole player cache.
func (c *LocalCache) SavePlayerData(ctx context.Context, nick string, data PlayerData) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.loadPlayerCache(ctx)
	if data.CustomColors == nil {
		data.CustomColors = []string{}
	}
	entries[nick] = Entry{
		PlayerData: data,
		Timestamp:  c.now().UnixMilli(),
	}
	c.persistPlayerCache(ctx, entries)
}

// GetPlayerData returns the cached entry for nick if it is younger than the TTL.
// Expired entries are treated as absent but left in place for the sweeper.
func (c *LocalCache) GetPlayerData(ctx context.Context, nick string) *Entry {
	entries := c.loadPlayerCache(ctx)
	entry, ok := entries[nick]
	if !ok {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil
	}
	if !c.valid(entry) {
		metrics.CacheLookups.WithLabelValues("expired").Inc()
		return nil
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return &entry
}

// CleanExpiredCache removes every expired entry and persists the cache only
// when something was removed. It returns the number of removed entries.
func (c *LocalCache) CleanExpiredCache(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.loadPlayerCache(ctx)
	removed := 0
	for nick, entry := range entries {
		if !c.valid(entry) {
			delete(entries, nick)
			removed++
		}
	}
	if removed > 0 {
		c.persistPlayerCache(ctx, entries)
		metrics.CacheEvicted.Add(float64(removed))
	}
	return removed
}

// Clear deletes both persisted keys of this scope
func (c *LocalCache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, name := range []string{PlayerCacheKey, RecentNicksKey} {
		if err := c.store.Delete(ctx, c.key(name)); err != nil {
			c.logger.Warn("failed to delete cache key", "key", c.key(name), "error", err)
		}
	}
}

// LoadRecentNicks returns the stored recent nicknames. A missing, unreadable
// or malformed value yields an empty list.
func (c *LocalCache) LoadRecentNicks(ctx context.Context) []string {
	raw, ok, err := c.store.Get(ctx, c.key(RecentNicksKey))
	if err != nil {
		c.logger.Warn("failed to read recent nicks", "scope", c.scope, "error", err)
		return []string{}
	}
	if !ok || raw == "" {
		return []string{}
	}

	var nicks []string
	if err := json.Unmarshal([]byte(raw), &nicks); err != nil || nicks == nil {
		return []string{}
	}
	return nicks
}

// SaveRecentNickSync moves nick to the front of the recent list, dropping any
// case-insensitive duplicate and truncating to the configured maximum. The
// new list is returned even when persisting it fails.
func (c *LocalCache) SaveRecentNickSync(ctx context.Context, nick string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.LoadRecentNicks(ctx)
	nicks := make([]string, 0, len(current)+1)
	nicks = append(nicks, nick)
	for _, n := range current {
		if strings.EqualFold(n, nick) {
			continue
		}
		nicks = append(nicks, n)
	}
	if len(nicks) > c.maxRecent {
		nicks = nicks[:c.maxRecent]
	}

	data, err := json.Marshal(nicks)
	if err != nil {
		c.logger.Error("failed to encode recent nicks", "error", err)
		return nicks
	}
	if err := c.store.Set(ctx, c.key(RecentNicksKey), string(data)); err != nil {
		c.logger.Warn("failed to persist recent nicks", "scope", c.scope, "error", err)
	}
	return nicks
}

func (c *LocalCache) valid(e Entry) bool {
	age := c.now().UnixMilli() - e.Timestamp
	return age < c.ttl.Milliseconds()
}

// loadPlayerCache decodes the player cache blob. Entries that fail to decode
// are dropped; a blob that is not a JSON object is treated as empty.
func (c *LocalCache) loadPlayerCache(ctx context.Context) map[string]Entry {
	entries := make(map[string]Entry)

	raw, ok, err := c.store.Get(ctx, c.key(PlayerCacheKey))
	if err != nil {
		c.logger.Warn("failed to read player cache", "scope", c.scope, "error", err)
		return entries
	}
	if !ok || raw == "" {
		return entries
	}

	var blob map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		c.logger.Warn("discarding malformed player cache", "scope", c.scope, "error", err)
		return entries
	}
	for nick, v := range blob {
		var e Entry
		if err := json.Unmarshal(v, &e); err != nil {
			continue
		}
		entries[nick] = e
	}
	return entries
}

func (c *LocalCache) persistPlayerCache(ctx context.Context, entries map[string]Entry) {
	data, err := json.Marshal(entries)
	if err != nil {
		c.logger.Error("failed to encode player cache", "error", err)
		return
	}
	if err := c.store.Set(ctx, c.key(PlayerCacheKey), string(data)); err != nil {
		c.logger.Warn("failed to persist player cache", "scope", c.scope, "error", err)
	}
}
