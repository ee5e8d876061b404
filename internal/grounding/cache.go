// Package grounding decides when a user message needs external knowledge
// retrieval and caches retrieval results under per-topic TTL tiers. Every
// failure path degrades to "no cached context": grounding must never abort a
// conversation turn.
package grounding

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"intentforge/internal/kv"
	"intentforge/internal/logging"
)

// Entry is one cached retrieval result. Immutable once written; a fresh write
// under the same key replaces it wholesale.
type Entry struct {
	ContextText string    `json:"context_text"`
	SourceURLs  []string  `json:"source_urls"`
	Query       string    `json:"query"`
	WrittenAt   time.Time `json:"written_at"`
}

// CacheConfig sets the TTL tiers and topic classification tables.
type CacheConfig struct {
	TTLShort  time.Duration // fast-changing live content
	TTLMedium time.Duration // default
	TTLLong   time.Duration // stable/static content

	FastTopics   []string
	StableTopics []string
}

// Cache is the TTL-keyed retrieval cache over the shared kv port.
type Cache struct {
	store  kv.Store
	cfg    CacheConfig
	fast   map[string]bool
	stable map[string]bool
}

// NewCache creates a cache over the given store.
func NewCache(store kv.Store, cfg CacheConfig) *Cache {
	if cfg.TTLShort <= 0 {
		cfg.TTLShort = 15 * time.Minute
	}
	if cfg.TTLMedium <= 0 {
		cfg.TTLMedium = 6 * time.Hour
	}
	if cfg.TTLLong <= 0 {
		cfg.TTLLong = 72 * time.Hour
	}

	c := &Cache{
		store:  store,
		cfg:    cfg,
		fast:   make(map[string]bool),
		stable: make(map[string]bool),
	}
	for _, t := range cfg.FastTopics {
		c.fast[NormalizeTopic(t)] = true
	}
	for _, t := range cfg.StableTopics {
		c.stable[NormalizeTopic(t)] = true
	}
	return c
}

// NormalizeTopic lowercases and underscores a topic so keys are stable
// across casing and whitespace variation.
func NormalizeTopic(topic string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(topic))), "_")
	return norm
}

// NormalizeQuery lowercases and collapses whitespace.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(query))), " ")
}

func queryHash(normQuery string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(normQuery))
	return h.Sum64()
}

func (c *Cache) key(topic, query string) string {
	return fmt.Sprintf("grounding:%s:%016x", NormalizeTopic(topic), queryHash(NormalizeQuery(query)))
}

// TTLFor returns the TTL tier for a topic. Unknown topics use the medium
// default.
func (c *Cache) TTLFor(topic string) time.Duration {
	norm := NormalizeTopic(topic)
	switch {
	case c.fast[norm]:
		return c.cfg.TTLShort
	case c.stable[norm]:
		return c.cfg.TTLLong
	default:
		return c.cfg.TTLMedium
	}
}

// Get returns the cached entry for (topic, query), or miss. Store errors are
// swallowed and reported as a miss.
func (c *Cache) Get(topic, query string) (*Entry, bool) {
	key := c.key(topic, query)
	data, found, err := c.store.Get(key)
	if err != nil {
		logging.Get(logging.CategoryCache).Warn("Cache get degraded to miss for %s: %v", key, err)
		return nil, false
	}
	if !found {
		logging.CacheDebug("Miss: %s", key)
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		logging.Get(logging.CategoryCache).Warn("Cache entry corrupt at %s, treating as miss: %v", key, err)
		return nil, false
	}

	logging.CacheDebug("Hit: %s (written %v ago)", key, time.Since(entry.WrittenAt))
	return &entry, true
}

// Set writes an entry under the topic's TTL tier. Store errors are swallowed.
func (c *Cache) Set(topic, query string, entry Entry) {
	if entry.WrittenAt.IsZero() {
		entry.WrittenAt = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		logging.Get(logging.CategoryCache).Warn("Cache entry marshal failed: %v", err)
		return
	}

	key := c.key(topic, query)
	ttl := c.TTLFor(topic)
	if err := c.store.SetWithTTL(key, data, ttl); err != nil {
		logging.Get(logging.CategoryCache).Warn("Cache set failed for %s (degrading): %v", key, err)
		return
	}
	logging.CacheDebug("Set: %s ttl=%v", key, ttl)
}

// Invalidate removes all cached entries for a topic and reports how many
// were removed. Store errors are swallowed and reported as zero removals.
func (c *Cache) Invalidate(topic string) int {
	prefix := fmt.Sprintf("grounding:%s:", NormalizeTopic(topic))
	removed, err := c.store.DeleteByPrefix(prefix)
	if err != nil {
		logging.Get(logging.CategoryCache).Warn("Cache invalidate failed for %s: %v", prefix, err)
		return removed
	}
	logging.Cache("Invalidated %d entries for topic %s", removed, topic)
	return removed
}
