package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"matscigpt/backend/internal/models"
	"matscigpt/backend/pkg/cache"
	"matscigpt/backend/shared/redis"
)

// DeckCache stores generated slide decks keyed by prompt. Lookups are best
// effort: a cache failure degrades to regeneration, never to an error.
type DeckCache interface {
	Get(ctx context.Context, prompt string) ([]models.Slide, bool)
	Set(ctx context.Context, prompt string, slides []models.Slide)
}

func deckKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return "slides:" + hex.EncodeToString(sum[:16])
}

// MemoryDeckCache backs the deck cache with the in-process TTL cache.
type MemoryDeckCache struct {
	cache *cache.Cache
}

// NewMemoryDeckCache wraps an in-memory cache.
func NewMemoryDeckCache(c *cache.Cache) *MemoryDeckCache {
	return &MemoryDeckCache{cache: c}
}

func (m *MemoryDeckCache) Get(_ context.Context, prompt string) ([]models.Slide, bool) {
	v, ok := m.cache.Get(deckKey(prompt))
	if !ok {
		return nil, false
	}
	slides, ok := v.([]models.Slide)
	return slides, ok
}

func (m *MemoryDeckCache) Set(_ context.Context, prompt string, slides []models.Slide) {
	m.cache.Set(deckKey(prompt), slides)
}

// RedisDeckCache backs the deck cache with redis, letting multiple server
// instances share generated decks.
type RedisDeckCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeckCache wraps a redis client.
func NewRedisDeckCache(client *redis.Client, ttl time.Duration) *RedisDeckCache {
	return &RedisDeckCache{client: client, ttl: ttl}
}

func (r *RedisDeckCache) Get(ctx context.Context, prompt string) ([]models.Slide, bool) {
	raw, err := r.client.Get(ctx, deckKey(prompt))
	if err != nil {
		return nil, false
	}
	var slides []models.Slide
	if err := json.Unmarshal([]byte(raw), &slides); err != nil {
		return nil, false
	}
	return slides, true
}

func (r *RedisDeckCache) Set(ctx context.Context, prompt string, slides []models.Slide) {
	raw, err := json.Marshal(slides)
	if err != nil {
		return
	}
	_ = r.client.Set(ctx, deckKey(prompt), raw, r.ttl)
}
