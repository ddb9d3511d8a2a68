package blacklist

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"steammatch/internal/models"
)

// Querier satisfies matching.TradeBlacklistQuerier with a redis-backed
// cache-aside layer in front of the blacklist_entries table: a hit or a
// confirmed miss is cached for ttl, so a busy matching round doesn't hit
// the database once per candidate.
type Querier struct {
	db    *gorm.DB
	redis *redis.Client
	ttl   time.Duration
}

func New(db *gorm.DB, redisClient *redis.Client, ttl time.Duration) *Querier {
	return &Querier{db: db, redis: redisClient, ttl: ttl}
}

const (
	cachedHit  = "1"
	cachedMiss = "0"
)

// IsBlacklisted satisfies matching.TradeBlacklistQuerier.
func (q *Querier) IsBlacklisted(ctx context.Context, steamID uint64) (bool, error) {
	key := cacheKey(steamID)

	if q.redis != nil {
		val, err := q.redis.Get(ctx, key).Result()
		if err == nil {
			return val == cachedHit, nil
		}
		if !errors.Is(err, redis.Nil) {
			// Cache unavailable: fall through to the database rather than
			// failing the query outright.
			return q.queryAndCache(ctx, steamID, key)
		}
	}
	return q.queryAndCache(ctx, steamID, key)
}

func (q *Querier) queryAndCache(ctx context.Context, steamID uint64, key string) (bool, error) {
	var count int64
	if err := q.db.WithContext(ctx).Model(&models.BlacklistEntry{}).
		Where("steam_id = ?", steamID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("querying blacklist: %w", err)
	}
	blacklisted := count > 0
	if q.redis != nil {
		val := cachedMiss
		if blacklisted {
			val = cachedHit
		}
		q.redis.Set(ctx, key, val, q.ttl)
	}
	return blacklisted, nil
}

// Invalidate drops the cached entry for steamID, used by cmd/seed-blacklist
// after a bulk import so stale negatives don't linger for ttl.
func (q *Querier) Invalidate(ctx context.Context, steamID uint64) {
	if q.redis != nil {
		q.redis.Del(ctx, cacheKey(steamID))
	}
}

func cacheKey(steamID uint64) string {
	return "blacklist:" + strconv.FormatUint(steamID, 10)
}
