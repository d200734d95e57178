package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/safar/go-storefront/internal/models"
)

const (
	reportKeyPrefix = "storefront:revenue:"
	generationKey   = reportKeyPrefix + "generation"
	noGeneration    = -1
)

// ReportCache keeps computed revenue reports in Redis for a short TTL. Keys carry a generation
// number; Invalidate bumps it, which orphans every report computed before the bump.
// A nil *ReportCache is valid and caches nothing.
type ReportCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewReportCache(client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *ReportCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportCache{client: client, ttl: ttl, logger: logger}
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func reportKey(generation int64, from, to time.Time) string {
	return fmt.Sprintf("%s%d:%s:%s", reportKeyPrefix, generation,
		from.UTC().Format(time.DateOnly), to.UTC().Format(time.DateOnly))
}

func (c *ReportCache) generation(ctx context.Context) int64 {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0
	case err != nil:
		c.logger.Warn("revenue cache generation read failed", zap.Error(err))
		return noGeneration
	}
	return gen
}

// Get returns the cached report for the date range along with the generation it was looked up
// under. Pass that generation to Set so a report computed across an invalidation is never
// stored as current. Redis failures are logged and treated as a miss.
func (c *ReportCache) Get(ctx context.Context, from, to time.Time) (*models.RevenueReport, int64, bool) {
	if c == nil || c.client == nil {
		return nil, noGeneration, false
	}

	gen := c.generation(ctx)
	if gen == noGeneration {
		return nil, noGeneration, false
	}

	raw, err := c.client.Get(ctx, reportKey(gen, from, to)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("revenue cache read failed", zap.Error(err))
		}
		return nil, gen, false
	}

	var report models.RevenueReport
	if err := json.Unmarshal(raw, &report); err != nil {
		c.logger.Warn("revenue cache entry corrupt", zap.Error(err))
		return nil, gen, false
	}

	return &report, gen, true
}

// Set stores report under generation. Nothing is stored when the generation has moved on.
func (c *ReportCache) Set(ctx context.Context, generation int64, report *models.RevenueReport) {
	if c == nil || c.client == nil || report == nil || c.ttl <= 0 || generation == noGeneration {
		return
	}
	if c.generation(ctx) != generation {
		return
	}

	data, err := json.Marshal(report)
	if err != nil {
		c.logger.Warn("revenue cache encode failed", zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, reportKey(generation, report.StartDate, report.EndDate), data, c.ttl).Err(); err != nil {
		c.logger.Warn("revenue cache write failed", zap.Error(err))
	}
}

// Invalidate retires every cached report. Call it after any write that changes which lines
// count as revenue or what they cost.
func (c *ReportCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		c.logger.Error("revenue cache invalidation failed", zap.Error(err))
	}
}
