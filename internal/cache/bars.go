package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"macmarket/internal/domain"

	"github.com/redis/go-redis/v9"
)

// BarCache keeps recently fetched series keyed by symbol, timeframe and
// limit.
type BarCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewBarCache(client redis.Cmdable, ttl time.Duration) *BarCache {
	return &BarCache{client: client, ttl: ttl}
}

func barKey(symbol, timeframe string, limit int) string {
	return fmt.Sprintf("bars:%s:%s:%d", strings.ToUpper(symbol), timeframe, limit)
}

// Get reports a miss as (zero, false, nil).
func (c *BarCache) Get(ctx context.Context, symbol, timeframe string, limit int) (domain.BarSeries, bool, error) {
	raw, err := c.client.Get(ctx, barKey(symbol, timeframe, limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.BarSeries{}, false, nil
	}
	if err != nil {
		return domain.BarSeries{}, false, err
	}
	var series domain.BarSeries
	if err := json.Unmarshal(raw, &series); err != nil {
		return domain.BarSeries{}, false, fmt.Errorf("decode cached bars: %w", err)
	}
	return series, true, nil
}

func (c *BarCache) Set(ctx context.Context, series domain.BarSeries, limit int) error {
	raw, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("encode bars: %w", err)
	}
	return c.client.Set(ctx, barKey(series.Symbol, series.Timeframe, limit), raw, c.ttl).Err()
}
