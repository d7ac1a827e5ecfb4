package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"macmarket/internal/domain"

	"github.com/redis/go-redis/v9"
)

// CursorStore persists alert cursors so deduplication survives restarts.
type CursorStore struct {
	client redis.Cmdable
	prefix string
}

func NewCursorStore(client redis.Cmdable) *CursorStore {
	return &CursorStore{client: client, prefix: "alert-cursor:"}
}

// Get returns nil when no cursor has been stored for key.
func (s *CursorStore) Get(ctx context.Context, key string) (*domain.AlertCursor, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var c domain.AlertCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode cursor %s: %w", key, err)
	}
	return &c, nil
}

func (s *CursorStore) Set(ctx context.Context, key string, cursor domain.AlertCursor) error {
	raw, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}
	return s.client.Set(ctx, s.prefix+key, raw, 0).Err()
}

func (s *CursorStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
