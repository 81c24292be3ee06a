package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/dispatch/internal/geocode/domain"
	"go.uber.org/zap"
)

const keyPlace = "geocode:place:"

// RedisStore serves places from Redis and falls back to the wrapped store.
// Keys carry no expiry. Redis failures are logged and never returned.
type RedisStore struct {
	client *redis.Client
	next   domain.Store
	log    *zap.Logger
}

func NewRedisStore(client *redis.Client, next domain.Store, log *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		next:   next,
		log:    log.Named("geocode.redis"),
	}
}

func (s *RedisStore) GetByAddress(ctx context.Context, address string) (*domain.Coordinate, error) {
	raw, err := s.client.Get(ctx, keyPlace+address).Bytes()
	switch {
	case err == nil:
		if coord, ok := s.decode(address, raw); ok {
			return &coord, nil
		}
	case !errors.Is(err, redis.Nil):
		s.log.Warn("redis get failed", zap.String("address", address), zap.Error(err))
	}

	coord, err := s.next.GetByAddress(ctx, address)
	if err != nil || coord == nil {
		return coord, err
	}
	s.set(ctx, address, *coord)
	return coord, nil
}

func (s *RedisStore) GetManyByAddress(ctx context.Context, addresses []string) (map[string]domain.Coordinate, error) {
	out := make(map[string]domain.Coordinate, len(addresses))
	if len(addresses) == 0 {
		return out, nil
	}

	keys := make([]string, len(addresses))
	for i, address := range addresses {
		keys[i] = keyPlace + address
	}

	misses := addresses
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		s.log.Warn("redis mget failed", zap.Int("keys", len(keys)), zap.Error(err))
	} else {
		misses = make([]string, 0, len(addresses))
		for i, value := range values {
			str, ok := value.(string)
			if !ok {
				misses = append(misses, addresses[i])
				continue
			}
			coord, ok := s.decode(addresses[i], []byte(str))
			if !ok {
				misses = append(misses, addresses[i])
				continue
			}
			out[addresses[i]] = coord
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	found, err := s.next.GetManyByAddress(ctx, misses)
	if err != nil {
		return nil, err
	}
	if len(found) > 0 {
		pipe := s.client.Pipeline()
		for address, coord := range found {
			out[address] = coord
			if payload, err := json.Marshal(coord); err == nil {
				pipe.Set(ctx, keyPlace+address, payload, 0)
			}
		}
		if _, err := pipe.Exec(ctx); err != nil {
			s.log.Warn("redis backfill failed", zap.Int("keys", len(found)), zap.Error(err))
		}
	}
	return out, nil
}

func (s *RedisStore) Upsert(ctx context.Context, address string, coord domain.Coordinate, resolvedAt time.Time) error {
	if err := s.next.Upsert(ctx, address, coord, resolvedAt); err != nil {
		return err
	}
	s.set(ctx, address, coord)
	return nil
}

func (s *RedisStore) set(ctx context.Context, address string, coord domain.Coordinate) {
	payload, err := json.Marshal(coord)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, keyPlace+address, payload, 0).Err(); err != nil {
		s.log.Warn("redis set failed", zap.String("address", address), zap.Error(err))
	}
}

func (s *RedisStore) decode(address string, raw []byte) (domain.Coordinate, bool) {
	var coord domain.Coordinate
	if err := json.Unmarshal(raw, &coord); err != nil {
		s.log.Warn("discarding unreadable cached place", zap.String("address", address), zap.Error(err))
		return domain.Coordinate{}, false
	}
	return coord, true
}
