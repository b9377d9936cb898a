package playerstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PlayerKeyFormat is the hash holding one player's flat projection:
// <prefix>player:{uuid}
const PlayerKeyFormat = "%splayer:{%s}"

// NewRedisClient connects and pings, failing fast on a bad address.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("no Redis address provided")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  6 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// RedisStore keeps each player in a hash of flat projection keys.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	log    *zap.Logger
}

func NewRedisStore(rdb redis.UniversalClient, prefix string, log *zap.Logger) *RedisStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisStore{rdb: rdb, prefix: prefix, log: log}
}

func (s *RedisStore) key(player uuid.UUID) string {
	return fmt.Sprintf(PlayerKeyFormat, s.prefix, player)
}

func (s *RedisStore) Load(ctx context.Context, player uuid.UUID) (Record, bool, error) {
	flat, err := s.rdb.HGetAll(ctx, s.key(player)).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("load player %s: %w", player, err)
	}
	if len(flat) == 0 {
		return Record{}, false, nil
	}
	rec, skipped := Unflatten(player, flat)
	if len(skipped) > 0 {
		s.log.Warn("skipping malformed player fields",
			zap.Stringer("player", player), zap.Strings("keys", skipped))
	}
	return rec, true, nil
}

// Save replaces each player's hash in one MULTI/EXEC per call.
func (s *RedisStore) Save(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, rec := range recs {
			key := s.key(rec.Player)
			pipe.Del(ctx, key)
			flat := Flatten(rec)
			if len(flat) == 0 {
				continue
			}
			fields := make(map[string]any, len(flat))
			for k, v := range flat {
				fields[k] = v
			}
			pipe.HSet(ctx, key, fields)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save %d players: %w", len(recs), err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
