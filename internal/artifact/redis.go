package artifact

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "deckflow:artifact:"

// RedisStore keeps artifacts as plain keys plus a per-session index set.
// TTL of zero keeps artifacts forever.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) blobKey(key string) string { return redisKeyPrefix + "blob:" + key }
func (s *RedisStore) indexKey(sid string) string { return redisKeyPrefix + "index:" + sid }

func (s *RedisStore) Put(ctx context.Context, sessionID, path string, content []byte) error {
	sid, p, err := splitKey(sessionID, path)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.blobKey(sid+"/"+p), content, s.ttl)
	pipe.SAdd(ctx, s.indexKey(sid), p)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.indexKey(sid), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put %s/%s: %w", sid, p, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID, path string) ([]byte, error) {
	key, err := objectKey(sessionID, path)
	if err != nil {
		return nil, err
	}
	b, err := s.client.Get(ctx, s.blobKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *RedisStore) List(ctx context.Context, sessionID string) ([]string, error) {
	sid, err := cleanSession(sessionID)
	if err != nil {
		return nil, err
	}
	paths, err := s.client.SMembers(ctx, s.indexKey(sid)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *RedisStore) GetURL(context.Context, string, string) (string, error) { return "", nil }
