package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const (
	cartKeyPrefix      = "snapshot:cart:"
	favoritesKeyPrefix = "snapshot:favorites:"
	sessionKeyPrefix   = "session:"
)

// replaceSnapshotScript swaps the stored snapshot for a newer one in a single
// step. A snapshot fetched earlier than the stored one is ignored.
var replaceSnapshotScript = redis.NewScript(`
local key = KEYS[1]
local fetchedAt = tonumber(ARGV[1])
local ttl = tonumber(ARGV[3])

local current = redis.call('HGET', key, 'fetched_at')
if current and tonumber(current) > fetchedAt then
	return 0
end

redis.call('HSET', key, 'fetched_at', ARGV[1], 'data', ARGV[2])
if ttl > 0 then
	redis.call('PEXPIRE', key, ttl)
end

return 1
`)

// RedisAdapter persists aggregate snapshots and the session in Redis.
type RedisAdapter struct {
	client  *redis.Client
	ttl     time.Duration
	profile string
}

func NewRedisAdapter(client *redis.Client, profile string, snapshotTTL time.Duration) *RedisAdapter {
	if profile == "" {
		profile = "default"
	}
	return &RedisAdapter{client: client, ttl: snapshotTTL, profile: profile}
}

func (r *RedisAdapter) SaveCart(ctx context.Context, userID string, cart domain.Cart) error {
	_, err := r.replace(ctx, cartKeyPrefix+userID, cart.FetchedAt, cart)
	return err
}

func (r *RedisAdapter) LoadCart(ctx context.Context, userID string) (domain.Cart, error) {
	var cart domain.Cart
	err := r.load(ctx, cartKeyPrefix+userID, &cart)
	return cart, err
}

func (r *RedisAdapter) SaveFavorites(ctx context.Context, userID string, favs domain.Favorites) error {
	_, err := r.replace(ctx, favoritesKeyPrefix+userID, favs.FetchedAt, favs)
	return err
}

func (r *RedisAdapter) LoadFavorites(ctx context.Context, userID string) (domain.Favorites, error) {
	var favs domain.Favorites
	err := r.load(ctx, favoritesKeyPrefix+userID, &favs)
	return favs, err
}

func (r *RedisAdapter) Drop(ctx context.Context, userID string) error {
	return r.client.Del(ctx, cartKeyPrefix+userID, favoritesKeyPrefix+userID).Err()
}

func (r *RedisAdapter) replace(ctx context.Context, key string, fetchedAt time.Time, v any) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("encode snapshot: %w", err)
	}

	result, err := replaceSnapshotScript.Run(ctx, r.client, []string{key},
		fetchedAt.UnixNano(), data, r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (r *RedisAdapter) load(ctx context.Context, key string, v any) error {
	data, err := r.client.HGet(ctx, key, "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return port.ErrSnapshotMiss
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return nil
}

func (r *RedisAdapter) tokenKey() string { return sessionKeyPrefix + r.profile + ":token" }
func (r *RedisAdapter) userKey() string  { return sessionKeyPrefix + r.profile + ":user" }

// Load implements port.SessionStore.
func (r *RedisAdapter) Load(ctx context.Context) (domain.Session, error) {
	vals, err := r.client.MGet(ctx, r.tokenKey(), r.userKey()).Result()
	if err != nil {
		return domain.Session{}, err
	}

	token, _ := vals[0].(string)
	rawUser, _ := vals[1].(string)
	if token == "" || rawUser == "" {
		return domain.Session{}, port.ErrNoSession
	}

	var user domain.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return domain.Session{}, fmt.Errorf("decode session user: %w", err)
	}

	return domain.Session{Token: token, User: user}, nil
}

func (r *RedisAdapter) Save(ctx context.Context, s domain.Session) error {
	user, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.tokenKey(), s.Token, 0)
		pipe.Set(ctx, r.userKey(), user, 0)
		return nil
	})
	return err
}

func (r *RedisAdapter) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.tokenKey(), r.userKey()).Err()
}
