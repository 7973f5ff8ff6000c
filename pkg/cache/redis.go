package cache

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-redis/redis/v8"

	"eduquiz/internal/models"
)

// RedisCache is the configuration store: quiz settings and the topic
// catalog as a JSON blob, provider API keys as a hash.

const (
	settingsKey = "settings:app"
	apiKeysKey  = "settings:api_keys"
)

// ErrNotFound is returned when a settings key has never been written.
var ErrNotFound = errors.New("not found in cache")

type RedisCache struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisCache(addr string) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisCache{
		client: client,
		ctx:    context.Background(),
	}
}

func (c *RedisCache) GetSettings() (*models.Settings, error) {
	data, err := c.client.Get(c.ctx, settingsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var s models.Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *RedisCache) SetSettings(s *models.Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, settingsKey, data, 0).Err()
}

func (c *RedisCache) GetAPIKey(provider string) (string, error) {
	key, err := c.client.HGet(c.ctx, apiKeysKey, provider).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", err
	}
	return key, nil
}

func (c *RedisCache) GetAPIKeys() (map[string]string, error) {
	keys, err := c.client.HGetAll(c.ctx, apiKeysKey).Result()
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (c *RedisCache) SetAPIKeys(keys map[string]string) error {
	if len(keys) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(keys))
	for provider, key := range keys {
		fields[provider] = key
	}
	return c.client.HSet(c.ctx, apiKeysKey, fields).Err()
}

func (c *RedisCache) Ping() error {
	return c.client.Ping(c.ctx).Err()
}
