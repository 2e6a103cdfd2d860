// Package cache oferece leitura com cache JSON em Redis.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Remember devolve o valor em cache para key ou calcula com fn e grava por ttl.
// Falhas do Redis não interrompem a requisição; o valor é apenas recalculado.
func Remember[T any](ctx context.Context, client *redis.Client, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if client != nil && ttl > 0 {
		if data, err := client.Get(ctx, key).Bytes(); err == nil {
			var cached T
			if json.Unmarshal(data, &cached) == nil {
				return cached, nil
			}
		}
	}

	value, err := fn(ctx)
	if err != nil {
		return value, err
	}

	if client != nil && ttl > 0 {
		if payload, err := json.Marshal(value); err == nil {
			if err := client.Set(ctx, key, payload, ttl).Err(); err != nil {
				log.Debug().Err(err).Str("key", key).Msg("cache indisponível")
			}
		}
	}

	return value, nil
}

// Forget remove chaves do cache, ignorando falhas.
func Forget(ctx context.Context, client *redis.Client, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	_ = client.Del(ctx, keys...).Err()
}
