package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DailyQuota limita quantas vezes cada usuário autenticado pode acionar a rota
// dentro de 24h. A janela começa no primeiro acesso.
func DailyQuota(client *redis.Client, prefix string, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if client == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := GetSubject(r.Context())
			if subject == "" {
				next.ServeHTTP(w, r)
				return
			}

			key := fmt.Sprintf("quota:%s:%s", prefix, subject)
			count, ttl, err := incrWithTTL(r.Context(), client, key, 24*time.Hour)
			if err != nil {
				log.Error().Err(err).Str("key", key).Msg("quota indisponível")
				next.ServeHTTP(w, r)
				return
			}

			if count > int64(limit) {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "RATE_LIMIT", "Limite diário excedido")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// incrWithTTL cria a chave com TTL (SET NX EX) e incrementa na mesma transação,
// então o contador nunca fica sem expiração. Chave antiga sem TTL recebe a janela.
func incrWithTTL(ctx context.Context, client *redis.Client, key string, window time.Duration) (int64, time.Duration, error) {
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, window)
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	remaining := ttl.Val()
	if remaining < 0 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		remaining = window
	}
	return incr.Val(), remaining, nil
}
