package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/floripa/internal/auth"
	"github.com/gestaozabele/floripa/internal/config"
	"github.com/gestaozabele/floripa/internal/db"
	internalhttp "github.com/gestaozabele/floripa/internal/http"
	"github.com/gestaozabele/floripa/internal/repo"
	"github.com/gestaozabele/floripa/internal/service"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
	log.Info().Msg("api encerrada")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogJSON {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", "floripa-api").Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
}

func serve(ctx context.Context, cfg *config.Config) error {
	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// cache e quotas degradam, mas login depende do Redis
		log.Warn().Err(err).Msg("redis indisponível na inicialização")
	}

	tokens := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTAudience)
	authService := service.NewAuthService(repo.New(pool), rdb, tokens, cfg.JWTRefreshTTL)

	handler, err := internalhttp.NewRouter(cfg, pool, rdb, authService)
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	listenErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Str("tz", cfg.Location.String()).Msg("api ouvindo")
		listenErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-listenErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("sinal recebido, encerrando")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
