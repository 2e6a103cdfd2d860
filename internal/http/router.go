package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/floripa/internal/accounts"
	"github.com/gestaozabele/floripa/internal/alerts"
	"github.com/gestaozabele/floripa/internal/comments"
	"github.com/gestaozabele/floripa/internal/config"
	httpmiddleware "github.com/gestaozabele/floripa/internal/http/middleware"
	"github.com/gestaozabele/floripa/internal/http/respond"
	"github.com/gestaozabele/floripa/internal/notify"
	"github.com/gestaozabele/floripa/internal/posts"
	"github.com/gestaozabele/floripa/internal/service"
	"github.com/gestaozabele/floripa/internal/storage"
)

type readinessCheck func(ctx context.Context) error

type Handler struct {
	cfg           *config.Config
	authService   *service.AuthService
	accounts      *accounts.Service
	checks        map[string]readinessCheck
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
	devCookies    bool
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, authService *service.AuthService) (http.Handler, error) {
	devCookies := false
	for _, origin := range cfg.AllowOrigins {
		if strings.Contains(origin, "localhost") {
			devCookies = true
			break
		}
	}

	uploader, err := newUploader(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	var notifier notify.Notifier = notify.NoopNotifier{}
	if slack := notify.NewSlackNotifier(cfg.Notify.SlackWebhookURL); slack != nil {
		notifier = slack
	}

	var accountOpts []accounts.Option
	if cfg.ViaCEP.Enabled {
		accountOpts = append(accountOpts, accounts.WithAddressLookup(accounts.NewViaCEPClient(cfg.ViaCEP.BaseURL, cfg.ViaCEP.Timeout)))
	}

	accountService := accounts.NewService(accounts.NewRepository(pool), redisClient, cfg.Location, cfg.StatsCacheTTL, accountOpts...)
	alertService := alerts.NewService(alerts.NewRepository(pool), redisClient, uploader, notifier, alerts.Config{
		Location:          cfg.Location,
		CacheTTL:          cfg.StatsCacheTTL,
		NotifyMinPriority: cfg.Notify.MinPriority,
	})
	postService := posts.NewService(posts.NewRepository(pool), redisClient, cfg.Location, cfg.StatsCacheTTL)
	commentService := comments.NewService(comments.NewRepository(pool), redisClient, cfg.Location, cfg.StatsCacheTTL)

	accountHandler := accounts.NewHandler(accountService, cfg.Location)
	alertHandler := alerts.NewHandler(alertService, httpmiddleware.DailyQuota(redisClient, "alerts", cfg.AlertDailyLimit))
	postHandler := posts.NewHandler(postService)
	commentHandler := comments.NewHandler(commentService)

	h := &Handler{
		cfg:           cfg,
		authService:   authService,
		accounts:      accountService,
		checks:        map[string]readinessCheck{},
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		devCookies:    devCookies,
	}
	if pool != nil {
		h.checks["db"] = pool.Ping
	}
	if redisClient != nil {
		h.checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)

		public.Post("/auth/login", h.Login)
		public.Post("/auth/refresh", h.Refresh)
		public.Post("/auth/logout", h.Logout)

		accountHandler.RegisterPublicRoutes(public)
		postHandler.RegisterPublicRoutes(public)
		commentHandler.RegisterPublicRoutes(public)
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(authService.JWT()))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		private.Get("/auth/me", h.Me)
		accountHandler.RegisterRoutes(private)
		alertHandler.RegisterRoutes(private)
		commentHandler.RegisterRoutes(private)

		private.Group(func(admin chi.Router) {
			admin.Use(httpmiddleware.RequireAdmin)
			accountHandler.RegisterAdminRoutes(admin)
			alertHandler.RegisterAdminRoutes(admin)
			postHandler.RegisterAdminRoutes(admin)
			commentHandler.RegisterAdminRoutes(admin)
		})
	})

	return r, nil
}

func newUploader(cfg config.StorageConfig) (storage.Uploader, error) {
	switch cfg.Provider {
	case "", "noop":
		return storage.NoopUploader{}, nil
	case "s3", "r2", "cloudflare-r2":
		uploader, err := storage.NewS3Uploader(storage.S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			PublicDomain: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("provider", cfg.Provider).Str("bucket", cfg.S3Bucket).Msg("armazenamento de mídia habilitado")
		return uploader, nil
	default:
		return nil, fmt.Errorf("provedor %s não suportado", cfg.Provider)
	}
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida conexões com Postgres e Redis.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failures := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		respond.Error(w, http.StatusServiceUnavailable, "INTERNAL", "dependências indisponíveis", failures)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]bool{"ready": true})
}
