package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port            int
	DBDSN           string
	RedisURL        string
	JWTAccessTTL    time.Duration
	JWTRefreshTTL   time.Duration
	JWTSecret       string
	JWTAudience     string
	AllowOrigins    []string
	RateLimitPublic RateLimitConfig
	RateLimitAuth   RateLimitConfig
	Location        *time.Location
	StatsCacheTTL   time.Duration
	AlertDailyLimit int
	Storage         StorageConfig
	Notify          NotifyConfig
	ViaCEP          ViaCEPConfig
	LogLevel        string
	LogJSON         bool
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// StorageConfig define onde as mídias dos alertas são gravadas.
type StorageConfig struct {
	Provider    string
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string
}

// NotifyConfig controla avisos de alertas críticos.
type NotifyConfig struct {
	SlackWebhookURL string
	MinPriority     int
}

// ViaCEPConfig controla a consulta de endereço por CEP.
type ViaCEPConfig struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	port, err := parseIntEnv("PORT", 8080)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.DBDSN = getEnv("DB_DSN", "")
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN obrigatório")
	}

	cfg.RedisURL = getEnv("REDIS_URL", "")
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL obrigatório")
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	if cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.JWTRefreshTTL, err = parseDurationEnv("JWT_REFRESH_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	cfg.JWTAudience = strings.TrimSpace(getEnv("JWT_AUDIENCE", "cidadao"))
	if cfg.JWTAudience == "" {
		cfg.JWTAudience = "cidadao"
	}

	for _, origin := range strings.Split(getEnv("ALLOW_ORIGINS", ""), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: 10, Burst: 20}
	cfg.RateLimitAuth = RateLimitConfig{RequestsPerSecond: 10, Burst: 40}

	loc, err := time.LoadLocation(getEnv("TZ_LOCATION", "America/Sao_Paulo"))
	if err != nil {
		return nil, errors.New("TZ_LOCATION inválido")
	}
	cfg.Location = loc

	if cfg.StatsCacheTTL, err = parseDurationEnv("STATS_CACHE_TTL", 60*time.Second); err != nil {
		return nil, err
	}

	if cfg.AlertDailyLimit, err = parseIntEnv("ALERT_DAILY_LIMIT", 10); err != nil {
		return nil, errors.New("ALERT_DAILY_LIMIT inválido")
	}

	cfg.Storage = StorageConfig{
		Provider:    strings.ToLower(strings.TrimSpace(getEnv("STORAGE_PROVIDER", "noop"))),
		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3Region:    getEnv("S3_REGION", "auto"),
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3PublicURL: getEnv("S3_PUBLIC_URL", ""),
	}

	cfg.Notify.SlackWebhookURL = strings.TrimSpace(getEnv("SLACK_WEBHOOK_URL", ""))
	if cfg.Notify.MinPriority, err = parseIntEnv("NOTIFY_MIN_PRIORITY", 3); err != nil {
		return nil, errors.New("NOTIFY_MIN_PRIORITY inválido")
	}

	cfg.ViaCEP.Enabled = parseBoolEnv("VIACEP_ENABLED", false)
	cfg.ViaCEP.BaseURL = strings.TrimRight(getEnv("VIACEP_BASE_URL", "https://viacep.com.br"), "/")
	if cfg.ViaCEP.Timeout, err = parseDurationEnv("VIACEP_TIMEOUT", 3*time.Second); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info")))
	switch strings.ToLower(strings.TrimSpace(getEnv("LOG_FORMAT", "console"))) {
	case "json":
		cfg.LogJSON = true
	case "console", "":
	default:
		return nil, errors.New("LOG_FORMAT inválido")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}

func parseIntEnv(key string, def int) (int, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	return strconv.Atoi(val)
}

func parseBoolEnv(key string, def bool) bool {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}
