package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Identity provider selectors.
const (
	AuthProviderJWT     = "jwt"
	AuthProviderCasdoor = "casdoor"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Routes      RoutesConfig
	Store       StoreConfig
	CORS        CORSConfig
	Log         LogConfig
	Analytics   AnalyticsConfig
	Content     ContentConfig
	RateLimit   RateLimitConfig
	Idempotency IdempotencyConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig selects and configures the identity provider.
type AuthConfig struct {
	Provider string
	JWT      JWTConfig
	Casdoor  CasdoorConfig
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// CasdoorConfig mirrors the casdoor SDK client parameters.
type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Certificate  string
	Organization string
	Application  string
}

// RoutesConfig drives request classification and guard redirects.
type RoutesConfig struct {
	AdminPrefix     string
	ProtectedPrefix string
	PublicExact     []string
	PublicPrefixes  []string
	LoginPath       string
	AdminHome       string
	DashboardPath   string
	SessionCookie   string
}

// StoreConfig bounds document store batch operations.
type StoreConfig struct {
	BatchLimit int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AnalyticsConfig governs caching and trend batching for form analytics.
type AnalyticsConfig struct {
	Enabled  bool
	CacheTTL time.Duration
	Batching string
}

// ContentConfig points at the external content generation/grading service.
type ContentConfig struct {
	Endpoint     string
	APIKey       string
	Timeout      time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

// RateLimitConfig configures the fixed-window limiter.
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

// IdempotencyConfig controls how long idempotent responses are replayable.
type IdempotencyConfig struct {
	TTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = strings.TrimRight(v.GetString("API_PREFIX"), "/")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Auth = AuthConfig{
		Provider: strings.ToLower(v.GetString("AUTH_PROVIDER")),
		JWT: JWTConfig{
			Secret:     v.GetString("JWT_SECRET"),
			Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), time.Hour),
			Issuer:     v.GetString("JWT_ISSUER"),
		},
		Casdoor: CasdoorConfig{
			Endpoint:     v.GetString("CASDOOR_ENDPOINT"),
			ClientID:     v.GetString("CASDOOR_CLIENT_ID"),
			ClientSecret: v.GetString("CASDOOR_CLIENT_SECRET"),
			Certificate:  v.GetString("CASDOOR_CERTIFICATE"),
			Organization: v.GetString("CASDOOR_ORGANIZATION"),
			Application:  v.GetString("CASDOOR_APPLICATION"),
		},
	}

	cfg.Routes = RoutesConfig{
		AdminPrefix:     cfg.APIPrefix + "/admin",
		ProtectedPrefix: cfg.APIPrefix,
		PublicExact:     appendMissing(splitAndTrim(v.GetString("ROUTES_PUBLIC_EXACT")), cfg.APIPrefix+"/auth/login", cfg.APIPrefix+"/session"),
		PublicPrefixes:  appendMissing(splitAndTrim(v.GetString("ROUTES_PUBLIC_PREFIXES")), cfg.APIPrefix+"/public/"),
		LoginPath:       v.GetString("ROUTES_LOGIN_PATH"),
		AdminHome:       v.GetString("ROUTES_ADMIN_HOME"),
		DashboardPath:   v.GetString("ROUTES_DASHBOARD_PATH"),
		SessionCookie:   v.GetString("ROUTES_SESSION_COOKIE"),
	}

	cfg.Store = StoreConfig{BatchLimit: v.GetInt("STORE_BATCH_LIMIT")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Analytics = AnalyticsConfig{
		Enabled:  v.GetBool("ENABLE_ANALYTICS_CACHE"),
		CacheTTL: parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 10*time.Minute),
		Batching: v.GetString("ANALYTICS_TREND_BATCHING"),
	}

	cfg.Content = ContentConfig{
		Endpoint:     v.GetString("CONTENT_ENDPOINT"),
		APIKey:       v.GetString("CONTENT_API_KEY"),
		Timeout:      parseDuration(v.GetString("CONTENT_TIMEOUT"), 30*time.Second),
		MaxAttempts:  v.GetInt("CONTENT_MAX_ATTEMPTS"),
		RetryBackoff: parseDuration(v.GetString("CONTENT_RETRY_BACKOFF"), 500*time.Millisecond),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled:  v.GetBool("RATE_LIMIT_ENABLED"),
		Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
		Window:   parseDuration(v.GetString("RATE_LIMIT_WINDOW"), time.Minute),
	}

	cfg.Idempotency = IdempotencyConfig{
		TTL: parseDuration(v.GetString("IDEMPOTENCY_TTL"), 24*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sportlearn")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_PROVIDER", AuthProviderJWT)
	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "1h")
	v.SetDefault("JWT_ISSUER", "sportlearn-api")
	v.SetDefault("CASDOOR_ENDPOINT", "")
	v.SetDefault("CASDOOR_CLIENT_ID", "")
	v.SetDefault("CASDOOR_CLIENT_SECRET", "")
	v.SetDefault("CASDOOR_CERTIFICATE", "")
	v.SetDefault("CASDOOR_ORGANIZATION", "")
	v.SetDefault("CASDOOR_APPLICATION", "")

	// Sign-in, session and public API routes are added under API_PREFIX by Load.
	v.SetDefault("ROUTES_PUBLIC_EXACT", "/,/health,/ready,/metrics,/login,/signup")
	v.SetDefault("ROUTES_PUBLIC_PREFIXES", "/docs/,/static/")
	v.SetDefault("ROUTES_LOGIN_PATH", "/login")
	v.SetDefault("ROUTES_ADMIN_HOME", "/admin")
	v.SetDefault("ROUTES_DASHBOARD_PATH", "/dashboard")
	v.SetDefault("ROUTES_SESSION_COOKIE", "session")

	v.SetDefault("STORE_BATCH_LIMIT", 500)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_ANALYTICS_CACHE", true)
	v.SetDefault("ANALYTICS_CACHE_TTL", "10m")
	v.SetDefault("ANALYTICS_TREND_BATCHING", "halves")

	v.SetDefault("CONTENT_ENDPOINT", "http://localhost:9000")
	v.SetDefault("CONTENT_API_KEY", "")
	v.SetDefault("CONTENT_TIMEOUT", "30s")
	v.SetDefault("CONTENT_MAX_ATTEMPTS", 3)
	v.SetDefault("CONTENT_RETRY_BACKOFF", "500ms")

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_REQUESTS", 120)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")

	v.SetDefault("IDEMPOTENCY_TTL", "24h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// appendMissing adds each path not already present.
func appendMissing(paths []string, extra ...string) []string {
	for _, p := range extra {
		found := false
		for _, existing := range paths {
			if existing == p {
				found = true
				break
			}
		}
		if !found {
			paths = append(paths, p)
		}
	}
	return paths
}
