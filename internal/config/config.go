package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Logging     LoggingConfig
	RateLimit   RateLimitConfig
	Auth        AuthConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	CORS        CORSConfig
}

type ServerConfig struct {
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	Email        string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

type RateLimitConfig struct {
	MaxRequests   int
	Window        time.Duration
	Shards        int
	SweepInterval time.Duration
}

type AuthConfig struct {
	SessionCookie   string
	SecuredPrefixes []string
	APIPrefix       string
	SignInPath      string
	Bypass          bool
	SessionTTL      time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

// Enabled reports whether a Redis URL was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

type KafkaConfig struct {
	Brokers    []string
	Topic      string
	BufferSize int
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type CORSConfig struct {
	AllowedOrigins []string
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8080),
			TLSPort:      getEnvInt("SERVER_TLS_PORT", 8443),
			EnableTLS:    getEnvBool("SERVER_ENABLE_TLS", false),
			AutoCert:     getEnvBool("SERVER_AUTO_CERT", false),
			Domain:       getEnv("SERVER_DOMAIN", "localhost"),
			Email:        getEnv("SERVER_ACME_EMAIL", ""),
			CertFile:     getEnv("SERVER_CERT_FILE", ""),
			KeyFile:      getEnv("SERVER_KEY_FILE", ""),
			AutoCertDir:  getEnv("SERVER_AUTO_CERT_DIR", "./certs"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		RateLimit: RateLimitConfig{
			MaxRequests:   getEnvInt("RATE_LIMIT_MAX_REQUESTS", 60),
			Window:        getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second),
			Shards:        getEnvInt("RATE_LIMIT_SHARDS", 16),
			SweepInterval: getEnvDuration("RATE_LIMIT_SWEEP_INTERVAL", 0),
		},
		Auth: AuthConfig{
			SessionCookie: getEnv("AUTH_SESSION_COOKIE", "session_token"),
			SecuredPrefixes: getEnvList("AUTH_SECURED_PREFIXES", []string{
				"/dashboard", "/profile", "/admin",
				"/api/dashboard", "/api/profile", "/api/admin",
			}),
			APIPrefix:  getEnv("AUTH_API_PREFIX", "/api/"),
			SignInPath: getEnv("AUTH_SIGNIN_PATH", "/auth/signin"),
			Bypass:     getEnvBool("AUTH_BYPASS", false),
			SessionTTL: getEnvDuration("AUTH_SESSION_TTL", 24*time.Hour),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 20),
		},
		Kafka: KafkaConfig{
			Brokers:    getEnvList("KAFKA_BROKERS", nil),
			Topic:      getEnv("KAFKA_GATE_EVENTS_TOPIC", "gate-events"),
			BufferSize: getEnvInt("KAFKA_EVENT_BUFFER", 1024),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
	}

	return cfg
}

func (c *Config) Validate() error {
	var errs []error

	if c.RateLimit.MaxRequests <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_MAX_REQUESTS must be positive, got %d", c.RateLimit.MaxRequests))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimit.Window))
	}
	if c.RateLimit.Shards <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_SHARDS must be positive, got %d", c.RateLimit.Shards))
	}
	if c.Auth.SessionCookie == "" {
		errs = append(errs, errors.New("AUTH_SESSION_COOKIE must not be empty"))
	}
	if !strings.HasPrefix(c.Auth.SignInPath, "/") {
		errs = append(errs, fmt.Errorf("AUTH_SIGNIN_PATH must be an absolute path, got %q", c.Auth.SignInPath))
	}
	if c.Auth.Bypass && c.IsProduction() {
		errs = append(errs, errors.New("AUTH_BYPASS cannot be enabled in production"))
	}
	if c.IsProduction() {
		for _, origin := range c.CORS.AllowedOrigins {
			if strings.Contains(origin, "*") {
				errs = append(errs, fmt.Errorf("CORS_ALLOWED_ORIGINS must list exact origins in production, got %q", origin))
			}
		}
	}
	if c.Server.EnableTLS && !c.Server.AutoCert && (c.Server.CertFile == "") != (c.Server.KeyFile == "") {
		errs = append(errs, errors.New("SERVER_CERT_FILE and SERVER_KEY_FILE must be set together"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration accepts Go duration strings ("90s") or bare seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
