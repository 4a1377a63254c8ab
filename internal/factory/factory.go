package factory

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"marketplace-gate/internal/authgate"
	"marketplace-gate/internal/client"
	"marketplace-gate/internal/config"
	"marketplace-gate/internal/events"
	"marketplace-gate/internal/handler"
	"marketplace-gate/internal/models"
	"marketplace-gate/internal/ratelimit"
	sessionrepo "marketplace-gate/internal/repository/redis"
	apptls "marketplace-gate/internal/tls"
	"marketplace-gate/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	logger     *zap.Logger
	tlsManager *apptls.Manager

	redisClient   *client.RedisClient
	kafkaProducer *client.KafkaProducer

	publisher    events.Publisher
	emitter      *events.Emitter
	rateStore    *ratelimit.Store
	sessionCache *sessionrepo.SessionCache
	gate         *authgate.Gate

	closeOnce sync.Once
	closed    chan struct{}
}

type Option func(*Factory)

// WithPublisher overrides the gate event publisher chosen from config.
func WithPublisher(p events.Publisher) Option {
	return func(f *Factory) {
		f.publisher = p
	}
}

// NewFactory loads config from the environment and builds the dependencies.
func NewFactory(opts ...Option) (*Factory, error) {
	return New(config.LoadConfig(), opts...)
}

func New(cfg *config.Config, opts ...Option) (*Factory, error) {
	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	f := &Factory{
		config: cfg,
		logger: util.Named("marketplace-gate"),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}

	if cfg.Server.EnableTLS {
		f.tlsManager = apptls.NewManager(cfg.Server)
	}

	if err := f.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	f.initializeGates()

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("redis_enabled", f.redisClient != nil),
		util.Bool("kafka_enabled", f.kafkaProducer != nil),
		util.Bool("auth_bypass", cfg.Auth.Bypass),
	)

	return f, nil
}

// initializeClients connects the optional backing services. Outside
// production a failing service is logged and skipped.
func (f *Factory) initializeClients() error {
	var initErrors []error

	if f.config.Redis.Enabled() {
		if c, err := client.NewRedisClient(f.config.Redis); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
		} else {
			f.redisClient = c
			f.sessionCache = sessionrepo.NewSessionCache(c)
		}
	} else {
		util.Warn("REDIS_URL not set - session validation endpoint disabled")
	}

	if f.publisher == nil && f.config.Kafka.Enabled() {
		if p, err := client.NewKafkaProducer(f.config.Kafka, f.logger.Named("kafka")); err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without gate events", util.ErrorField(err))
		} else {
			f.kafkaProducer = p
			f.publisher = events.NewKafkaPublisher(p, f.config.Kafka.Topic)
		}
	}
	if f.publisher == nil {
		f.publisher = events.NopPublisher{}
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}

	return nil
}

func (f *Factory) initializeGates() {
	f.emitter = events.NewEmitter(f.publisher, f.config.Kafka.BufferSize, f.logger.Named("events"))

	f.rateStore = ratelimit.NewStore(ratelimit.Config{
		MaxRequests: f.config.RateLimit.MaxRequests,
		Window:      f.config.RateLimit.Window,
		Shards:      f.config.RateLimit.Shards,
	})

	f.gate = authgate.New(authgate.Config{
		SecuredPrefixes: f.config.Auth.SecuredPrefixes,
		SessionCookie:   f.config.Auth.SessionCookie,
		APIPrefix:       f.config.Auth.APIPrefix,
		SignInPath:      f.config.Auth.SignInPath,
		Bypass:          f.config.Auth.Bypass,
	}, f.logger.Named("authgate"), authgate.WithDenyHook(f.emitDenied))

	util.Info("Request gates initialized",
		util.Int("rate_limit_max_requests", f.config.RateLimit.MaxRequests),
		util.Duration("rate_limit_window", f.config.RateLimit.Window),
		util.Int("rate_limit_shards", f.config.RateLimit.Shards),
	)
}

func (f *Factory) emitDenied(r *http.Request, d authgate.Decision) {
	if r == nil {
		return
	}
	eventType := models.EventUnauthorized
	if d.Outcome == authgate.OutcomeRedirect {
		eventType = models.EventRedirected
	}
	var path string
	if r.URL != nil {
		path = r.URL.Path
	}
	f.emitter.Emit(models.NewGateEvent(
		eventType,
		ratelimit.DeriveKey(r.Header),
		r.Method,
		path,
		middleware.GetReqID(r.Context()),
	))
}

// Router builds the HTTP handler with both gates wired in.
func (f *Factory) Router() http.Handler {
	opts := handler.RouterOptions{
		Gate:           f.gate,
		Limiter:        handler.NewRateLimiter(f.rateStore, f.emitter, f.logger.Named("ratelimit")),
		SessionCookie:  f.config.Auth.SessionCookie,
		SessionTTL:     f.config.Auth.SessionTTL,
		Health:         f,
		AllowedOrigins: f.config.CORS.AllowedOrigins,
		RequireHTTPS:   f.config.Server.EnableTLS,
		Logger:         f.logger,
	}
	// A nil *SessionCache must not become a non-nil interface.
	if f.sessionCache != nil {
		opts.Sessions = f.sessionCache
	}
	return handler.NewRouter(opts)
}

// RunSweeper drops ended rate windows periodically. It returns immediately
// when RATE_LIMIT_SWEEP_INTERVAL is zero.
func (f *Factory) RunSweeper(ctx context.Context) {
	interval := f.config.RateLimit.SweepInterval
	if interval <= 0 {
		return
	}
	util.Info("Rate limit sweeper started", util.Duration("interval", interval))
	f.rateStore.Run(ctx, interval, func(removed int) {
		if removed > 0 {
			util.Debug("Rate limit entries swept", util.Int("removed", removed), util.Int("remaining", f.rateStore.Len()))
		}
	})
}

// HealthCheck runs every dependency check concurrently.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	var (
		mu           sync.Mutex
		healthErrors = make(map[string]error)
	)
	record := func(name string, err error) {
		if err == nil {
			return
		}
		mu.Lock()
		healthErrors[name] = err
		mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var g errgroup.Group
	if f.config.Redis.Enabled() {
		g.Go(func() error {
			if f.redisClient == nil {
				record("redis", fmt.Errorf("redis client not initialized"))
				return nil
			}
			record("redis", f.redisClient.HealthCheck(ctx))
			return nil
		})
	}
	if f.kafkaProducer != nil {
		g.Go(func() error {
			record("kafka", f.kafkaProducer.HealthCheck(ctx))
			return nil
		})
	}
	_ = g.Wait()

	if f.rateStore == nil {
		healthErrors["rate_limiter"] = fmt.Errorf("rate limiter not initialized")
	}
	if f.gate == nil {
		healthErrors["auth_gate"] = fmt.Errorf("auth gate not initialized")
	}

	return healthErrors
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	healthErrors := f.HealthCheck(ctx)
	delete(healthErrors, "kafka")
	return len(healthErrors) == 0
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.emitter != nil {
			f.emitter.Close()
			util.Info("Gate event emitter drained", util.Int64("dropped", f.emitter.Dropped()))
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		util.Info("Factory shutdown completed")
		util.Sync()
	})

	return nil
}

func (f *Factory) Done() <-chan struct{} {
	return f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *apptls.Manager {
	return f.tlsManager
}

func (f *Factory) RateStore() *ratelimit.Store {
	return f.rateStore
}

func (f *Factory) Gate() *authgate.Gate {
	return f.gate
}
