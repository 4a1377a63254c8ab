package factory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-gate/internal/config"
	"marketplace-gate/internal/models"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []models.GateEvent
}

func (p *capturePublisher) Publish(_ context.Context, e models.GateEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) snapshot() []models.GateEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.GateEvent(nil), p.events...)
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Logging:     config.LoggingConfig{Level: "error", Format: "console"},
		RateLimit:   config.RateLimitConfig{MaxRequests: 2, Window: time.Minute, Shards: 4},
		Auth: config.AuthConfig{
			SessionCookie:   "session_token",
			SecuredPrefixes: []string{"/dashboard", "/api/admin"},
			APIPrefix:       "/api/",
			SignInPath:      "/auth/signin",
		},
		Kafka: config.KafkaConfig{Topic: "gate-events", BufferSize: 16},
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Environment = "production"
	cfg.Auth.Bypass = true

	f, err := New(cfg)
	require.Error(t, err)
	assert.Nil(t, f)
	assert.Contains(t, err.Error(), "AUTH_BYPASS")
}

func TestFactory_WithoutBackingServices(t *testing.T) {
	f, err := New(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	assert.Nil(t, f.TLSManager())
	assert.NotNil(t, f.Gate())
	assert.Equal(t, 2, f.RateStore().MaxRequests())
	assert.Empty(t, f.HealthCheck(context.Background()))
	assert.True(t, f.IsHealthy(context.Background()))

	rec := httptest.NewRecorder()
	f.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFactory_GateDenialsAreEmitted(t *testing.T) {
	pub := &capturePublisher{}
	f, err := New(testConfig(), WithPublisher(pub))
	require.NoError(t, err)

	router := f.Router()

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for i := 0; i < 3; i++ {
		req = httptest.NewRequest(http.MethodPost, "/api/contact",
			strings.NewReader(`{"name":"A","email":"a@example.com","message":"hi"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
	}
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	require.NoError(t, f.Close())
	<-f.Done()

	got := pub.snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, models.EventRedirected, got[0].Type)
	assert.Equal(t, "/dashboard", got[0].Path)
	assert.Equal(t, "203.0.113.7", got[0].Key)
	assert.NotEmpty(t, got[0].RequestID)
	assert.Equal(t, models.EventUnauthorized, got[1].Type)
	assert.Equal(t, models.EventRateLimited, got[2].Type)
}

func TestFactory_CloseIsIdempotent(t *testing.T) {
	f, err := New(testConfig())
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
}

func TestRunSweeper_DisabledReturnsImmediately(t *testing.T) {
	f, err := New(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	done := make(chan struct{})
	go func() {
		f.RunSweeper(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper should not start with a zero interval")
	}
}
