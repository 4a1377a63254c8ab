package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-gate/internal/client"
	"marketplace-gate/internal/models"
)

func newTestCache(t *testing.T) (*SessionCache, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	t.Cleanup(func() { _ = db.Close() })
	return NewSessionCache(client.WrapRedisClient(db)), mock
}

func sampleSession(expires time.Time) *models.Session {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.Session{
		UserID:       "user-1",
		Role:         "provider",
		CreatedAt:    created,
		LastActivity: created,
		ExpiresAt:    expires,
	}
}

func TestSessionCache_LookupFound(t *testing.T) {
	cache, mock := newTestCache(t)
	cache.now = func() time.Time { return time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC) }

	session := sampleSession(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	raw, err := json.Marshal(session)
	require.NoError(t, err)
	mock.ExpectGet("session:tok").SetVal(string(raw))

	got, err := cache.Lookup(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "provider", got.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionCache_LookupMissing(t *testing.T) {
	cache, mock := newTestCache(t)
	mock.ExpectGet("session:nope").RedisNil()

	_, err := cache.Lookup(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionCache_LookupEmptyTokenSkipsRedis(t *testing.T) {
	cache, mock := newTestCache(t)

	_, err := cache.Lookup(context.Background(), "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionCache_LookupExpired(t *testing.T) {
	cache, mock := newTestCache(t)
	cache.now = func() time.Time { return time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC) }

	raw, _ := json.Marshal(sampleSession(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)))
	mock.ExpectGet("session:old").SetVal(string(raw))

	_, err := cache.Lookup(context.Background(), "old")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestSessionCache_LookupMalformed(t *testing.T) {
	cache, mock := newTestCache(t)
	mock.ExpectGet("session:bad").SetVal("{not json")

	_, err := cache.Lookup(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionCache_LookupRedisError(t *testing.T) {
	cache, mock := newTestCache(t)
	mock.ExpectGet("session:tok").SetErr(errors.New("connection refused"))

	_, err := cache.Lookup(context.Background(), "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionCache_SaveRevoke(t *testing.T) {
	cache, mock := newTestCache(t)
	session := sampleSession(time.Time{})
	raw, _ := json.Marshal(session)

	mock.ExpectSet("session:tok", string(raw), time.Hour).SetVal("OK")
	mock.ExpectDel("session:tok").SetVal(1)

	ctx := context.Background()
	require.NoError(t, cache.Save(ctx, "tok", session, time.Hour))
	require.NoError(t, cache.Revoke(ctx, "tok"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionCache_TouchSlidesExpiry(t *testing.T) {
	cache, mock := newTestCache(t)
	now := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	session := sampleSession(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	refreshed := *session
	refreshed.LastActivity = now
	refreshed.ExpiresAt = now.Add(2 * time.Hour)
	raw, _ := json.Marshal(&refreshed)

	mock.ExpectSet("session:tok", string(raw), 2*time.Hour).SetVal("OK")

	require.NoError(t, cache.Touch(context.Background(), "tok", session, 2*time.Hour))
	assert.Equal(t, now, session.LastActivity)
	assert.Equal(t, now.Add(2*time.Hour), session.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionCache_TouchSkipsWithoutTTL(t *testing.T) {
	cache, mock := newTestCache(t)

	require.NoError(t, cache.Touch(context.Background(), "tok", sampleSession(time.Time{}), 0))
	require.NoError(t, cache.Touch(context.Background(), "", sampleSession(time.Time{}), time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionCache_TouchRedisError(t *testing.T) {
	cache, mock := newTestCache(t)
	cache.now = func() time.Time { return time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC) }
	mock.Regexp().ExpectSet("session:tok", `.*`, time.Hour).SetErr(errors.New("connection refused"))

	err := cache.Touch(context.Background(), "tok", sampleSession(time.Time{}), time.Hour)
	assert.Error(t, err)
}
