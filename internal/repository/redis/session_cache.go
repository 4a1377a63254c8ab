package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"marketplace-gate/internal/client"
	"marketplace-gate/internal/models"
	"marketplace-gate/internal/util"
)

const sessionPrefix = "session:"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// SessionCache resolves session cookie values to session records. It is the
// validation step the auth gate deliberately leaves to handlers.
type SessionCache struct {
	client *client.RedisClient
	now    func() time.Time
}

func NewSessionCache(client *client.RedisClient) *SessionCache {
	return &SessionCache{client: client, now: time.Now}
}

func (c *SessionCache) Save(ctx context.Context, token string, session *models.Session, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := c.client.Set(ctx, sessionPrefix+token, string(data), ttl); err != nil {
		util.Error("Failed to save session",
			zap.String("user_id", session.UserID),
			zap.Duration("ttl", ttl),
			zap.Error(err))
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// Lookup returns the live session for token, or ErrSessionNotFound /
// ErrSessionExpired.
func (c *SessionCache) Lookup(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	raw, err := c.client.Get(ctx, sessionPrefix+token)
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return nil, ErrSessionNotFound
		}
		util.Error("Failed to get session", zap.Error(err))
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		util.Warn("Malformed session record", zap.Error(err))
		return nil, ErrSessionNotFound
	}

	if session.Expired(c.now()) {
		return nil, ErrSessionExpired
	}

	return &session, nil
}

// Touch slides the session forward: LastActivity becomes now, ExpiresAt and
// the key TTL become now+ttl.
func (c *SessionCache) Touch(ctx context.Context, token string, session *models.Session, ttl time.Duration) error {
	if token == "" || session == nil || ttl <= 0 {
		return nil
	}

	now := c.now()
	session.LastActivity = now
	session.ExpiresAt = now.Add(ttl)

	if err := c.Save(ctx, token, session, ttl); err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}

	util.Debug("Session refreshed", zap.String("user_id", session.UserID), zap.Duration("new_ttl", ttl))
	return nil
}

func (c *SessionCache) Revoke(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.client.Del(ctx, sessionPrefix+token); err != nil {
		util.Error("Failed to revoke session", zap.Error(err))
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	util.Info("Session revoked")
	return nil
}
