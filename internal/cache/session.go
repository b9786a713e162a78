package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// revokedSessionPrefix is the Redis key prefix for logged-out session IDs.
	revokedSessionPrefix = "session:revoked:"
	// DefaultRevocationTTL bounds how long a revocation is kept when
	// sessions themselves never expire.
	DefaultRevocationTTL = 30 * 24 * time.Hour
)

// ErrEmptySessionID is returned when a revocation is requested without an ID.
var ErrEmptySessionID = errors.New("empty session id")

// RevokeSession marks a session ID as logged out for ttl.
// A non-positive ttl falls back to DefaultRevocationTTL.
func (c *Cache) RevokeSession(ctx context.Context, sessionID string, ttl time.Duration) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	if ttl <= 0 {
		ttl = DefaultRevocationTTL
	}

	if err := c.client.Set(ctx, revokedKey(sessionID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// IsSessionRevoked reports whether the session ID was logged out.
func (c *Cache) IsSessionRevoked(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}

	n, err := c.client.Exists(ctx, revokedKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("check session revocation: %w", err)
	}
	return n > 0, nil
}

// revokedKey builds the Redis key for a revoked session ID.
func revokedKey(sessionID string) string {
	return revokedSessionPrefix + sessionID
}
