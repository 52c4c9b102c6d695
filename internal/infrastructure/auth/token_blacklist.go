package auth

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist invalidates tokens before they expire: single tokens on
// logout and every token of a subject after a password reset.
type TokenBlacklist interface {
	// Revoke blacklists a token ID until ttl elapses
	Revoke(ctx context.Context, jti string, ttl time.Duration) error

	// IsRevoked checks if a token ID is blacklisted
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// RevokeSubject rejects every token of the subject issued up to now
	RevokeSubject(ctx context.Context, subject string, ttl time.Duration) error

	// IsSubjectRevoked reports whether a token issued at issuedAt predates the subject revocation
	IsSubjectRevoked(ctx context.Context, subject string, issuedAt time.Time) (bool, error)
}

// RedisTokenBlacklist implements TokenBlacklist using Redis
type RedisTokenBlacklist struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisTokenBlacklist creates a token blacklist on an existing Redis client
func NewRedisTokenBlacklist(client *redis.Client) *RedisTokenBlacklist {
	return &RedisTokenBlacklist{
		client:    client,
		keyPrefix: "flora:token:revoked:",
	}
}

func (b *RedisTokenBlacklist) jtiKey(jti string) string {
	return b.keyPrefix + "jti:" + jti
}

func (b *RedisTokenBlacklist) subjectKey(subject string) string {
	return b.keyPrefix + "sub:" + subject
}

// Revoke adds a token's JTI to the blacklist
func (b *RedisTokenBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := b.client.Set(ctx, b.jtiKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked checks if a token's JTI is in the blacklist
func (b *RedisTokenBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := b.client.Exists(ctx, b.jtiKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return exists > 0, nil
}

// RevokeSubject stores the revocation time for the subject
func (b *RedisTokenBlacklist) RevokeSubject(ctx context.Context, subject string, ttl time.Duration) error {
	if err := b.client.Set(ctx, b.subjectKey(subject), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke subject tokens: %w", err)
	}
	return nil
}

// IsSubjectRevoked compares the token's issue time with the stored revocation time
func (b *RedisTokenBlacklist) IsSubjectRevoked(ctx context.Context, subject string, issuedAt time.Time) (bool, error) {
	raw, err := b.client.Get(ctx, b.subjectKey(subject)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check subject revocation: %w", err)
	}

	revokedAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("failed to parse revocation timestamp: %w", err)
	}
	return issuedAt.Unix() <= revokedAt, nil
}

var _ TokenBlacklist = (*RedisTokenBlacklist)(nil)

// InMemoryTokenBlacklist is used when Redis is not configured and in tests.
// Revocations are local to the process.
type InMemoryTokenBlacklist struct {
	mu       sync.Mutex
	jtis     map[string]time.Time // JTI -> expiration
	subjects map[string]time.Time // subject -> revocation time
}

// NewInMemoryTokenBlacklist creates a new in-memory token blacklist
func NewInMemoryTokenBlacklist() *InMemoryTokenBlacklist {
	return &InMemoryTokenBlacklist{
		jtis:     make(map[string]time.Time),
		subjects: make(map[string]time.Time),
	}
}

// Revoke adds a token's JTI to the in-memory blacklist
func (b *InMemoryTokenBlacklist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jtis[jti] = time.Now().Add(ttl)
	return nil
}

// IsRevoked checks if a token's JTI is blacklisted and not expired
func (b *InMemoryTokenBlacklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	expiration, exists := b.jtis[jti]
	if !exists {
		return false, nil
	}
	if time.Now().After(expiration) {
		delete(b.jtis, jti)
		return false, nil
	}
	return true, nil
}

// RevokeSubject records the revocation time for the subject
func (b *InMemoryTokenBlacklist) RevokeSubject(_ context.Context, subject string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subjects[subject] = time.Now()
	return nil
}

// IsSubjectRevoked compares the token's issue time with the revocation time
func (b *InMemoryTokenBlacklist) IsSubjectRevoked(_ context.Context, subject string, issuedAt time.Time) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	revokedAt, exists := b.subjects[subject]
	if !exists {
		return false, nil
	}
	return !issuedAt.After(revokedAt), nil
}

var _ TokenBlacklist = (*InMemoryTokenBlacklist)(nil)
