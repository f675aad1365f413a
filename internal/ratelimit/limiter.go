package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter implements fixed-window per-IP limits and per-email cooldowns in Redis.
type Limiter struct {
	client        *redis.Client
	ipLimit       int
	ipWindow      time.Duration
	emailCooldown time.Duration
}

func NewLimiter(client *redis.Client, ipLimit int, ipWindow, emailCooldown time.Duration) *Limiter {
	return &Limiter{
		client:        client,
		ipLimit:       ipLimit,
		ipWindow:      ipWindow,
		emailCooldown: emailCooldown,
	}
}

func ipKey(ip, purpose string) string {
	return fmt.Sprintf("ratelimit:ip:%s:%s", purpose, ip)
}

func emailKey(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(email)))
	return fmt.Sprintf("ratelimit:email:%s", hex.EncodeToString(sum[:]))
}

// CheckIPRateLimitWithPurpose reports whether ip has used up its window for purpose.
func (l *Limiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	count, err := l.client.Get(ctx, ipKey(ip, purpose)).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read IP counter: %w", err)
	}
	return count >= l.ipLimit, nil
}

// RecordIPRequestWithPurpose counts one request; the window starts at the first one.
func (l *Limiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	key := ipKey(ip, purpose)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to record IP request: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.ipWindow).Err(); err != nil {
			return fmt.Errorf("failed to set IP window: %w", err)
		}
	}
	return nil
}

// CheckEmailCooldown reports whether a code was requested for email recently.
func (l *Limiter) CheckEmailCooldown(ctx context.Context, email string) (bool, error) {
	if l.emailCooldown <= 0 {
		return false, nil
	}
	n, err := l.client.Exists(ctx, emailKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check email cooldown: %w", err)
	}
	return n > 0, nil
}

// SetEmailCooldown starts the cooldown for email.
func (l *Limiter) SetEmailCooldown(ctx context.Context, email string) error {
	if l.emailCooldown <= 0 {
		return nil
	}
	if err := l.client.Set(ctx, emailKey(email), 1, l.emailCooldown).Err(); err != nil {
		return fmt.Errorf("failed to set email cooldown: %w", err)
	}
	return nil
}
