// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// approval.go provides a Valkey-backed cache for public approval-page
// payloads. Approval links are opened by clients without accounts and can
// be refreshed aggressively, so the assembled JSON is cached per token and
// invalidated whenever a demand on that token changes.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// approvalKeyPrefix is the Valkey key prefix for cached approval payloads.
	approvalKeyPrefix = "approval:"

	// DefaultApprovalTTL is how long an approval payload stays cached.
	DefaultApprovalTTL = 2 * time.Minute
)

// ApprovalCache manages approval-page payload caching in Valkey.
type ApprovalCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewApprovalCache creates a new approval cache backed by the given Valkey client.
func NewApprovalCache(client *redis.Client, ttl time.Duration) *ApprovalCache {
	if ttl == 0 {
		ttl = DefaultApprovalTTL
	}
	return &ApprovalCache{client: client, ttl: ttl}
}

// Get retrieves the cached payload for an approval token. Returns false on miss.
func (ac *ApprovalCache) Get(ctx context.Context, token string) ([]byte, bool) {
	val, err := ac.client.Get(ctx, approvalKeyPrefix+token).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("approval cache get error", "error", err)
		return nil, false
	}
	return val, true
}

// Set stores the assembled payload for an approval token with the configured TTL.
func (ac *ApprovalCache) Set(ctx context.Context, token string, payload []byte) {
	if err := ac.client.Set(ctx, approvalKeyPrefix+token, payload, ac.ttl).Err(); err != nil {
		slog.Warn("approval cache set error", "error", err)
	}
}

// Invalidate removes the cached payload for one token. Called whenever a
// demand carrying the token is mutated so approvers never act on stale data.
func (ac *ApprovalCache) Invalidate(ctx context.Context, token string) {
	if err := ac.client.Del(ctx, approvalKeyPrefix+token).Err(); err != nil {
		slog.Warn("approval cache invalidate error", "error", err)
	}
}
