// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"hostboard/internal/probe"
)

const (
	lockKey    = "hostboard:check:lock"
	summaryKey = "hostboard:check:last"

	// DefaultLockTTL caps how long a crashed instance can block bulk checks.
	// A running check renews the lock, so it may take longer than this.
	DefaultLockTTL = 5 * time.Minute

	// DefaultSummaryTTL is how long the last bulk check summary is kept.
	DefaultSummaryTTL = 24 * time.Hour
)

// unlockScript deletes the lock only if it still carries our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript resets the lock expiry only if it still carries our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// CheckState coordinates bulk checks through Valkey. It implements
// probe.Locker and probe.Recorder.
type CheckState struct {
	client     *redis.Client
	lockTTL    time.Duration
	summaryTTL time.Duration

	mu    sync.Mutex
	token string
}

// NewCheckState returns a CheckState backed by client. Zero TTLs use the
// defaults.
func NewCheckState(client *redis.Client, lockTTL, summaryTTL time.Duration) *CheckState {
	if lockTTL == 0 {
		lockTTL = DefaultLockTTL
	}
	if summaryTTL == 0 {
		summaryTTL = DefaultSummaryTTL
	}
	return &CheckState{client: client, lockTTL: lockTTL, summaryTTL: summaryTTL}
}

// TryLock takes the bulk check lock. It reports false when another holder
// has it.
func (s *CheckState) TryLock(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, lockKey, token, s.lockTTL).Result()
	if err != nil {
		return false, err
	}
	if ok {
		s.mu.Lock()
		s.token = token
		s.mu.Unlock()
	}
	return ok, nil
}

// LockTTL is the expiry given to the lock on every TryLock and Refresh.
func (s *CheckState) LockTTL() time.Duration {
	return s.lockTTL
}

// Refresh resets the expiry of the lock taken by the last successful
// TryLock. It reports false when the lock expired or passed to another
// holder.
func (s *CheckState) Refresh(ctx context.Context) (bool, error) {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token == "" {
		return false, nil
	}
	n, err := refreshScript.Run(ctx, s.client, []string{lockKey}, token, s.lockTTL.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Unlock releases the lock taken by the last successful TryLock.
func (s *CheckState) Unlock(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	s.token = ""
	s.mu.Unlock()
	if token == "" {
		return nil
	}
	return unlockScript.Run(ctx, s.client, []string{lockKey}, token).Err()
}

// Record stores s as the last bulk check summary. Failures are logged.
func (s *CheckState) Record(ctx context.Context, sum *probe.Summary) {
	data, err := json.Marshal(sum)
	if err != nil {
		slog.Warn("encode check summary", "error", err)
		return
	}
	if err := s.client.Set(ctx, summaryKey, data, s.summaryTTL).Err(); err != nil {
		slog.Warn("check summary cache set error", "error", err)
	}
}

// Last returns the most recent bulk check summary, if one is cached.
func (s *CheckState) Last(ctx context.Context) (*probe.Summary, bool) {
	data, err := s.client.Get(ctx, summaryKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("check summary cache get error", "error", err)
		return nil, false
	}
	var sum probe.Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		slog.Warn("decode check summary", "error", err)
		return nil, false
	}
	return &sum, true
}
