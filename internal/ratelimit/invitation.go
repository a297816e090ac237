package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/sitedock/sitedock/internal/config"
)

const keyInvitationToken = "invitation:token:%s"

// InvitationLimiter throttles the unauthenticated invitation token endpoints
// per client address. Token lookups are the only surface reachable without a
// session, so they are the only surface worth brute-forcing.
type InvitationLimiter struct {
	enabled  bool
	bucket   *TokenBucket
	workflow *config.WorkflowConfigHolder
}

func NewInvitationLimiter(cfg config.Config, workflow *config.WorkflowConfigHolder) *InvitationLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return &InvitationLimiter{enabled: false}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	return &InvitationLimiter{
		enabled:  true,
		bucket:   NewTokenBucket(client),
		workflow: workflow,
	}
}

func (l *InvitationLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *InvitationLimiter) AllowClient(ctx context.Context, clientAddr string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	wf := l.workflow.Current()
	rate := float64(wf.TokenRatePerMinute) / 60.0
	return l.bucket.Allow(ctx, fmt.Sprintf(keyInvitationToken, strings.TrimSpace(clientAddr)), rate, wf.TokenBurst)
}
