package services

import (
	"context"
	"errors"
	"time"

	"bridgeus/internal/config"
	"bridgeus/internal/store"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryPolicy retries idempotent workflow steps on transient failures
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxElapsed      time.Duration
}

// NewRetryPolicy builds a policy from the workflow configuration
func NewRetryPolicy(cfg config.WorkflowConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:      cfg.StepRetries,
		InitialInterval: cfg.StepInitialBackoff,
		MaxElapsed:      cfg.StepMaxElapsed,
	}
}

// DefaultRetryPolicy is used when no configuration is supplied
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialInterval: 200 * time.Millisecond, MaxElapsed: 5 * time.Second}
}

// NoRetry runs each step once
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// retryable reports whether err is worth another attempt
func retryable(err error) bool {
	return errors.Is(err, store.ErrUnavailable) || IsNetworkError(err)
}

// Do runs op until it succeeds, fails permanently, or the policy is
// exhausted. Only store.ErrUnavailable failures are retried.
func (p RetryPolicy) Do(ctx context.Context, logger *zap.Logger, step string, op func(context.Context) error) error {
	if p.MaxRetries <= 0 {
		return op(ctx)
	}

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxElapsed > 0 {
		b.MaxElapsedTime = p.MaxElapsed
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil || retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("Workflow step failed, retrying",
			zap.String("step", step),
			zap.Int("attempt", attempt),
			zap.Duration("next_retry", next),
			zap.Error(err),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxRetries)), ctx)
	return backoff.RetryNotify(operation, policy, notify)
}
