package container

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/fooder/fooder/internal/infrastructure/config"
	"github.com/fooder/fooder/pkg/errors"
)

// Retry constructs a component under the startup retry budget: up to
// MaxAttempts tries with a constant RetryDelay between them. Configuration
// errors are permanent and returned after the first attempt.
func Retry[T any](
	ctx context.Context,
	cfg config.StartupConfig,
	log *zap.Logger,
	component string,
	construct func(ctx context.Context) (T, error),
) (T, error) {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.RetryDelay), uint64(attempts-1)),
		ctx,
	)

	attempt := 0
	operation := func() (T, error) {
		attempt++
		value, err := construct(ctx)
		if err != nil && errors.Is(err, errors.CodeConfiguration) {
			return value, backoff.Permanent(err)
		}
		return value, err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("Component construction failed, retrying",
			zap.String("component", component),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}

	value, err := backoff.RetryNotifyWithData(operation, policy, notify)
	if err != nil {
		log.Error("Component construction failed",
			zap.String("component", component),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
	}
	return value, err
}
