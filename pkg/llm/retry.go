package llm

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/openskills/skillagent/pkg/logger"
	llmtypes "github.com/openskills/skillagent/pkg/types/llm"
)

type retryingClient struct {
	next   llmtypes.Client
	config llmtypes.RetryConfig
}

// WithRetry wraps next so that transient failures are retried according to
// config. When next implements llmtypes.RetryClassifier only errors it
// reports as retryable are retried; otherwise every error except
// cancellation is. Requests with NoRetry set get a single attempt.
func WithRetry(next llmtypes.Client, config llmtypes.RetryConfig) llmtypes.Client {
	if config.Attempts <= 1 {
		return next
	}
	return &retryingClient{next: next, config: config}
}

func (c *retryingClient) Chat(ctx context.Context, req llmtypes.Request) (*llmtypes.Response, error) {
	if req.NoRetry {
		return c.next.Chat(ctx, req)
	}

	var delayType retry.DelayTypeFunc
	switch c.config.BackoffType {
	case "fixed":
		delayType = retry.FixedDelay
	default:
		delayType = retry.BackOffDelay
	}

	var attempts int
	resp, err := retry.DoWithData(
		func() (*llmtypes.Response, error) {
			attempts++
			return c.next.Chat(ctx, req)
		},
		retry.RetryIf(c.retryable),
		retry.Attempts(uint(c.config.Attempts)),
		retry.Delay(time.Duration(c.config.InitialDelay)*time.Millisecond),
		retry.MaxDelay(time.Duration(c.config.MaxDelay)*time.Millisecond),
		retry.DelayType(delayType),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).
				WithField("attempt", n+1).
				WithField("max_attempts", c.config.Attempts).
				Warn("retrying chat request")
		}),
	)
	if err != nil {
		if attempts > 1 {
			return nil, errors.Wrapf(err, "chat failed after %d attempts", attempts)
		}
		return nil, err
	}
	return resp, nil
}

func (c *retryingClient) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if classifier, ok := c.next.(llmtypes.RetryClassifier); ok {
		return classifier.IsRetryable(err)
	}
	return true
}
