package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/domain"
	"github.com/drover-dev/drover/internal/ports"
)

// retryCompleter retries the wrapped completer with exponential
// backoff between the configured min and max waits, honoring context
// cancellation between attempts.
type retryCompleter struct {
	inner ports.Completer
	cfg   config.LLMConfig
}

func withRetry(inner ports.Completer, cfg config.LLMConfig) ports.Completer {
	if cfg.NumRetries <= 0 {
		return inner
	}
	return &retryCompleter{inner: inner, cfg: cfg}
}

func (r *retryCompleter) Complete(ctx context.Context, msgs []domain.Message) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(r.cfg.RetryMinWait) * time.Second
	bo.MaxInterval = time.Duration(r.cfg.RetryMaxWait) * time.Second
	bo.MaxElapsedTime = 0

	var reply string
	operation := func() error {
		var err error
		reply, err = r.inner.Complete(ctx, msgs)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(r.cfg.NumRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return reply, nil
}
