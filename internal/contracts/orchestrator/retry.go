// internal/contracts/orchestrator/retry.go
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"home-contracts/internal/common/errors"
	"home-contracts/internal/common/logger"
)

// withRetry attempts an operation with exponential backoff. Only errors the
// taxonomy marks retryable are attempted again; a definitive provider 4xx or
// validation failure returns immediately.
func withRetry(ctx context.Context, log logger.Logger, operationName string, maxRetries int, initialDelay time.Duration, operation func(ctx context.Context) error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation(ctx)
		if err == nil {
			return nil
		}
		if !errors.IsRetryable(err) {
			return err
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return errors.NewTransportError(operationName, ctx.Err())
			}
			delay *= 2
		}
	}

	return err
}
