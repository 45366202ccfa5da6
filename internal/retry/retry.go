// Package retry runs remote calls with a per-attempt timeout and exponential
// backoff on transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/Lllllllleong/docsummaryflow/internal/config"
	"github.com/Lllllllleong/docsummaryflow/internal/models"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Policy configures Do. MaxRetries counts retries after the first attempt.
type Policy struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	CallTimeout time.Duration
}

// FromConfig derives a Policy from the pipeline configuration.
func FromConfig(p config.PipelineConfig) Policy {
	return Policy{
		MaxRetries:  p.MaxRetries,
		BaseBackoff: p.RetryBackoffBase,
		MaxBackoff:  p.RetryBackoffMax,
		CallTimeout: p.CallTimeout,
	}
}

// Backoff returns the wait before retry number attempt (0-based):
// BaseBackoff * 2^attempt, capped at MaxBackoff.
func (p Policy) Backoff(attempt int) time.Duration {
	backoff := float64(p.BaseBackoff) * math.Pow(2, float64(attempt))
	if p.MaxBackoff > 0 && backoff > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	return time.Duration(backoff)
}

// Do calls fn until it succeeds, fails with a non-transient error, or the
// retries are used up. It returns the number of attempts made.
// Cancellation of ctx stops further attempts; an in-flight call is bounded by
// CallTimeout.
func Do(ctx context.Context, p Policy, logger *slog.Logger, op string, fn func(ctx context.Context) error) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempts, err
		}

		attempts++
		err := call(ctx, p.CallTimeout, fn)
		if err == nil {
			return attempts, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return attempts, ctx.Err()
		}
		if !IsTransient(err) {
			return attempts, err
		}
		if attempt == p.MaxRetries {
			break
		}

		backoff := p.Backoff(attempt)
		logger.Warn(
			"Call failed, will retry.",
			"operation", op,
			"attempt", attempts,
			"maxRetries", p.MaxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			logger.Warn("Context cancelled during backoff. Aborting retries.", "operation", op, "error", ctx.Err())
			return attempts, ctx.Err()
		}
	}

	return attempts, &ExhaustedError{Op: op, Attempts: attempts, Err: lastErr}
}

func call(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}

// ExhaustedError is returned when every attempt failed transiently.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying: rate limits, server
// errors, unavailable backends and per-call timeouts. Input errors and
// content-policy rejections are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	switch models.KindOf(err) {
	case models.KindExtractionTransient, models.KindSummarizationTransient:
		return true
	case "":
	default:
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return IsTransientStatus(gerr.Code)
	}

	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
			return true
		}
		return false
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return false
}

// IsTransientStatus reports whether an HTTP status code signals a retryable failure.
func IsTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
