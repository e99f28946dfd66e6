// Package ai implements the multi-provider AI helper (C4): a generate()
// contract backed by three providers, each with its own minimum
// inter-call spacing and rate-limit retry.
package ai

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/taskexec-worker/internal/domain"
)

// provider is the internal shape every concrete AI backend implements.
// It is distinct from domain.AIClient: Helper is the thing that
// satisfies domain.AIClient, by fanning out across providers.
type provider interface {
	name() string
	generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error)
}

// rateLimiter enforces a minimum spacing between calls to a single
// provider using a monotonic last-call timestamp, grounded on the
// teacher's lastORCall/lastGroqCall atomic.Int64 client fields.
type rateLimiter struct {
	lastCallNanos atomic.Int64 // monotonic nanos since base, plus one; 0 = never called
	minInterval   time.Duration
	base          time.Time
}

func newRateLimiter(minInterval time.Duration) *rateLimiter {
	return &rateLimiter{minInterval: minInterval, base: time.Now()}
}

func (r *rateLimiter) wait(ctx context.Context) error {
	if r.minInterval <= 0 {
		return nil
	}
	for {
		prev := r.lastCallNanos.Load()
		now := int64(time.Since(r.base)) + 1
		if prev == 0 {
			if r.lastCallNanos.CompareAndSwap(0, now) {
				return nil
			}
			continue
		}
		elapsed := time.Duration(now - prev)
		if elapsed >= r.minInterval {
			if r.lastCallNanos.CompareAndSwap(prev, now) {
				return nil
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.minInterval - elapsed):
		}
	}
}

// isRateLimitSignal classifies a provider error as a rate/quota signal,
// the same substring heuristic the original helper used ("rate",
// "quota", "429").
func isRateLimitSignal(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate") || strings.Contains(msg, "quota") || strings.Contains(msg, "429")
}

// withRateLimitRetry retries call up to 3 attempts with exponential
// backoff capped [2s,10s] whenever call's error is a rate-limit signal;
// any other error returns immediately so the caller can fall through to
// the next provider.
func withRateLimitRetry(ctx context.Context, call func() (string, error)) (string, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 2 * time.Second
	expo.MaxInterval = 10 * time.Second
	expo.Multiplier = 2
	expo.MaxElapsedTime = 0

	attempts := 0
	var result string

	op := func() error {
		attempts++
		out, err := call()
		if err == nil {
			result = out
			return nil
		}
		if isRateLimitSignal(err) && attempts < 3 {
			return err
		}
		return backoff.Permanent(err)
	}

	boWithCtx := backoff.WithContext(backoff.WithMaxRetries(expo, 2), ctx)
	err := backoff.Retry(op, boWithCtx)
	if err != nil {
		return "", err
	}
	return result, nil
}
