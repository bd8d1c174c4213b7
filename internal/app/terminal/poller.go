package terminal

import (
	"context"
	"math"
	"math/rand"
	"time"

	"francoggm/terminal-payments-demo/internal/models"
)

const maxJitter = 100 * time.Millisecond

type PollConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Timeout         time.Duration
	MaxAttempts     int
}

func (c PollConfig) withDefaults() PollConfig {
	if c.InitialInterval <= 0 {
		c.InitialInterval = 250 * time.Millisecond
	}
	if c.MaxInterval < c.InitialInterval {
		c.MaxInterval = c.InitialInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 120
	}
	return c
}

// backoff returns the wait before poll number attempt (0-based): the initial
// interval doubled per attempt, capped, plus jitter.
func (c PollConfig) backoff(attempt int) time.Duration {
	delay := c.MaxInterval
	if attempt < 32 {
		if d := time.Duration(math.Pow(2, float64(attempt))) * c.InitialInterval; d > 0 && d < delay {
			delay = d
		}
	}

	jitterCap := min(maxJitter, delay/2)
	if jitterCap <= 0 {
		return delay
	}

	return delay + time.Duration(rand.Int63n(int64(jitterCap)))
}

// waitForAction re-fetches the reader until its action leaves in_progress.
// It gives up with ErrPollTimeout after the configured attempts or timeout;
// cancellation of ctx itself is returned as is.
func (s *Service) waitForAction(ctx context.Context, readerID string, reader *models.Reader) (*models.Reader, error) {
	pollCtx, cancel := context.WithTimeout(ctx, s.poll.Timeout)
	defer cancel()

	for attempt := 0; reader.ActionStatus() == models.ActionStatusInProgress; attempt++ {
		if attempt >= s.poll.MaxAttempts {
			return reader, ErrPollTimeout
		}

		if err := sleepOrDone(pollCtx, s.poll.backoff(attempt)); err != nil {
			return reader, pollError(ctx)
		}

		next, err := s.provider.GetReader(pollCtx, readerID)
		if err != nil {
			if pollCtx.Err() != nil {
				return reader, pollError(ctx)
			}
			return reader, err
		}

		pollAttemptsTotal.Inc()
		reader = next
	}

	return reader, nil
}

func pollError(parent context.Context) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	return ErrPollTimeout
}

// sleepOrDone waits for d or returns early when ctx is done.
func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
