package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/booking-engine/internal/domain"
	"github.com/kursadbilgin/booking-engine/internal/observability"
	"github.com/kursadbilgin/booking-engine/internal/provider"
	"github.com/kursadbilgin/booking-engine/internal/ratelimit"
	"github.com/kursadbilgin/booking-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultCycleInterval = 30 * time.Second
	defaultCycleLimit    = 100
	defaultSendTimeout   = 10 * time.Second
)

// CycleStats summarizes one retry-engine pass over the due notifications.
type CycleStats struct {
	Processed   int
	Succeeded   int
	Failed      int
	Rescheduled int
}

// RetryEngine delivers due notifications and applies per-channel retry
// budgets. Each due notification is claimed with a conditional status update
// before the notifier is invoked, so overlapping cycles (or multiple engine
// instances) never double-send. Running a cycle twice at the same instant is
// a no-op the second time: the first cycle leaves nothing both pending and
// due.
type RetryEngine struct {
	notifications repository.NotificationRepository
	attempts      repository.AttemptRepository
	notifier      provider.Provider
	rateLimiter   ratelimit.RateLimiter
	policies      map[domain.Channel]domain.RetryPolicy
	logger        *zap.Logger
	metrics       *observability.Metrics
	interval      time.Duration
	limit         int
	sendTimeout   time.Duration
	now           func() time.Time
}

func NewRetryEngine(
	notifications repository.NotificationRepository,
	attempts repository.AttemptRepository,
	notifier provider.Provider,
	rateLimiter ratelimit.RateLimiter,
	policies map[domain.Channel]domain.RetryPolicy,
	interval time.Duration,
	limit int,
	sendTimeout time.Duration,
	logger *zap.Logger,
) (*RetryEngine, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if rateLimiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if len(policies) == 0 {
		policies = domain.DefaultRetryPolicies()
	}
	if interval <= 0 {
		interval = defaultCycleInterval
	}
	if limit <= 0 {
		limit = defaultCycleLimit
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetryEngine{
		notifications: notifications,
		attempts:      attempts,
		notifier:      notifier,
		rateLimiter:   rateLimiter,
		policies:      policies,
		logger:        logger,
		interval:      interval,
		limit:         limit,
		sendTimeout:   sendTimeout,
		now:           time.Now,
	}, nil
}

func (e *RetryEngine) SetMetrics(metrics *observability.Metrics) {
	if e == nil {
		return
	}
	e.metrics = metrics
}

// Start runs delivery cycles until context cancellation.
func (e *RetryEngine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial cycle so already-due notifications do not wait for the
	// first ticker edge.
	if _, err := e.RunCycle(ctx); err != nil && ctx.Err() == nil {
		e.logger.Error("initial delivery cycle failed", zap.Error(err))
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := e.RunCycle(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				e.logger.Error("delivery cycle failed", zap.Error(err))
			}
		}
	}
}

// RunCycle fetches due pending notifications (most urgent first) and attempts
// delivery for each. A failing notifier call never aborts the cycle; every
// outcome lands in the notification's status and in a delivery attempt row.
func (e *RetryEngine) RunCycle(ctx context.Context) (CycleStats, error) {
	var stats CycleStats

	cycleStart := e.now()
	due, err := e.notifications.FindDue(ctx, cycleStart, e.limit)
	if err != nil {
		return stats, fmt.Errorf("failed to fetch due notifications: %w", err)
	}

	for i := range due {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		outcome, err := e.deliver(ctx, due[i].ID)
		if err != nil {
			e.logger.Error("delivery bookkeeping failed",
				zap.String("notificationId", due[i].ID),
				zap.Error(err),
			)
			continue
		}

		switch outcome {
		case outcomeSkipped:
		case outcomeSent:
			stats.Processed++
			stats.Succeeded++
		case outcomeRescheduled:
			stats.Processed++
			stats.Rescheduled++
		case outcomeFailed:
			stats.Processed++
			stats.Failed++
		}
	}

	if e.metrics != nil {
		e.metrics.ObserveCycleDuration(e.now().Sub(cycleStart))
	}
	return stats, nil
}

type deliveryOutcome int

const (
	outcomeSkipped deliveryOutcome = iota
	outcomeSent
	outcomeRescheduled
	outcomeFailed
)

func (e *RetryEngine) deliver(ctx context.Context, id string) (deliveryOutcome, error) {
	notification, err := e.notifications.ClaimForSending(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			e.logger.Warn("notification vanished before claim, skipping",
				zap.String("notificationId", id),
			)
			return outcomeSkipped, nil
		}
		return outcomeSkipped, fmt.Errorf("failed to claim notification: %w", err)
	}

	// Nil means another cycle claimed it, or it was cancelled meanwhile.
	if notification == nil {
		return outcomeSkipped, nil
	}

	channelName := strings.ToLower(notification.Channel.String())
	if err := e.rateLimiter.Wait(ctx, channelName); err != nil {
		// Put the claim back so the next cycle picks it up; the attempt never
		// reached the notifier, so the retry count must not move.
		if restoreErr := e.notifications.ReleaseClaim(ctx, notification.ID); restoreErr != nil {
			return outcomeSkipped, fmt.Errorf("rate limiter wait failed: %w (release failed: %v)", err, restoreErr)
		}
		return outcomeSkipped, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	attemptNumber := notification.RetryCount + 1
	sendStart := e.now()
	sendCtx, cancel := context.WithTimeout(ctx, e.sendTimeout)
	resp, sendErr := e.notifier.Send(sendCtx, *notification)
	cancel()
	if e.metrics != nil {
		e.metrics.ObserveNotificationSendDuration(channelName, e.now().Sub(sendStart))
	}

	if err := e.recordAttempt(ctx, notification.ID, attemptNumber, resp, sendErr); err != nil {
		return outcomeSkipped, fmt.Errorf("failed to record delivery attempt: %w", err)
	}

	if sendErr == nil {
		if err := e.notifications.MarkSent(ctx, notification.ID, e.now()); err != nil {
			return outcomeSkipped, fmt.Errorf("failed to mark notification sent: %w", err)
		}
		if e.metrics != nil {
			e.metrics.IncNotificationSent(channelName)
		}
		return outcomeSent, nil
	}

	// A rejected recipient or malformed payload will not heal with time.
	if !provider.IsTransient(sendErr) {
		if err := e.notifications.MarkFailed(ctx, notification.ID, sendErr.Error()); err != nil {
			return outcomeSkipped, fmt.Errorf("failed to mark notification failed: %w", err)
		}
		if e.metrics != nil {
			e.metrics.IncNotificationFailed(channelName, "permanent")
		}
		e.logger.Error("delivery failed permanently",
			zap.String("notificationId", notification.ID),
			zap.Error(sendErr),
		)
		return outcomeFailed, nil
	}

	policy, ok := e.policies[notification.Channel]
	if !ok {
		policy = domain.DefaultRetryPolicies()[notification.Channel]
	}

	// A timed-out send counts against the retry budget like any other
	// delivery failure.
	if notification.RetryCount < policy.MaxRetries {
		delay := policy.DelayFor(notification.RetryCount)
		nextAt := e.now().Add(delay)
		if err := e.notifications.RescheduleForRetry(ctx, notification.ID, nextAt, sendErr.Error()); err != nil {
			return outcomeSkipped, fmt.Errorf("failed to reschedule notification: %w", err)
		}
		if e.metrics != nil {
			e.metrics.IncRetryScheduled(channelName)
		}
		e.logger.Warn("delivery failed, retry scheduled",
			zap.String("notificationId", notification.ID),
			zap.Int("retryCount", notification.RetryCount+1),
			zap.Duration("delay", delay),
			zap.Error(sendErr),
		)
		return outcomeRescheduled, nil
	}

	if err := e.notifications.MarkFailed(ctx, notification.ID, sendErr.Error()); err != nil {
		return outcomeSkipped, fmt.Errorf("failed to mark notification failed: %w", err)
	}
	if e.metrics != nil {
		e.metrics.IncNotificationFailed(channelName, "retry_exhausted")
	}
	e.logger.Error("delivery retries exhausted",
		zap.String("notificationId", notification.ID),
		zap.Int("retryCount", notification.RetryCount),
		zap.Error(sendErr),
	)
	return outcomeFailed, nil
}

func (e *RetryEngine) recordAttempt(
	ctx context.Context,
	notificationID string,
	attemptNumber int,
	resp *provider.ProviderResponse,
	sendErr error,
) error {
	var statusCode *int
	var responseBody *string
	var attemptErr *string

	if resp != nil {
		if resp.StatusCode > 0 {
			value := resp.StatusCode
			statusCode = &value
		}
		if body := strings.TrimSpace(resp.Body); body != "" {
			value := resp.Body
			responseBody = &value
		}
	}

	if sendErr != nil {
		value := sendErr.Error()
		attemptErr = &value

		var providerErr *provider.ProviderError
		if errors.As(sendErr, &providerErr) && providerErr.StatusCode > 0 && statusCode == nil {
			value := providerErr.StatusCode
			statusCode = &value
		}
	}

	attempt := &domain.DeliveryAttempt{
		ID:             uuid.NewString(),
		NotificationID: notificationID,
		AttemptNumber:  attemptNumber,
		StatusCode:     statusCode,
		ResponseBody:   responseBody,
		Error:          attemptErr,
		CreatedAt:      e.now().UTC(),
	}

	return e.attempts.Create(ctx, attempt)
}
