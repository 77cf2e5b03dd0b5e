package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mpesa-commerce-bot/internal/infra/metrics"
)

// PaymentExpirer fails payment requests the provider never called back about.
type PaymentExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time) (int, error)
}

// ConversationExpirer drops abandoned conversations.
type ConversationExpirer interface {
	ExpireIdle(ctx context.Context, cutoff time.Time) (int, error)
}

// ExpiryWorker periodically times out pending payments and drops idle conversations.
// A zero pendingTimeout leaves payment requests waiting indefinitely.
type ExpiryWorker struct {
	interval       time.Duration
	pendingTimeout time.Duration
	idleTTL        time.Duration
	payments       PaymentExpirer
	conversations  ConversationExpirer
	now            func() time.Time
	log            *zerolog.Logger
}

func NewExpiryWorker(interval, pendingTimeout, idleTTL time.Duration, payments PaymentExpirer, conversations ConversationExpirer, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval:       interval,
		pendingTimeout: pendingTimeout,
		idleTTL:        idleTTL,
		payments:       payments,
		conversations:  conversations,
		now:            time.Now,
		log:            &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().
		Dur("interval", w.interval).
		Dur("pending_timeout", w.pendingTimeout).
		Dur("idle_ttl", w.idleTTL).
		Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Payments go first so a timed-out request leaves a fresh
// PaymentFailed record rather than an idle one.
func (w *ExpiryWorker) Sweep(ctx context.Context) {
	now := w.now()
	if w.pendingTimeout > 0 {
		n, err := w.payments.ExpireStale(ctx, now.Add(-w.pendingTimeout))
		if err != nil {
			w.log.Error().Err(err).Msg("payment expiry error")
		}
		if n > 0 {
			w.log.Info().Int("count", n).Msg("pending payments timed out")
		}
	}
	if w.idleTTL > 0 {
		n, err := w.conversations.ExpireIdle(ctx, now.Add(-w.idleTTL))
		if err != nil {
			w.log.Error().Err(err).Msg("conversation expiry error")
		}
		if n > 0 {
			metrics.AddConversationsExpired(n)
			w.log.Info().Int("count", n).Msg("idle conversations dropped")
		}
	}
}
