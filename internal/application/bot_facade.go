package application

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"

	"mpesa-commerce-bot/internal/domain/model"
	"mpesa-commerce-bot/internal/infra/logging"
	"mpesa-commerce-bot/internal/infra/metrics"
	"mpesa-commerce-bot/internal/usecase"
)

// BotFacade is the single entry point the transports call into: chat events from the
// messaging adapter and payment outcomes from the callback endpoint.
type BotFacade struct {
	Flow     usecase.FlowUseCase
	Payments usecase.PaymentUseCase
	log      *zerolog.Logger
}

func NewBotFacade(flow usecase.FlowUseCase, payments usecase.PaymentUseCase, logger *zerolog.Logger) *BotFacade {
	return &BotFacade{Flow: flow, Payments: payments, log: logger}
}

// HandleEvent runs one chat event through the flow. A panic in a transition is contained
// to this event and reported as an error.
func (b *BotFacade) HandleEvent(ctx context.Context, ev model.Event) (err error) {
	ctx = logging.WithChatID(ctx, ev.ConversationID)
	defer func() {
		if r := recover(); r != nil {
			metrics.IncFlowPanic()
			logging.With(ctx, b.log).Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Str("event", string(ev.Kind)).
				Msg("flow panicked")
			err = fmt.Errorf("flow panic: %v", r)
		}
	}()
	if err := b.Flow.Handle(ctx, ev); err != nil {
		logging.With(ctx, b.log).Error().Err(err).Str("event", string(ev.Kind)).Msg("failed to handle event")
		return err
	}
	return nil
}

// HandleCallback applies a parsed provider outcome. It reports whether the outcome
// matched a waiting conversation.
func (b *BotFacade) HandleCallback(ctx context.Context, outcome model.PaymentOutcome) (bool, error) {
	ctx = logging.WithTxID(ctx, outcome.TransactionID)
	applied, err := b.Payments.Reconcile(ctx, outcome)
	if err != nil {
		logging.With(ctx, b.log).Error().Err(err).Msg("failed to reconcile payment")
		return false, err
	}
	return applied, nil
}
