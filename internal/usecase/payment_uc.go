package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mpesa-commerce-bot/internal/domain"
	"mpesa-commerce-bot/internal/domain/model"
	"mpesa-commerce-bot/internal/domain/ports/adapter"
	"mpesa-commerce-bot/internal/domain/ports/repository"
	"mpesa-commerce-bot/internal/infra/logging"
	"mpesa-commerce-bot/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// PaymentUseCase correlates push-to-pay requests with their asynchronous callbacks.
type PaymentUseCase interface {
	// Initiate charges the record's price to phone. The caller must hold the conversation lock.
	// On success the transaction is indexed and rec.State becomes PaymentRequested.
	Initiate(ctx context.Context, rec *model.Conversation, phone, orderID string) (txID string, err error)
	// Reconcile applies a provider outcome. It reports false when the transaction is unknown,
	// already reconciled, or its conversation is gone.
	Reconcile(ctx context.Context, outcome model.PaymentOutcome) (bool, error)
	// Release drops an index entry whose conversation no longer waits on it.
	Release(ctx context.Context, txID string) error
	// ExpireStale fails every pending request created before cutoff.
	ExpireStale(ctx context.Context, cutoff time.Time) (int, error)
}

type PaymentOptions struct {
	AccountReference string
	Currency         string
	Dev              bool
}

type paymentUC struct {
	store    repository.ConversationStore
	pending  repository.PendingIndex
	gateway  adapter.PaymentGateway
	msg      adapter.Messenger
	renderer *PromptRenderer
	support  *SupportNotifier
	opts     PaymentOptions
	now      func() time.Time
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	store repository.ConversationStore,
	pending repository.PendingIndex,
	gateway adapter.PaymentGateway,
	msg adapter.Messenger,
	renderer *PromptRenderer,
	support *SupportNotifier,
	opts PaymentOptions,
	logger *zerolog.Logger,
) *paymentUC {
	if opts.Currency == "" {
		opts.Currency = "KES"
	}
	return &paymentUC{
		store:    store,
		pending:  pending,
		gateway:  gateway,
		msg:      msg,
		renderer: renderer,
		support:  support,
		opts:     opts,
		now:      time.Now,
		log:      logger,
	}
}

func (u *paymentUC) Initiate(ctx context.Context, rec *model.Conversation, phone, orderID string) (string, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Initiate")()
	log := logging.With(ctx, u.log)

	if rec.Price == nil {
		return "", domain.ErrPriceUndefined
	}
	// A new attempt never shares the index with the previous one.
	if prev := rec.PendingTransactionID(); prev != "" {
		_ = u.pending.Remove(ctx, prev)
	}

	name := ""
	if rec.Service != nil {
		name = rec.Service.Name
	}
	intent, err := u.gateway.RequestPayment(ctx, adapter.PaymentRequest{
		Amount:           *rec.Price,
		Phone:            phone,
		AccountReference: u.opts.AccountReference,
		Description:      name,
	})
	if err != nil {
		status := "unavailable"
		if errors.Is(err, domain.ErrProviderRejected) {
			status = "rejected"
		}
		metrics.IncPayment(status)
		log.Error().Err(err).Str("gateway", u.gateway.Name()).Str("order_id", orderID).Msg("payment request failed")
		return "", fmt.Errorf("request payment: %w", err)
	}
	if intent.TransactionID == "" {
		metrics.IncPayment("rejected")
		return "", &adapter.ProviderError{Kind: adapter.ProviderRejected, Message: "no transaction id in response"}
	}

	now := u.now()
	if err := u.pending.Put(ctx, model.PendingPayment{TransactionID: intent.TransactionID, ConversationID: rec.ID, CreatedAt: now}); err != nil {
		log.Error().Err(err).Str("tx_id", intent.TransactionID).Msg("failed to index transaction")
		return "", fmt.Errorf("index transaction: %w", err)
	}
	rec.State = model.PaymentRequested{TransactionID: intent.TransactionID, Phone: phone, OrderID: orderID, RequestedAt: now}

	metrics.IncPayment("initiated")
	u.observePending(ctx)
	log.Info().
		Str("tx_id", intent.TransactionID).
		Str("order_id", orderID).
		Str("phone", logging.Redact(phone, u.opts.Dev)).
		Msg("payment requested")
	u.support.Notify(ctx, "support.stk_initiated", rec.ID, phone, name, u.renderer.Money(*rec.Price), orderID, intent.TransactionID)
	return intent.TransactionID, nil
}

func (u *paymentUC) Reconcile(ctx context.Context, o model.PaymentOutcome) (bool, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Reconcile")()
	ctx = logging.WithTxID(ctx, o.TransactionID)

	// The entry stays indexed until the conversation lock is held, so a callback that
	// gives up waiting can be redelivered.
	entry, ok, err := u.pending.Get(ctx, o.TransactionID)
	if err != nil {
		return false, fmt.Errorf("look up pending transaction: %w", err)
	}
	if !ok {
		logging.With(ctx, u.log).Info().Err(domain.ErrUnknownTransaction).Int("result_code", o.ResultCode).Msg("callback discarded")
		return false, nil
	}

	ctx = logging.WithChatID(ctx, entry.ConversationID)
	log := logging.With(ctx, u.log)
	unlock, err := u.store.Lock(ctx, entry.ConversationID)
	if err != nil {
		return false, fmt.Errorf("lock conversation: %w", err)
	}
	defer unlock()

	// Take is the once-only gate between duplicate deliveries.
	if _, ok, err := u.pending.Take(ctx, o.TransactionID); err != nil {
		return false, fmt.Errorf("take pending transaction: %w", err)
	} else if !ok {
		log.Info().Msg("transaction reconciled concurrently, discarded")
		return false, nil
	}
	u.observePending(ctx)

	rec, err := u.store.Get(ctx, entry.ConversationID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Info().Msg("conversation gone before callback, discarded")
		return false, nil
	}
	if err != nil {
		u.restore(ctx, entry)
		return false, fmt.Errorf("load conversation: %w", err)
	}
	req, ok := rec.State.(model.PaymentRequested)
	if !ok || req.TransactionID != o.TransactionID {
		log.Info().Str("state", string(rec.State.Name())).Msg("conversation no longer waits on transaction, discarded")
		return false, nil
	}

	if o.Succeeded() {
		err = u.succeed(ctx, rec, req, o)
	} else {
		err = u.fail(ctx, rec, req, o)
	}
	if err != nil {
		u.restore(ctx, entry)
		return false, err
	}
	return true, nil
}

// restore re-indexes an entry whose outcome could not be committed, leaving the
// conversation waiting for a redelivery or the expiry sweep.
func (u *paymentUC) restore(ctx context.Context, entry model.PendingPayment) {
	if err := u.pending.Put(ctx, entry); err != nil {
		logging.With(ctx, u.log).Error().Err(err).Msg("failed to restore pending transaction")
		return
	}
	u.observePending(ctx)
}

func (u *paymentUC) succeed(ctx context.Context, rec *model.Conversation, req model.PaymentRequested, o model.PaymentOutcome) error {
	amount := *rec.Price
	if o.Amount != nil {
		amount = *o.Amount
	}
	payer := o.PayerPhone
	if payer == "" {
		payer = req.Phone
	}
	rec.State = model.PaymentSucceeded{OrderID: req.OrderID, ReceiptID: o.ReceiptID, PayerPhone: payer, Amount: amount}
	prompt := u.renderer.Render(rec)

	if err := u.store.Delete(ctx, rec.ID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	metrics.IncPayment("succeeded")
	metrics.AddPaymentRevenue(u.opts.Currency, amount)
	logging.With(ctx, u.log).Info().
		Str("order_id", req.OrderID).
		Str("receipt", logging.Redact(o.ReceiptID, u.opts.Dev)).
		Str("amount", amount.String()).
		Msg("payment confirmed")

	u.deliver(ctx, rec.ID, prompt, "success")
	name := ""
	if rec.Service != nil {
		name = rec.Service.Name
	}
	u.support.Notify(ctx, "support.payment_confirmed", req.OrderID, rec.ID, name, o.ReceiptID)
	return nil
}

func (u *paymentUC) fail(ctx context.Context, rec *model.Conversation, req model.PaymentRequested, o model.PaymentOutcome) error {
	reason := o.FailureReason()
	rec.State = model.PaymentFailed{OrderID: req.OrderID, Reason: reason, ResultCode: o.ResultCode}
	if err := u.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	status := "failed"
	if reason == model.ReasonTimeout {
		status = "expired"
	}
	metrics.IncPayment(status)
	logging.With(ctx, u.log).Info().
		Str("order_id", req.OrderID).
		Int("result_code", o.ResultCode).
		Str("result_desc", o.ResultDesc).
		Msg("payment failed")

	u.deliver(ctx, rec.ID, u.renderer.Render(rec), "failure")
	u.support.Notify(ctx, "support.payment_failed", req.OrderID, o.TransactionID, rec.ID, o.ResultCode)
	return nil
}

func (u *paymentUC) deliver(ctx context.Context, chatID int64, p model.Prompt, kind string) {
	if _, err := u.msg.SendPrompt(ctx, chatID, p); err != nil {
		metrics.IncPaymentDM(kind, "error")
		metrics.IncDeliveryFailure("send")
		logging.With(ctx, u.log).Warn().Err(err).Msg("failed to deliver payment outcome")
		return
	}
	metrics.IncPaymentDM(kind, "sent")
}

func (u *paymentUC) Release(ctx context.Context, txID string) error {
	defer logging.TraceDuration(u.log, "PaymentUC.Release")()
	if err := u.pending.Remove(ctx, txID); err != nil {
		return fmt.Errorf("release transaction: %w", err)
	}
	u.observePending(ctx)
	return nil
}

func (u *paymentUC) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.ExpireStale")()
	stale, err := u.pending.OlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list pending transactions: %w", err)
	}
	n := 0
	for _, p := range stale {
		ok, err := u.Reconcile(ctx, model.PaymentOutcome{
			TransactionID: p.TransactionID,
			ResultCode:    model.ResultCodeExpired,
			ResultDesc:    "no callback before timeout",
		})
		if err != nil {
			logging.With(ctx, u.log).Error().Err(err).Str("tx_id", p.TransactionID).Msg("failed to expire payment")
			continue
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (u *paymentUC) observePending(ctx context.Context) {
	if n, err := u.pending.Len(ctx); err == nil {
		metrics.SetPaymentsPending(n)
	}
}
