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
var _ FlowUseCase = (*flowUC)(nil)

// FlowUseCase drives one conversation forward per inbound chat event.
type FlowUseCase interface {
	Handle(ctx context.Context, ev model.Event) error
	// ExpireIdle drops records untouched since cutoff that are not waiting on a payment.
	ExpireIdle(ctx context.Context, cutoff time.Time) (int, error)
}

type FlowOptions struct {
	CountryCode string
}

type flowUC struct {
	store    repository.ConversationStore
	payments PaymentUseCase
	renderer *PromptRenderer
	catalog  *model.Catalog
	msg      adapter.Messenger
	support  *SupportNotifier
	opts     FlowOptions

	newOrderID func() string
	now        func() time.Time
	log        *zerolog.Logger
}

func NewFlowUseCase(
	store repository.ConversationStore,
	payments PaymentUseCase,
	renderer *PromptRenderer,
	catalog *model.Catalog,
	msg adapter.Messenger,
	support *SupportNotifier,
	opts FlowOptions,
	logger *zerolog.Logger,
) *flowUC {
	if opts.CountryCode == "" {
		opts.CountryCode = model.DefaultCountryCode
	}
	return &flowUC{
		store:      store,
		payments:   payments,
		renderer:   renderer,
		catalog:    catalog,
		msg:        msg,
		support:    support,
		opts:       opts,
		newOrderID: model.NewOrderID,
		now:        time.Now,
		log:        logger,
	}
}

// effects are the side effects a transition asks for, executed after it in a fixed order.
type effects struct {
	pay     string         // confirmed phone: run the payment request sequence
	forward *model.FileRef // proof to hand to support
	notice  string         // support notice key
	args    []interface{}
	problem model.Problem
}

func (u *flowUC) Handle(ctx context.Context, ev model.Event) error {
	defer logging.TraceDuration(u.log, "FlowUC.Handle")()
	metrics.IncFlowEvent(string(ev.Kind))
	ctx = logging.WithChatID(ctx, ev.ConversationID)

	unlock, err := u.store.Lock(ctx, ev.ConversationID)
	if err != nil {
		return fmt.Errorf("lock conversation: %w", err)
	}
	defer unlock()

	rec, err := u.store.Get(ctx, ev.ConversationID)
	if errors.Is(err, domain.ErrNotFound) {
		rec = model.NewConversation(ev.ConversationID, u.now())
	} else if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}

	prevTx := rec.PendingTransactionID()
	next := rec.Clone()
	fx := u.transition(next, ev)
	if fx.problem != model.ProblemNone {
		metrics.IncValidationFailure(string(fx.problem))
		logging.With(ctx, u.log).Debug().Str("problem", string(fx.problem)).Msg("input rejected")
	}

	if fx.forward != nil {
		u.forwardProof(ctx, next, *fx.forward)
	}
	if fx.pay != "" {
		u.requestPayment(ctx, next, fx.pay)
	} else {
		u.send(ctx, next)
	}
	if fx.notice != "" {
		u.support.Notify(ctx, fx.notice, fx.args...)
	}

	if err := u.persist(ctx, next); err != nil {
		return err
	}
	if prevTx != "" && next.PendingTransactionID() != prevTx {
		if err := u.payments.Release(ctx, prevTx); err != nil {
			logging.With(ctx, u.log).Warn().Err(err).Str("tx_id", prevTx).Msg("failed to release pending transaction")
		}
	}
	if from, to := rec.State.Name(), next.State.Name(); from != to {
		metrics.IncTransition(string(from), string(to))
	}
	return nil
}

// transition applies ev to rec in place. It performs no I/O.
func (u *flowUC) transition(rec *model.Conversation, ev model.Event) effects {
	// Reset buttons are explicit choices and work in every state.
	if ev.Kind == model.EventButton {
		switch ev.Action {
		case model.ActionCancel:
			rec.Reset()
			return effects{}
		case model.ActionRestart, model.ActionMenu:
			rec.Reset()
			rec.State = model.SelectingService{}
			return effects{}
		}
	}
	// Typed reset commands, unless this state reads text as an answer.
	if !model.CapturesText(rec.State) {
		if action, ok := resetAction(ev); ok {
			rec.Reset()
			if action == model.ActionRestart {
				rec.State = model.SelectingService{}
			}
			return effects{}
		}
	}

	switch st := rec.State.(type) {
	case model.Idle, model.PaymentSucceeded, model.ProofSubmitted:
		return u.onIdle(rec, ev)
	case model.SelectingService:
		return u.onSelectingService(rec, ev)
	case model.CollectingDetails:
		return u.onDetails(rec, st, ev)
	case model.PriceConfirmed, model.SelectingPaymentMethod, model.PaymentFailed:
		return u.onPaymentMethod(rec, ev)
	case model.CollectingPhone:
		return u.onPhone(rec, st, ev)
	case model.AwaitingProofUpload:
		return u.onProof(rec, st, ev)
	}
	// PaymentRequested waits for the callback; anything else re-renders.
	return effects{}
}

func resetAction(ev model.Event) (string, bool) {
	switch ev.Kind {
	case model.EventSessionStart:
		return model.ActionRestart, true
	case model.EventText:
		return model.ResetCommand(ev.Text)
	}
	return "", false
}

// onIdle shows the catalog for any event, including buttons left over from an earlier session.
func (u *flowUC) onIdle(rec *model.Conversation, ev model.Event) effects {
	rec.Reset()
	rec.State = model.SelectingService{}
	return effects{}
}

func (u *flowUC) onSelectingService(rec *model.Conversation, ev model.Event) effects {
	if svc, ok := u.selectedService(ev); ok {
		rec.Select(svc)
	}
	return effects{}
}

func (u *flowUC) selectedService(ev model.Event) (*model.Service, bool) {
	if ev.Kind != model.EventButton {
		return nil, false
	}
	id, ok := model.ParseServiceAction(ev.Action)
	if !ok {
		return nil, false
	}
	return u.catalog.Find(id)
}

func (u *flowUC) onDetails(rec *model.Conversation, st model.CollectingDetails, ev model.Event) effects {
	if rec.Service == nil || rec.Service.SubFlow == nil {
		rec.Reset()
		rec.State = model.SelectingService{}
		return effects{}
	}
	f := rec.Service.SubFlow

	switch {
	case ev.Kind == model.EventText && st.Step == model.StepQuantity:
		q, problem := model.ParseQuantity(f, ev.Text)
		if problem != model.ProblemNone {
			rec.State = model.CollectingDetails{Step: st.Step, Problem: problem}
			return effects{problem: problem}
		}
		rec.Confirm(model.QuantityDetails{Quantity: q}, model.QuantityPrice(f, q))

	case ev.Kind == model.EventText && st.Step == model.StepDescription:
		d, problem := model.ParseDescription(f, ev.Text)
		if problem != model.ProblemNone {
			rec.State = model.CollectingDetails{Step: st.Step, Problem: problem}
			return effects{problem: problem}
		}
		rec.Confirm(model.ProjectDetails{Description: d}, f.Deposit)

	case ev.Kind == model.EventButton && st.Step == model.StepCountry:
		id, ok := model.ParseOptionAction(ev.Action)
		if !ok {
			break
		}
		if _, ok := f.Country(id); ok {
			rec.Details = model.CountryTierDetails{Country: id}
			rec.State = model.CollectingDetails{Step: model.StepTier}
		}

	case ev.Kind == model.EventButton && st.Step == model.StepTier:
		id, ok := model.ParseOptionAction(ev.Action)
		if !ok {
			break
		}
		tier, ok := f.Tier(id)
		if !ok {
			break
		}
		d, ok := rec.Details.(model.CountryTierDetails)
		if !ok || d.Country == "" {
			rec.Details = nil
			rec.State = model.CollectingDetails{Step: model.StepCountry}
			break
		}
		d.Tier = tier.ID
		rec.Confirm(d, *tier.Price)
	}
	return effects{}
}

func (u *flowUC) onPaymentMethod(rec *model.Conversation, ev model.Event) effects {
	if ev.Kind != model.EventButton {
		return effects{}
	}
	if rec.Service == nil || rec.Price == nil {
		// Payment collection needs a price; start over rather than charge an undefined amount.
		rec.Reset()
		rec.State = model.SelectingService{}
		return effects{}
	}
	switch ev.Action {
	case model.ActionPayMobile:
		rec.State = model.CollectingPhone{}
	case model.ActionPayCrypto:
		orderID := u.newOrderID()
		rec.State = model.AwaitingProofUpload{OrderID: orderID}
		return effects{notice: "support.crypto_started", args: []interface{}{rec.ID, rec.Service.Name, orderID}}
	case model.ActionRetry:
		if _, failed := rec.State.(model.PaymentFailed); failed {
			rec.State = model.SelectingPaymentMethod{}
		}
	}
	return effects{}
}

func (u *flowUC) onPhone(rec *model.Conversation, st model.CollectingPhone, ev model.Event) effects {
	switch ev.Kind {
	case model.EventText:
		phone, err := model.NormalizePhone(ev.Text, u.opts.CountryCode)
		if err != nil {
			rec.State = model.CollectingPhone{Problem: model.ProblemPhoneFormat}
			return effects{problem: model.ProblemPhoneFormat}
		}
		rec.State = model.CollectingPhone{Candidate: phone}
	case model.EventButton:
		switch ev.Action {
		case model.ActionPhoneYes:
			if st.Candidate != "" {
				return effects{pay: st.Candidate}
			}
		case model.ActionPhoneEdit:
			rec.State = model.CollectingPhone{}
		}
	}
	return effects{}
}

// onProof: typed text abandons the crypto order and shows the catalog again.
func (u *flowUC) onProof(rec *model.Conversation, st model.AwaitingProofUpload, ev model.Event) effects {
	switch ev.Kind {
	case model.EventFile:
		if ev.File == nil {
			return effects{}
		}
		rec.State = model.ProofSubmitted{OrderID: st.OrderID}
		return effects{forward: ev.File}
	case model.EventText, model.EventSessionStart:
		rec.Reset()
		rec.State = model.SelectingService{}
	}
	return effects{}
}

// forwardProof hands the uploaded file to support. On failure the buyer is asked to upload again.
func (u *flowUC) forwardProof(ctx context.Context, rec *model.Conversation, file model.FileRef) {
	st, ok := rec.State.(model.ProofSubmitted)
	if !ok {
		return
	}
	caption := u.support.Text("support.proof_received", st.OrderID, rec.ID)
	err := errors.New("no support destination configured")
	if dest := u.support.Destination(); dest != "" {
		err = u.msg.ForwardFile(ctx, rec.ID, file, dest, caption)
	}
	if err != nil {
		metrics.IncDeliveryFailure("forward")
		logging.With(ctx, u.log).Warn().Err(err).Str("order_id", st.OrderID).Msg("failed to forward payment proof")
		rec.State = model.AwaitingProofUpload{OrderID: st.OrderID, Problem: model.ProblemForwardFailed}
	}
}

// requestPayment shows a "sending" notice, asks the correlator to charge the buyer, then
// edits the notice into the outcome. The outcome is re-sent when the edit is not possible.
func (u *flowUC) requestPayment(ctx context.Context, rec *model.Conversation, phone string) {
	orderID := u.newOrderID()
	rec.State = model.PaymentRequested{Phone: phone, OrderID: orderID, RequestedAt: u.now()}

	msgID, sendErr := u.msg.SendPrompt(ctx, rec.ID, u.renderer.Render(rec))
	if sendErr != nil {
		metrics.IncDeliveryFailure("send")
		logging.With(ctx, u.log).Warn().Err(sendErr).Msg("failed to send payment notice")
	}

	if _, err := u.payments.Initiate(ctx, rec, phone, orderID); err != nil {
		rec.State = model.PaymentFailed{OrderID: orderID, Reason: failureReason(err)}
	}

	final := u.renderer.Render(rec)
	if sendErr == nil {
		err := u.msg.EditPrompt(ctx, rec.ID, msgID, final)
		if err == nil {
			return
		}
		metrics.IncDeliveryFailure("edit")
		logging.With(ctx, u.log).Warn().Err(err).Msg("failed to edit payment notice, sending instead")
	}
	u.deliver(ctx, rec.ID, final)
}

func failureReason(err error) model.FailureReason {
	if errors.Is(err, domain.ErrProviderRejected) {
		return model.ReasonProviderRejected
	}
	return model.ReasonProviderUnavailable
}

func (u *flowUC) send(ctx context.Context, rec *model.Conversation) {
	u.deliver(ctx, rec.ID, u.renderer.Render(rec))
}

func (u *flowUC) deliver(ctx context.Context, chatID int64, p model.Prompt) {
	if _, err := u.msg.SendPrompt(ctx, chatID, p); err != nil {
		metrics.IncDeliveryFailure("send")
		logging.With(ctx, u.log).Warn().Err(err).Msg("failed to deliver prompt")
	}
}

func (u *flowUC) persist(ctx context.Context, rec *model.Conversation) error {
	if model.Releases(rec.State) {
		if err := u.store.Delete(ctx, rec.ID); err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
		return nil
	}
	if err := u.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

func (u *flowUC) ExpireIdle(ctx context.Context, cutoff time.Time) (int, error) {
	defer logging.TraceDuration(u.log, "FlowUC.ExpireIdle")()
	ids, err := u.store.ListStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale conversations: %w", err)
	}
	n := 0
	for _, id := range ids {
		expired, err := u.expireOne(ctx, id, cutoff)
		if err != nil {
			return n, err
		}
		if expired {
			n++
		}
	}
	return n, nil
}

func (u *flowUC) expireOne(ctx context.Context, id int64, cutoff time.Time) (bool, error) {
	unlock, err := u.store.Lock(ctx, id)
	if err != nil {
		return false, err
	}
	defer unlock()

	rec, err := u.store.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// Touched since listing, or still waiting on the provider.
	if !rec.UpdatedAt.Before(cutoff) || rec.PendingTransactionID() != "" {
		return false, nil
	}
	if err := u.store.Delete(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}
