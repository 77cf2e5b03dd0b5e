//go:build !integration

package application_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mpesa-commerce-bot/internal/application"
	"mpesa-commerce-bot/internal/domain/model"
)

type mockFlow struct {
	HandleFunc func(ctx context.Context, ev model.Event) error
	handled    []model.Event
}

func (m *mockFlow) Handle(ctx context.Context, ev model.Event) error {
	m.handled = append(m.handled, ev)
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, ev)
	}
	return nil
}

func (m *mockFlow) ExpireIdle(ctx context.Context, cutoff time.Time) (int, error) { return 0, nil }

type mockPayments struct {
	ReconcileFunc func(ctx context.Context, o model.PaymentOutcome) (bool, error)
}

func (m *mockPayments) Initiate(ctx context.Context, rec *model.Conversation, phone, orderID string) (string, error) {
	return "", nil
}

func (m *mockPayments) Reconcile(ctx context.Context, o model.PaymentOutcome) (bool, error) {
	if m.ReconcileFunc != nil {
		return m.ReconcileFunc(ctx, o)
	}
	return true, nil
}

func (m *mockPayments) Release(ctx context.Context, txID string) error { return nil }

func (m *mockPayments) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) { return 0, nil }

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func TestBotFacade_HandleEvent(t *testing.T) {
	t.Run("should pass the event to the flow", func(t *testing.T) {
		// --- Arrange ---
		flow := &mockFlow{}
		facade := application.NewBotFacade(flow, &mockPayments{}, newTestLogger())

		// --- Act ---
		err := facade.HandleEvent(context.Background(), model.TextEvent(7, "hi"))

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got %v", err)
		}
		if len(flow.handled) != 1 || flow.handled[0].Text != "hi" {
			t.Errorf("expected the event to reach the flow, but got %+v", flow.handled)
		}
	})

	t.Run("should contain a panicking transition", func(t *testing.T) {
		// --- Arrange ---
		flow := &mockFlow{HandleFunc: func(context.Context, model.Event) error { panic("boom") }}
		facade := application.NewBotFacade(flow, &mockPayments{}, newTestLogger())

		// --- Act ---
		err := facade.HandleEvent(context.Background(), model.TextEvent(7, "hi"))

		// --- Assert ---
		if err == nil {
			t.Fatal("expected an error from the recovered panic, but got nil")
		}
	})

	t.Run("should return flow errors", func(t *testing.T) {
		// --- Arrange ---
		want := errors.New("lock timeout")
		flow := &mockFlow{HandleFunc: func(context.Context, model.Event) error { return want }}
		facade := application.NewBotFacade(flow, &mockPayments{}, newTestLogger())

		// --- Act ---
		err := facade.HandleEvent(context.Background(), model.TextEvent(7, "hi"))

		// --- Assert ---
		if !errors.Is(err, want) {
			t.Errorf("expected %v, but got %v", want, err)
		}
	})
}

func TestBotFacade_HandleCallback(t *testing.T) {
	t.Run("should report whether the outcome applied", func(t *testing.T) {
		// --- Arrange ---
		var got string
		payments := &mockPayments{ReconcileFunc: func(_ context.Context, o model.PaymentOutcome) (bool, error) {
			got = o.TransactionID
			return false, nil
		}}
		facade := application.NewBotFacade(&mockFlow{}, payments, newTestLogger())

		// --- Act ---
		applied, err := facade.HandleCallback(context.Background(), model.PaymentOutcome{TransactionID: "TX-UNKNOWN"})

		// --- Assert ---
		if err != nil || applied {
			t.Errorf("expected an unapplied outcome without error, but got %v / %v", applied, err)
		}
		if got != "TX-UNKNOWN" {
			t.Errorf("expected TX-UNKNOWN to reach the correlator, but got %q", got)
		}
	})
}
