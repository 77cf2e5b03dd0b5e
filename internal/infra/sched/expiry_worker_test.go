//go:build !integration

package sched

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type mockPayments struct {
	cutoffs         []time.Time
	ExpireStaleFunc func(ctx context.Context, cutoff time.Time) (int, error)
}

func (m *mockPayments) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	m.cutoffs = append(m.cutoffs, cutoff)
	if m.ExpireStaleFunc != nil {
		return m.ExpireStaleFunc(ctx, cutoff)
	}
	return 0, nil
}

type mockConversations struct {
	cutoffs []time.Time
}

func (m *mockConversations) ExpireIdle(ctx context.Context, cutoff time.Time) (int, error) {
	m.cutoffs = append(m.cutoffs, cutoff)
	return 1, nil
}

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func TestExpiryWorker_Sweep(t *testing.T) {
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	t.Run("should pass cutoffs derived from the timeouts", func(t *testing.T) {
		// --- Arrange ---
		p, c := &mockPayments{}, &mockConversations{}
		w := NewExpiryWorker(time.Minute, 5*time.Minute, 24*time.Hour, p, c, newTestLogger())
		w.now = func() time.Time { return now }

		// --- Act ---
		w.Sweep(context.Background())

		// --- Assert ---
		if len(p.cutoffs) != 1 || !p.cutoffs[0].Equal(now.Add(-5*time.Minute)) {
			t.Errorf("expected payment cutoff %v, but got %v", now.Add(-5*time.Minute), p.cutoffs)
		}
		if len(c.cutoffs) != 1 || !c.cutoffs[0].Equal(now.Add(-24*time.Hour)) {
			t.Errorf("expected conversation cutoff %v, but got %v", now.Add(-24*time.Hour), c.cutoffs)
		}
	})

	t.Run("should leave payments pending when the timeout is disabled", func(t *testing.T) {
		// --- Arrange ---
		p, c := &mockPayments{}, &mockConversations{}
		w := NewExpiryWorker(time.Minute, 0, time.Hour, p, c, newTestLogger())

		// --- Act ---
		w.Sweep(context.Background())

		// --- Assert ---
		if len(p.cutoffs) != 0 {
			t.Errorf("expected no payment expiry, but got %d calls", len(p.cutoffs))
		}
		if len(c.cutoffs) != 1 {
			t.Errorf("expected one conversation pass, but got %d", len(c.cutoffs))
		}
	})

	t.Run("should continue with conversations after a payment error", func(t *testing.T) {
		// --- Arrange ---
		p := &mockPayments{ExpireStaleFunc: func(context.Context, time.Time) (int, error) {
			return 0, errors.New("index unavailable")
		}}
		c := &mockConversations{}
		w := NewExpiryWorker(time.Minute, time.Minute, time.Hour, p, c, newTestLogger())

		// --- Act ---
		w.Sweep(context.Background())

		// --- Assert ---
		if len(c.cutoffs) != 1 {
			t.Errorf("expected the conversation pass to run, but got %d", len(c.cutoffs))
		}
	})
}

func TestExpiryWorker_Run(t *testing.T) {
	t.Run("should stop when the context is cancelled", func(t *testing.T) {
		// --- Arrange ---
		w := NewExpiryWorker(time.Millisecond, 0, time.Hour, &mockPayments{}, &mockConversations{}, newTestLogger())
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)

		// --- Act ---
		go func() { done <- w.Run(ctx) }()
		cancel()

		// --- Assert ---
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, but got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("expected Run to return")
		}
	})
}
