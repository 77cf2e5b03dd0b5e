package payment

import (
	"context"
	"fmt"
	"sync"

	"mpesa-commerce-bot/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway accepts every request without contacting a provider. Used in dev mode,
// where callbacks are posted by hand to the callback endpoint.
type NoopPaymentGateway struct {
	mu       sync.Mutex
	seq      int64
	requests map[string]adapter.PaymentRequest // checkout id -> request
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		requests: make(map[string]adapter.PaymentRequest),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("ws_CO_noop_%d", g.seq)
}

func (g *NoopPaymentGateway) RequestPayment(ctx context.Context, req adapter.PaymentRequest) (adapter.PaymentIntent, error) {
	if !req.Amount.IsPositive() {
		return adapter.PaymentIntent{}, &adapter.ProviderError{Kind: adapter.ProviderRejected, Message: "amount must be positive"}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next()
	g.requests[id] = req
	return adapter.PaymentIntent{
		TransactionID:     id,
		MerchantRequestID: "noop-" + id,
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

// Request returns what was charged under a checkout id.
func (g *NoopPaymentGateway) Request(id string) (adapter.PaymentRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.requests[id]
	return r, ok
}
