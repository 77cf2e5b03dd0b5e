package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"mpesa-commerce-bot/internal/domain"
)

// PaymentRequest asks the provider to push a charge to the payer's phone.
type PaymentRequest struct {
	Amount           decimal.Decimal
	Phone            string // normalized, e.g. 2547XXXXXXXX
	AccountReference string
	Description      string
}

// PaymentIntent is the provider's acknowledgement of a push request.
type PaymentIntent struct {
	TransactionID     string // correlates the asynchronous callback
	MerchantRequestID string
	CustomerMessage   string
}

// PaymentGateway is the hex port for push-to-pay providers.
type PaymentGateway interface {
	Name() string

	// RequestPayment initiates a charge. Errors wrap domain.ErrProviderUnavailable
	// or domain.ErrProviderRejected.
	RequestPayment(ctx context.Context, req PaymentRequest) (PaymentIntent, error)
}

type ProviderErrorKind int

const (
	ProviderUnavailable ProviderErrorKind = iota // transport, 5xx, auth exchange
	ProviderRejected                             // 4xx or non-zero response code
)

// ProviderError carries the provider's own code and message.
type ProviderError struct {
	Kind    ProviderErrorKind
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s", e.kindString())
	if e.Code != "" {
		msg += " code=" + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) kindString() string {
	if e.Kind == ProviderRejected {
		return "rejected"
	}
	return "unavailable"
}

// Unwrap exposes both the domain sentinel and the underlying cause to errors.Is.
func (e *ProviderError) Unwrap() []error {
	sentinel := domain.ErrProviderUnavailable
	if e.Kind == ProviderRejected {
		sentinel = domain.ErrProviderRejected
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}

// AsProviderError is a small helper for callers that need the provider code.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	ok := errors.As(err, &pe)
	return pe, ok
}
