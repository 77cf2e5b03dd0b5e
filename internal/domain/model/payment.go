package model

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

const (
	ResultCodeSuccess = 0
	// ResultCodeExpired marks an outcome synthesized locally when no callback arrived in time.
	ResultCodeExpired = -1
)

// PaymentOutcome is a provider callback normalized to the fields the flow needs.
type PaymentOutcome struct {
	TransactionID string
	ResultCode    int
	ResultDesc    string
	Amount        *decimal.Decimal
	ReceiptID     string
	PayerPhone    string
}

func (o PaymentOutcome) Succeeded() bool { return o.ResultCode == ResultCodeSuccess }

// FailureReason maps a non-success result code to the reason shown to the buyer.
func (o PaymentOutcome) FailureReason() FailureReason {
	if o.ResultCode == ResultCodeExpired {
		return ReasonTimeout
	}
	return ReasonDeclined
}

// PendingPayment is one entry of the pending transaction index.
type PendingPayment struct {
	TransactionID  string
	ConversationID int64
	CreatedAt      time.Time
}

// NewOrderID returns a sortable order reference such as "ORD-01J9Z...".
func NewOrderID() string {
	return "ORD-" + ulid.Make().String()
}
