package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type StateName string

const (
	StateIdle                   StateName = "idle"
	StateSelectingService       StateName = "selecting_service"
	StateCollectingDetails      StateName = "collecting_details"
	StatePriceConfirmed         StateName = "price_confirmed"
	StateSelectingPaymentMethod StateName = "selecting_payment_method"
	StateCollectingPhone        StateName = "collecting_phone"
	StateAwaitingProofUpload    StateName = "awaiting_proof_upload"
	StatePaymentRequested       StateName = "payment_requested"
	StatePaymentSucceeded       StateName = "payment_succeeded"
	StatePaymentFailed          StateName = "payment_failed"
	StateProofSubmitted         StateName = "proof_submitted"
)

// State is the closed set of conversation states. Each variant carries only the
// fields that are meaningful while the conversation is in it.
type State interface {
	Name() StateName
	isState()
}

type Idle struct{}

type SelectingService struct{}

type CollectingDetails struct {
	Step    Step
	Problem Problem
}

type PriceConfirmed struct{}

// SelectingPaymentMethod is re-entered from a failed attempt.
type SelectingPaymentMethod struct{}

// CollectingPhone holds a normalized Candidate once the buyer typed a valid number
// and is being asked to confirm it.
type CollectingPhone struct {
	Candidate string
	Problem   Problem
}

type AwaitingProofUpload struct {
	OrderID string
	Problem Problem
}

// PaymentRequested has an empty TransactionID while the provider request is in flight.
type PaymentRequested struct {
	TransactionID string
	Phone         string
	OrderID       string
	RequestedAt   time.Time
}

type PaymentSucceeded struct {
	OrderID    string
	ReceiptID  string
	PayerPhone string
	Amount     decimal.Decimal
}

type FailureReason string

const (
	ReasonProviderUnavailable FailureReason = "provider_unavailable"
	ReasonProviderRejected    FailureReason = "provider_rejected"
	ReasonDeclined            FailureReason = "declined"
	ReasonTimeout             FailureReason = "timeout"
)

type PaymentFailed struct {
	OrderID    string
	Reason     FailureReason
	ResultCode int
}

// ProofSubmitted ends the manual-verification path; the record is dropped after it is rendered.
type ProofSubmitted struct {
	OrderID string
}

func (Idle) Name() StateName                   { return StateIdle }
func (SelectingService) Name() StateName       { return StateSelectingService }
func (CollectingDetails) Name() StateName      { return StateCollectingDetails }
func (PriceConfirmed) Name() StateName         { return StatePriceConfirmed }
func (SelectingPaymentMethod) Name() StateName { return StateSelectingPaymentMethod }
func (CollectingPhone) Name() StateName        { return StateCollectingPhone }
func (AwaitingProofUpload) Name() StateName    { return StateAwaitingProofUpload }
func (PaymentRequested) Name() StateName       { return StatePaymentRequested }
func (PaymentSucceeded) Name() StateName       { return StatePaymentSucceeded }
func (PaymentFailed) Name() StateName          { return StatePaymentFailed }
func (ProofSubmitted) Name() StateName         { return StateProofSubmitted }

func (Idle) isState()                   {}
func (SelectingService) isState()       {}
func (CollectingDetails) isState()      {}
func (PriceConfirmed) isState()         {}
func (SelectingPaymentMethod) isState() {}
func (CollectingPhone) isState()        {}
func (AwaitingProofUpload) isState()    {}
func (PaymentRequested) isState()       {}
func (PaymentSucceeded) isState()       {}
func (PaymentFailed) isState()          {}
func (ProofSubmitted) isState()         {}

// Releases reports whether the record is dropped once this state has been rendered.
func Releases(s State) bool {
	switch s.(type) {
	case Idle, PaymentSucceeded, ProofSubmitted:
		return true
	}
	return false
}

// CapturesText reports whether typed text in this state is an answer rather than a command.
func CapturesText(s State) bool {
	switch st := s.(type) {
	case CollectingPhone, AwaitingProofUpload:
		return true
	case CollectingDetails:
		return st.Step.CapturesText()
	}
	return false
}
