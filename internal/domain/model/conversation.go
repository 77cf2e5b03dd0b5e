package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Conversation is one buyer's state-machine instance, keyed by chat id.
type Conversation struct {
	ID        int64
	State     State
	Service   *Service
	Price     *decimal.Decimal
	Details   Details
	UpdatedAt time.Time
}

func NewConversation(id int64, now time.Time) *Conversation {
	return &Conversation{ID: id, State: Idle{}, UpdatedAt: now}
}

// PendingTransactionID is the provider transaction the record is waiting on, if any.
func (c *Conversation) PendingTransactionID() string {
	if st, ok := c.State.(PaymentRequested); ok {
		return st.TransactionID
	}
	return ""
}

// Clone returns a copy safe to mutate. Services are shared; they are immutable.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	if c.Price != nil {
		p := *c.Price
		cp.Price = &p
	}
	return &cp
}

// Reset clears everything collected so far and returns the record to Idle.
func (c *Conversation) Reset() {
	c.State = Idle{}
	c.Service = nil
	c.Price = nil
	c.Details = nil
}

// Select binds a service. Fixed-price services are priced immediately;
// others enter their sub-flow's first step.
func (c *Conversation) Select(s *Service) {
	c.Service = s
	c.Details = nil
	c.Price = nil
	if s.FixedPrice() {
		p := *s.Price
		c.Price = &p
		c.State = PriceConfirmed{}
		return
	}
	c.State = CollectingDetails{Step: s.SubFlow.FirstStep()}
}

// Confirm records the final sub-flow answers and the price they produce.
func (c *Conversation) Confirm(d Details, price decimal.Decimal) {
	c.Details = d
	c.Price = &price
	c.State = PriceConfirmed{}
}
