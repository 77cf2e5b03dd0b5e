//go:build !integration

package model

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mpesa-commerce-bot/internal/domain"
)

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// --- Phone Normalization Tests ---

func TestNormalizePhone(t *testing.T) {
	t.Run("should map every accepted format to the same canonical number", func(t *testing.T) {
		inputs := []string{"254712345678", "0712345678", "712345678", "+254 712 345 678", "0712-345-678"}
		for _, in := range inputs {
			got, err := NormalizePhone(in, "254")
			if err != nil {
				t.Fatalf("expected no error for %q, but got: %v", in, err)
			}
			if got != "254712345678" {
				t.Errorf("expected %q to normalize to 254712345678, but got %s", in, got)
			}
		}
	})

	t.Run("should reject numbers outside the accepted formats", func(t *testing.T) {
		inputs := []string{"999999", "", "0612345678", "25471234567", "2547123456789", "07123abc78", "255712345678"}
		for _, in := range inputs {
			_, err := NormalizePhone(in, "254")
			if err == nil {
				t.Fatalf("expected an error for %q, but got nil", in)
			}
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument for %q, but got %v", in, err)
			}
		}
	})

	t.Run("should default to the Kenyan country code", func(t *testing.T) {
		got, err := NormalizePhone("0712345678", "")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if got != "254712345678" {
			t.Errorf("expected 254712345678, but got %s", got)
		}
	})
}

// --- Catalog Tests ---

func TestNewCatalog(t *testing.T) {
	fixed := Service{ID: 1, Name: "Transcription", Price: price("1500")}
	qty := Service{ID: 2, Name: "Numbers", SubFlow: &SubFlow{Kind: SubFlowQuantity, UnitPrice: decimal.NewFromInt(10)}}

	t.Run("should index services and keep them ordered by id", func(t *testing.T) {
		c, err := NewCatalog([]Service{qty, fixed})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if len(c.List()) != 2 || c.List()[0].ID != 1 {
			t.Fatalf("expected services ordered by id, but got %+v", c.List())
		}
		s, ok := c.Find(2)
		if !ok || s.Name != "Numbers" {
			t.Errorf("expected to find service 2, but got %v", s)
		}
		if _, ok := c.Find(99); ok {
			t.Error("expected service 99 to be missing")
		}
	})

	t.Run("should reject duplicate ids", func(t *testing.T) {
		_, err := NewCatalog([]Service{fixed, fixed})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, but got %v", err)
		}
	})

	t.Run("should reject a service with both price and subflow", func(t *testing.T) {
		both := qty
		both.Price = price("10")
		_, err := NewCatalog([]Service{both})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, but got %v", err)
		}
	})

	t.Run("should reject fractional amounts the provider would round", func(t *testing.T) {
		cases := map[string]Service{
			"price":      {ID: 4, Name: "Fixed", Price: price("1500.50")},
			"unit price": {ID: 5, Name: "Codes", SubFlow: &SubFlow{Kind: SubFlowQuantity, UnitPrice: decimal.RequireFromString("15.5")}},
			"tier": {ID: 6, Name: "Proxies", SubFlow: &SubFlow{
				Kind:      SubFlowCountryTier,
				Countries: []Option{{ID: "us", Label: "USA"}},
				Tiers:     []Option{{ID: "basic", Label: "Basic", Price: price("1199.99")}},
			}},
			"deposit": {ID: 7, Name: "Project", SubFlow: &SubFlow{Kind: SubFlowProject, Deposit: decimal.RequireFromString("0.5")}},
		}
		for name, s := range cases {
			if _, err := NewCatalog([]Service{s}); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("%s: expected ErrInvalidArgument, but got %v", name, err)
			}
		}
	})

	t.Run("should accept whole amounts written with trailing zeros", func(t *testing.T) {
		if _, err := NewCatalog([]Service{{ID: 8, Name: "Fixed", Price: price("1500.00")}}); err != nil {
			t.Errorf("expected no error, but got %v", err)
		}
	})

	t.Run("should reject a tier without a price", func(t *testing.T) {
		s := Service{ID: 3, Name: "Proxies", SubFlow: &SubFlow{
			Kind:      SubFlowCountryTier,
			Countries: []Option{{ID: "us", Label: "USA"}},
			Tiers:     []Option{{ID: "basic", Label: "Basic"}},
		}}
		_, err := NewCatalog([]Service{s})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, but got %v", err)
		}
	})
}

// --- Sub-flow Validation Tests ---

func TestParseQuantity(t *testing.T) {
	f := &SubFlow{Kind: SubFlowQuantity, UnitPrice: decimal.NewFromInt(10)}

	tests := []struct {
		in      string
		want    int
		problem Problem
	}{
		{"200", 200, ProblemNone},
		{" 1 ", 1, ProblemNone},
		{"1000", 1000, ProblemNone},
		{"5000", 0, ProblemQuantityOutOfRange},
		{"0", 0, ProblemQuantityOutOfRange},
		{"ten", 0, ProblemQuantityNotNumber},
	}
	for _, tt := range tests {
		got, problem := ParseQuantity(f, tt.in)
		if got != tt.want || problem != tt.problem {
			t.Errorf("ParseQuantity(%q): expected (%d, %q), but got (%d, %q)", tt.in, tt.want, tt.problem, got, problem)
		}
	}

	if p := QuantityPrice(f, 200); !p.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("expected 200 x 10 = 2000, but got %s", p)
	}
}

func TestParseDescription(t *testing.T) {
	f := &SubFlow{Kind: SubFlowProject, Deposit: decimal.NewFromInt(5000), MinChars: 10}

	if _, p := ParseDescription(f, "too short"); p != ProblemDescriptionShort {
		t.Errorf("expected description_short, but got %q", p)
	}
	if _, p := ParseDescription(f, "/restart please now"); p != ProblemDescriptionCommand {
		t.Errorf("expected description_command, but got %q", p)
	}
	if _, p := ParseDescription(f, strings.Repeat("x", MaxDescriptionLen+1)); p != ProblemDescriptionLong {
		t.Errorf("expected description_long, but got %q", p)
	}
	got, p := ParseDescription(f, "  A landing page for my bakery  ")
	if p != ProblemNone || got != "A landing page for my bakery" {
		t.Errorf("expected trimmed description, but got (%q, %q)", got, p)
	}
}

// --- Conversation Tests ---

func TestConversation(t *testing.T) {
	now := time.Now()

	t.Run("should price a fixed service on selection", func(t *testing.T) {
		c := NewConversation(42, now)
		c.Select(&Service{ID: 1, Name: "Transcription", Price: price("1500")})
		if _, ok := c.State.(PriceConfirmed); !ok {
			t.Fatalf("expected PriceConfirmed, but got %T", c.State)
		}
		if c.Price == nil || !c.Price.Equal(decimal.NewFromInt(1500)) {
			t.Errorf("expected price 1500, but got %v", c.Price)
		}
	})

	t.Run("should enter the first sub-flow step for variable services", func(t *testing.T) {
		c := NewConversation(42, now)
		c.Select(&Service{ID: 8, Name: "Proxies", SubFlow: &SubFlow{Kind: SubFlowCountryTier}})
		st, ok := c.State.(CollectingDetails)
		if !ok || st.Step != StepCountry {
			t.Fatalf("expected CollectingDetails at country step, but got %#v", c.State)
		}
		if c.Price != nil {
			t.Error("expected price to stay undefined inside a sub-flow")
		}
	})

	t.Run("should expose the pending transaction only while payment is requested", func(t *testing.T) {
		c := NewConversation(42, now)
		c.State = PaymentRequested{TransactionID: "TX1"}
		if c.PendingTransactionID() != "TX1" {
			t.Errorf("expected TX1, but got %q", c.PendingTransactionID())
		}
		c.State = PaymentFailed{Reason: ReasonDeclined}
		if c.PendingTransactionID() != "" {
			t.Errorf("expected no pending transaction, but got %q", c.PendingTransactionID())
		}
	})

	t.Run("should clone without sharing the price", func(t *testing.T) {
		c := NewConversation(42, now)
		c.Select(&Service{ID: 1, Name: "Transcription", Price: price("1500")})
		cp := c.Clone()
		cp.Reset()
		if c.Price == nil || c.Service == nil {
			t.Fatal("expected original record to be untouched by reset of the clone")
		}
		if _, ok := cp.State.(Idle); !ok {
			t.Errorf("expected clone to be Idle, but got %T", cp.State)
		}
	})
}

func TestResetCommand(t *testing.T) {
	tests := map[string]string{
		"/start":         ActionRestart,
		"/restart":       ActionRestart,
		"/menu":          ActionRestart,
		"/cancel":        ActionCancel,
		"/START@EchoBot": ActionRestart,
	}
	for in, want := range tests {
		got, ok := ResetCommand(in)
		if !ok || got != want {
			t.Errorf("ResetCommand(%q): expected %q, but got (%q, %v)", in, want, got, ok)
		}
	}
	if _, ok := ResetCommand("0712345678"); ok {
		t.Error("expected plain text not to be a reset command")
	}
}

func TestActionTokens(t *testing.T) {
	if id, ok := ParseServiceAction(ServiceAction(7)); !ok || id != 7 {
		t.Errorf("expected service 7, but got (%d, %v)", id, ok)
	}
	if _, ok := ParseServiceAction("svc:abc"); ok {
		t.Error("expected malformed service token to be rejected")
	}
	if id, ok := ParseOptionAction(OptionAction("us")); !ok || id != "us" {
		t.Errorf("expected option us, but got (%q, %v)", id, ok)
	}
	if _, ok := ParseOptionAction("opt:"); ok {
		t.Error("expected empty option token to be rejected")
	}
}

func TestNewOrderID(t *testing.T) {
	a, b := NewOrderID(), NewOrderID()
	if !strings.HasPrefix(a, "ORD-") || len(a) != 30 {
		t.Errorf("expected ORD-<ulid>, but got %s", a)
	}
	if a == b {
		t.Error("expected distinct order ids")
	}
}
