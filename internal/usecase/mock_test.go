//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mpesa-commerce-bot/internal/domain/model"
	"mpesa-commerce-bot/internal/domain/ports/adapter"
	"mpesa-commerce-bot/internal/infra/i18n"
	"mpesa-commerce-bot/internal/infra/memory"
	"mpesa-commerce-bot/internal/usecase"
)

// --- Mock Messenger

type sentPrompt struct {
	ChatID    int64
	MessageID int
	Prompt    model.Prompt
}

type forwardedFile struct {
	ChatID      int64
	File        model.FileRef
	Destination string
	Caption     string
}

type notice struct {
	Destination string
	Text        string
}

// MockMessenger records every outbound call. Hooks override the default success behavior.
type MockMessenger struct {
	mu        sync.Mutex
	seq       int
	Sent      []sentPrompt
	Edited    []sentPrompt
	Forwarded []forwardedFile
	Notices   []notice

	SendPromptFunc  func(ctx context.Context, chatID int64, p model.Prompt) (int, error)
	EditPromptFunc  func(ctx context.Context, chatID int64, messageID int, p model.Prompt) error
	ForwardFileFunc func(ctx context.Context, chatID int64, file model.FileRef, destination, caption string) error
	NotifyFunc      func(ctx context.Context, destination, text string) error
}

var _ adapter.Messenger = (*MockMessenger)(nil)

func (m *MockMessenger) SendPrompt(ctx context.Context, chatID int64, p model.Prompt) (int, error) {
	if m.SendPromptFunc != nil {
		if _, err := m.SendPromptFunc(ctx, chatID, p); err != nil {
			return 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.Sent = append(m.Sent, sentPrompt{ChatID: chatID, MessageID: m.seq, Prompt: p})
	return m.seq, nil
}

func (m *MockMessenger) EditPrompt(ctx context.Context, chatID int64, messageID int, p model.Prompt) error {
	if m.EditPromptFunc != nil {
		if err := m.EditPromptFunc(ctx, chatID, messageID, p); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Edited = append(m.Edited, sentPrompt{ChatID: chatID, MessageID: messageID, Prompt: p})
	return nil
}

func (m *MockMessenger) ForwardFile(ctx context.Context, chatID int64, file model.FileRef, destination, caption string) error {
	if m.ForwardFileFunc != nil {
		if err := m.ForwardFileFunc(ctx, chatID, file, destination, caption); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Forwarded = append(m.Forwarded, forwardedFile{ChatID: chatID, File: file, Destination: destination, Caption: caption})
	return nil
}

func (m *MockMessenger) Notify(ctx context.Context, destination, text string) error {
	if m.NotifyFunc != nil {
		if err := m.NotifyFunc(ctx, destination, text); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notices = append(m.Notices, notice{Destination: destination, Text: text})
	return nil
}

// LastSent returns the most recent prompt sent to chatID.
func (m *MockMessenger) LastSent(t *testing.T, chatID int64) model.Prompt {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Sent) - 1; i >= 0; i-- {
		if m.Sent[i].ChatID == chatID {
			return m.Sent[i].Prompt
		}
	}
	t.Fatalf("expected a prompt sent to chat %d, but got none", chatID)
	return model.Prompt{}
}

func (m *MockMessenger) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// --- Mock Payment Gateway

type MockPaymentGateway struct {
	mu                 sync.Mutex
	Requests           []adapter.PaymentRequest
	RequestPaymentFunc func(ctx context.Context, req adapter.PaymentRequest) (adapter.PaymentIntent, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (g *MockPaymentGateway) Name() string { return "mock" }

func (g *MockPaymentGateway) RequestPayment(ctx context.Context, req adapter.PaymentRequest) (adapter.PaymentIntent, error) {
	g.mu.Lock()
	g.Requests = append(g.Requests, req)
	n := len(g.Requests)
	g.mu.Unlock()
	if g.RequestPaymentFunc != nil {
		return g.RequestPaymentFunc(ctx, req)
	}
	return adapter.PaymentIntent{TransactionID: fmt.Sprintf("TX%d", n)}, nil
}

func (g *MockPaymentGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Requests)
}

// --- Test fixtures

const supportDest = "@support"

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestTranslator(t *testing.T) *i18n.Translator {
	t.Helper()
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		t.Fatalf("failed to load translator: %v", err)
	}
	return tr
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newTestCatalog(t *testing.T) *model.Catalog {
	t.Helper()
	c, err := model.NewCatalog([]model.Service{
		{ID: 1, Name: "Transcription Training", Price: dec("1500")},
		{ID: 7, Name: "USA Numbers", Price: dec("1000")},
		{ID: 8, Name: "Verification Codes", SubFlow: &model.SubFlow{
			Kind: model.SubFlowQuantity, UnitPrice: decimal.NewFromInt(15),
		}},
		{ID: 9, Name: "Proxy Plans", SubFlow: &model.SubFlow{
			Kind:      model.SubFlowCountryTier,
			Countries: []model.Option{{ID: "us", Label: "United States"}, {ID: "uk", Label: "United Kingdom"}},
			Tiers:     []model.Option{{ID: "basic", Label: "Basic", Price: dec("1200")}, {ID: "pro", Label: "Pro", Price: dec("3500")}},
		}},
		{ID: 10, Name: "Custom Project", SubFlow: &model.SubFlow{
			Kind: model.SubFlowProject, Deposit: decimal.NewFromInt(5000), MinChars: 20,
		}},
	})
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}
	return c
}

// flowDeps wires the real in-memory store and index with mocked gateways.
type flowDeps struct {
	store    *memory.ConversationStore
	pending  *memory.PendingIndex
	msg      *MockMessenger
	gateway  *MockPaymentGateway
	renderer *usecase.PromptRenderer
	catalog  *model.Catalog
	payments usecase.PaymentUseCase
	flow     usecase.FlowUseCase
}

func newFlowDeps(t *testing.T) *flowDeps {
	t.Helper()
	d := &flowDeps{
		store:   memory.NewConversationStore(),
		pending: memory.NewPendingIndex(),
		msg:     &MockMessenger{},
		gateway: &MockPaymentGateway{},
		catalog: newTestCatalog(t),
	}
	texts := newTestTranslator(t)
	logger := newTestLogger()
	d.renderer = usecase.NewPromptRenderer(texts, d.catalog, usecase.RenderOptions{
		Currency:   "Ksh",
		SupportURL: "https://t.me/support",
		Wallets:    []usecase.Wallet{{Label: "BTC", Address: "1BtcWallet"}},
	})
	support := usecase.NewSupportNotifier(d.msg, texts, supportDest, logger)
	d.payments = usecase.NewPaymentUseCase(d.store, d.pending, d.gateway, d.msg, d.renderer, support,
		usecase.PaymentOptions{AccountReference: "EchoLabsBot"}, logger)
	d.flow = usecase.NewFlowUseCase(d.store, d.payments, d.renderer, d.catalog, d.msg, support,
		usecase.FlowOptions{CountryCode: "254"}, logger)
	return d
}

// drive feeds events in order and fails the test on the first error.
func (d *flowDeps) drive(t *testing.T, events ...model.Event) {
	t.Helper()
	for _, ev := range events {
		if err := d.flow.Handle(context.Background(), ev); err != nil {
			t.Fatalf("Handle(%+v) returned error: %v", ev, err)
		}
	}
}

func (d *flowDeps) record(t *testing.T, id int64) *model.Conversation {
	t.Helper()
	rec, err := d.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("expected conversation %d to exist, but got: %v", id, err)
	}
	return rec
}

func hasAction(p model.Prompt, action string) bool {
	for _, a := range p.Actions() {
		if a == action {
			return true
		}
	}
	return false
}
