//go:build !integration

package api_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mpesa-commerce-bot/internal/domain/model"
	"mpesa-commerce-bot/internal/infra/api"
)

type mockCallbacks struct {
	outcomes           []model.PaymentOutcome
	HandleCallbackFunc func(ctx context.Context, o model.PaymentOutcome) (bool, error)
}

func (m *mockCallbacks) HandleCallback(ctx context.Context, o model.PaymentOutcome) (bool, error) {
	m.outcomes = append(m.outcomes, o)
	if m.HandleCallbackFunc != nil {
		return m.HandleCallbackFunc(ctx, o)
	}
	return true, nil
}

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

const successBody = `{"Body":{"stkCallback":{
	"MerchantRequestID":"29115-34620561-1",
	"CheckoutRequestID":"ws_CO_191220191020363925",
	"ResultCode":0,
	"ResultDesc":"The service request is processed successfully.",
	"CallbackMetadata":{"Item":[
		{"Name":"Amount","Value":1500},
		{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},
		{"Name":"PhoneNumber","Value":254712345678}
	]}}}}`

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Callback(t *testing.T) {
	t.Run("should hand a parsed outcome to the handler and acknowledge", func(t *testing.T) {
		// --- Arrange ---
		cb := &mockCallbacks{}
		h := api.NewServer(cb, "/callback", "shop_bot", time.Second, newLogger()).Routes()

		// --- Act ---
		rec := post(t, h, "/callback", successBody)

		// --- Assert ---
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"accepted"`) {
			t.Fatalf("expected 200 accepted, but got %d %s", rec.Code, rec.Body.String())
		}
		if len(cb.outcomes) != 1 {
			t.Fatalf("expected 1 outcome, but got %d", len(cb.outcomes))
		}
		o := cb.outcomes[0]
		if o.TransactionID != "ws_CO_191220191020363925" || !o.Succeeded() || o.ReceiptID != "NLJ7RT61SV" {
			t.Errorf("expected the parsed success outcome, but got %+v", o)
		}
		if rec.Header().Get("X-Trace-Id") == "" {
			t.Errorf("expected a trace id header")
		}
	})

	t.Run("should acknowledge a malformed callback without calling the handler", func(t *testing.T) {
		// --- Arrange ---
		cb := &mockCallbacks{}
		h := api.NewServer(cb, "/callback", "", time.Second, newLogger()).Routes()

		// --- Act ---
		rec := post(t, h, "/callback", `{"Body":{}}`)

		// --- Assert ---
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, but got %d", rec.Code)
		}
		if len(cb.outcomes) != 0 {
			t.Errorf("expected no outcomes, but got %d", len(cb.outcomes))
		}
	})

	t.Run("should acknowledge when reconciliation fails", func(t *testing.T) {
		// --- Arrange ---
		cb := &mockCallbacks{HandleCallbackFunc: func(context.Context, model.PaymentOutcome) (bool, error) {
			return false, errors.New("store down")
		}}
		h := api.NewServer(cb, "/callback", "", time.Second, newLogger()).Routes()

		// --- Act ---
		rec := post(t, h, "/callback", successBody)

		// --- Assert ---
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"accepted"`) {
			t.Errorf("expected 200 accepted, but got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("should serve the callback on a custom path", func(t *testing.T) {
		// --- Arrange ---
		cb := &mockCallbacks{}
		h := api.NewServer(cb, "/mpesa/stk", "", time.Second, newLogger()).Routes()

		// --- Act ---
		rec := post(t, h, "/mpesa/stk", successBody)
		other := post(t, h, "/callback", successBody)

		// --- Assert ---
		if rec.Code != http.StatusOK || len(cb.outcomes) != 1 {
			t.Errorf("expected the custom path to reconcile, but got %d with %d outcomes", rec.Code, len(cb.outcomes))
		}
		if other.Code != http.StatusNotFound {
			t.Errorf("expected 404 on the default path, but got %d", other.Code)
		}
	})
}

func TestServer_Probes(t *testing.T) {
	h := api.NewServer(&mockCallbacks{}, "", "shop_bot", 0, newLogger()).Routes()
	srv := httptest.NewServer(h)
	defer srv.Close()

	get := func(t *testing.T, path string) (int, string) {
		t.Helper()
		resp, err := srv.Client().Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}

	t.Run("should report health", func(t *testing.T) {
		code, body := get(t, "/health")
		if code != http.StatusOK || body != "OK" {
			t.Errorf("expected 200 OK, but got %d %q", code, body)
		}
	})

	t.Run("should link the bot from the banner", func(t *testing.T) {
		code, body := get(t, "/")
		if code != http.StatusOK || !strings.Contains(body, "https://t.me/shop_bot") {
			t.Errorf("expected a bot link, but got %d %q", code, body)
		}
	})

	t.Run("should expose prometheus metrics", func(t *testing.T) {
		code, body := get(t, "/metrics")
		if code != http.StatusOK || !strings.Contains(body, "go_goroutines") {
			t.Errorf("expected the default registry, but got %d", code)
		}
	})
}

func TestRecover(t *testing.T) {
	t.Run("should turn a panic into a 500", func(t *testing.T) {
		// --- Arrange ---
		h := api.Recover(newLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()

		// --- Act ---
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		// --- Assert ---
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, but got %d", rec.Code)
		}
	})
}
