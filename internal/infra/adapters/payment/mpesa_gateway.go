// File: internal/infra/adapters/payment/mpesa_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"mpesa-commerce-bot/internal/config"
	"mpesa-commerce-bot/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*MPesaGateway)(nil)

const (
	mpesaSandboxURL = "https://sandbox.safaricom.co.ke"
	mpesaProdURL    = "https://api.safaricom.co.ke"

	stkTimestampLayout = "20060102150405"
	tokenSkew          = 60 * time.Second
)

// Daraja timestamps are East Africa Time, which has no daylight saving.
var eat = time.FixedZone("EAT", 3*60*60)

// MPesaGateway implements adapter.PaymentGateway with the Daraja OAuth and STK push APIs.
type MPesaGateway struct {
	consumerKey    string
	consumerSecret string
	shortcode      string
	passkey        string
	callbackURL    string
	baseURL        string
	cacheToken     bool
	client         *http.Client
	now            func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewMPesaGateway(cfg config.MPesaConfig) (*MPesaGateway, error) {
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" {
		return nil, errors.New("mpesa consumer key/secret empty")
	}
	if cfg.Shortcode == "" || cfg.Passkey == "" {
		return nil, errors.New("mpesa shortcode/passkey empty")
	}
	if _, err := url.ParseRequestURI(cfg.CallbackURL); err != nil {
		return nil, fmt.Errorf("invalid callback url: %w", err)
	}
	base := mpesaSandboxURL
	if cfg.Env == "prod" {
		base = mpesaProdURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &MPesaGateway{
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		shortcode:      cfg.Shortcode,
		passkey:        cfg.Passkey,
		callbackURL:    cfg.CallbackURL,
		baseURL:        base,
		cacheToken:     cfg.CacheToken,
		client:         &http.Client{Timeout: timeout},
		now:            time.Now,
	}, nil
}

// SetBaseURL points the gateway at another Daraja host, e.g. a test server.
func (g *MPesaGateway) SetBaseURL(u string) { g.baseURL = u }

func (g *MPesaGateway) Name() string { return "mpesa" }

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`

	// error envelope
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// RequestPayment sends an STK push. The amount is charged in whole units, rounded up.
func (g *MPesaGateway) RequestPayment(ctx context.Context, req adapter.PaymentRequest) (adapter.PaymentIntent, error) {
	if !req.Amount.IsPositive() {
		return adapter.PaymentIntent{}, &adapter.ProviderError{Kind: adapter.ProviderRejected, Message: "amount must be positive"}
	}
	token, err := g.accessToken(ctx)
	if err != nil {
		return adapter.PaymentIntent{}, err
	}

	ts := g.now().In(eat).Format(stkTimestampLayout)
	payload := stkPushRequest{
		BusinessShortCode: g.shortcode,
		Password:          g.password(ts),
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount.Ceil().IntPart(),
		PartyA:            req.Phone,
		PartyB:            g.shortcode,
		PhoneNumber:       req.Phone,
		CallBackURL:       g.callbackURL,
		AccountReference:  req.AccountReference,
		TransactionDesc:   req.Description,
	}
	b, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(b))
	if err != nil {
		return adapter.PaymentIntent{}, &adapter.ProviderError{Kind: adapter.ProviderUnavailable, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return adapter.PaymentIntent{}, &adapter.ProviderError{Kind: adapter.ProviderUnavailable, Err: err}
	}
	defer resp.Body.Close()

	var out stkPushResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out)
	switch {
	case resp.StatusCode >= 500:
		return adapter.PaymentIntent{}, &adapter.ProviderError{
			Kind: adapter.ProviderUnavailable, Code: out.ErrorCode, Message: out.ErrorMessage,
			Err: fmt.Errorf("stk push http %d", resp.StatusCode),
		}
	case resp.StatusCode >= 400:
		if resp.StatusCode == http.StatusUnauthorized {
			g.dropToken()
		}
		return adapter.PaymentIntent{}, &adapter.ProviderError{
			Kind: adapter.ProviderRejected, Code: out.ErrorCode, Message: out.ErrorMessage,
			Err: fmt.Errorf("stk push http %d", resp.StatusCode),
		}
	case decodeErr != nil:
		return adapter.PaymentIntent{}, &adapter.ProviderError{Kind: adapter.ProviderUnavailable, Err: fmt.Errorf("decode stk push response: %w", decodeErr)}
	case out.ResponseCode != "0":
		return adapter.PaymentIntent{}, &adapter.ProviderError{Kind: adapter.ProviderRejected, Code: out.ResponseCode, Message: out.ResponseDescription}
	case out.CheckoutRequestID == "":
		return adapter.PaymentIntent{}, &adapter.ProviderError{Kind: adapter.ProviderRejected, Message: "no CheckoutRequestID in response"}
	}
	return adapter.PaymentIntent{
		TransactionID:     out.CheckoutRequestID,
		MerchantRequestID: out.MerchantRequestID,
		CustomerMessage:   out.CustomerMessage,
	}, nil
}

// password is base64(shortcode + passkey + timestamp).
func (g *MPesaGateway) password(ts string) string {
	return base64.StdEncoding.EncodeToString([]byte(g.shortcode + g.passkey + ts))
}

// accessToken fetches a bearer token, reusing a cached one when caching is enabled.
func (g *MPesaGateway) accessToken(ctx context.Context) (string, error) {
	if g.cacheToken {
		g.mu.Lock()
		if g.token != "" && g.now().Before(g.tokenExpiry) {
			t := g.token
			g.mu.Unlock()
			return t, nil
		}
		g.mu.Unlock()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", &adapter.ProviderError{Kind: adapter.ProviderUnavailable, Err: err}
	}
	req.SetBasicAuth(g.consumerKey, g.consumerSecret)
	resp, err := g.client.Do(req)
	if err != nil {
		return "", &adapter.ProviderError{Kind: adapter.ProviderUnavailable, Err: fmt.Errorf("token request: %w", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &adapter.ProviderError{Kind: adapter.ProviderUnavailable, Err: fmt.Errorf("token http %d", resp.StatusCode)}
	}
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   any    `json:"expires_in"` // Daraja sends a quoted number
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return "", &adapter.ProviderError{Kind: adapter.ProviderUnavailable, Err: fmt.Errorf("decode token: %w", err)}
	}
	if out.AccessToken == "" {
		return "", &adapter.ProviderError{Kind: adapter.ProviderUnavailable, Message: "empty access token"}
	}

	if g.cacheToken {
		ttl := time.Hour
		if secs := expiresInSeconds(out.ExpiresIn); secs > 0 {
			ttl = time.Duration(secs) * time.Second
		}
		g.mu.Lock()
		g.token = out.AccessToken
		g.tokenExpiry = g.now().Add(ttl - tokenSkew)
		g.mu.Unlock()
	}
	return out.AccessToken, nil
}

func (g *MPesaGateway) dropToken() {
	g.mu.Lock()
	g.token = ""
	g.mu.Unlock()
}

func expiresInSeconds(v any) int {
	switch t := v.(type) {
	case string:
		n, _ := strconv.Atoi(t)
		return n
	case float64:
		return int(t)
	}
	return 0
}
