package api

import (
	"context"
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"mpesa-commerce-bot/internal/domain/model"
	"mpesa-commerce-bot/internal/infra/adapters/payment"
	"mpesa-commerce-bot/internal/infra/logging"
	"mpesa-commerce-bot/internal/infra/metrics"
)

// maxCallbackBody caps what a provider callback may send.
const maxCallbackBody = 1 << 20

// CallbackHandler applies a normalized provider outcome.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, outcome model.PaymentOutcome) (bool, error)
}

// Server wires the M-Pesa callback route plus health, banner and metrics.
type Server struct {
	callbacks      CallbackHandler
	cbPath         string
	botUsername    string
	requestTimeout time.Duration
	log            *zerolog.Logger
}

// NewServer constructs the HTTP layer. callbackPath must match the path portion of the
// callback URL sent with every STK push.
func NewServer(callbacks CallbackHandler, callbackPath, botUsername string, requestTimeout time.Duration, logger *zerolog.Logger) *Server {
	if callbackPath == "" {
		callbackPath = "/callback"
	}
	return &Server{
		callbacks:      callbacks,
		cbPath:         callbackPath,
		botUsername:    botUsername,
		requestTimeout: requestTimeout,
		log:            logger,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log), Timeout(s.requestTimeout))

	r.Get("/", s.handleBanner)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post(s.cbPath, s.handleCallback)
	return r
}

// handleCallback always acknowledges. The provider retries on anything but a 200 and
// cares about delivery only, so correlation results stay internal.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	result := s.reconcile(r)
	metrics.ObserveCallback(result, started)
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) reconcile(r *http.Request) string {
	ctx := r.Context()
	l := logging.With(ctx, s.log)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		l.Warn().Err(err).Msg("failed to read payment callback")
		return "malformed"
	}
	outcome, err := payment.ParseSTKCallback(body)
	if err != nil {
		l.Warn().Err(err).Msg("discarding payment callback")
		return "malformed"
	}

	applied, err := s.callbacks.HandleCallback(ctx, outcome)
	switch {
	case err != nil:
		return "error"
	case !applied:
		return "unknown"
	case outcome.Succeeded():
		return "succeeded"
	default:
		return "failed"
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

var banner = template.Must(template.New("banner").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>Shop bot</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.btn{display:inline-block;margin-top:16px;padding:10px 16px;border-radius:8px;border:1px solid #888;text-decoration:none}
</style>
</head>
<body>
<div class="card">
  <h2>Shop bot is running</h2>
  <p>Browse services and pay with M-Pesa from Telegram.</p>
  {{if .BotUsername}}
    <a class="btn" href="https://t.me/{{.BotUsername}}">Open @{{.BotUsername}}</a>
  {{end}}
</div>
</body>
</html>`))

func (s *Server) handleBanner(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = banner.Execute(w, struct{ BotUsername string }{BotUsername: s.botUsername})
}
