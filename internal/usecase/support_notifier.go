package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"mpesa-commerce-bot/internal/domain/ports/adapter"
	"mpesa-commerce-bot/internal/infra/logging"
	"mpesa-commerce-bot/internal/infra/metrics"
)

// SupportNotifier posts best-effort operational notices to the support destination.
// Delivery failures are logged and never fail the caller.
type SupportNotifier struct {
	msg         adapter.Messenger
	texts       Texts
	destination string
	log         *zerolog.Logger
}

func NewSupportNotifier(msg adapter.Messenger, texts Texts, destination string, logger *zerolog.Logger) *SupportNotifier {
	return &SupportNotifier{msg: msg, texts: texts, destination: destination, log: logger}
}

func (n *SupportNotifier) Destination() string {
	if n == nil {
		return ""
	}
	return n.destination
}

// Notify renders key with args and sends it. A nil notifier or empty destination is a no-op.
func (n *SupportNotifier) Notify(ctx context.Context, key string, args ...interface{}) {
	if n == nil || n.destination == "" {
		return
	}
	if err := n.msg.Notify(ctx, n.destination, n.texts.T(key, args...)); err != nil {
		metrics.IncDeliveryFailure("notify")
		logging.With(ctx, n.log).Warn().Err(err).Str("notice", key).Msg("support notification failed")
	}
}

// Text renders a notice without sending it, e.g. as a caption.
func (n *SupportNotifier) Text(key string, args ...interface{}) string {
	return n.texts.T(key, args...)
}
