package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mpesa-commerce-bot/internal/config"
	"mpesa-commerce-bot/internal/domain/model"
	"mpesa-commerce-bot/internal/domain/ports/adapter"
	"mpesa-commerce-bot/internal/infra/logging"
	"mpesa-commerce-bot/internal/infra/metrics"
	red "mpesa-commerce-bot/internal/infra/redis"
	"mpesa-commerce-bot/internal/infra/worker"
)

var _ adapter.Messenger = (*RealTelegramBotAdapter)(nil)

// EventHandler receives normalized chat events.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev model.Event) error
}

// Limiter throttles inbound events per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Texts interface {
	T(key string, args ...interface{}) string
}

// RealTelegramBotAdapter long-polls Telegram, normalizes updates into events and dispatches
// them to a keyed worker pool so one chat's events are handled in order. It is also the
// outbound Messenger.
type RealTelegramBotAdapter struct {
	bot         *tgbotapi.BotAPI
	pool        *worker.Pool
	rateLimiter Limiter
	texts       Texts
	log         *zerolog.Logger
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, pool *worker.Pool, rateLimiter Limiter, texts Texts, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return newAdapter(bot, pool, rateLimiter, texts, logger), nil
}

func newAdapter(bot *tgbotapi.BotAPI, pool *worker.Pool, rateLimiter Limiter, texts Texts, logger *zerolog.Logger) *RealTelegramBotAdapter {
	return &RealTelegramBotAdapter{
		bot:         bot,
		pool:        pool,
		rateLimiter: rateLimiter,
		texts:       texts,
		log:         logger,
	}
}

func (r *RealTelegramBotAdapter) Username() string { return r.bot.Self.UserName }

// RegisterCommands publishes the bot's command menu.
func (r *RealTelegramBotAdapter) RegisterCommands() error {
	_, err := r.bot.Request(tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Browse services"},
		tgbotapi.BotCommand{Command: "restart", Description: "Start over"},
		tgbotapi.BotCommand{Command: "cancel", Description: "Cancel the current order"},
	))
	return err
}

// StartPolling blocks until ctx is done, dispatching every update to h.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context, h EventHandler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)
	defer r.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.dispatch(ctx, up, h)
		}
	}
}

func (r *RealTelegramBotAdapter) dispatch(ctx context.Context, up tgbotapi.Update, h EventHandler) {
	ev, kind, ok := normalizeUpdate(up)
	metrics.IncTelegramUpdate(kind)
	if !ok {
		return
	}
	traceID := uuid.NewString()
	var callbackID string
	if up.CallbackQuery != nil {
		callbackID = up.CallbackQuery.ID
	}

	err := r.pool.Submit(ctx, ev.ConversationID, func(wctx context.Context) error {
		wctx = logging.WithChatID(logging.WithTraceID(wctx, traceID), ev.ConversationID)
		if callbackID != "" {
			// Stop the client's spinner.
			if _, err := r.bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
				logging.With(wctx, r.log).Debug().Err(err).Msg("failed to answer callback query")
			}
		}
		if !r.allow(wctx, ev.ConversationID) {
			return nil
		}
		return h.HandleEvent(wctx, ev)
	})
	if err != nil && ctx.Err() == nil {
		logging.With(ctx, r.log).Error().Err(err).Int64("chat_id", ev.ConversationID).Msg("failed to dispatch update")
	}
}

// allow applies the optional per-chat rate limit. Limiter errors fail open.
func (r *RealTelegramBotAdapter) allow(ctx context.Context, chatID int64) bool {
	if r.rateLimiter == nil {
		return true
	}
	allowed, err := r.rateLimiter.Allow(ctx, red.ChatKey(chatID))
	if err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("rate limit check failed")
		return true
	}
	if allowed {
		return true
	}
	metrics.IncRateLimitTriggered()
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, r.texts.T("rate_limited"))); err != nil {
		logging.With(ctx, r.log).Debug().Err(err).Msg("failed to send rate limit notice")
	}
	return false
}
