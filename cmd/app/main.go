// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"mpesa-commerce-bot/internal/application"
	"mpesa-commerce-bot/internal/config"
	"mpesa-commerce-bot/internal/domain/ports/adapter"
	payAdapters "mpesa-commerce-bot/internal/infra/adapters/payment"
	tele "mpesa-commerce-bot/internal/infra/adapters/telegram"
	"mpesa-commerce-bot/internal/infra/api"
	"mpesa-commerce-bot/internal/infra/catalog"
	"mpesa-commerce-bot/internal/infra/i18n"
	"mpesa-commerce-bot/internal/infra/logging"
	"mpesa-commerce-bot/internal/infra/memory"
	"mpesa-commerce-bot/internal/infra/metrics"
	red "mpesa-commerce-bot/internal/infra/redis"
	"mpesa-commerce-bot/internal/infra/sched"
	"mpesa-commerce-bot/internal/infra/worker"
	"mpesa-commerce-bot/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (no M-Pesa credentials, unredacted logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("bot stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Catalog & texts ----
	services, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	texts, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Language)
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}

	// ---- Stores ----
	store := memory.NewConversationStore()
	pending := memory.NewPendingIndex()

	// ---- Payment gateway ----
	var gateway adapter.PaymentGateway
	if cfg.Runtime.Dev && cfg.Payment.MPesa.ConsumerKey == "" {
		gateway = payAdapters.NewNoopPaymentGateway()
		logger.Warn().Msg("M-Pesa credentials not set; using the no-op payment gateway")
	} else {
		mp, err := payAdapters.NewMPesaGateway(cfg.Payment.MPesa)
		if err != nil {
			return fmt.Errorf("mpesa gateway: %w", err)
		}
		gateway = mp
		logger.Info().Str("env", cfg.Payment.MPesa.Env).Bool("cache_token", cfg.Payment.MPesa.CacheToken).Msg("M-Pesa gateway ready")
	}

	// ---- Redis (optional, rate limiting) ----
	var limiter tele.Limiter
	if cfg.Redis.URL != "" && cfg.Redis.RateLimitPerMinute > 0 {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient, cfg.Redis.RateLimitPerMinute, time.Minute)
		logger.Info().Int("per_minute", cfg.Redis.RateLimitPerMinute).Msg("per-chat rate limit enabled")
	}

	// ---- Telegram ----
	pool := worker.NewPool(cfg.Bot.Workers, cfg.Bot.QueueSize, logger)
	bot, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, pool, limiter, texts, logger)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if err := bot.RegisterCommands(); err != nil {
		logger.Warn().Err(err).Msg("failed to register bot commands")
	}

	// ---- Use cases ----
	wallets := make([]usecase.Wallet, 0, len(cfg.Payment.Crypto.Wallets))
	for _, w := range cfg.Payment.Crypto.Wallets {
		wallets = append(wallets, usecase.Wallet{Label: w.Label, Address: w.Address})
	}
	renderer := usecase.NewPromptRenderer(texts, services, usecase.RenderOptions{
		Currency:   displayCurrency(cfg.Payment.Currency),
		SupportURL: cfg.Bot.SupportURL(),
		Wallets:    wallets,
	})
	support := usecase.NewSupportNotifier(bot, texts, cfg.Bot.SupportDestination(), logger)
	paymentUC := usecase.NewPaymentUseCase(store, pending, gateway, bot, renderer, support, usecase.PaymentOptions{
		AccountReference: cfg.Payment.MPesa.AccountReference,
		Currency:         cfg.Payment.Currency,
		Dev:              cfg.Runtime.Dev,
	}, logger)
	flowUC := usecase.NewFlowUseCase(store, paymentUC, renderer, services, bot, support, usecase.FlowOptions{
		CountryCode: cfg.Payment.CountryCode,
	}, logger)

	// ---- Facade ----
	facade := application.NewBotFacade(flowUC, paymentUC, logger)

	// ---- HTTP callback server ----
	srv := api.NewServer(facade, cfg.HTTP.CallbackPath, bot.Username(), cfg.HTTP.RequestTimeout, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Str("path", cfg.HTTP.CallbackPath).Msg("http callback listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// ---- Expiry worker ----
	expiry := sched.NewExpiryWorker(cfg.Conversation.SweepInterval, cfg.Payment.PendingTimeout, cfg.Conversation.TTL, paymentUC, flowUC, logger)
	go func() { _ = expiry.Run(ctx) }()

	// ---- Polling ----
	pool.Start(ctx)
	pollErr := make(chan error, 1)
	go func() {
		logger.Info().Str("bot", bot.Username()).Msg("telegram polling started")
		pollErr <- bot.StartPolling(ctx, facade)
	}()

	// ---- Graceful shutdown ----
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-serverErr:
		runErr = fmt.Errorf("http server: %w", err)
	case err := <-pollErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("telegram polling: %w", err)
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	pool.Stop()
	return runErr
}

// displayCurrency maps an ISO code to the label buyers see in prompts.
func displayCurrency(code string) string {
	switch strings.ToUpper(code) {
	case "KES":
		return "Ksh"
	default:
		return strings.ToUpper(code)
	}
}
