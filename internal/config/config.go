// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token           string `yaml:"token" validate:"required"`
	Workers         int    `yaml:"workers" validate:"gte=1"` // tasks running at once across chats
	QueueSize       int    `yaml:"queue_size" validate:"gte=1"`
	Language        string `yaml:"language"`
	SupportUsername string `yaml:"support_username"`
	SupportChatID   string `yaml:"support_chat_id"` // numeric id or @channel, wins over the username
}

// SupportDestination is where operational notices and payment proofs go.
func (b BotConfig) SupportDestination() string {
	if b.SupportChatID != "" {
		return b.SupportChatID
	}
	if b.SupportUsername != "" {
		return "@" + b.SupportUsername
	}
	return ""
}

// SupportURL is the deep link behind the "Contact support" button.
func (b BotConfig) SupportURL() string {
	if b.SupportUsername == "" {
		return ""
	}
	return "https://t.me/" + b.SupportUsername
}

type LogConfig struct {
	Level    string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format   string `yaml:"format" validate:"oneof=json console"`
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port" validate:"gte=1,lte=65535"`
	CallbackPath   string        `yaml:"callback_path" validate:"startswith=/"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type RedisConfig struct {
	URL                string `yaml:"url"`
	Password           string `yaml:"password"`
	DB                 int    `yaml:"db"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

type MPesaConfig struct {
	Env              string        `yaml:"env" validate:"oneof=sandbox prod"`
	ConsumerKey      string        `yaml:"consumer_key" validate:"required"`
	ConsumerSecret   string        `yaml:"consumer_secret" validate:"required"`
	Shortcode        string        `yaml:"shortcode" validate:"required,numeric"`
	Passkey          string        `yaml:"passkey" validate:"required"`
	CallbackURL      string        `yaml:"callback_url" validate:"required,url"`
	AccountReference string        `yaml:"account_reference" validate:"max=12"`
	CacheToken       bool          `yaml:"cache_token"`
	Timeout          time.Duration `yaml:"timeout"`
}

type WalletConfig struct {
	Label   string `yaml:"label" validate:"required"`
	Address string `yaml:"address" validate:"required"`
}

type PaymentConfig struct {
	// Validated separately; dev mode runs without credentials.
	MPesa          MPesaConfig   `yaml:"mpesa" validate:"-"`
	CountryCode    string        `yaml:"country_code" validate:"numeric"`
	Currency       string        `yaml:"currency" validate:"len=3"`
	PendingTimeout time.Duration `yaml:"pending_timeout"` // 0 disables expiry
	Crypto         struct {
		Wallets []WalletConfig `yaml:"wallets" validate:"dive"`
	} `yaml:"crypto"`
}

type ConversationConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type CatalogConfig struct {
	Path string `yaml:"path"` // empty uses the embedded catalog
}

type Config struct {
	Bot          BotConfig          `yaml:"bot"`
	Log          LogConfig          `yaml:"log"`
	HTTP         HTTPConfig         `yaml:"http"`
	Redis        RedisConfig        `yaml:"redis"`
	Payment      PaymentConfig      `yaml:"payment"`
	Conversation ConversationConfig `yaml:"conversation"`
	Catalog      CatalogConfig      `yaml:"catalog"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the optional YAML file, then .env and the process environment, fills
// defaults and validates. A missing file at path is not an error.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags. M-Pesa credentials are only required outside dev mode.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !c.Runtime.Dev {
		if err := v.Struct(c.Payment.MPesa); err != nil {
			return fmt.Errorf("invalid payment.mpesa config: %w", err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	str("TELEGRAM_BOT_TOKEN", &cfg.Bot.Token)
	str("SUPPORT_TELEGRAM_USERNAME", &cfg.Bot.SupportUsername)
	str("SUPPORT_CHAT_ID", &cfg.Bot.SupportChatID)
	str("MPESA_ENV", &cfg.Payment.MPesa.Env)
	str("MPESA_CONSUMER_KEY", &cfg.Payment.MPesa.ConsumerKey)
	str("MPESA_CONSUMER_SECRET", &cfg.Payment.MPesa.ConsumerSecret)
	str("MPESA_SHORTCODE", &cfg.Payment.MPesa.Shortcode)
	str("MPESA_PASSKEY", &cfg.Payment.MPesa.Passkey)
	str("MPESA_CALLBACK_URL", &cfg.Payment.MPesa.CallbackURL)
	str("REDIS_URL", &cfg.Redis.URL)
	str("LOG_LEVEL", &cfg.Log.Level)

	if v, ok := os.LookupEnv("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PORT: %w", err)
		}
		cfg.HTTP.Port = port
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 32
	}
	if cfg.Bot.QueueSize <= 0 {
		cfg.Bot.QueueSize = 64
	}
	if cfg.Bot.Language == "" {
		cfg.Bot.Language = "en"
	}
	if cfg.Bot.SupportUsername == "" && cfg.Bot.SupportChatID == "" {
		cfg.Bot.SupportUsername = "Luqman2893"
	}
	cfg.Bot.SupportUsername = strings.TrimPrefix(cfg.Bot.SupportUsername, "@")

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 3000
	}
	if cfg.HTTP.CallbackPath == "" {
		cfg.HTTP.CallbackPath = callbackPath(cfg.Payment.MPesa.CallbackURL)
	}
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		cfg.HTTP.WriteTimeout = 10 * time.Second
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}

	if cfg.Redis.RateLimitPerMinute < 0 {
		cfg.Redis.RateLimitPerMinute = 0
	}

	m := &cfg.Payment.MPesa
	m.Env = strings.ToLower(m.Env)
	if m.Env == "" {
		m.Env = "sandbox"
	}
	if m.AccountReference == "" {
		m.AccountReference = "EchoLabsBot"
	}
	if m.Timeout <= 0 {
		m.Timeout = 15 * time.Second
	}
	if cfg.Payment.CountryCode == "" {
		cfg.Payment.CountryCode = "254"
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "KES"
	}
	if cfg.Payment.PendingTimeout < 0 {
		cfg.Payment.PendingTimeout = 0
	}

	if cfg.Conversation.TTL <= 0 {
		cfg.Conversation.TTL = 24 * time.Hour
	}
	if cfg.Conversation.SweepInterval <= 0 {
		cfg.Conversation.SweepInterval = time.Minute
	}
}

// callbackPath serves the callback on the same path the provider was told to call.
func callbackPath(callbackURL string) string {
	if callbackURL == "" {
		return "/callback"
	}
	u, err := url.Parse(callbackURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "/callback"
	}
	return u.Path
}
