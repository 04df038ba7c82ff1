package config

import (
	"TradeTalk/internal/generation"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Поддерживаемые провайдеры генерации.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderStub   = "stub"
)

// Способы авторизации в Gemini.
const (
	GeminiAuthAPIKey = "apikey"
	GeminiAuthADC    = "adc"
)

type Config struct {
	DebugMode bool `env:"DEBUG_MODE"` // Режим дебага: development‑логгер

	Relay      RelayConfig
	Gemini     GeminiConfig
	OpenAI     OpenAIConfig
	Generation GenerationConfig
	Client     ClientConfig
}

// RelayConfig конфигурация релея (HTTP‑функции между клиентом и провайдером).
type RelayConfig struct {
	BindAddr        string        `env:"RELAY_BIND_ADDR"`      // Адрес слушателя, напр. 127.0.0.1:8787
	Path            string        `env:"RELAY_PATH"`           // HTTP‑путь релея
	SessionPath     string        `env:"RELAY_SESSION_PATH"`   // Путь websocket‑сессий; пусто - выключено
	MetricsPath     string        `env:"RELAY_METRICS_PATH"`   // Путь Prometheus; пусто - выключено
	MaxBodyBytes    int64         `env:"RELAY_MAX_BODY_BYTES"` // Лимит тела запроса
	Provider        string        `env:"PROVIDER"`             // gemini|openai|stub
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT"`     // Таймаут исходящего вызова провайдера
}

// GeminiConfig конфигурация Google Generative Language API.
type GeminiConfig struct {
	APIKey   string `env:"GEMINI_API_KEY"` // Единственный обязательный секрет. Пусто - ConfigurationFailure на каждом вызове
	Model    string `env:"GEMINI_MODEL"`
	Endpoint string `env:"GEMINI_ENDPOINT"`
	Auth     string `env:"GEMINI_AUTH"` // apikey|adc
}

type OpenAIConfig struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	Model   string `env:"OPENAI_MODEL"`
	BaseURL string `env:"OPENAI_BASE_URL"`
}

// GenerationConfig параметры генерации. Задаются оператором, не пользователем чата.
type GenerationConfig struct {
	Temperature     float64 `env:"GENERATION_TEMPERATURE"`
	TopK            int     `env:"GENERATION_TOP_K"`
	TopP            float64 `env:"GENERATION_TOP_P"`
	MaxOutputTokens int     `env:"GENERATION_MAX_OUTPUT_TOKENS"`
	SafetyThreshold string  `env:"GENERATION_SAFETY_THRESHOLD"`
}

// ClientConfig конфигурация терминального клиента.
type ClientConfig struct {
	RelayURL      string        `env:"RELAY_URL"`
	RelayTimeout  time.Duration `env:"RELAY_TIMEOUT"`
	HistoryWindow int           `env:"HISTORY_WINDOW"` // Сколько последних сообщений отправлять как контекст
	UserID        string        `env:"USER_ID"`
	UserEmail     string        `env:"USER_EMAIL"`
}

// Settings переводит конфиг в параметры запроса.
func (g GenerationConfig) Settings() generation.Settings {
	return generation.Settings{
		Temperature:     g.Temperature,
		TopK:            g.TopK,
		TopP:            g.TopP,
		MaxOutputTokens: g.MaxOutputTokens,
		Safety:          generation.SafetyFor(g.SafetyThreshold),
	}
}

// Defaults возвращает конфигурацию с предустановленными значениями по умолчанию.
// Эти значения перекрываются .env, переменными окружения и флагами CLI.
func Defaults() *Config {
	d := generation.DefaultSettings()
	return &Config{
		DebugMode: false,
		Relay: RelayConfig{
			BindAddr:        "127.0.0.1:8787",
			Path:            "/chat-with-gemini",
			SessionPath:     "/ws",
			MetricsPath:     "/metrics",
			MaxBodyBytes:    10 << 20,
			Provider:        ProviderGemini,
			ProviderTimeout: 30 * time.Second,
		},
		Gemini: GeminiConfig{
			Model:    "gemini-1.5-flash",
			Endpoint: "https://generativelanguage.googleapis.com/v1beta",
			Auth:     GeminiAuthAPIKey,
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o",
		},
		Generation: GenerationConfig{
			Temperature:     d.Temperature,
			TopK:            d.TopK,
			TopP:            d.TopP,
			MaxOutputTokens: d.MaxOutputTokens,
			SafetyThreshold: generation.BlockMediumAndAbove,
		},
		Client: ClientConfig{
			RelayURL:      "http://127.0.0.1:8787/chat-with-gemini",
			RelayTimeout:  60 * time.Second,
			HistoryWindow: 5,
		},
	}
}

// NewConfig загружает конфигурацию приложения из .env, окружения и os.Args.
// Невалидная конфигурация - ошибка старта, паникуем.
func NewConfig() *Config {
	_ = godotenv.Load()

	cfg, err := Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load стартует с дефолтов, перекрывает окружением, затем флагами из args.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	fs.BoolVar(&cfg.DebugMode, "debug-mode", cfg.DebugMode, "включить режим дебага")
	// Релей
	fs.StringVar(&cfg.Relay.BindAddr, "relay-bind-addr", cfg.Relay.BindAddr, "адрес для прослушивания релея (напр. 127.0.0.1:8787)")
	fs.StringVar(&cfg.Relay.Path, "relay-path", cfg.Relay.Path, "HTTP путь релея")
	fs.StringVar(&cfg.Relay.SessionPath, "relay-session-path", cfg.Relay.SessionPath, "путь websocket-сессий (пусто - выключено)")
	fs.StringVar(&cfg.Relay.MetricsPath, "relay-metrics-path", cfg.Relay.MetricsPath, "путь метрик Prometheus (пусто - выключено)")
	fs.Int64Var(&cfg.Relay.MaxBodyBytes, "relay-max-body-bytes", cfg.Relay.MaxBodyBytes, "лимит размера тела запроса в байтах")
	fs.StringVar(&cfg.Relay.Provider, "provider", cfg.Relay.Provider, "провайдер генерации: gemini|openai|stub")
	fs.DurationVar(&cfg.Relay.ProviderTimeout, "provider-timeout", cfg.Relay.ProviderTimeout, "таймаут вызова провайдера, напр. 30s")
	// Gemini. Ключ флагом не принимаем, только из окружения.
	fs.StringVar(&cfg.Gemini.Model, "gemini-model", cfg.Gemini.Model, "модель Gemini")
	fs.StringVar(&cfg.Gemini.Endpoint, "gemini-endpoint", cfg.Gemini.Endpoint, "базовый URL Generative Language API")
	fs.StringVar(&cfg.Gemini.Auth, "gemini-auth", cfg.Gemini.Auth, "авторизация Gemini: apikey|adc")
	// OpenAI
	fs.StringVar(&cfg.OpenAI.Model, "openai-model", cfg.OpenAI.Model, "модель OpenAI")
	fs.StringVar(&cfg.OpenAI.BaseURL, "openai-base-url", cfg.OpenAI.BaseURL, "базовый URL OpenAI API (пусто - по умолчанию)")
	// Параметры генерации
	fs.Float64Var(&cfg.Generation.Temperature, "generation-temperature", cfg.Generation.Temperature, "temperature")
	fs.IntVar(&cfg.Generation.TopK, "generation-top-k", cfg.Generation.TopK, "topK")
	fs.Float64Var(&cfg.Generation.TopP, "generation-top-p", cfg.Generation.TopP, "topP")
	fs.IntVar(&cfg.Generation.MaxOutputTokens, "generation-max-output-tokens", cfg.Generation.MaxOutputTokens, "лимит длины ответа в токенах")
	fs.StringVar(&cfg.Generation.SafetyThreshold, "generation-safety-threshold", cfg.Generation.SafetyThreshold, "порог блокировки для всех категорий безопасности")
	// Клиент
	fs.StringVar(&cfg.Client.RelayURL, "relay-url", cfg.Client.RelayURL, "URL релея для клиента")
	fs.DurationVar(&cfg.Client.RelayTimeout, "relay-timeout", cfg.Client.RelayTimeout, "таймаут вызова релея, напр. 60s")
	fs.IntVar(&cfg.Client.HistoryWindow, "history-window", cfg.Client.HistoryWindow, "сколько последних сообщений отправлять как контекст")
	fs.StringVar(&cfg.Client.UserID, "user-id", cfg.Client.UserID, "идентификатор пользователя")
	fs.StringVar(&cfg.Client.UserEmail, "user-email", cfg.Client.UserEmail, "email пользователя")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Relay.Provider = strings.ToLower(strings.TrimSpace(cfg.Relay.Provider))
	cfg.Gemini.Auth = strings.ToLower(strings.TrimSpace(cfg.Gemini.Auth))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет то, без чего процесс не стартует.
// Отсутствие API‑ключа сюда не входит: это ошибка конкретного вызова.
func (c *Config) Validate() error {
	switch c.Relay.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderStub:
	default:
		return fmt.Errorf("config: unknown provider %q; use gemini|openai|stub", c.Relay.Provider)
	}
	switch c.Gemini.Auth {
	case GeminiAuthAPIKey, GeminiAuthADC:
	default:
		return fmt.Errorf("config: unknown gemini auth %q; use apikey|adc", c.Gemini.Auth)
	}
	if c.Client.HistoryWindow <= 0 {
		return fmt.Errorf("config: history window must be positive, got %d", c.Client.HistoryWindow)
	}
	if c.Relay.ProviderTimeout <= 0 {
		return fmt.Errorf("config: provider timeout must be positive, got %s", c.Relay.ProviderTimeout)
	}
	return nil
}
