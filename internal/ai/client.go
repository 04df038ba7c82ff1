package ai

import (
	"TradeTalk/internal/config"
	"TradeTalk/internal/generation"
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Client интерфейс генеративной модели. Все реализации взаимозаменяемы и
// всегда возвращают ровно один Result: успех, ConfigurationFailure,
// TransportFailure или EmptyResponseFailure. Паниковать и возвращать ошибки мимо Result нельзя.
type Client interface {
	Generate(ctx context.Context, req generation.Request) generation.Result
	Name() string
}

// New выбирает реализацию по cfg.Relay.Provider.
func New(cfg *config.Config, httpClient *http.Client, logger *zap.SugaredLogger) (Client, error) {
	switch cfg.Relay.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg.Gemini, httpClient, logger), nil
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.OpenAI, httpClient, logger), nil
	case config.ProviderStub:
		return NewStubClient(), nil
	default:
		return nil, fmt.Errorf("ai: unknown provider %q", cfg.Relay.Provider)
	}
}
