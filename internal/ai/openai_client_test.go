package ai

import (
	"TradeTalk/internal/config"
	"TradeTalk/internal/generation"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenAIMissingKey(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls.Add(1) }))
	t.Cleanup(srv.Close)

	c := NewOpenAIClient(config.OpenAIConfig{BaseURL: srv.URL + "/"}, srv.Client(), zap.NewNop().Sugar())
	res := c.Generate(context.Background(), assemble("hi", ""))

	assert.Equal(t, generation.ReasonConfiguration, res.Reason)
	assert.Equal(t, int32(0), calls.Load())
}

func TestOpenAIRateLimitedIsTransportFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	}))
	t.Cleanup(srv.Close)

	c := NewOpenAIClient(config.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/"}, srv.Client(), nil)
	res := c.Generate(context.Background(), assemble("hi", ""))

	require.False(t, res.OK())
	assert.Equal(t, generation.ReasonTransport, res.Reason)
	assert.Contains(t, res.Detail, "status=429")
	assert.Equal(t, int32(1), calls.Load(), "ретраев быть не должно")
}

func TestNewSelectsProvider(t *testing.T) {
	cfg := config.Defaults()
	for provider, name := range map[string]string{
		config.ProviderGemini: "gemini",
		config.ProviderOpenAI: "openai",
		config.ProviderStub:   "stub",
	} {
		cfg.Relay.Provider = provider
		c, err := New(cfg, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}

	cfg.Relay.Provider = "unknown"
	_, err := New(cfg, nil, nil)
	assert.Error(t, err)
}

func TestStubClient(t *testing.T) {
	c := NewStubClient()
	assert.True(t, c.Generate(context.Background(), assemble("hi", "")).OK())
	assert.Contains(t, c.Generate(context.Background(), assemble("", "aGVsbG8=")).Text, "chart")
}
