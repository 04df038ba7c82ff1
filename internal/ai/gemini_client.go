package ai

import (
	"TradeTalk/internal/config"
	"TradeTalk/internal/generation"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
)

const (
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel    = "gemini-1.5-flash"

	geminiScope = "https://www.googleapis.com/auth/generative-language"

	maxErrorBodyBytes    = 4096
	maxResponseBodyBytes = 10 << 20
)

// GeminiClient вызывает models/{model}:generateContent Generative Language API.
type GeminiClient struct {
	http   *http.Client
	cfg    config.GeminiConfig
	logger *zap.SugaredLogger

	// adc создаёт OAuth2 HTTP‑клиент через Application Default Credentials (GEMINI_AUTH=adc).
	adc func(ctx context.Context) (*http.Client, error)
}

func NewGeminiClient(cfg config.GeminiConfig, httpClient *http.Client, logger *zap.SugaredLogger) *GeminiClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &GeminiClient{
		http:   httpClient,
		cfg:    cfg,
		logger: logger,
		adc: func(ctx context.Context) (*http.Client, error) {
			return google.DefaultClient(ctx, geminiScope)
		},
	}
}

func (c *GeminiClient) Name() string { return config.ProviderGemini }

// requestPayload - тело generateContent. Собирается структурой и сериализуется один раз.
type requestPayload struct {
	Contents         []contentPayload        `json:"contents"`
	GenerationConfig generationConfigPayload `json:"generationConfig"`
	SafetySettings   []safetySettingPayload  `json:"safetySettings,omitempty"`
}

type contentPayload struct {
	Parts []partPayload `json:"parts"`
}

type partPayload struct {
	Text       string             `json:"text,omitempty"`
	InlineData *inlineDataPayload `json:"inline_data,omitempty"`
}

type inlineDataPayload struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfigPayload struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type safetySettingPayload struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

func newRequestPayload(req generation.Request) requestPayload {
	parts := make([]partPayload, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.InlineData != nil {
			parts = append(parts, partPayload{InlineData: &inlineDataPayload{MimeType: p.InlineData.MimeType, Data: p.InlineData.Data}})
			continue
		}
		parts = append(parts, partPayload{Text: p.Text})
	}
	safety := make([]safetySettingPayload, 0, len(req.Settings.Safety))
	for _, s := range req.Settings.Safety {
		safety = append(safety, safetySettingPayload{Category: s.Category, Threshold: s.Threshold})
	}
	return requestPayload{
		Contents: []contentPayload{{Parts: parts}},
		GenerationConfig: generationConfigPayload{
			Temperature:     req.Settings.Temperature,
			TopK:            req.Settings.TopK,
			TopP:            req.Settings.TopP,
			MaxOutputTokens: req.Settings.MaxOutputTokens,
		},
		SafetySettings: safety,
	}
}

// Generate выполняет один вызов провайдера.
func (c *GeminiClient) Generate(ctx context.Context, req generation.Request) generation.Result {
	httpClient, key, err := c.credentials(ctx)
	if err != nil {
		// В сеть не ходим.
		return generation.Failure(generation.ReasonConfiguration, err.Error())
	}

	body, err := json.Marshal(newRequestPayload(req))
	if err != nil {
		return generation.Failure(generation.ReasonTransport, fmt.Sprintf("encode request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(key), bytes.NewReader(body))
	if err != nil {
		return generation.Failure(generation.ReasonTransport, redact(err, key))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		if cause := context.Cause(ctx); cause != nil {
			return generation.Failure(generation.ReasonTransport, cause.Error())
		}
		return generation.Failure(generation.ReasonTransport, redact(err, key))
	}
	defer resp.Body.Close()

	c.logger.Infow("Gemini request completed", "status", resp.StatusCode, "took", time.Since(started).String(), "model", c.model())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		if len(b) == 0 {
			b = []byte(resp.Status)
		}
		return generation.Failure(generation.ReasonTransport, fmt.Sprintf("status=%d, body=%s", resp.StatusCode, strings.TrimSpace(string(b))))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return generation.Failure(generation.ReasonTransport, fmt.Sprintf("read response: %v", err))
	}
	return parseGeminiResponse(raw)
}

// parseGeminiResponse достаёт candidates[0].content.parts[0].text как есть, без обработки.
func parseGeminiResponse(raw []byte) generation.Result {
	if !gjson.ValidBytes(raw) {
		return generation.Failure(generation.ReasonTransport, "invalid json in provider response")
	}
	candidates := gjson.GetBytes(raw, "candidates")
	if !candidates.IsArray() || len(candidates.Array()) == 0 {
		detail := "no candidates in provider response"
		if br := gjson.GetBytes(raw, "promptFeedback.blockReason"); br.Exists() {
			detail += ", blockReason=" + br.String()
		}
		return generation.Failure(generation.ReasonEmptyResponse, detail)
	}
	text := gjson.GetBytes(raw, "candidates.0.content.parts.0.text")
	if !text.Exists() || text.Type != gjson.String {
		detail := "first candidate has no text part"
		if fr := gjson.GetBytes(raw, "candidates.0.finishReason"); fr.Exists() {
			detail += ", finishReason=" + fr.String()
		}
		return generation.Failure(generation.ReasonEmptyResponse, detail)
	}
	return generation.Success(text.String())
}

// credentials возвращает HTTP‑клиент и ключ (пустой для ADC).
func (c *GeminiClient) credentials(ctx context.Context) (*http.Client, string, error) {
	if c.cfg.Auth == config.GeminiAuthADC {
		hc, err := c.adc(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("gemini: ADC credentials not found: %w", err)
		}
		return hc, "", nil
	}
	key := strings.TrimSpace(c.cfg.APIKey)
	if key == "" {
		return nil, "", errors.New("gemini: GEMINI_API_KEY not configured")
	}
	return c.http, key, nil
}

func (c *GeminiClient) model() string {
	if m := strings.TrimSpace(c.cfg.Model); m != "" {
		return m
	}
	return defaultGeminiModel
}

func (c *GeminiClient) endpointURL(key string) string {
	endpoint := strings.TrimRight(strings.TrimSpace(c.cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = defaultGeminiEndpoint
	}
	u := fmt.Sprintf("%s/models/%s:generateContent", endpoint, url.PathEscape(c.model()))
	if key != "" {
		u += "?key=" + url.QueryEscape(key)
	}
	return u
}

// redact убирает ключ из текста ошибки: *url.Error содержит полный URL с query.
func redact(err error, key string) string {
	msg := err.Error()
	if key == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, url.QueryEscape(key), "REDACTED")
	return strings.ReplaceAll(msg, key, "REDACTED")
}
