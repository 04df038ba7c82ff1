package ai

import (
	"TradeTalk/internal/config"
	"TradeTalk/internal/generation"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"go.uber.org/zap"
)

// OpenAIClient отправляет тот же собранный запрос в OpenAI Responses API.
type OpenAIClient struct {
	client openai.Client
	model  openai.ChatModel
	apiKey string
	logger *zap.SugaredLogger
}

func NewOpenAIClient(cfg config.OpenAIConfig, httpClient *http.Client, logger *zap.SugaredLogger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	// Ретраи выключены: один ход - один исходящий вызов.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	model := openai.ChatModel(cfg.Model)
	if cfg.Model == "" {
		model = openai.ChatModelGPT4o
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
		apiKey: strings.TrimSpace(cfg.APIKey),
		logger: logger,
	}
}

func (c *OpenAIClient) Name() string { return config.ProviderOpenAI }

func (c *OpenAIClient) Generate(ctx context.Context, req generation.Request) generation.Result {
	if c.apiKey == "" {
		return generation.Failure(generation.ReasonConfiguration, "openai: OPENAI_API_KEY not configured")
	}

	content := make(responses.ResponseInputMessageContentListParam, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.InlineData != nil {
			imageParam := responses.ResponseInputContentParamOfInputImage(responses.ResponseInputImageDetailAuto)
			imageParam.OfInputImage.ImageURL = openai.String(fmt.Sprintf("data:%s;base64,%s", p.InlineData.MimeType, p.InlineData.Data))
			content = append(content, imageParam)
			continue
		}
		content = append(content, responses.ResponseInputContentParamOfInputText(p.Text))
	}

	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(content, responses.EasyInputMessageRoleUser),
			},
		},
		Temperature:     openai.Float(req.Settings.Temperature),
		TopP:            openai.Float(req.Settings.TopP),
		MaxOutputTokens: openai.Int(int64(req.Settings.MaxOutputTokens)),
	}

	started := time.Now()
	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			c.logger.Infow("OpenAI request completed", "status", apiErr.StatusCode, "took", time.Since(started).String())
			return generation.Failure(generation.ReasonTransport, fmt.Sprintf("status=%d, %v", apiErr.StatusCode, err))
		}
		if cause := context.Cause(ctx); cause != nil {
			return generation.Failure(generation.ReasonTransport, cause.Error())
		}
		return generation.Failure(generation.ReasonTransport, err.Error())
	}
	c.logger.Infow("OpenAI request completed", "status", http.StatusOK, "took", time.Since(started).String(), "model", c.model)

	out := resp.OutputText()
	if out == "" {
		return generation.Failure(generation.ReasonEmptyResponse, "no output text in provider response")
	}
	return generation.Success(out)
}
