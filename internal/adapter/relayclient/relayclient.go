package relayclient

import (
	"TradeTalk/internal/conversation"
	"TradeTalk/internal/generation"
	"TradeTalk/internal/relay"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const clientInfo = "tradetalk-go"

// Client ходит в HTTP‑релей. Реализует conversation.Relay.
type Client struct {
	http   *http.Client
	url    string
	logger *zap.SugaredLogger
}

// New создаёт клиента. timeout ограничивает весь вызов, включая ожидание провайдера на стороне релея.
func New(url string, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{http: &http.Client{Timeout: timeout}, url: url, logger: logger}
}

// Send отправляет ход с окном истории. Любой неуспех - *generation.Error с причиной из кода ответа.
func (c *Client) Send(ctx context.Context, turn conversation.Turn) (string, error) {
	body, err := json.Marshal(relay.Request{Message: turn.Text, Image: turn.Image, ConversationHistory: relay.NewHistory(turn.History)})
	if err != nil {
		return "", &generation.Error{Reason: generation.ReasonTransport, Detail: "encode request: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", &generation.Error{Reason: generation.ReasonConfiguration, Detail: "relay url: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Client-Info", clientInfo)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &generation.Error{Reason: generation.ReasonTransport, Detail: err.Error()}
	}
	defer resp.Body.Close()

	c.logger.Debugw("Relay call completed", "status", resp.StatusCode, "took", time.Since(started).String())

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &generation.Error{Reason: generation.ReasonTransport, Detail: "read body: " + err.Error()}
	}

	var out relay.Response
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := generation.ReasonTransport
		if decodeErr == nil && out.Error != "" {
			reason = relay.ReasonFor(out.Error)
		}
		return "", &generation.Error{Reason: reason, Detail: fmt.Sprintf("status=%d, code=%s", resp.StatusCode, out.Error)}
	}
	if decodeErr != nil {
		return "", &generation.Error{Reason: generation.ReasonTransport, Detail: "decode response: " + decodeErr.Error()}
	}
	if out.Error != "" {
		return "", &generation.Error{Reason: relay.ReasonFor(out.Error), Detail: "code=" + out.Error}
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", &generation.Error{Reason: generation.ReasonEmptyResponse, Detail: "relay returned empty response"}
	}
	return out.Response, nil
}

