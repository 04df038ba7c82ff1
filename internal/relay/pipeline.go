package relay

import (
	"TradeTalk/internal/ai"
	"TradeTalk/internal/conversation"
	"TradeTalk/internal/generation"
	"TradeTalk/internal/prompt"
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

var errProviderTimeout = errors.New("provider call timed out")

// Input - разобранный запрос к релею.
type Input struct {
	Message string
	Image   string
	History []generation.HistoryEntry
}

// Pipeline собирает запрос и делает ровно один вызов провайдера.
// Состояния между вызовами нет, один Pipeline безопасно делить между горутинами.
type Pipeline struct {
	assembler *prompt.Assembler
	client    ai.Client
	timeout   time.Duration
	metrics   *Metrics
	logger    *zap.SugaredLogger
}

func NewPipeline(assembler *prompt.Assembler, client ai.Client, timeout time.Duration, metrics *Metrics, logger *zap.SugaredLogger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Pipeline{assembler: assembler, client: client, timeout: timeout, metrics: metrics, logger: logger}
}

// Run возвращает Result на любом пути. Истечение таймаута - TransportFailure.
func (p *Pipeline) Run(ctx context.Context, in Input) generation.Result {
	history := in.History
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}
	req := p.assembler.Assemble(in.Message, in.Image, history)

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, p.timeout, errProviderTimeout)
		defer cancel()
	}

	started := time.Now()
	res := p.client.Generate(ctx, req)
	took := time.Since(started)
	p.metrics.observe(p.client.Name(), res.Reason, took)

	if res.OK() {
		p.logger.Infow("Generation succeeded", "provider", p.client.Name(), "parts", len(req.Parts), "history", len(req.History), "took", took.String())
	} else {
		p.logger.Errorw("Generation failed", "provider", p.client.Name(), "reason", res.Reason, "detail", res.Detail, "took", took.String())
	}
	return res
}

// Relay возвращает адаптер conversation.Relay поверх пайплайна (для серверных сессий).
func (p *Pipeline) Relay() conversation.Relay { return pipelineRelay{p: p} }

type pipelineRelay struct{ p *Pipeline }

func (r pipelineRelay) Send(ctx context.Context, turn conversation.Turn) (string, error) {
	res := r.p.Run(ctx, Input{Message: turn.Text, Image: turn.Image, History: conversation.HistoryEntries(turn.History)})
	if err := res.Err(); err != nil {
		return "", err
	}
	return res.Text, nil
}
