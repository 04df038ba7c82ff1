package relay

import (
	"TradeTalk/internal/config"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

var (
	errAlreadyStarted  = errors.New("relay: server already started")
	errShutdownTimeout = errors.New("relay shutdown timeout")
)

// Server поднимает HTTP‑релей, websocket‑сессии и метрики на одном адресе.
type Server struct {
	cfg    config.RelayConfig
	srv    *http.Server
	logger *zap.SugaredLogger

	mu      sync.Mutex
	started bool
	addr    string

	stopOnce sync.Once
	stopErr  error
	stopped  chan struct{}
}

// NewServer собирает mux. sessions и gatherer могут быть nil, тогда путь не регистрируется.
func NewServer(cfg config.RelayConfig, handler *Handler, sessions *SessionHandler, gatherer prometheus.Gatherer, logger *zap.SugaredLogger) *Server {
	if cfg.BindAddr == "" {
		cfg.BindAddr = "127.0.0.1:8787"
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, handler)
	if sessions != nil && cfg.SessionPath != "" {
		mux.Handle(cfg.SessionPath, sessions)
	}
	if gatherer != nil && cfg.MetricsPath != "" {
		mux.Handle(cfg.MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return &Server{
		cfg:    cfg,
		logger: logger,
		addr:   cfg.BindAddr,
		srv: &http.Server{
			Addr:              cfg.BindAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			// Ответ ждёт провайдера, поэтому запас поверх его таймаута.
			WriteTimeout: cfg.ProviderTimeout + 10*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		stopped: make(chan struct{}),
	}
}

// Handler отдаёт корневой mux (для тестов и встраивания).
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start занимает адрес синхронно, чтобы ошибка bind вернулась вызывающему,
// и обслуживает запросы в фоне. Отмена ctx запускает Stop.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("relay: listen %s: %w", s.cfg.BindAddr, err)
	}
	s.started = true
	s.addr = ln.Addr().String()
	s.logger.Infow("Relay listening", "addr", s.addr, "path", s.cfg.Path, "sessions", s.cfg.SessionPath, "metrics", s.cfg.MetricsPath)

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorw("Relay stopped with error", "error", err)
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop(context.WithoutCancel(ctx))
		case <-s.stopped:
		}
	}()
	return nil
}

// Stop дожидается завершения активных запросов (не дольше shutdownTimeout).
// Повторные и конкурентные вызовы ждут ту же остановку и возвращают её результат.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		defer close(s.stopped)
		shutdownCtx, cancel := context.WithTimeoutCause(ctx, shutdownTimeout, errShutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warnw("Relay graceful shutdown failed", "error", err, "cause", context.Cause(shutdownCtx))
			s.stopErr = errors.Join(err, s.srv.Close())
			return
		}
		s.logger.Infow("Relay stopped")
	})
	<-s.stopped
	return s.stopErr
}

// Addr - фактический адрес слушателя после Start (с разрешённым портом для ":0").
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
