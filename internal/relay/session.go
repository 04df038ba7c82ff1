package relay

import (
	"TradeTalk/internal/conversation"
	"TradeTalk/internal/generation"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Типы кадров websocket‑сессии.
const (
	frameTurn     = "turn"
	frameHistory  = "history"
	frameMessage  = "message"
	framePending  = "pending"
	frameRejected = "rejected"
	frameFailure  = "failure"
)

// Причины отклонения хода.
const (
	rejectEmptyTurn    = "empty_turn"
	rejectTurnPending  = "turn_pending"
	rejectInvalidImage = "invalid_image"
	rejectUnknownFrame = "unknown_frame"
)

const sessionWriteTimeout = 10 * time.Second

type clientFrame struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

type serverFrame struct {
	Type     string                 `json:"type"`
	Message  *conversation.Message  `json:"message,omitempty"`
	Messages []conversation.Message `json:"messages,omitempty"`
	Pending  *bool                  `json:"pending,omitempty"`
	Reason   string                 `json:"reason,omitempty"`
}

// SessionHandler держит по одному conversation.Store на websocket‑соединение.
// Журнал живёт, пока живёт соединение.
type SessionHandler struct {
	pipeline      *Pipeline
	historyWindow int
	metrics       *Metrics
	logger        *zap.SugaredLogger
	upgrader      websocket.Upgrader
}

func NewSessionHandler(pipeline *Pipeline, historyWindow int, metrics *Metrics, logger *zap.SugaredLogger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SessionHandler{
		pipeline:      pipeline,
		historyWindow: historyWindow,
		metrics:       metrics,
		logger:        logger,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			// Как и у HTTP‑релея, разрешаем любой origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	sess := &session{conn: conn, logger: h.logger.With("session", uuid.NewString())}
	sess.logger.Infow("Session opened", "remote", r.RemoteAddr)

	store := conversation.NewStore(h.pipeline.Relay(), conversation.Options{
		HistoryWindow: h.historyWindow,
		Notifier:      sess,
		Logger:        sess.logger,
		OnAppend: func(m conversation.Message) {
			sess.send(serverFrame{Type: frameMessage, Message: &m})
		},
		OnPending: func(v bool) {
			sess.send(serverFrame{Type: framePending, Pending: &v})
		},
	})
	sess.send(serverFrame{Type: frameHistory, Messages: store.Messages()})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Ход принимается синхронно в цикле чтения, поэтому порядок кадров сохраняется,
	// а второй ход во время ожидания отклоняется самим Store.
	var inflight <-chan struct{}
	for {
		var f clientFrame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.logger.Warnw("Session read failed", "error", err)
			}
			break
		}
		if f.Type != frameTurn {
			h.reject(sess, rejectUnknownFrame)
			continue
		}
		image, err := normalizeImage(f.Image)
		if err != nil {
			h.reject(sess, rejectInvalidImage)
			continue
		}
		done, err := store.Submit(ctx, f.Text, image)
		switch {
		case errors.Is(err, conversation.ErrEmptyTurn):
			h.reject(sess, rejectEmptyTurn)
		case errors.Is(err, conversation.ErrTurnPending):
			h.reject(sess, rejectTurnPending)
		case err == nil:
			inflight = done
		}
	}

	cancel()
	if inflight != nil {
		<-inflight
	}
	sess.logger.Infow("Session closed", "messages", store.Len())
}

func (h *SessionHandler) reject(sess *session, cause string) {
	h.metrics.rejected(cause)
	sess.send(serverFrame{Type: frameRejected, Reason: cause})
}

// session сериализует запись в соединение.
type session struct {
	conn   *websocket.Conn
	logger *zap.SugaredLogger
	mu     sync.Mutex
}

func (s *session) send(f serverFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(sessionWriteTimeout))
	if err := s.conn.WriteJSON(f); err != nil {
		s.logger.Debugw("Session write failed", "type", f.Type, "error", err)
	}
}

// NotifyFailure отдаёт клиенту только причину, без деталей.
func (s *session) NotifyFailure(reason generation.Reason, _ error) {
	s.send(serverFrame{Type: frameFailure, Reason: string(reason)})
}
