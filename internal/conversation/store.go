package conversation

import (
	"TradeTalk/internal/generation"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultHistoryWindow - сколько последних сообщений уходит в релей как контекст.
const DefaultHistoryWindow = 5

var (
	// ErrEmptyTurn - пустой текст без картинки. Журнал не меняется, пользователю не показывается.
	ErrEmptyTurn = errors.New("conversation: empty turn")
	// ErrTurnPending - предыдущий ход ещё не завершён. Второй ход отклоняется, не ставится в очередь.
	ErrTurnPending = errors.New("conversation: turn already pending")

	errTurnTimeout = errors.New("conversation: relay call timed out")
)

// Turn - то, что уходит в релей на один ход.
type Turn struct {
	Text    string
	Image   string    // base64 без data URI; пусто - без картинки
	History []Message // снимок окна истории на момент отправки
}

// Relay выполняет вызов релея. Любая ошибка превращается в неудачный ход.
type Relay interface {
	Send(ctx context.Context, turn Turn) (string, error)
}

// Notifier - внешний канал уведомлений (тосты, метрики) о неудачных ходах.
type Notifier interface {
	NotifyFailure(reason generation.Reason, err error)
}

// Options настройки Store. Нулевые значения допустимы.
type Options struct {
	HistoryWindow int           // по умолчанию DefaultHistoryWindow
	TurnTimeout   time.Duration // 0 - без таймаута
	Notifier      Notifier
	Logger        *zap.SugaredLogger
	Now           func() time.Time

	// Вызываются последовательно, в порядке изменений состояния.
	OnAppend  func(Message)
	OnPending func(bool)
}

// Store владеет журналом диалога и флагом ожидания ответа.
// Ходы строго последовательны: пока ход в полёте, новый отклоняется с ErrTurnPending.
type Store struct {
	relay Relay
	opts  Options

	// emitMu держится от изменения состояния до конца его колбэков,
	// поэтому наблюдатели видят события в том же порядке, что и Store.
	// Колбэки не должны вызывать Submit.
	emitMu sync.Mutex

	mu      sync.Mutex
	log     []Message
	pending bool
}

// NewStore создаёт диалог с приветственным сообщением.
func NewStore(relay Relay, opts Options) *Store {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{relay: relay, opts: opts}
	s.log = []Message{{Content: WelcomeText, IsUser: false, Timestamp: opts.Now()}}
	return s
}

// SubmitTurn добавляет сообщение пользователя, вызывает релей и добавляет ответ.
// Блокируется до завершения хода.
func (s *Store) SubmitTurn(ctx context.Context, text string, image string) error {
	done, err := s.Submit(ctx, text, image)
	if err != nil {
		return err
	}
	<-done
	return nil
}

// Submit синхронно принимает ход (или отклоняет его) и запускает вызов релея в фоне.
// Канал закрывается, когда ответ добавлен и флаг ожидания снят.
func (s *Store) Submit(ctx context.Context, text string, image string) (<-chan struct{}, error) {
	text = strings.TrimSpace(text)
	if text == "" && image == "" {
		return nil, ErrEmptyTurn
	}
	content := text
	if content == "" {
		content = ImageOnlyPlaceholder
	}

	s.emitMu.Lock()
	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		s.emitMu.Unlock()
		return nil, ErrTurnPending
	}
	// Окно берём до добавления текущего вопроса: он уходит отдельным полем.
	history := s.windowLocked()
	userMsg := Message{Content: content, IsUser: true, Timestamp: s.opts.Now()}
	s.log = append(s.log, userMsg)
	s.pending = true
	s.mu.Unlock()

	s.emitAppend(userMsg)
	s.emitPending(true)
	s.emitMu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Флаг снимается на любом пути выхода.
		defer s.clearPending()
		s.onResult(s.invoke(ctx, Turn{Text: text, Image: image, History: history}))
	}()
	return done, nil
}

// invoke вызывает релей и всегда возвращает Result, в том числе при панике.
func (s *Store) invoke(ctx context.Context, turn Turn) (res generation.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = generation.Failure(generation.ReasonTransport, fmt.Sprintf("relay panic: %v", r))
		}
	}()

	if s.opts.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, s.opts.TurnTimeout, errTurnTimeout)
		defer cancel()
	}

	text, err := s.relay.Send(ctx, turn)
	if err != nil {
		if cause := context.Cause(ctx); errors.Is(cause, errTurnTimeout) {
			return generation.Failure(generation.ReasonTransport, cause.Error())
		}
		return generation.Failure(generation.ReasonOf(err), err.Error())
	}
	return generation.Success(text)
}

// onResult добавляет ровно одно сообщение ассистента на ход.
func (s *Store) onResult(res generation.Result) {
	content := res.Text
	if !res.OK() {
		// Сырую ошибку в журнал не пишем.
		content = ApologyText
	}
	msg := Message{Content: content, IsUser: false, Timestamp: s.opts.Now()}

	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	s.log = append(s.log, msg)
	s.mu.Unlock()
	s.emitAppend(msg)

	if !res.OK() {
		s.opts.Logger.Warnw("Turn failed", "reason", res.Reason, "detail", res.Detail)
		if s.opts.Notifier != nil {
			s.opts.Notifier.NotifyFailure(res.Reason, res.Err())
		}
	}
}

func (s *Store) clearPending() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	s.pending = false
	s.mu.Unlock()
	s.emitPending(false)
}

// windowLocked - копия последних HistoryWindow сообщений. Вызывать под mu.
func (s *Store) windowLocked() []Message {
	start := max(0, len(s.log)-s.opts.HistoryWindow)
	out := make([]Message, len(s.log)-start)
	copy(out, s.log[start:])
	return out
}

// Messages возвращает копию журнала.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.log))
	copy(out, s.log)
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.log)
}

// Pending сообщает, есть ли ход в полёте.
func (s *Store) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Store) emitAppend(m Message) {
	if s.opts.OnAppend != nil {
		s.opts.OnAppend(m)
	}
}

func (s *Store) emitPending(v bool) {
	if s.opts.OnPending != nil {
		s.opts.OnPending(v)
	}
}
