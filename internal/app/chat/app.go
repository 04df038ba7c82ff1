package chat

import (
	"TradeTalk/internal/conversation"
	"TradeTalk/internal/generation"
	"TradeTalk/internal/service/image"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Команды терминального клиента.
const (
	cmdImage   = "/image"
	cmdSignOut = "/signout"
	cmdQuit    = "/quit"
)

const (
	assistantLabel = "TradeTalk AI"
	userLabel      = "You"
)

// ImageEncoder превращает файл в base64‑картинку для релея.
type ImageEncoder interface {
	Encode(path string) (image.Encoded, error)
}

// Options настройки терминального чата.
type Options struct {
	HistoryWindow int
	TurnTimeout   time.Duration
}

// App - терминальный цикл поверх conversation.Store.
type App struct {
	store    *conversation.Store
	encoder  ImageEncoder
	identity Identity
	in       io.Reader
	out      io.Writer
	logger   *zap.SugaredLogger

	mu sync.Mutex
}

func New(relay conversation.Relay, encoder ImageEncoder, identity Identity, opts Options, in io.Reader, out io.Writer, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	a := &App{encoder: encoder, identity: identity, in: in, out: out, logger: logger}
	a.store = conversation.NewStore(relay, conversation.Options{
		HistoryWindow: opts.HistoryWindow,
		TurnTimeout:   opts.TurnTimeout,
		Notifier:      a,
		Logger:        logger,
		OnAppend:      a.printMessage,
		OnPending:     a.printPending,
	})
	return a
}

// Store отдаёт журнал (для тестов и диагностики).
func (a *App) Store() *conversation.Store { return a.store }

// Run читает строки до EOF, /quit, /signout или отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.printf("Signed in as %s. Commands: %s <path> [question], %s, %s\n", a.identity.DisplayName(), cmdImage, cmdSignOut, cmdQuit)
	for _, m := range a.store.Messages() {
		a.printMessage(m)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(a.in)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			stop, err := a.handleLine(ctx, line)
			if err != nil || stop {
				return err
			}
		}
	}
}

// handleLine обрабатывает одну строку ввода. stop=true - выходим из цикла.
func (a *App) handleLine(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case cmdQuit:
		return true, nil
	case cmdSignOut:
		if err := a.identity.SignOut(ctx); err != nil {
			return true, fmt.Errorf("sign out: %w", err)
		}
		a.logger.Infow("Signed out", "user", a.identity.ID)
		a.printf("Signed out.\n")
		return true, nil
	case cmdImage:
		path, question, _ := strings.Cut(strings.TrimSpace(rest), " ")
		if path == "" {
			a.printf("Usage: %s <path> [question]\n", cmdImage)
			return false, nil
		}
		img, err := a.encoder.Encode(path)
		if err != nil {
			a.logger.Warnw("Image rejected", "path", path, "error", err)
			a.printf("Could not read image %s\n", path)
			return false, nil
		}
		a.submit(ctx, question, img.Data)
		return false, nil
	default:
		a.submit(ctx, line, "")
		return false, nil
	}
}

func (a *App) submit(ctx context.Context, text, img string) {
	err := a.store.SubmitTurn(ctx, text, img)
	switch {
	case errors.Is(err, conversation.ErrEmptyTurn):
		// Пустой ввод молча игнорируем.
	case err != nil:
		a.logger.Warnw("Turn not accepted", "error", err)
	}
}

// NotifyFailure - короткий тост с причиной. Детали только в лог.
func (a *App) NotifyFailure(reason generation.Reason, err error) {
	a.logger.Debugw("Turn failure detail", "reason", reason, "error", err)
	a.printf("! request failed (%s)\n", reason)
}

func (a *App) printMessage(m conversation.Message) {
	label := assistantLabel
	if m.IsUser {
		label = userLabel
	}
	a.printf("[%s] %s: %s\n", m.Timestamp.Format("15:04"), label, m.Content)
}

func (a *App) printPending(pending bool) {
	if pending {
		a.printf("%s is thinking...\n", assistantLabel)
	}
}

func (a *App) printf(format string, args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, _ = fmt.Fprintf(a.out, format, args...)
}
