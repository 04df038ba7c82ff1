package generation

import (
	"errors"
	"fmt"
)

// Reason классифицирует неудачу генерации. Пустая строка - успех.
type Reason string

const (
	ReasonConfiguration Reason = "configuration_failure"
	ReasonTransport     Reason = "transport_failure"
	ReasonEmptyResponse Reason = "empty_response_failure"
)

// Result - итог одного Request: либо Text, либо Reason+Detail.
type Result struct {
	Text   string
	Reason Reason
	Detail string // диагностика только для логов, клиенту не отдаётся
}

func Success(text string) Result { return Result{Text: text} }

func Failure(reason Reason, detail string) Result {
	return Result{Reason: reason, Detail: detail}
}

func (r Result) OK() bool { return r.Reason == "" }

// Err превращает неудачный Result в *Error; для успеха возвращает nil.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &Error{Reason: r.Reason, Detail: r.Detail}
}

// Error несёт причину неудачи через границы вызовов.
type Error struct {
	Reason Reason
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// ReasonOf извлекает причину из ошибки. Всё, что не *Error, считается транспортной ошибкой.
func ReasonOf(err error) Reason {
	var ge *Error
	if errors.As(err, &ge) && ge.Reason != "" {
		return ge.Reason
	}
	return ReasonTransport
}
