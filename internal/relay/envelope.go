package relay

import (
	"TradeTalk/internal/conversation"
	"TradeTalk/internal/generation"
	"encoding/json"
)

// ApologyText уходит в поле response любого ответа‑ошибки, чтобы наивный клиент мог его показать.
const ApologyText = "I apologize, but I'm experiencing technical difficulties. Please try your question again in a moment."

// MaxHistory - сколько записей conversationHistory релей принимает во внимание.
const MaxHistory = 5

// Коды поля error. Это грубая классификация, а не текст ошибки.
const (
	CodeTransportFailure     = "transport_failure"
	CodeEmptyResponseFailure = "empty_response_failure"
	CodeInternalError        = "internal_error"
	CodeInvalidRequest       = "invalid_request"
)

// Request - тело запроса клиента к релею.
type Request struct {
	Message             string           `json:"message"`
	Image               string           `json:"image,omitempty"` // base64 без data URI
	ConversationHistory []HistoryMessage `json:"conversationHistory"`
}

// HistoryMessage - запись conversationHistory. Timestamp релей не читает и не
// разбирает, поэтому клиент может прислать его в любом формате.
type HistoryMessage struct {
	Content   string          `json:"content"`
	IsUser    bool            `json:"isUser"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// NewHistory переводит окно журнала в записи запроса.
func NewHistory(msgs []conversation.Message) []HistoryMessage {
	out := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		h := HistoryMessage{Content: m.Content, IsUser: m.IsUser}
		if ts, err := json.Marshal(m.Timestamp); err == nil {
			h.Timestamp = ts
		}
		out = append(out, h)
	}
	return out
}

func historyEntries(history []HistoryMessage) []generation.HistoryEntry {
	out := make([]generation.HistoryEntry, 0, len(history))
	for _, h := range history {
		role := generation.RoleAssistant
		if h.IsUser {
			role = generation.RoleUser
		}
		out = append(out, generation.HistoryEntry{Role: role, Text: h.Content})
	}
	return out
}

// Response - тело ответа релея. Error заполнен только при неуспехе.
type Response struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// CodeFor переводит причину в код ответа. ConfigurationFailure наружу не раскрывается.
func CodeFor(reason generation.Reason) string {
	switch reason {
	case generation.ReasonTransport:
		return CodeTransportFailure
	case generation.ReasonEmptyResponse:
		return CodeEmptyResponseFailure
	default:
		return CodeInternalError
	}
}

// ReasonFor - обратное отображение для клиента. Неизвестный код считается транспортной ошибкой.
func ReasonFor(code string) generation.Reason {
	switch code {
	case CodeEmptyResponseFailure:
		return generation.ReasonEmptyResponse
	case CodeInternalError:
		return generation.ReasonConfiguration
	default:
		return generation.ReasonTransport
	}
}
