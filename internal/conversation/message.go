package conversation

import (
	"TradeTalk/internal/generation"
	"time"
)

// Фиксированные тексты диалога.
const (
	WelcomeText          = "Welcome to TradeTalk! 📈 I'm your AI trading companion. Ask me about chart patterns, technical indicators, market analysis, or upload a chart image for pattern recognition. How can I help you with your trading today?"
	ImageOnlyPlaceholder = "📊 Chart image uploaded for analysis"
	ApologyText          = "I apologize, but I'm having trouble processing your request right now. Please try again in a moment."
)

// Message - запись журнала диалога. После добавления не меняется.
// Timestamp информационный, порядок задаёт только позиция в журнале.
type Message struct {
	Content   string    `json:"content"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
}

// Role переводит флаг IsUser в роль для сборки промпта.
func (m Message) Role() generation.Role {
	if m.IsUser {
		return generation.RoleUser
	}
	return generation.RoleAssistant
}

// HistoryEntries переводит окно истории в строки контекста.
func HistoryEntries(msgs []Message) []generation.HistoryEntry {
	out := make([]generation.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, generation.HistoryEntry{Role: m.Role(), Text: m.Content})
	}
	return out
}
