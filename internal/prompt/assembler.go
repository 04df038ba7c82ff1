package prompt

import (
	"TradeTalk/internal/generation"
	"strings"
)

// SystemFraming - персона ассистента. Всегда первая в текстовой части.
const SystemFraming = `You are TradeTalk AI, an expert trading assistant specializing in technical analysis, chart patterns, and market insights. You help traders with:

- Chart pattern recognition (head & shoulders, triangles, flags, etc.)
- Technical indicator analysis (RSI, MACD, moving averages, etc.)
- Market psychology and sentiment analysis
- Risk management strategies
- Entry and exit points

Always provide educational, insightful responses but never give direct financial advice. Focus on technical analysis and market education.`

// ChartInstruction дописывается к тексту, только если приложен график.
const ChartInstruction = `A chart image has been provided. Please analyze the chart for:
- Trend direction and strength
- Key support and resistance levels
- Chart patterns (if any)
- Technical indicators visible
- Potential trading opportunities
- Risk factors to consider

Provide a detailed technical analysis of what you see in the chart.`

const (
	questionPrefix = "User's question: "
	contextHeader  = "Recent conversation context:\n"

	// MaxContextLines - второй, более жёсткий лимит поверх окна истории клиента.
	MaxContextLines = 3
)

// Assembler собирает generation.Request из вопроса, картинки и истории.
type Assembler struct {
	settings generation.Settings
}

func NewAssembler(settings generation.Settings) *Assembler {
	return &Assembler{settings: settings}
}

// Assemble строит запрос. imageBase64 пустой - картинки нет, и части с изображением не будет.
func (a *Assembler) Assemble(text string, imageBase64 string, history []generation.HistoryEntry) generation.Request {
	req := generation.Request{
		History:  lastN(history, MaxContextLines),
		Settings: a.settings,
	}
	if imageBase64 != "" {
		req.Image = &generation.Image{MimeType: generation.MimeTypeJPEG, Data: imageBase64}
	}

	var sb strings.Builder
	sb.WriteString(SystemFraming)
	// Для image-only хода строку вопроса не вставляем.
	if text != "" {
		sb.WriteString("\n\n")
		sb.WriteString(questionPrefix)
		sb.WriteString(text)
	}
	if len(req.History) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(contextHeader)
		for _, h := range req.History {
			sb.WriteString(speaker(h.Role))
			sb.WriteString(": ")
			sb.WriteString(h.Text)
			sb.WriteString("\n")
		}
	}
	if req.Image != nil {
		sb.WriteString("\n\n")
		sb.WriteString(ChartInstruction)
	}

	req.Parts = []generation.Part{{Text: sb.String()}}
	if req.Image != nil {
		req.Parts = append(req.Parts, generation.Part{InlineData: req.Image})
	}
	return req
}

func speaker(r generation.Role) string {
	if r == generation.RoleUser {
		return "User"
	}
	return "Assistant"
}

// lastN возвращает копию последних n элементов в исходном порядке.
func lastN(history []generation.HistoryEntry, n int) []generation.HistoryEntry {
	if len(history) == 0 {
		return nil
	}
	start := max(0, len(history)-n)
	out := make([]generation.HistoryEntry, len(history)-start)
	copy(out, history[start:])
	return out
}
