package generation

// Категории безопасности Gemini.
const (
	HarmCategoryHarassment       = "HARM_CATEGORY_HARASSMENT"
	HarmCategoryHateSpeech       = "HARM_CATEGORY_HATE_SPEECH"
	HarmCategorySexuallyExplicit = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmCategoryDangerousContent = "HARM_CATEGORY_DANGEROUS_CONTENT"

	BlockMediumAndAbove = "BLOCK_MEDIUM_AND_ABOVE"
)

// SafetySetting порог блокировки для одной категории.
type SafetySetting struct {
	Category  string
	Threshold string
}

// Settings - фиксированные параметры генерации. Пользователь чата на них не влияет.
type Settings struct {
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
	Safety          []SafetySetting
}

// SafetyFor строит одинаковый порог для всех четырёх категорий.
func SafetyFor(threshold string) []SafetySetting {
	if threshold == "" {
		threshold = BlockMediumAndAbove
	}
	cats := []string{HarmCategoryHarassment, HarmCategoryHateSpeech, HarmCategorySexuallyExplicit, HarmCategoryDangerousContent}
	out := make([]SafetySetting, 0, len(cats))
	for _, c := range cats {
		out = append(out, SafetySetting{Category: c, Threshold: threshold})
	}
	return out
}

func DefaultSettings() Settings {
	return Settings{
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 1024,
		Safety:          SafetyFor(BlockMediumAndAbove),
	}
}
