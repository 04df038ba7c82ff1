package generation

// Role автор реплики в истории диалога.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MimeTypeJPEG единственный тип изображения, который уходит провайдеру.
const MimeTypeJPEG = "image/jpeg"

// HistoryEntry одна строка блока «Recent conversation context».
type HistoryEntry struct {
	Role Role
	Text string
}

// Image - inline‑изображение: base64 без префикса data URI.
type Image struct {
	MimeType string
	Data     string
}

// Part - часть мультимодального запроса. Заполнено ровно одно поле.
type Part struct {
	Text       string
	InlineData *Image
}

// Request - собранный запрос к генеративной модели. Строится заново на каждый вызов.
type Request struct {
	History []HistoryEntry // не больше трёх последних реплик
	Image   *Image

	// Parts - готовый контент в порядке отправки: текст, затем (опционально) картинка.
	Parts    []Part
	Settings Settings
}

// Text возвращает текстовую часть запроса.
func (r Request) Text() string {
	for _, p := range r.Parts {
		if p.InlineData == nil {
			return p.Text
		}
	}
	return ""
}

// HasImage сообщает, есть ли в запросе картинка.
func (r Request) HasImage() bool {
	for _, p := range r.Parts {
		if p.InlineData != nil {
			return true
		}
	}
	return false
}
