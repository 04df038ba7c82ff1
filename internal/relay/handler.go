package relay

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidRequest - тело запроса не разобрано или пустое.
var ErrInvalidRequest = errors.New("relay: invalid request")

const (
	corsAllowOrigin  = "*"
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type"
)

// setCORS ставит одинаковые CORS‑заголовки на все ответы, включая ошибки.
func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", corsAllowOrigin)
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
}

// Handler - HTTP‑граница релея. Никакая ошибка провайдера не уходит клиенту как есть.
type Handler struct {
	pipeline     *Pipeline
	maxBodyBytes int64
	logger       *zap.SugaredLogger
}

func NewHandler(pipeline *Pipeline, maxBodyBytes int64, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{pipeline: pipeline, maxBodyBytes: maxBodyBytes, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w.Header())

	// Preflight
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		h.writeFailure(w, http.StatusMethodNotAllowed, CodeInvalidRequest)
		return
	}

	requestID := uuid.NewString()
	logger := h.logger.With("requestId", requestID)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorw("Relay handler panic", "panic", rec)
			h.writeFailure(w, http.StatusInternalServerError, CodeInternalError)
		}
	}()

	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	defer r.Body.Close()

	in, err := decodeRequest(r.Body)
	if err != nil {
		logger.Warnw("Rejected relay request", "remote", r.RemoteAddr, "error", err)
		h.writeFailure(w, http.StatusBadRequest, CodeInvalidRequest)
		return
	}
	logger.Infow("Relay request received",
		"remote", r.RemoteAddr,
		"messageLen", len(in.Message),
		"hasImage", in.Image != "",
		"history", len(in.History),
	)

	res := h.pipeline.Run(r.Context(), in)
	if !res.OK() {
		logger.Errorw("Relay request failed", "reason", res.Reason, "detail", res.Detail)
		h.writeFailure(w, statusFor(CodeFor(res.Reason)), CodeFor(res.Reason))
		return
	}
	writeJSON(w, http.StatusOK, Response{Response: res.Text})
}

func (h *Handler) writeFailure(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, Response{Response: ApologyText, Error: code})
}

func statusFor(code string) int {
	switch code {
	case CodeTransportFailure, CodeEmptyResponseFailure:
		return http.StatusBadGateway
	case CodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeRequest разбирает и проверяет тело запроса.
func decodeRequest(body io.Reader) (Input, error) {
	var req Request
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return Input{}, fmt.Errorf("%w: decode body: %v", ErrInvalidRequest, err)
	}
	image, err := normalizeImage(req.Image)
	if err != nil {
		return Input{}, err
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" && image == "" {
		return Input{}, fmt.Errorf("%w: empty message and no image", ErrInvalidRequest)
	}
	return Input{Message: msg, Image: image, History: historyEntries(req.ConversationHistory)}, nil
}

// normalizeImage снимает необязательный префикс data URI и проверяет base64.
func normalizeImage(image string) (string, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return "", nil
	}
	if strings.HasPrefix(image, "data:") {
		_, payload, ok := strings.Cut(image, ";base64,")
		if !ok {
			return "", fmt.Errorf("%w: image data URI is not base64", ErrInvalidRequest)
		}
		image = payload
	}
	if _, err := base64.StdEncoding.DecodeString(image); err != nil {
		return "", fmt.Errorf("%w: image is not valid base64: %v", ErrInvalidRequest, err)
	}
	return image, nil
}
