package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ntugo/ntugo/internal/api/middleware"
	"github.com/ntugo/ntugo/internal/api/models"
	"github.com/ntugo/ntugo/internal/api/response"
	"github.com/ntugo/ntugo/internal/assistant"
)

// Assistant answers chat questions. Implemented by *assistant.Service.
type Assistant interface {
	Configured() bool
	Ask(ctx context.Context, q assistant.Question) (*assistant.Answer, error)
}

// AssistantHandler handles the AI chat endpoint.
type AssistantHandler struct {
	assistant Assistant
	logger    zerolog.Logger
}

// NewAssistantHandler creates a new AssistantHandler.
func NewAssistantHandler(a Assistant, logger zerolog.Logger) *AssistantHandler {
	return &AssistantHandler{assistant: a, logger: logger}
}

// Chat handles POST /api/ai/chat.
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if !h.assistant.Configured() {
		response.ServiceUnavailable(w, r, "OpenAI API Key 未設定")
		return
	}

	var req models.ChatInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		response.BadRequest(w, r, "請提供有效的問題", nil)
		return
	}

	answer, err := h.assistant.Ask(r.Context(), assistant.Question{
		Message: req.Message,
		History: req.ConversationHistory,
	})
	if err != nil {
		switch {
		case errors.Is(err, assistant.ErrNotConfigured):
			response.ServiceUnavailable(w, r, "OpenAI API Key 未設定")
		case errors.Is(err, assistant.ErrEmptyMessage):
			response.BadRequest(w, r, "請提供有效的問題", nil)
		case errors.Is(err, assistant.ErrRateLimited):
			response.TooManyRequests(w, r, "AI 服務請求過於頻繁，請稍後再試")
		default:
			h.logger.Error().Err(err).Str("user_id", middleware.GetUserID(r.Context())).Msg("ai chat failed")
			response.InternalError(w, r, "AI 服務錯誤，請稍後再試")
		}
		return
	}

	response.OK(w, r, models.ChatResponse{
		Success:    true,
		Response:   answer.Response,
		UsedChunks: answer.UsedChunks,
		UsedFiles:  answer.UsedFiles,
		Method:     answer.Method,
	})
}
