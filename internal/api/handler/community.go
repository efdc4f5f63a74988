package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ntugo/ntugo/internal/api/middleware"
	"github.com/ntugo/ntugo/internal/api/models"
	"github.com/ntugo/ntugo/internal/api/response"
	"github.com/ntugo/ntugo/internal/community"
)

// Rooms manages AI support rooms. Implemented by *community.Service.
type Rooms interface {
	GetOrCreateAIRoom(ctx context.Context, userID string) (*community.Room, error)
	ClearAIRoom(ctx context.Context, userID string) (int, error)
	SaveAIReply(ctx context.Context, userID, roomID, content string) (*community.Message, error)
}

// CommunityHandler handles the AI chat room endpoints.
type CommunityHandler struct {
	rooms  Rooms
	logger zerolog.Logger
}

// NewCommunityHandler creates a new CommunityHandler.
func NewCommunityHandler(rooms Rooms, logger zerolog.Logger) *CommunityHandler {
	return &CommunityHandler{rooms: rooms, logger: logger}
}

// GetAIRoom handles POST /api/community/chatrooms/ai.
func (h *CommunityHandler) GetAIRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.rooms.GetOrCreateAIRoom(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.logger.Error().Err(err).Msg("loading ai room failed")
		response.InternalError(w, r, "伺服器內部錯誤")
		return
	}
	response.OK(w, r, models.ChatRoomResponse{ChatRoom: room})
}

// ClearAIRoom handles POST /api/community/chatrooms/ai/clear.
func (h *CommunityHandler) ClearAIRoom(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.rooms.ClearAIRoom(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.logger.Error().Err(err).Msg("clearing ai room failed")
		response.InternalError(w, r, "伺服器內部錯誤")
		return
	}
	response.OK(w, r, models.ClearRoomResponse{
		Success:      true,
		DeletedCount: deleted,
		Message:      "AI 聊天記錄已清除",
	})
}

// SaveAIReply handles POST /api/community/messages/{roomId}/ai.
func (h *CommunityHandler) SaveAIReply(w http.ResponseWriter, r *http.Request) {
	var req models.SaveReplyInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "訊息內容不能為空", nil)
		return
	}

	userID := middleware.GetUserID(r.Context())
	msg, err := h.rooms.SaveAIReply(r.Context(), userID, chi.URLParam(r, "roomId"), req.Content)
	if err != nil {
		switch {
		case errors.Is(err, community.ErrInvalidRoomID):
			response.BadRequest(w, r, "無效的聊天室 ID", nil)
		case errors.Is(err, community.ErrNotAIRoom):
			response.BadRequest(w, r, "此聊天室不是 AI 聊天室", nil)
		case errors.Is(err, community.ErrNotMember):
			response.Forbidden(w, r, "您不是此聊天室的成員")
		case errors.Is(err, community.ErrEmptyContent):
			response.BadRequest(w, r, "訊息內容不能為空", nil)
		default:
			h.logger.Error().Err(err).Msg("saving ai reply failed")
			response.InternalError(w, r, "伺服器內部錯誤")
		}
		return
	}

	response.OK(w, r, models.ChatMessageResponse{Message: chatMessage(msg, userID)})
}

func chatMessage(m *community.Message, viewerID string) models.ChatMessage {
	return models.ChatMessage{
		ID:        m.ID,
		SenderID:  m.SenderID,
		Sender:    models.MessageSender{ID: community.AISenderID, Name: community.AISenderName},
		Type:      string(m.Type),
		Content:   m.Content,
		CreatedAt: models.Timestamp(m.CreatedAt),
		IsOwn:     m.SenderID == viewerID,
		ReadBy:    m.ReadBy,
	}
}
