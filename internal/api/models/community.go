package models

import "github.com/ntugo/ntugo/internal/community"

// ChatRoomResponse wraps a chat room.
type ChatRoomResponse struct {
	ChatRoom *community.Room `json:"chatRoom"`
}

// ClearRoomResponse reports how many messages were removed.
type ClearRoomResponse struct {
	Success      bool   `json:"success"`
	DeletedCount int    `json:"deletedCount"`
	Message      string `json:"message"`
}

// SaveReplyInput is the body of POST /api/community/messages/{roomId}/ai.
type SaveReplyInput struct {
	Content string `json:"content"`
}

// MessageSender describes who sent a message.
type MessageSender struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChatMessage is a message as shown to its reader.
type ChatMessage struct {
	ID        string        `json:"id"`
	SenderID  string        `json:"senderId"`
	Sender    MessageSender `json:"sender"`
	Type      string        `json:"type"`
	Content   string        `json:"content"`
	CreatedAt Timestamp     `json:"createdAt"`
	IsOwn     bool          `json:"isOwn"`
	ReadBy    []string      `json:"readBy"`
}

// ChatMessageResponse wraps a message.
type ChatMessageResponse struct {
	Message ChatMessage `json:"message"`
}
