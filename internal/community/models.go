// Package community manages chat rooms, currently the per-user AI support
// room and the replies saved into it.
package community

import (
	"errors"
	"time"
)

// RoomType distinguishes chat rooms.
type RoomType string

// Room types.
const (
	RoomTypeAI     RoomType = "ai"
	RoomTypeDirect RoomType = "direct"
	RoomTypeGroup  RoomType = "group"
)

// MessageType is the kind of content a message carries.
type MessageType string

// MessageTypeText is a plain-text message.
const MessageTypeText MessageType = "text"

// AISenderID is the sender of every AI support message.
const AISenderID = "ntu-ai-support"

// AISenderName is shown next to AI support messages.
const AISenderName = "NTU AI 客服"

var (
	ErrInvalidRoomID = errors.New("invalid chat room id")
	ErrRoomNotFound  = errors.New("chat room not found")
	ErrNotAIRoom     = errors.New("chat room is not an AI room")
	ErrNotMember     = errors.New("user is not a member of this chat room")
	ErrEmptyContent  = errors.New("message content is empty")
)

// LastMessage summarises the newest message of a room.
type LastMessage struct {
	Content   string    `json:"content"`
	SenderID  string    `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Room is a chat room.
type Room struct {
	ID          string       `json:"id"`
	Type        RoomType     `json:"type"`
	Name        string       `json:"name"`
	OwnerID     string       `json:"-"`
	Members     []string     `json:"members"`
	LastMessage *LastMessage `json:"lastMessage,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// HasMember reports whether userID belongs to the room.
func (r *Room) HasMember(userID string) bool {
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Message is one chat message.
type Message struct {
	ID        string      `json:"id"`
	RoomID    string      `json:"roomId"`
	SenderID  string      `json:"senderId"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	ReadBy    []string    `json:"readBy"`
	CreatedAt time.Time   `json:"createdAt"`
}
