package community

import (
	"context"
	"time"
)

// Repository persists rooms and messages.
type Repository interface {
	// CreateAIRoom stores room unless the owner already has an AI room, and
	// returns whichever room is stored.
	CreateAIRoom(ctx context.Context, room *Room) (*Room, error)

	// FindAIRoom returns the AI room owned by userID.
	FindAIRoom(ctx context.Context, userID string) (*Room, error)

	FindRoom(ctx context.Context, id string) (*Room, error)

	// SetLastMessage replaces the room's last message; nil clears it.
	SetLastMessage(ctx context.Context, roomID string, last *LastMessage, updatedAt time.Time) error

	CreateMessage(ctx context.Context, msg *Message) error

	// DeleteMessages removes every message in the room.
	DeleteMessages(ctx context.Context, roomID string) (int, error)
}
