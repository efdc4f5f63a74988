package community

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the community service.
type ServiceConfig struct {
	Repository Repository
	Clock      func() time.Time
	Logger     zerolog.Logger
}

// Service provides chat room operations.
type Service struct {
	repo   Repository
	clock  func() time.Time
	logger zerolog.Logger
}

// NewService creates a new community service.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{repo: cfg.Repository, clock: clock, logger: cfg.Logger}
}

// GetOrCreateAIRoom returns the user's AI support room, creating it on first use.
func (s *Service) GetOrCreateAIRoom(ctx context.Context, userID string) (*Room, error) {
	room, err := s.repo.FindAIRoom(ctx, userID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, ErrRoomNotFound) {
		return nil, fmt.Errorf("finding ai room: %w", err)
	}

	now := s.clock()
	room, err = s.repo.CreateAIRoom(ctx, &Room{
		ID:        uuid.NewString(),
		Type:      RoomTypeAI,
		Name:      AISenderName,
		OwnerID:   userID,
		Members:   []string{userID},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("creating ai room: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Str("room_id", room.ID).Msg("ai room created")
	return room, nil
}

// ClearAIRoom deletes every message in the user's AI room and returns how
// many were removed.
func (s *Service) ClearAIRoom(ctx context.Context, userID string) (int, error) {
	room, err := s.GetOrCreateAIRoom(ctx, userID)
	if err != nil {
		return 0, err
	}

	deleted, err := s.repo.DeleteMessages(ctx, room.ID)
	if err != nil {
		return 0, err
	}
	if err := s.repo.SetLastMessage(ctx, room.ID, nil, s.clock()); err != nil {
		return 0, fmt.Errorf("clearing last message: %w", err)
	}

	s.logger.Info().Str("room_id", room.ID).Int("deleted", deleted).Msg("ai room cleared")
	return deleted, nil
}

// SaveAIReply stores an AI answer in roomID on behalf of userID.
func (s *Service) SaveAIReply(ctx context.Context, userID, roomID, content string) (*Message, error) {
	if _, err := uuid.Parse(roomID); err != nil {
		return nil, ErrInvalidRoomID
	}

	room, err := s.repo.FindRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil, ErrNotAIRoom
		}
		return nil, fmt.Errorf("finding room: %w", err)
	}
	if room.Type != RoomTypeAI {
		return nil, ErrNotAIRoom
	}
	if !room.HasMember(userID) {
		return nil, ErrNotMember
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	now := s.clock()
	msg := &Message{
		ID:        uuid.NewString(),
		RoomID:    room.ID,
		SenderID:  AISenderID,
		Type:      MessageTypeText,
		Content:   content,
		ReadBy:    []string{userID},
		CreatedAt: now,
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	last := &LastMessage{Content: content, SenderID: AISenderID, CreatedAt: now}
	if err := s.repo.SetLastMessage(ctx, room.ID, last, now); err != nil {
		return nil, fmt.Errorf("updating last message: %w", err)
	}
	return msg, nil
}
