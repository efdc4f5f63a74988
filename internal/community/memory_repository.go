package community

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository for development and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	aiRooms  map[string]string // owner -> room ID
	messages map[string][]*Message
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rooms:    make(map[string]*Room),
		aiRooms:  make(map[string]string),
		messages: make(map[string][]*Message),
	}
}

// CreateAIRoom stores room if its owner has no AI room yet.
func (m *MemoryRepository) CreateAIRoom(_ context.Context, room *Room) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.aiRooms[room.OwnerID]; ok {
		return copyRoom(m.rooms[id]), nil
	}
	m.rooms[room.ID] = copyRoom(room)
	m.aiRooms[room.OwnerID] = room.ID
	return copyRoom(room), nil
}

// FindAIRoom returns the AI room owned by userID.
func (m *MemoryRepository) FindAIRoom(_ context.Context, userID string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.aiRooms[userID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return copyRoom(m.rooms[id]), nil
}

// FindRoom returns the room with id.
func (m *MemoryRepository) FindRoom(_ context.Context, id string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return copyRoom(room), nil
}

// SetLastMessage replaces the room's last message.
func (m *MemoryRepository) SetLastMessage(_ context.Context, roomID string, last *LastMessage, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if last != nil {
		l := *last
		last = &l
	}
	room.LastMessage = last
	room.UpdatedAt = updatedAt
	return nil
}

// CreateMessage appends msg to its room.
func (m *MemoryRepository) CreateMessage(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[msg.RoomID]; !ok {
		return ErrRoomNotFound
	}
	c := *msg
	c.ReadBy = append([]string(nil), msg.ReadBy...)
	m.messages[msg.RoomID] = append(m.messages[msg.RoomID], &c)
	return nil
}

// DeleteMessages removes the room's messages.
func (m *MemoryRepository) DeleteMessages(_ context.Context, roomID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.messages[roomID])
	delete(m.messages, roomID)
	return n, nil
}

// MessageCount returns the number of stored messages in a room.
func (m *MemoryRepository) MessageCount(roomID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages[roomID])
}

func copyRoom(r *Room) *Room {
	c := *r
	c.Members = append([]string(nil), r.Members...)
	if r.LastMessage != nil {
		l := *r.LastMessage
		c.LastMessage = &l
	}
	return &c
}
