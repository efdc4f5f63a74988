package community

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL community repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const roomColumns = `id, type, name, owner_id, members, last_message, created_at, updated_at`

// CreateAIRoom inserts room; the partial unique index on AI room owners makes
// concurrent callers converge on one room.
func (r *PostgresRepository) CreateAIRoom(ctx context.Context, room *Room) (*Room, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_rooms (id, type, name, owner_id, members, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner_id) WHERE type = 'ai' DO NOTHING
	`,
		room.ID,
		string(room.Type),
		room.Name,
		room.OwnerID,
		room.Members,
		room.CreatedAt,
		room.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting chat room: %w", err)
	}
	return r.FindAIRoom(ctx, room.OwnerID)
}

// FindAIRoom returns the AI room owned by userID.
func (r *PostgresRepository) FindAIRoom(ctx context.Context, userID string) (*Room, error) {
	query := `SELECT ` + roomColumns + ` FROM chat_rooms WHERE type = 'ai' AND owner_id = $1`
	return scanRoom(r.pool.QueryRow(ctx, query, userID))
}

// FindRoom returns the room with id.
func (r *PostgresRepository) FindRoom(ctx context.Context, id string) (*Room, error) {
	query := `SELECT ` + roomColumns + ` FROM chat_rooms WHERE id = $1`
	return scanRoom(r.pool.QueryRow(ctx, query, id))
}

// SetLastMessage replaces the room's last message.
func (r *PostgresRepository) SetLastMessage(ctx context.Context, roomID string, last *LastMessage, updatedAt time.Time) error {
	var payload []byte
	if last != nil {
		var err error
		if payload, err = json.Marshal(last); err != nil {
			return fmt.Errorf("encoding last message: %w", err)
		}
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE chat_rooms SET last_message = $2, updated_at = $3 WHERE id = $1`,
		roomID, payload, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating last message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// CreateMessage inserts msg.
func (r *PostgresRepository) CreateMessage(ctx context.Context, msg *Message) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO messages (id, room_id, sender_id, type, content, read_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		msg.ID,
		msg.RoomID,
		msg.SenderID,
		string(msg.Type),
		msg.Content,
		msg.ReadBy,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// DeleteMessages removes the room's messages.
func (r *PostgresRepository) DeleteMessages(ctx context.Context, roomID string) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE room_id = $1`, roomID)
	if err != nil {
		return 0, fmt.Errorf("deleting messages: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanRoom(row pgx.Row) (*Room, error) {
	var room Room
	var roomType string
	var last []byte

	err := row.Scan(
		&room.ID,
		&roomType,
		&room.Name,
		&room.OwnerID,
		&room.Members,
		&last,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	room.Type = RoomType(roomType)
	if len(last) > 0 {
		room.LastMessage = &LastMessage{}
		if err := json.Unmarshal(last, room.LastMessage); err != nil {
			return nil, fmt.Errorf("decoding last message: %w", err)
		}
	}
	return &room, nil
}
