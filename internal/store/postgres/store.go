// Package postgres provides the PostgreSQL implementation of chat.Store.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/roomchat/internal/chat"
)

//go:embed schema.sql
var schemaSQL string

// Store provides PostgreSQL-backed persistence using a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

var _ chat.Store = (*Store)(nil)

// Open connects to the database at dsn, verifies the connection and applies
// the schema.
func Open(ctx context.Context, dsn string, log zerolog.Logger) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	log.Debug().Str("host", config.ConnConfig.Host).Msg("postgres store opened")
	return &Store{pool: pool, log: log}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// CreateUser inserts a user record.
func (s *Store) CreateUser(ctx context.Context, name, email string) (chat.User, error) {
	var (
		id   pgtype.UUID
		user chat.User
	)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (name, email)
		VALUES ($1, $2)
		RETURNING id, name, email, created_at`,
		strings.TrimSpace(name), strings.TrimSpace(email),
	).Scan(&id, &user.Name, &user.Email, &user.CreatedAt)
	if err != nil {
		return chat.User{}, fmt.Errorf("insert user: %w", err)
	}
	user.ID = uuid.UUID(id.Bytes)
	return user, nil
}

// ResolveDisplayName returns the user's name.
func (s *Store) ResolveDisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx, `SELECT name FROM users WHERE id = $1`, userID.String()).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", chat.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select user name: %w", err)
	}
	return name, nil
}

// CreateRoom inserts a room owned by ownerID.
func (s *Store) CreateRoom(ctx context.Context, ownerID uuid.UUID, in chat.RoomInput) (chat.Room, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO rooms (owner_id, name, description, profile_pic)
		VALUES ($1, $2, $3, $4)
		RETURNING id, owner_id, name, description, profile_pic, created_at`,
		ownerID.String(), in.Name, in.Description, in.ProfilePic,
	)
	room, err := scanRoom(row)
	if err != nil {
		return chat.Room{}, fmt.Errorf("insert room: %w", err)
	}
	return room, nil
}

// GetRoom returns the room with the given id.
func (s *Store) GetRoom(ctx context.Context, roomID uuid.UUID) (chat.Room, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, description, profile_pic, created_at
		FROM rooms
		WHERE id = $1`, roomID.String())
	room, err := scanRoom(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Room{}, chat.ErrRoomNotFound
	}
	if err != nil {
		return chat.Room{}, fmt.Errorf("select room: %w", err)
	}
	return room, nil
}

// ListRooms returns every room, oldest first.
func (s *Store) ListRooms(ctx context.Context) ([]chat.Room, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, name, description, profile_pic, created_at
		FROM rooms
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("select rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]chat.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// CreateMessage inserts a message and returns it joined with the author's name.
func (s *Store) CreateMessage(ctx context.Context, roomID, authorID uuid.UUID, content string) (chat.Message, error) {
	var (
		id  pgtype.UUID
		msg = chat.Message{RoomID: roomID, AuthorID: authorID}
	)
	err := s.pool.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO user_messages (user_id, room_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, user_id, content, created_at
		)
		SELECT inserted.id, u.name, inserted.content, inserted.created_at
		FROM inserted
		JOIN users u ON inserted.user_id = u.id`,
		authorID.String(), roomID.String(), content,
	).Scan(&id, &msg.AuthorName, &msg.Content, &msg.CreatedAt)
	if err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}
	msg.ID = uuid.UUID(id.Bytes)
	msg.CreatedAt = msg.CreatedAt.UTC()
	return msg, nil
}

// LoadRecentMessages returns up to limit messages of the room, newest first.
func (s *Store) LoadRecentMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		return []chat.Message{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.user_id, u.name, m.content, m.created_at
		FROM user_messages m
		JOIN users u ON m.user_id = u.id
		WHERE m.room_id = $1
		ORDER BY m.created_at DESC
		LIMIT $2`, roomID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0, limit)
	for rows.Next() {
		var (
			id, author pgtype.UUID
			created    time.Time
			msg        = chat.Message{RoomID: roomID}
		)
		if err := rows.Scan(&id, &author, &msg.AuthorName, &msg.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.ID = uuid.UUID(id.Bytes)
		msg.AuthorID = uuid.UUID(author.Bytes)
		msg.CreatedAt = created.UTC()
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func scanRoom(row pgx.Row) (chat.Room, error) {
	var (
		id, owner pgtype.UUID
		room      chat.Room
	)
	if err := row.Scan(&id, &owner, &room.Name, &room.Description, &room.ProfilePic, &room.CreatedAt); err != nil {
		return chat.Room{}, err
	}
	room.ID = uuid.UUID(id.Bytes)
	room.OwnerID = uuid.UUID(owner.Bytes)
	room.CreatedAt = room.CreatedAt.UTC()
	return room, nil
}
