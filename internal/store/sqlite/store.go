// Package sqlite provides the embedded SQLite implementation of chat.Store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/Tyrowin/roomchat/internal/chat"
)

//go:embed schema.sql
var schemaSQL string

// Store provides SQLite-backed persistence for rooms, messages and users.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

var _ chat.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens (and creates if needed) a SQLite database at path and applies
// the schema.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	dsn := cleanPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &Store{db: db, log: log, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	log.Debug().Str("path", cleanPath).Msg("sqlite store opened")
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateUser inserts a user record.
func (s *Store) CreateUser(ctx context.Context, name, email string) (chat.User, error) {
	user := chat.User{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Email:     strings.TrimSpace(email),
		CreatedAt: fromMillis(toMillis(s.now())),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)`,
		user.ID.String(), user.Name, user.Email, toMillis(user.CreatedAt),
	)
	if err != nil {
		return chat.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// ResolveDisplayName returns the user's name.
func (s *Store) ResolveDisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM users WHERE id = ?`, userID.String()).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", chat.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select user name: %w", err)
	}
	return name, nil
}

// CreateRoom inserts a room owned by ownerID.
func (s *Store) CreateRoom(ctx context.Context, ownerID uuid.UUID, in chat.RoomInput) (chat.Room, error) {
	room := chat.Room{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        in.Name,
		Description: in.Description,
		ProfilePic:  in.ProfilePic,
		CreatedAt:   fromMillis(toMillis(s.now())),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, owner_id, name, description, profile_pic, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		room.ID.String(), room.OwnerID.String(), room.Name,
		nullStr(room.Description), nullStr(room.ProfilePic), toMillis(room.CreatedAt),
	)
	if err != nil {
		return chat.Room{}, fmt.Errorf("insert room: %w", err)
	}
	return room, nil
}

// GetRoom returns the room with the given id.
func (s *Store) GetRoom(ctx context.Context, roomID uuid.UUID) (chat.Room, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, description, profile_pic, created_at
		 FROM rooms WHERE id = ?`, roomID.String())
	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Room{}, chat.ErrRoomNotFound
	}
	if err != nil {
		return chat.Room{}, fmt.Errorf("select room: %w", err)
	}
	return room, nil
}

// ListRooms returns every room, oldest first.
func (s *Store) ListRooms(ctx context.Context) ([]chat.Room, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, description, profile_pic, created_at
		 FROM rooms ORDER BY created_at, rowid`)
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

// CreateMessage inserts a message and returns it with the author's name.
func (s *Store) CreateMessage(ctx context.Context, roomID, authorID uuid.UUID, content string) (chat.Message, error) {
	msg := chat.Message{
		ID:        uuid.New(),
		RoomID:    roomID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: fromMillis(toMillis(s.now())),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return chat.Message{}, fmt.Errorf("begin message tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_messages (id, user_id, room_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID.String(), authorID.String(), roomID.String(), content, toMillis(msg.CreatedAt),
	); err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `SELECT name FROM users WHERE id = ?`, authorID.String()).Scan(&msg.AuthorName); err != nil {
		return chat.Message{}, fmt.Errorf("select author name: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return chat.Message{}, fmt.Errorf("commit message: %w", err)
	}
	return msg, nil
}

// LoadRecentMessages returns up to limit messages of the room, newest first.
func (s *Store) LoadRecentMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		return []chat.Message{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.user_id, u.name, m.content, m.created_at
		 FROM user_messages m
		 JOIN users u ON m.user_id = u.id
		 WHERE m.room_id = ?
		 ORDER BY m.created_at DESC, m.rowid DESC
		 LIMIT ?`, roomID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0, limit)
	for rows.Next() {
		var (
			id, author string
			created    int64
			msg        = chat.Message{RoomID: roomID}
		)
		if err := rows.Scan(&id, &author, &msg.AuthorName, &msg.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if msg.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse message id: %w", err)
		}
		if msg.AuthorID, err = uuid.Parse(author); err != nil {
			return nil, fmt.Errorf("parse author id: %w", err)
		}
		msg.CreatedAt = fromMillis(created)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (chat.Room, error) {
	var (
		id, owner   string
		description sql.NullString
		profilePic  sql.NullString
		created     int64
		room        chat.Room
	)
	if err := row.Scan(&id, &owner, &room.Name, &description, &profilePic, &created); err != nil {
		return chat.Room{}, err
	}

	var err error
	if room.ID, err = uuid.Parse(id); err != nil {
		return chat.Room{}, fmt.Errorf("parse room id: %w", err)
	}
	if room.OwnerID, err = uuid.Parse(owner); err != nil {
		return chat.Room{}, fmt.Errorf("parse owner id: %w", err)
	}
	if description.Valid {
		room.Description = &description.String
	}
	if profilePic.Valid {
		room.ProfilePic = &profilePic.String
	}
	room.CreatedAt = fromMillis(created)
	return room, nil
}

func nullStr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
