package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/roomchat/internal/chat"
)

const waitTimeout = 2 * time.Second

var errStoreDown = errors.New("store unavailable")

// fakeTransport is an in-memory Transport. Frames pushed with send are
// returned by ReadFrame; frames written by the session are collected in writes.
type fakeTransport struct {
	addr      string
	inbound   chan []byte
	writes    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	failWrite atomic.Bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		addr:    "pipe",
		inbound: make(chan []byte, 64),
		writes:  make(chan []byte, 512),
		closed:  make(chan struct{}),
	}
}

func (f *fakeTransport) ReadFrame() ([]byte, error) {
	select {
	case <-f.closed:
		return nil, io.EOF
	default:
	}

	select {
	case data := <-f.inbound:
		return data, nil
	case <-f.closed:
		return nil, io.EOF
	}
}

func (f *fakeTransport) WriteFrame(data []byte) error {
	if f.failWrite.Load() {
		return errors.New("write: broken connection")
	}
	select {
	case <-f.closed:
		return net.ErrClosed
	default:
	}
	f.writes <- data
	return nil
}

func (f *fakeTransport) Ping() error {
	return nil
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) RemoteAddr() string {
	return f.addr
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeTransport) send(t *testing.T, frame string) {
	t.Helper()
	select {
	case f.inbound <- []byte(frame):
	case <-time.After(waitTimeout):
		t.Fatalf("timed out sending frame %s", frame)
	}
}

// next returns the next written event decoded into a map.
func (f *fakeTransport) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case data := <-f.writes:
		var event map[string]any
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("session wrote invalid JSON %q: %v", data, err)
		}
		return event
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a frame")
		return nil
	}
}

// expectSilence fails if a frame is written within d.
func (f *fakeTransport) expectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case data := <-f.writes:
		t.Fatalf("unexpected frame %s", data)
	case <-time.After(d):
	}
}

// memStore is an in-memory Store.
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]string
	rooms    map[uuid.UUID]chat.Room
	messages []chat.Message
	clock    time.Time

	failCreate  atomic.Bool
	failHistory atomic.Bool
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[uuid.UUID]string),
		rooms: make(map[uuid.UUID]chat.Room),
		clock: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) addUser(name string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.users[id] = name
	return id
}

func (m *memStore) ResolveDisplayName(_ context.Context, userID uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.users[userID]
	if !ok {
		return "", chat.ErrUserNotFound
	}
	return name, nil
}

func (m *memStore) CreateMessage(_ context.Context, roomID, authorID uuid.UUID, content string) (chat.Message, error) {
	if m.failCreate.Load() {
		return chat.Message{}, errStoreDown
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.clock = m.clock.Add(time.Second)
	msg := chat.Message{
		ID:         uuid.New(),
		RoomID:     roomID,
		AuthorID:   authorID,
		AuthorName: m.users[authorID],
		Content:    content,
		CreatedAt:  m.clock,
	}
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *memStore) LoadRecentMessages(_ context.Context, roomID uuid.UUID, limit int) ([]chat.Message, error) {
	if m.failHistory.Load() {
		return nil, errStoreDown
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []chat.Message
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if m.messages[i].RoomID == roomID {
			out = append(out, m.messages[i])
		}
	}
	return out, nil
}

func (m *memStore) CreateRoom(_ context.Context, ownerID uuid.UUID, in chat.RoomInput) (chat.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room := chat.Room{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        in.Name,
		Description: in.Description,
		ProfilePic:  in.ProfilePic,
		CreatedAt:   m.clock,
	}
	m.rooms[room.ID] = room
	return room, nil
}

func (m *memStore) GetRoom(_ context.Context, roomID uuid.UUID) (chat.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return chat.Room{}, chat.ErrRoomNotFound
	}
	return room, nil
}

func (m *memStore) ListRooms(context.Context) ([]chat.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rooms := make([]chat.Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (m *memStore) messagesIn(roomID uuid.UUID) []chat.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chat.Message
	for _, msg := range m.messages {
		if msg.RoomID == roomID {
			out = append(out, msg)
		}
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RateLimit.Burst = 1000
	return cfg
}

func newTestHub(store *memStore) *Hub {
	cfg := testConfig()
	registry := NewRegistry(cfg.Chat.TopicBuffer, cfg.Chat.EvictIdleTopics, zerolog.Nop())
	return NewHub(registry, store, store, cfg, zerolog.Nop())
}

// runSession starts AcceptConnection in the background and returns a channel
// carrying its result. The channel is closed after the result is sent.
func runSession(ctx context.Context, hub *Hub, roomID, userID uuid.UUID, t Transport) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- hub.AcceptConnection(ctx, roomID, userID, t)
		close(done)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("session did not stop")
		return nil
	}
}
