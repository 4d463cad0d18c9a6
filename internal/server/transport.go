// Package server adapts WebSocket connections to the frame transport used by
// room sessions, handling deadlines, keepalive and close classification.
package server

import (
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Transport is a bidirectional, frame-oriented client connection. ReadFrame is
// called from one goroutine and WriteFrame/Ping from another; Close may be
// called from any goroutine, more than once, and must unblock ReadFrame.
type Transport interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	Ping() error
	Close() error
	RemoteAddr() string
}

type wsTransport struct {
	conn           *websocket.Conn
	addr           string
	maxMessageSize int64
	pongWait       time.Duration
	writeWait      time.Duration
	log            zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newWSTransport(conn *websocket.Conn, addr string, cfg Config, log zerolog.Logger) *wsTransport {
	t := &wsTransport{
		conn:           conn,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		pongWait:       cfg.WebSocket.PongWait,
		writeWait:      cfg.WebSocket.WriteWait,
		log:            log.With().Str("addr", addr).Logger(),
	}
	conn.SetReadLimit(cfg.MaxMessageSize)
	t.setupReadConnection()
	return t
}

// setupReadConnection configures read deadlines and the pong handler.
func (t *wsTransport) setupReadConnection() {
	if err := t.conn.SetReadDeadline(time.Now().Add(t.pongWait)); err != nil {
		t.log.Warn().Err(err).Msg("error setting initial read deadline")
	}
	t.conn.SetPongHandler(func(string) error {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.pongWait)); err != nil {
			t.log.Warn().Err(err).Msg("error setting read deadline in pong handler")
		}
		return nil
	})
}

func (t *wsTransport) RemoteAddr() string {
	return t.addr
}

func (t *wsTransport) ReadFrame() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		t.logReadError(err)
		return nil, err
	}
	return data, nil
}

func (t *wsTransport) WriteFrame(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Ping() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.PingMessage, nil)
}

// Close sends a close frame when possible and closes the connection.
func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.writeWait)); err != nil && !isExpectedCloseError(err) {
			t.log.Debug().Err(err).Msg("error writing close message")
		}
		if err := t.conn.Close(); err != nil && !isExpectedCloseError(err) {
			t.closeErr = err
		}
	})
	return t.closeErr
}

// logReadError logs a read failure at a level matching how expected it is.
func (t *wsTransport) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		t.log.Warn().Int64("limit", t.maxMessageSize).Msg("frame exceeded maximum size")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		t.log.Debug().Err(err).Msg("client disconnected")
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		t.log.Debug().Err(err).Msg("connection closed")
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		t.log.Warn().Err(err).Msg("unexpected websocket close")
	default:
		t.log.Warn().Err(err).Msg("websocket read error")
	}
}

// isExpectedCloseError reports whether err is a normal side effect of closing
// a connection.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "broken pipe")
}
