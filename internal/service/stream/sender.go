package stream

import (
	"sync"
	"time"

	"firewatch/internal/dto"

	"github.com/gorilla/websocket"
)

// Sender carries one session's output to the client.
type Sender interface {
	SendMetadata(meta dto.FrameMetadata) error
	SendImage(jpeg []byte) error
}

// WSSender writes session output to a websocket connection. Writes are
// serialized because gorilla connections allow a single concurrent writer.
type WSSender struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

func NewWSSender(conn *websocket.Conn, writeTimeout time.Duration) *WSSender {
	return &WSSender{conn: conn, writeTimeout: writeTimeout}
}

func (s *WSSender) SendMetadata(meta dto.FrameMetadata) error {
	return s.WriteJSON(meta)
}

func (s *WSSender) SendImage(jpeg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline()
	return s.conn.WriteMessage(websocket.BinaryMessage, jpeg)
}

// WriteJSON sends any JSON message, such as the terminal error.
func (s *WSSender) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline()
	return s.conn.WriteJSON(v)
}

// Ping sends a keepalive control frame.
func (s *WSSender) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
}

// Close sends a normal close frame.
func (s *WSSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func (s *WSSender) deadline() {
	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
}
