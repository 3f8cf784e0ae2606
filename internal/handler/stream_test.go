package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/dto"
	"firewatch/internal/service/ai"
	"firewatch/internal/service/stream"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"
)

type frameSource struct {
	frames int
	reads  int
	mu     sync.Mutex
	closed bool
}

// Read yields gray frames; frames < 0 means endless.
func (f *frameSource) Read() (gocv.Mat, error) {
	if f.frames >= 0 && f.reads >= f.frames {
		return gocv.Mat{}, stream.ErrEndOfSource
	}
	f.reads++
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 128, 128, 0), 240, 320, gocv.MatTypeCV8UC3), nil
}

func (f *frameSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *frameSource) Name() string { return "fake" }

func (f *frameSource) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type streamServer struct {
	url     string
	source  *frameSource
	opened  []string
	mu      sync.Mutex
	events  []dto.AlertEvent
	openErr error
}

func newStreamServer(t *testing.T, cfg *config.Config, frames int, dets []ai.Detection) *streamServer {
	t.Helper()
	_, l, _ := setupTestEnv(t)

	s := &streamServer{source: &frameSource{frames: frames}}
	open := func(id string) (stream.FrameSource, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.opened = append(s.opened, id)
		if s.openErr != nil {
			return nil, s.openErr
		}
		return s.source, nil
	}
	observer := func(ev dto.AlertEvent) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.events = append(s.events, ev)
	}

	srv := httptest.NewServer(StreamHandler(cfg, l, fixedDetector{dets: dets}, open, observer))
	t.Cleanup(srv.Close)
	s.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return s
}

func (s *streamServer) openedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.opened...)
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	return conn
}

func readError(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("message type = %d, want text", kind)
	}
	var msg dto.ErrorMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg.Error
}

// ========================================
// Stream Tests
// ========================================

func TestStreamHandler_SendsMetadataThenImage(t *testing.T) {
	fire := []ai.Detection{{Label: ai.LabelFire, Score: ai.Score(0.9), Box: ai.Box{X: 20, Y: 20, W: 100, H: 80}}}
	s := newStreamServer(t, &config.Config{}, 4, fire)
	conn := dial(t, s.url, nil)

	if err := conn.WriteJSON(dto.Handshake{Source: "rtsp://cam/live"}); err != nil {
		t.Fatal(err)
	}

	var metas []dto.FrameMetadata
	for i := 0; i < 4; i++ {
		kind, data, err := conn.ReadMessage()
		if err != nil || kind != websocket.TextMessage {
			t.Fatalf("frame %d: metadata read kind=%d err=%v", i, kind, err)
		}
		var meta dto.FrameMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		metas = append(metas, meta)

		kind, data, err = conn.ReadMessage()
		if err != nil || kind != websocket.BinaryMessage || len(data) == 0 {
			t.Fatalf("frame %d: image read kind=%d err=%v", i, kind, err)
		}
	}

	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}

	for i, m := range metas {
		if m.Type != "detections" || m.FrameSize != [2]int{320, 240} {
			t.Errorf("frame %d metadata = %+v", i, m)
		}
		// the first two frames cannot reach consensus
		if want := i >= 2; (len(m.Detections) > 0) != want {
			t.Errorf("frame %d: %d persistent detections", i, len(m.Detections))
		}
	}

	if opened := s.openedIDs(); len(opened) != 1 || opened[0] != "rtsp://cam/live" {
		t.Errorf("opened = %v", opened)
	}
	if !s.source.wasClosed() {
		t.Error("source not closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) != 2 || s.events[0].Origin != "stream" {
		t.Errorf("events = %d", len(s.events))
	}
}

func TestStreamHandler_EmptySourceUsesDefaultDevice(t *testing.T) {
	s := newStreamServer(t, &config.Config{}, 0, nil)
	conn := dial(t, s.url, nil)
	conn.WriteJSON(map[string]string{})

	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}
	if opened := s.openedIDs(); len(opened) != 1 || opened[0] != "0" {
		t.Errorf("opened = %q, want device 0", opened)
	}
}

func TestStreamHandler_Unauthorized(t *testing.T) {
	cfg := &config.Config{Password: "pw"}
	s := newStreamServer(t, cfg, 1, nil)

	conn := dial(t, s.url, nil)
	conn.WriteJSON(dto.Handshake{Source: "0", Credential: "nope"})
	if got := readError(t, conn); got != "unauthorized" {
		t.Errorf("error = %q", got)
	}
	if len(s.openedIDs()) != 0 {
		t.Error("source opened for an unauthorized client")
	}
}

func TestStreamHandler_Credentials(t *testing.T) {
	cfg := &config.Config{Password: "pw"}

	tests := []struct {
		name   string
		hs     dto.Handshake
		header http.Header
	}{
		{"credential field", dto.Handshake{Source: "0", Credential: "pw"}, nil},
		{"auth alias", dto.Handshake{URL: "0", Auth: "pw"}, nil},
		{"basic header", dto.Handshake{Source: "0"}, http.Header{
			"Authorization": {"Basic " + base64.StdEncoding.EncodeToString([]byte("user:pw"))},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStreamServer(t, cfg, 1, nil)
			conn := dial(t, s.url, tt.header)
			conn.WriteJSON(tt.hs)

			kind, _, err := conn.ReadMessage()
			if err != nil || kind != websocket.TextMessage {
				t.Fatalf("first message kind=%d err=%v", kind, err)
			}
			if opened := s.openedIDs(); len(opened) != 1 {
				t.Errorf("opened = %v", opened)
			}
		})
	}
}

func TestStreamHandler_CannotOpen(t *testing.T) {
	s := newStreamServer(t, &config.Config{}, 1, nil)
	s.mu.Lock()
	s.openErr = errors.New("no such device")
	s.mu.Unlock()

	conn := dial(t, s.url, nil)
	conn.WriteJSON(dto.Handshake{Source: "/dev/video9"})
	if got := readError(t, conn); got != "cannot open stream" {
		t.Errorf("error = %q", got)
	}
}

func TestStreamHandler_InvalidHandshake(t *testing.T) {
	s := newStreamServer(t, &config.Config{}, 1, nil)
	conn := dial(t, s.url, nil)
	conn.WriteMessage(websocket.TextMessage, []byte("not json"))

	if got := readError(t, conn); got != "invalid handshake" {
		t.Errorf("error = %q", got)
	}
}

func TestStreamHandler_ClientDisconnectReleasesSource(t *testing.T) {
	s := newStreamServer(t, &config.Config{}, -1, nil)
	conn := dial(t, s.url, nil)
	conn.WriteJSON(dto.Handshake{Source: "rtsp://cam/live"})

	for _, want := range []int{websocket.TextMessage, websocket.BinaryMessage} {
		kind, _, err := conn.ReadMessage()
		if err != nil || kind != want {
			t.Fatalf("read kind=%d err=%v, want kind %d", kind, err, want)
		}
	}
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for !s.source.wasClosed() {
		if time.Now().After(deadline) {
			t.Fatal("source still open after the client disconnected")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestClientGone(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"closed conn", fmt.Errorf("%w: %w", stream.ErrImageSend, net.ErrClosed), true},
		{"broken pipe", fmt.Errorf("%w: %w", stream.ErrImageSend, syscall.EPIPE), true},
		{"reset", fmt.Errorf("write: %w", syscall.ECONNRESET), true},
		{"close sent", websocket.ErrCloseSent, true},
		{"close frame", &websocket.CloseError{Code: websocket.CloseGoingAway}, true},
		{"read failure", errors.New("failed to read frame: device lost"), false},
		{"encode failure", stream.ErrImageSend, false},
	}
	for _, tt := range tests {
		if got := clientGone(tt.err); got != tt.want {
			t.Errorf("%s: clientGone = %v, want %v", tt.name, got, tt.want)
		}
	}
}
