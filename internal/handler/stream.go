package handler

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/dto"
	"firewatch/internal/logger"
	"firewatch/internal/middleware"
	"firewatch/internal/service/ai"
	"firewatch/internal/service/stream"

	"github.com/gorilla/websocket"
)

const (
	handshakeWait = 10 * time.Second
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SourceOpener opens the frame source named in a handshake.
type SourceOpener func(id string) (stream.FrameSource, error)

// OpenCaptureSource opens sources with OpenCV.
func OpenCaptureSource(id string) (stream.FrameSource, error) {
	return stream.OpenSource(id)
}

// StreamHandler serves /ws/stream. The first client message names the source
// and carries the shared secret; after that the server sends a metadata JSON
// message and a JPEG binary message per frame until the source ends or the
// client goes away.
func StreamHandler(cfg *config.Config, logger *logger.Logger, detector ai.Detector,
	open SourceOpener, observers ...stream.Observer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer conn.Close()
		sender := stream.NewWSSender(conn, writeWait)

		conn.SetReadDeadline(time.Now().Add(handshakeWait))
		var hs dto.Handshake
		if err := conn.ReadJSON(&hs); err != nil {
			logger.Warning("Stream handshake failed from %s: %v", r.RemoteAddr, err)
			sender.WriteJSON(dto.ErrorMessage{Error: "invalid handshake"})
			sender.Close()
			return
		}

		if cfg.AuthEnabled() && !middleware.CheckSecret(hs.Secret(), cfg.Password) &&
			!middleware.BasicAuthorized(r, cfg.Password) {
			logger.Warning("Unauthorized stream request from %s", r.RemoteAddr)
			sender.WriteJSON(dto.ErrorMessage{Error: "unauthorized"})
			sender.Close()
			return
		}

		source, err := open(hs.SourceID())
		if err != nil {
			logger.Error("Error opening stream source %q: %v", hs.SourceID(), err)
			sender.WriteJSON(dto.ErrorMessage{Error: stream.ErrSourceUnavailable.Error()})
			sender.Close()
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		go readPump(conn, cancel)
		go pingLoop(ctx, sender)

		session := stream.NewSession(source, detector, sender, logger, observers...)
		logger.Info("Stream session %s started for source %s", session.ID, source.Name())

		err = session.Run(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil || clientGone(err):
			logger.Info("Stream session %s ended, client went away: %v", session.ID, err)
			return
		default:
			logger.Error("Stream session %s ended: %v", session.ID, err)
			sender.WriteJSON(dto.ErrorMessage{Error: streamFailure(err)})
		}
		sender.Close()
	}
}

// readPump drains client messages; any read error means the client is gone.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func pingLoop(ctx context.Context, sender *stream.WSSender) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sender.Ping(); err != nil {
				return
			}
		}
	}
}

// clientGone reports whether a send failed because the peer closed or
// dropped the connection.
func clientGone(err error) bool {
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr) ||
		errors.Is(err, websocket.ErrCloseSent) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}

func streamFailure(err error) string {
	switch {
	case errors.Is(err, stream.ErrImageSend):
		return "stream send failed"
	default:
		return "stream error"
	}
}
