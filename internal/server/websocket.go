package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/ssdp-scan/internal/discovery"
	"github.com/muurk/ssdp-scan/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// maxMessageSize bounds what a client may send; clients only send control frames
	maxMessageSize = 512
)

// Frame types written to /scan clients
const (
	FrameDevice = "device"
	FrameDone   = "done"
	FrameError  = "error"
)

// Frame is one JSON message on the /scan stream
type Frame struct {
	Type   string            `json:"type"`
	Device *discovery.Device `json:"device,omitempty"`
	Count  *int              `json:"count,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// handleScan upgrades the request and streams one discovery to the client.
// A client that disconnects ends the discovery early.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	req, err := parseScanRequest(r.URL.Query(), s.config.Defaults, s.config.MaxTimeout)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	remoteAddr := r.RemoteAddr
	s.wg.Add(1)
	s.track(remoteAddr, conn)
	defer func() {
		_ = conn.Close()
		s.untrack(remoteAddr)
		s.wg.Done()
		logging.LogConnection(remoteAddr, "websocket_closed")
	}()

	logging.LogConnection(remoteAddr, "websocket_upgraded")
	logging.Info("Scan requested",
		zap.String("remote_addr", remoteAddr),
		zap.String("search_target", req.SearchTarget),
		zap.Duration("timeout", req.Timeout),
	)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go readUntilClosed(conn, cancel)

	count := 0
	session := *s.config.Session
	session.OnDevice = func(d discovery.Device) {
		if err := writeFrame(conn, Frame{Type: FrameDevice, Device: &d}); err != nil {
			logging.Debug("Failed to write device frame",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
			cancel()
			return
		}
		count++
	}

	if _, err := session.DiscoverContext(ctx, req); err != nil {
		logging.Error("Scan failed",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		_ = writeFrame(conn, Frame{Type: FrameError, Error: err.Error()})
		closeNormally(conn)
		return
	}

	if ctx.Err() != nil {
		return
	}

	_ = writeFrame(conn, Frame{Type: FrameDone, Count: &count})
	closeNormally(conn)

	logging.Info("Scan streamed",
		zap.String("remote_addr", remoteAddr),
		zap.Int("devices", count),
	)
}

func writeFrame(conn *websocket.Conn, frame Frame) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(frame)
}

func closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "scan complete")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// readUntilClosed drains client frames so control messages are processed,
// and calls cancel once the client goes away.
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
