package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/muurk/ssdp-scan/internal/discovery"
)

// ErrRemoteScan is returned by Stream when the server reports a failed scan
var ErrRemoteScan = errors.New("remote scan failed")

// Stream connects to a scan server's /scan URL and calls onDevice for every
// device frame until the server reports the end of the scan. It returns the
// device count from the done frame.
func Stream(ctx context.Context, url string, onDevice func(discovery.Device)) (int, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer func() {
		_ = conn.Close()
	}()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return 0, fmt.Errorf("scan stream ended unexpectedly: %w", err)
		}

		switch frame.Type {
		case FrameDevice:
			if frame.Device != nil && onDevice != nil {
				onDevice(*frame.Device)
			}
		case FrameDone:
			if frame.Count == nil {
				return 0, nil
			}
			return *frame.Count, nil
		case FrameError:
			return 0, fmt.Errorf("%w: %s", ErrRemoteScan, frame.Error)
		}
	}
}
