package netlink

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/replica/internal/core/observability/log"
)

var _ Link = (*WebSocket)(nil)

// WebSocket is a Link over a gorilla websocket connection using binary
// messages.
type WebSocket struct {
	conn    *websocket.Conn
	cfg     Config
	logger  log.Log
	writeMu sync.Mutex
	closed  atomic.Bool

	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
}

func DialWebSocket(ctx context.Context, cfg Config, logger log.Log) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.Address, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial websocket")
	}
	if cfg.MaxFrameSize > 0 {
		conn.SetReadLimit(int64(cfg.MaxFrameSize))
	}
	return &WebSocket{
		conn:   conn,
		cfg:    cfg,
		logger: logger.With(log.String("component", "websocket"), log.String("address", cfg.Address)),
	}, nil
}

func (w *WebSocket) Run(ctx context.Context, onMessage func(data []byte)) error {
	stop := context.AfterFunc(ctx, func() { _ = w.Close() })
	defer stop()

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			if w.closed.Load() {
				return nil
			}
			return errors.Wrap(err, "failed to read message")
		}
		if messageType != websocket.BinaryMessage && messageType != websocket.TextMessage {
			continue
		}
		w.bytesReceived.Add(uint64(len(data)))
		onMessage(data)
	}
}

func (w *WebSocket) Send(_ context.Context, data []byte) error {
	if w.closed.Load() {
		return ErrClosed
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.cfg.WriteTimeout > 0 {
		_ = w.conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
	}
	if err := w.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	w.bytesSent.Add(uint64(len(data)))
	return nil
}

func (w *WebSocket) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	w.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	w.writeMu.Unlock()

	w.logger.Debug("websocket closed",
		log.Uint64("bytes_sent", w.bytesSent.Load()),
		log.Uint64("bytes_received", w.bytesReceived.Load()))
	return w.conn.Close()
}
