// Package netlink adapts network transports to the runtime: inbound frames
// are handed to a callback, outbound frames are written with Send.
package netlink

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/zeusync/replica/internal/core/observability/log"
)

var (
	ErrClosed           = errors.New("link is closed")
	ErrUnknownTransport = errors.New("unknown transport")
	ErrFrameTooLarge    = errors.New("frame exceeds size limit")
)

// Link is one client connection to the replication server.
type Link interface {
	// Run reads frames until ctx is done or the link fails, calling
	// onMessage for each one in arrival order.
	Run(ctx context.Context, onMessage func(data []byte)) error
	// Send writes one frame. Safe for concurrent use.
	Send(ctx context.Context, data []byte) error
	Close() error
}

type Config struct {
	Transport string
	Address   string

	WriteTimeout time.Duration
	MaxFrameSize uint32
	// InsecureSkipVerify disables server certificate checks for QUIC.
	InsecureSkipVerify bool
}

const (
	TransportWebSocket = "websocket"
	TransportQUIC      = "quic"
)

func DefaultConfig() Config {
	return Config{
		Transport:    TransportWebSocket,
		Address:      "ws://127.0.0.1:8080/replica",
		WriteTimeout: 5 * time.Second,
		MaxFrameSize: 1 << 20,
	}
}

// Dial connects with the transport named in cfg.
func Dial(ctx context.Context, cfg Config, logger log.Log) (Link, error) {
	switch cfg.Transport {
	case TransportWebSocket, "ws":
		ws, err := DialWebSocket(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return ws, nil
	case TransportQUIC:
		tlsConf := &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			NextProtos:         []string{NextProto},
			MinVersion:         tls.VersionTLS13,
		}
		q, err := DialQUIC(ctx, cfg, tlsConf, logger)
		if err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, cfg.Transport)
	}
}
