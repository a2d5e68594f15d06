package netlink

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/pkg/generic"
)

// NextProto is the ALPN protocol spoken over QUIC.
const NextProto = "replica-quic"

const frameHeaderSize = 4

var frames = generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset)

var _ Link = (*QUIC)(nil)

// QUIC is a Link over a single bidirectional QUIC stream. Frames are
// prefixed with their length as a big-endian uint32.
type QUIC struct {
	conn    *quic.Conn
	stream  *quic.Stream
	cfg     Config
	logger  log.Log
	writeMu sync.Mutex
	closed  atomic.Bool
}

func DialQUIC(ctx context.Context, cfg Config, tlsConf *tls.Config, logger log.Log) (*QUIC, error) {
	conn, err := quic.DialAddr(ctx, cfg.Address, tlsConf, &quic.Config{
		KeepAlivePeriod: 15 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial QUIC")
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "stream open failed")
		return nil, errors.Wrap(err, "failed to open stream")
	}
	return &QUIC{
		conn:   conn,
		stream: stream,
		cfg:    cfg,
		logger: logger.With(log.String("component", "quic"), log.String("address", cfg.Address)),
	}, nil
}

func (q *QUIC) Run(ctx context.Context, onMessage func(data []byte)) error {
	stop := context.AfterFunc(ctx, func() { _ = q.Close() })
	defer stop()

	for {
		data, err := ReadFrame(q.stream, q.cfg.MaxFrameSize)
		if err != nil {
			if q.closed.Load() {
				return nil
			}
			return errors.Wrap(err, "failed to read frame")
		}
		onMessage(data)
	}
}

func (q *QUIC) Send(_ context.Context, data []byte) error {
	if q.closed.Load() {
		return ErrClosed
	}
	q.writeMu.Lock()
	defer q.writeMu.Unlock()
	if q.cfg.WriteTimeout > 0 {
		_ = q.stream.SetWriteDeadline(time.Now().Add(q.cfg.WriteTimeout))
	}
	return errors.Wrap(WriteFrame(q.stream, data), "failed to write frame")
}

func (q *QUIC) Close() error {
	if !q.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = q.stream.Close()
	q.logger.Debug("quic link closed")
	return q.conn.CloseWithError(0, "client closing")
}

// WriteFrame writes one length-prefixed frame.
func WriteFrame(w io.Writer, data []byte) error {
	buf := frames.Get()
	defer frames.Put(buf)

	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))
	buf.Grow(frameHeaderSize + len(data))
	buf.Write(header[:])
	buf.Write(data)
	_, err := w.Write(buf.Bytes())
	return err
}

// ReadFrame reads one length-prefixed frame. A limit of 0 disables the size
// check.
func ReadFrame(r io.Reader, limit uint32) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if limit > 0 && size > limit {
		return nil, errors.Wrapf(ErrFrameTooLarge, "frame of %d bytes", size)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
