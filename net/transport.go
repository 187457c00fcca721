// Package net runs the gateway's event loops and the transports that feed
// them frames.
package net

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/lcx/gatesvr/codec"
)

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("connection send buffer is full")
)

// Transport is a listener that turns accepted connections into sessions.
type Transport interface {
	Start(TransportOption) error
	Stop() error
}

// TransportOption wires a transport to the loops and the session layer.
type TransportOption struct {
	Loops   *LoopGroup
	Factory SessionFactory
	// Filters run on the reader goroutine before a frame is posted.
	Filters FrameFilterChain
}

// Conn is one accepted connection. It is pinned to Loop for its lifetime.
type Conn interface {
	ID() uint64
	Loop() *EventLoop
	// Send copies b to the outbound buffer; the write happens on the
	// connection's writer goroutine.
	Send(b []byte) error
	// Close is idempotent. The session's OnClose runs on the owning loop.
	Close()
	RemoteAddr() net.Addr
}

// Session is the per-connection protocol handler. Every method runs on the
// connection's loop.
type Session interface {
	OnOpen(ctx context.Context) error
	// OnFrame handles one frame. body is only valid until OnFrame returns.
	// A returned error closes the connection.
	OnFrame(ctx context.Context, head codec.FrameHead, body []byte) error
	OnClose(ctx context.Context)
}

// SessionFactory creates the session of a newly accepted connection.
type SessionFactory func(conn Conn) Session

var _connSeq atomic.Uint64

func nextConnID() uint64 {
	return _connSeq.Add(1)
}

var _framePool = sync.Pool{
	New: func() any {
		b := make([]byte, codec.MaxFrameSize)
		return &b
	},
}

func getFrameBuffer(n int) *[]byte {
	bp := _framePool.Get().(*[]byte)
	*bp = (*bp)[:n]
	return bp
}

func putFrameBuffer(bp *[]byte) {
	*bp = (*bp)[:cap(*bp)]
	_framePool.Put(bp)
}
