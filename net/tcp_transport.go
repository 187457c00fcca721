package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lcx/gatesvr/codec"
	"github.com/lcx/gatesvr/log"
	"github.com/lcx/gatesvr/metrics"
)

// TCPTransportCfg configures the logic-server listener.
type TCPTransportCfg struct {
	Addr string `mapstructure:"addr"`
	// IdleTimeout closes a connection that sent nothing for this many
	// seconds. 0 disables it.
	IdleTimeout uint32 `mapstructure:"idleTimeout"`
	// SendBufferSize bounds the bytes waiting to be written per connection.
	SendBufferSize int `mapstructure:"sendBufferSize"`
	// SockBufferSize sets SO_RCVBUF/SO_SNDBUF when positive.
	SockBufferSize int `mapstructure:"sockBufferSize"`
	// RecvRate limits frames per second over all connections; 0 disables.
	RecvRate  int `mapstructure:"recvRate"`
	RecvBurst int `mapstructure:"recvBurst"`
}

func (c *TCPTransportCfg) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr cannot be empty")
	}
	if c.SendBufferSize < codec.MaxFrameSize {
		return fmt.Errorf("sendBufferSize must be at least %d", codec.MaxFrameSize)
	}
	if c.SockBufferSize < 0 {
		return fmt.Errorf("sockBufferSize cannot be negative")
	}
	if c.RecvRate < 0 || c.RecvBurst < 0 {
		return fmt.Errorf("recvRate and recvBurst cannot be negative")
	}
	return nil
}

// TCPTransport accepts logic-server connections. Every connection gets a
// reader and a writer goroutine; frames are handled on the connection's
// event loop.
type TCPTransport struct {
	cfg      *TCPTransportCfg
	lock     sync.RWMutex
	conns    map[uint64]*tcpConn
	loops    *LoopGroup
	factory  SessionFactory
	filters  FrameFilterChain
	limiter  *TokenRecvLimiter
	listener *net.TCPListener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewTCPTransport(cfg *TCPTransportCfg) *TCPTransport {
	return &TCPTransport{
		cfg:     cfg,
		conns:   make(map[uint64]*tcpConn),
		limiter: NewTokenRecvLimiter(cfg.RecvRate, cfg.RecvBurst),
	}
}

// Start listens on cfg.Addr and serves in the background.
func (t *TCPTransport) Start(opt TransportOption) error {
	metrics.IncrCounterWithGroup("net", "transport_start_total", 1)

	if opt.Loops == nil || opt.Factory == nil {
		metrics.IncrCounterWithDimGroup("net", "transport_start_error_total", 1, metrics.Dimension{"error_type": "nil_option"})
		return errors.New("tcp transport: loops and factory are required")
	}
	t.loops = opt.Loops
	t.factory = opt.Factory

	tcpAddr, err := net.ResolveTCPAddr("tcp", t.cfg.Addr)
	if err != nil {
		metrics.IncrCounterWithDimGroup("net", "transport_start_error_total", 1, metrics.Dimension{"error_type": "resolve"})
		return fmt.Errorf("resolve %s: %w", t.cfg.Addr, err)
	}

	listener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		metrics.IncrCounterWithDimGroup("net", "transport_start_error_total", 1, metrics.Dimension{"error_type": "listen"})
		return fmt.Errorf("listen %s: %w", t.cfg.Addr, err)
	}

	metrics.IncrCounterWithDimGroup("net", "transport_start_success_total", 1, metrics.Dimension{"transport_type": "tcp"})

	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.listener = listener
	t.filters = append(FrameFilterChain{StatFilter("tcp"), t.limiter.Filter(t.ctx)}, opt.Filters...)

	log.Info().Str("addr", listener.Addr().String()).Msg("tcp transport listening")

	t.wg.Add(1)
	go t.serve()
	return nil
}

// Addr is the bound listen address, or nil before Start.
func (t *TCPTransport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Stop closes the listener and every connection, then waits for their
// goroutines. Sessions get OnClose on their loops.
func (t *TCPTransport) Stop() error {
	if t.cancel == nil {
		return nil
	}
	t.cancel()
	err := t.listener.Close()

	t.lock.RLock()
	conns := make([]*tcpConn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.lock.RUnlock()
	for _, c := range conns {
		c.Close()
	}

	t.wg.Wait()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// Reload applies new receive limits.
func (t *TCPTransport) Reload(recvRate, recvBurst int) {
	t.limiter.Reload(recvRate, recvBurst)
}

func (t *TCPTransport) ConnCount() int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return len(t.conns)
}

func (t *TCPTransport) serve() {
	defer t.wg.Done()

	for {
		conn, err := t.listener.AcceptTCP()
		if err != nil {
			var e net.Error
			if errors.As(err, &e) && e.Timeout() {
				continue
			}
			if t.ctx.Err() == nil {
				log.Error().Err(err).Msg("tcp accept failed")
			}
			return
		}

		if t.cfg.SockBufferSize > 0 {
			if err = conn.SetReadBuffer(t.cfg.SockBufferSize); err == nil {
				err = conn.SetWriteBuffer(t.cfg.SockBufferSize)
			}
			if err != nil {
				log.Error().Int("BufSize", t.cfg.SockBufferSize).Err(err).Msg("set socket buffer err")
				_ = conn.Close()
				continue
			}
		}

		t.accept(conn)
	}
}

func (t *TCPTransport) accept(conn *net.TCPConn) {
	c := &tcpConn{
		id:        nextConnID(),
		loop:      t.loops.Next(),
		conn:      conn,
		transport: t,
		wake:      make(chan struct{}, 1),
		closing:   make(chan struct{}),
	}
	c.session = t.factory(c)

	t.lock.Lock()
	t.conns[c.id] = c
	n := len(t.conns)
	t.lock.Unlock()

	metrics.IncrCounterWithGroup("net", "connection_success_total", 1)
	metrics.UpdateGaugeWithDimGroup("net", "current_connections", metrics.Value(n), metrics.Dimension{"transport": "tcp"})

	// OnOpen is queued before any frame of the connection.
	if err := c.loop.PostUrgent(c.open); err != nil {
		t.removeConn(c.id)
		_ = conn.Close()
		return
	}

	t.wg.Add(2)
	go c.serveSend()
	go c.serveRecv()

	// lost the race with Stop
	if t.ctx.Err() != nil {
		c.Close()
	}
}

func (t *TCPTransport) removeConn(id uint64) {
	t.lock.Lock()
	delete(t.conns, id)
	n := len(t.conns)
	t.lock.Unlock()
	metrics.UpdateGaugeWithDimGroup("net", "current_connections", metrics.Value(n), metrics.Dimension{"transport": "tcp"})
}

type tcpConn struct {
	id        uint64
	loop      *EventLoop
	conn      *net.TCPConn
	transport *TCPTransport
	session   Session

	closeOnce sync.Once
	closed    atomic.Bool
	closing   chan struct{}

	mu    sync.Mutex
	out   []byte
	spare []byte
	wake  chan struct{}

	lastReadTime time.Time
}

func (c *tcpConn) ID() uint64           { return c.id }
func (c *tcpConn) Loop() *EventLoop     { return c.loop }
func (c *tcpConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *tcpConn) Send(b []byte) error {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return ErrConnClosed
	}
	if len(c.out)+len(b) > c.transport.cfg.SendBufferSize {
		c.mu.Unlock()
		metrics.IncrCounterWithDimGroup("net", "send_buffer_full_total", 1, metrics.Dimension{"transport": "tcp"})
		return ErrSendBufferFull
	}
	c.out = append(c.out, b...)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close stops both goroutines; the writer flushes what is already buffered
// before it closes the socket.
func (c *tcpConn) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed.Store(true)
		c.mu.Unlock()
		close(c.closing)

		c.transport.removeConn(c.id)
		metrics.IncrCounterWithGroup("net", "connection_close_total", 1)

		if err := c.loop.PostUrgent(c.shut); err != nil {
			// the loop ran its last task, nothing else touches the session
			c.session.OnClose(context.Background())
		}
	})
}

func (c *tcpConn) open(ctx context.Context) {
	if c.closed.Load() {
		return
	}
	if err := c.session.OnOpen(ctx); err != nil {
		log.Warn().Uint64("conn", c.id).Err(err).Msg("session open failed")
		c.Close()
	}
}

func (c *tcpConn) shut(ctx context.Context) {
	c.session.OnClose(ctx)
}

func (c *tcpConn) serveRecv() {
	defer c.transport.wg.Done()
	defer c.Close()

	head := make([]byte, codec.FrameHeadSize)
	for {
		c.setReadDeadline()
		if _, err := io.ReadFull(c.conn, head); err != nil {
			if !c.closed.Load() && !errors.Is(err, io.EOF) {
				log.Debug().Uint64("conn", c.id).Err(err).Msg("tcp read head")
			}
			return
		}

		h, err := codec.DecodeFrameHead(head)
		if err == nil && int(h.TotalLen) > codec.MaxFrameSize {
			err = fmt.Errorf("frame of %d bytes exceeds %d", h.TotalLen, codec.MaxFrameSize)
		}
		if err != nil {
			metrics.IncrCounterWithDimGroup("net", "conn_protocol_error_total", 1, metrics.Dimension{"transport": "tcp"})
			log.Warn().Uint64("conn", c.id).Str("remote", c.conn.RemoteAddr().String()).Err(err).Msg("bad frame head")
			return
		}

		bp := getFrameBuffer(int(h.TotalLen))
		copy(*bp, head)
		if _, err = io.ReadFull(c.conn, (*bp)[codec.FrameHeadSize:]); err != nil {
			putFrameBuffer(bp)
			return
		}

		frame := &RecvFrame{Conn: c, Head: h, Body: (*bp)[codec.FrameHeadSize:]}
		if err = c.transport.filters.Handle(frame, c.dispatch(bp)); err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Warn().Uint64("conn", c.id).Err(err).Msg("frame rejected")
			}
			return
		}
	}
}

// dispatch posts the frame to the owning loop. The pooled buffer is
// released once the session has handled it.
func (c *tcpConn) dispatch(bp *[]byte) FrameHandleFunc {
	return func(f *RecvFrame) error {
		err := c.loop.Post(func(ctx context.Context) {
			defer putFrameBuffer(bp)
			if c.closed.Load() {
				return
			}
			if err := c.session.OnFrame(ctx, f.Head, f.Body); err != nil {
				metrics.IncrCounterWithDimGroup("net", "conn_protocol_error_total", 1, metrics.Dimension{"transport": "tcp"})
				log.Warn().Uint64("conn", c.id).Uint32("cmd", f.Head.Cmd).Err(err).Msg("closing connection")
				c.Close()
			}
		})
		if err != nil {
			putFrameBuffer(bp)
		}
		return err
	}
}

func (c *tcpConn) serveSend() {
	defer c.transport.wg.Done()
	defer func() { _ = c.conn.Close() }()

	for {
		select {
		case <-c.wake:
			if err := c.flush(); err != nil {
				log.Debug().Uint64("conn", c.id).Err(err).Msg("tcp write")
				c.Close()
				return
			}
		case <-c.closing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
			_ = c.flush()
			return
		}
	}
}

func (c *tcpConn) flush() error {
	c.mu.Lock()
	buf := c.out
	c.out = c.spare[:0]
	c.mu.Unlock()

	if len(buf) == 0 {
		c.spare = buf
		return nil
	}
	c.setWriteDeadline()
	_, err := c.conn.Write(buf)
	c.spare = buf
	return err
}

// setReadDeadline refreshes the idle deadline at most every 5 seconds, or
// every half idle period when that is shorter.
func (c *tcpConn) setReadDeadline() {
	if c.transport.cfg.IdleTimeout == 0 {
		return
	}
	idle := time.Duration(c.transport.cfg.IdleTimeout) * time.Second
	n := time.Now()
	if n.Sub(c.lastReadTime) > min(5*time.Second, idle/2) {
		c.lastReadTime = n
		_ = c.conn.SetReadDeadline(n.Add(idle))
	}
}

func (c *tcpConn) setWriteDeadline() {
	idle := c.transport.cfg.IdleTimeout
	if idle == 0 {
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Duration(idle) * time.Second))
}
