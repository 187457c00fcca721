package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lcx/gatesvr/codec"
	"github.com/lcx/gatesvr/log"
	"github.com/lcx/gatesvr/metrics"
)

// WSTransportCfg configures the client WebSocket listener.
type WSTransportCfg struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
	// IdleTimeout closes a client silent for this many seconds; pings are
	// sent at half that period. 0 disables both.
	IdleTimeout uint32 `mapstructure:"idleTimeout"`
	// SendQueueSize bounds the frames waiting to be written per client.
	SendQueueSize   int `mapstructure:"sendQueueSize"`
	ReadBufferSize  int `mapstructure:"readBufferSize"`
	WriteBufferSize int `mapstructure:"writeBufferSize"`
	// RecvRate limits frames per second per client; 0 disables.
	RecvRate int `mapstructure:"recvRate"`
	// AllowedOrigins lists accepted Origin headers; empty accepts all.
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

func (c *WSTransportCfg) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr cannot be empty")
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("path must start with /")
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("sendQueueSize must be positive")
	}
	if c.RecvRate < 0 {
		return fmt.Errorf("recvRate cannot be negative")
	}
	return nil
}

const _wsWriteTimeout = 10 * time.Second

// WSTransport accepts client WebSocket connections. One binary message
// carries exactly one frame.
type WSTransport struct {
	cfg      *WSTransportCfg
	upgrader websocket.Upgrader
	recvRate atomic.Int64

	lock    sync.RWMutex
	conns   map[uint64]*wsConn
	loops   *LoopGroup
	factory SessionFactory
	filters FrameFilterChain

	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
	stopped  atomic.Bool
}

func NewWSTransport(cfg *WSTransportCfg) *WSTransport {
	t := &WSTransport{
		cfg:   cfg,
		conns: make(map[uint64]*wsConn),
	}
	t.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     t.checkOrigin,
	}
	t.recvRate.Store(int64(cfg.RecvRate))
	return t
}

func (t *WSTransport) checkOrigin(r *http.Request) bool {
	if len(t.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range t.cfg.AllowedOrigins {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// Handler serves the upgrade endpoint at cfg.Path.
func (t *WSTransport) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get(t.cfg.Path, t.handleUpgrade)
	return r
}

func (t *WSTransport) Start(opt TransportOption) error {
	metrics.IncrCounterWithGroup("net", "transport_start_total", 1)
	if opt.Loops == nil || opt.Factory == nil {
		metrics.IncrCounterWithDimGroup("net", "transport_start_error_total", 1, metrics.Dimension{"error_type": "nil_option"})
		return errors.New("ws transport: loops and factory are required")
	}
	t.loops = opt.Loops
	t.factory = opt.Factory
	t.filters = append(FrameFilterChain{StatFilter("ws")}, opt.Filters...)

	listener, err := net.Listen("tcp", t.cfg.Addr)
	if err != nil {
		metrics.IncrCounterWithDimGroup("net", "transport_start_error_total", 1, metrics.Dimension{"error_type": "listen"})
		return fmt.Errorf("listen %s: %w", t.cfg.Addr, err)
	}
	metrics.IncrCounterWithDimGroup("net", "transport_start_success_total", 1, metrics.Dimension{"transport_type": "ws"})

	t.listener = listener
	t.server = &http.Server{
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", listener.Addr().String()).Str("path", t.cfg.Path).Msg("ws transport listening")

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ws transport serve")
		}
	}()
	return nil
}

func (t *WSTransport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Stop stops accepting, closes every client and waits for their goroutines.
func (t *WSTransport) Stop() error {
	if t.server == nil || !t.stopped.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := t.server.Shutdown(ctx)

	t.lock.RLock()
	conns := make([]*wsConn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.lock.RUnlock()
	for _, c := range conns {
		c.Close()
	}

	t.wg.Wait()
	return err
}

// Reload applies a new per-client receive rate to live and future clients.
func (t *WSTransport) Reload(recvRate int) {
	t.recvRate.Store(int64(recvRate))
	t.lock.RLock()
	defer t.lock.RUnlock()
	for _, c := range t.conns {
		c.limiter.Reload(recvRate)
	}
}

func (t *WSTransport) ConnCount() int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return len(t.conns)
}

func (t *WSTransport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if t.stopped.Load() || t.loops == nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	ws, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.IncrCounterWithGroup("net", "connection_auth_failure_total", 1)
		log.Debug().Str("remote", r.RemoteAddr).Err(err).Msg("ws upgrade failed")
		return
	}
	ws.SetReadLimit(codec.MaxFrameSize)

	c := &wsConn{
		id:        t.nextID(),
		loop:      t.loops.Next(),
		ws:        ws,
		transport: t,
		sendCh:    make(chan []byte, t.cfg.SendQueueSize),
		closing:   make(chan struct{}),
		limiter:   NewFunnelRecvLimiter(int(t.recvRate.Load())),
	}
	c.session = t.factory(c)

	t.lock.Lock()
	t.conns[c.id] = c
	n := len(t.conns)
	t.lock.Unlock()

	metrics.IncrCounterWithGroup("net", "connection_success_total", 1)
	metrics.UpdateGaugeWithDimGroup("net", "current_connections", metrics.Value(n), metrics.Dimension{"transport": "ws"})

	if err := c.loop.PostUrgent(c.open); err != nil {
		t.removeConn(c.id)
		_ = ws.Close()
		return
	}

	t.wg.Add(2)
	go c.serveSend()
	go c.serveRecv()

	if t.stopped.Load() {
		c.Close()
	}
}

func (t *WSTransport) nextID() uint64 {
	return nextConnID()
}

func (t *WSTransport) removeConn(id uint64) {
	t.lock.Lock()
	delete(t.conns, id)
	n := len(t.conns)
	t.lock.Unlock()
	metrics.UpdateGaugeWithDimGroup("net", "current_connections", metrics.Value(n), metrics.Dimension{"transport": "ws"})
}

type wsConn struct {
	id        uint64
	loop      *EventLoop
	ws        *websocket.Conn
	transport *WSTransport
	session   Session
	limiter   *FunnelRecvLimiter

	closeOnce sync.Once
	closed    atomic.Bool
	closing   chan struct{}
	sendMu    sync.Mutex
	sendCh    chan []byte
}

func (c *wsConn) ID() uint64           { return c.id }
func (c *wsConn) Loop() *EventLoop     { return c.loop }
func (c *wsConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *wsConn) Send(b []byte) error {
	msg := append([]byte(nil), b...)

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed.Load() {
		return ErrConnClosed
	}
	select {
	case c.sendCh <- msg:
		return nil
	default:
		metrics.IncrCounterWithDimGroup("net", "send_buffer_full_total", 1, metrics.Dimension{"transport": "ws"})
		return ErrSendBufferFull
	}
}

func (c *wsConn) Close() {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.closed.Store(true)
		c.sendMu.Unlock()
		close(c.closing)

		c.transport.removeConn(c.id)
		metrics.IncrCounterWithGroup("net", "connection_close_total", 1)

		if err := c.loop.PostUrgent(c.shut); err != nil {
			// the loop ran its last task, nothing else touches the session
			c.session.OnClose(context.Background())
		}
	})
}

func (c *wsConn) open(ctx context.Context) {
	if c.closed.Load() {
		return
	}
	if err := c.session.OnOpen(ctx); err != nil {
		log.Warn().Uint64("conn", c.id).Err(err).Msg("session open failed")
		c.Close()
	}
}

func (c *wsConn) shut(ctx context.Context) {
	c.session.OnClose(ctx)
}

func (c *wsConn) idle() time.Duration {
	return time.Duration(c.transport.cfg.IdleTimeout) * time.Second
}

func (c *wsConn) serveRecv() {
	defer c.transport.wg.Done()
	defer c.Close()

	if idle := c.idle(); idle > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(idle))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(idle))
		})
	}

	for {
		c.limiter.Take()

		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if !c.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Uint64("conn", c.id).Err(err).Msg("ws read")
			}
			return
		}
		if idle := c.idle(); idle > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(idle))
		}
		if mt != websocket.BinaryMessage {
			continue
		}

		h, body, err := codec.DecodeFrame(data)
		if err != nil {
			metrics.IncrCounterWithDimGroup("net", "conn_protocol_error_total", 1, metrics.Dimension{"transport": "ws"})
			log.Warn().Uint64("conn", c.id).Int("len", len(data)).Err(err).Msg("bad client frame")
			return
		}

		frame := &RecvFrame{Conn: c, Head: h, Body: body}
		if err = c.transport.filters.Handle(frame, c.dispatch); err != nil {
			log.Warn().Uint64("conn", c.id).Err(err).Msg("frame rejected")
			return
		}
	}
}

// dispatch posts the frame; data returned by ReadMessage is not reused, so
// the body needs no copy.
func (c *wsConn) dispatch(f *RecvFrame) error {
	return c.loop.Post(func(ctx context.Context) {
		if c.closed.Load() {
			return
		}
		if err := c.session.OnFrame(ctx, f.Head, f.Body); err != nil {
			metrics.IncrCounterWithDimGroup("net", "conn_protocol_error_total", 1, metrics.Dimension{"transport": "ws"})
			log.Warn().Uint64("conn", c.id).Uint32("cmd", f.Head.Cmd).Err(err).Msg("closing connection")
			c.Close()
		}
	})
}

func (c *wsConn) serveSend() {
	defer c.transport.wg.Done()
	defer func() { _ = c.ws.Close() }()

	var ping <-chan time.Time
	if idle := c.idle(); idle > 0 {
		ticker := time.NewTicker(idle / 2)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case msg := <-c.sendCh:
			if err := c.write(websocket.BinaryMessage, msg); err != nil {
				log.Debug().Uint64("conn", c.id).Err(err).Msg("ws write")
				c.Close()
				return
			}
		case <-ping:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(_wsWriteTimeout)); err != nil {
				c.Close()
				return
			}
		case <-c.closing:
			c.drain()
			_ = c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			return
		}
	}
}

func (c *wsConn) write(mt int, msg []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(_wsWriteTimeout))
	return c.ws.WriteMessage(mt, msg)
}

// drain writes what was queued before Close.
func (c *wsConn) drain() {
	for {
		select {
		case msg := <-c.sendCh:
			if err := c.write(websocket.BinaryMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
