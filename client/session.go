package client

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/lcx/gatesvr/codec"
	"github.com/lcx/gatesvr/log"
	"github.com/lcx/gatesvr/logicserver"
	"github.com/lcx/gatesvr/metrics"
	"github.com/lcx/gatesvr/net"
)

// LogicServers finds the logic servers a client talks to.
type LogicServers interface {
	FindPrimary(id int64) (*logicserver.Session, bool)
	FindSlave(id int64) (*logicserver.Session, bool)
}

// Session is one client connection. A frame from the client is relayed to
// its primary logic server with the frame's cmd as message id. Only logic
// servers assign the primary and slave ids.
type Session struct {
	conn      net.Conn
	mgr       *Manager
	logics    LogicServers
	logger    *log.SessionLogger
	runtimeID int64

	primary atomic.Int64
	slave   atomic.Int64

	// owned by the loop
	closed     bool
	sendSerial uint16
	scratch    [codec.MaxFrameSize]byte
}

var _ logicserver.ClientSession = (*Session)(nil)

// NewSessionFactory returns the factory the client transport uses.
func NewSessionFactory(mgr *Manager, logics LogicServers) net.SessionFactory {
	return func(conn net.Conn) net.Session {
		return NewSession(conn, mgr, logics)
	}
}

func NewSession(conn net.Conn, mgr *Manager, logics LogicServers) *Session {
	s := &Session{
		conn:       conn,
		mgr:        mgr,
		logics:     logics,
		runtimeID:  mgr.nextRuntimeID(),
		sendSerial: 1,
	}
	s.logger = log.NewSessionLogger("client", conn.ID())
	s.logger.SetID(s.runtimeID)
	s.primary.Store(-1)
	s.slave.Store(-1)
	return s
}

func (s *Session) RuntimeID() int64 {
	return s.runtimeID
}

func (s *Session) PrimaryServerID() int64 {
	return s.primary.Load()
}

func (s *Session) SlaveServerID() int64 {
	return s.slave.Load()
}

func (s *Session) SetPrimaryServerID(id int64) {
	s.primary.Store(id)
}

func (s *Session) SetSlaveServerID(id int64) {
	s.slave.Store(id)
}

func (s *Session) IsInLoop(ctx context.Context) bool {
	return s.conn.Loop().IsInLoop(ctx)
}

// Kick closes the connection; OnClose follows on the owning loop.
func (s *Session) Kick() {
	s.conn.Close()
}

func (s *Session) OnOpen(ctx context.Context) error {
	s.mgr.add(s)
	metrics.IncrCounterWithGroup("client", "connect_total", 1)
	s.logger.Debug().Str("remote", s.conn.RemoteAddr().String()).Msg("client connected")
	return nil
}

func (s *Session) OnFrame(ctx context.Context, head codec.FrameHead, body []byte) error {
	metrics.IncrCounterWithGroup("client", "recv_frame_total", 1)

	ls, ok := s.primaryServer()
	if !ok {
		metrics.IncrCounterWithDimGroup("client", "upstream_drop_total", 1, metrics.Dimension{"reason": "no_primary"})
		s.logger.Debug().Uint32("msgID", head.Cmd).Int64("primary", s.PrimaryServerID()).Msg("no primary, upstream dropped")
		return nil
	}
	if err := ls.ForwardUpstream(ctx, s.runtimeID, head.Cmd, body); err != nil {
		metrics.IncrCounterWithDimGroup("client", "upstream_drop_total", 1, metrics.Dimension{"reason": "send"})
		s.logger.Debug().Uint32("msgID", head.Cmd).Err(err).Msg("upstream forward failed")
	}
	return nil
}

func (s *Session) primaryServer() (*logicserver.Session, bool) {
	id := s.PrimaryServerID()
	if id < 0 {
		return nil, false
	}
	return s.logics.FindPrimary(id)
}

func (s *Session) OnClose(ctx context.Context) {
	if s.closed {
		return
	}
	s.closed = true
	s.mgr.remove(s)

	if id := s.PrimaryServerID(); id >= 0 {
		if ls, ok := s.logics.FindPrimary(id); ok {
			_ = ls.NotifyClientDisconnect(ctx, s.runtimeID)
		}
	}
	if id := s.SlaveServerID(); id >= 0 {
		if ls, ok := s.logics.FindSlave(id); ok {
			_ = ls.NotifyClientDisconnect(ctx, s.runtimeID)
		}
	}

	metrics.IncrCounterWithGroup("client", "disconnect_total", 1)
	s.logger.Debug().Msg("client disconnected")
}

// SendBinary frames payload as msgID. Off the owning loop payload is kept
// by the posted task and must not change.
func (s *Session) SendBinary(ctx context.Context, msgID uint32, payload []byte) error {
	if s.IsInLoop(ctx) {
		return s.sendFrame(msgID, payload)
	}
	err := s.conn.Loop().Post(func(context.Context) {
		_ = s.sendFrame(msgID, payload)
	})
	if errors.Is(err, net.ErrLoopOverloaded) {
		s.conn.Close()
	}
	return err
}

func (s *Session) sendFrame(msgID uint32, payload []byte) error {
	frame, err := codec.EncodeFrame(s.scratch[:0], msgID, s.sendSerial, payload)
	if err != nil {
		s.logger.Warn().Uint32("msgID", msgID).Int("len", len(payload)).Err(err).Msg("frame encode failed, closing")
		s.conn.Close()
		return err
	}
	s.sendSerial++
	if err = s.conn.Send(frame); err != nil {
		if errors.Is(err, net.ErrSendBufferFull) {
			s.logger.Warn().Msg("send queue full, closing")
			s.conn.Close()
		}
		return err
	}
	return nil
}
