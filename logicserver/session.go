// Package logicserver implements the gateway side of logic-server
// connections: login, registration and routing of their traffic to
// clients.
package logicserver

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/proto"

	"github.com/lcx/gatesvr/codec"
	"github.com/lcx/gatesvr/log"
	"github.com/lcx/gatesvr/metrics"
	"github.com/lcx/gatesvr/net"
	"github.com/lcx/gatesvr/protocol"
)

// ErrProtocolViolation wraps every OnFrame error; the connection is closed.
var ErrProtocolViolation = errors.New("logic server protocol violation")

const (
	ReasonBadPassword = "bad password"
	ReasonDuplicateID = "logic server id already registered"
	ReasonInvalidID   = "invalid logic server id"
)

const _tracerName = "github.com/lcx/gatesvr/logicserver"

// Role is the namespace a session registered in.
type Role int32

const (
	RoleUnset Role = iota
	RolePrimary
	RoleSlave
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleSlave:
		return "slave"
	default:
		return "unset"
	}
}

// Deps is shared by every logic-server session of a gateway.
type Deps struct {
	Registry *Registry
	Clients  ClientRegistry
	// Secret returns the current login password. It is read on every
	// LOGIN so a reload applies to the next attempt.
	Secret func() string
	// NodeID is the gateway's own id, reported in LOGIN_REPLY.
	NodeID int64
	// Tracer records dispatch spans. Nil means the global provider.
	Tracer trace.TracerProvider
}

// Session is one logic-server connection. id, role, the send serial and
// the scratch buffer belong to the connection's loop; other goroutines go
// through SendPB, SendData, ForwardUpstream and NotifyClientDisconnect,
// which post to that loop.
type Session struct {
	conn   net.Conn
	deps   *Deps
	logger *log.SessionLogger
	tracer trace.Tracer

	id   atomic.Int64
	role atomic.Int32

	closed     bool
	sendSerial uint16
	scratch    [codec.MaxFrameSize]byte
	msgs       map[protocol.Cmd]protocol.Message
}

// NewSessionFactory returns the factory the logic-server transport uses.
func NewSessionFactory(deps *Deps) net.SessionFactory {
	return func(conn net.Conn) net.Session {
		return NewSession(conn, deps)
	}
}

func NewSession(conn net.Conn, deps *Deps) *Session {
	tp := deps.Tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	s := &Session{
		conn:       conn,
		deps:       deps,
		logger:     log.NewSessionLogger("logic", conn.ID()),
		tracer:     tp.Tracer(_tracerName),
		sendSerial: 1,
		msgs:       make(map[protocol.Cmd]protocol.Message),
	}
	s.id.Store(-1)
	return s
}

// ID is the registered id, or -1 before a successful login.
func (s *Session) ID() int64 {
	return s.id.Load()
}

func (s *Session) Role() Role {
	return Role(s.role.Load())
}

func (s *Session) Conn() net.Conn {
	return s.conn
}

// IsInLoop reports whether ctx runs on the session's owning loop.
func (s *Session) IsInLoop(ctx context.Context) bool {
	return s.conn.Loop().IsInLoop(ctx)
}

func (s *Session) OnOpen(ctx context.Context) error {
	metrics.IncrCounterWithGroup("logicserver", "connect_total", 1)
	s.logger.Info().Str("remote", s.conn.RemoteAddr().String()).Msg("logic server connected")
	return nil
}

// OnClose unregisters the session. Closing a primary first kicks every
// client it was primary for.
func (s *Session) OnClose(ctx context.Context) {
	if s.closed {
		return
	}
	s.closed = true

	id := s.ID()
	switch s.Role() {
	case RolePrimary:
		s.deps.Clients.KickAllOfPrimary(id)
		s.deps.Registry.RemovePrimary(id)
	case RoleSlave:
		s.deps.Registry.RemoveSlave(id)
	}
	s.id.Store(-1)
	s.role.Store(int32(RoleUnset))

	metrics.IncrCounterWithGroup("logicserver", "disconnect_total", 1)
	s.logger.Info().Int64("logicServerID", id).Msg("logic server disconnected")
}

// OnFrame decodes and handles one frame. Any error is a protocol violation.
func (s *Session) OnFrame(ctx context.Context, head codec.FrameHead, body []byte) (err error) {
	cmd := protocol.Cmd(head.Cmd)
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "logicserver.dispatch",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("cmd", cmd.String()),
			attribute.Int("size", int(head.TotalLen)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.IncrCounterWithDimGroup("logicserver", "protocol_violation_total", 1, metrics.Dimension{"cmd": cmd.String()})
		}
		span.End()
		metrics.RecordStopwatchWithDimGroup("logicserver", "dispatch_seconds", start, metrics.Dimension{"cmd": cmd.String()})
	}()

	metrics.IncrCounterWithDimGroup("logicserver", "recv_frame_total", 1, metrics.Dimension{"cmd": cmd.String()})

	if s.Role() == RoleUnset {
		if cmd != protocol.CmdLogin {
			return fmt.Errorf("%w: %s before login", ErrProtocolViolation, cmd)
		}
	} else if cmd == protocol.CmdLogin {
		return fmt.Errorf("%w: login while registered as %s %d", ErrProtocolViolation, s.Role(), s.ID())
	}

	handle, ok := _handlers[cmd]
	if !ok {
		return fmt.Errorf("%w: unexpected %s", ErrProtocolViolation, cmd)
	}
	msg, err := s.message(cmd)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}
	if err = codec.Decode(msg, body); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrProtocolViolation, cmd, err)
	}
	return handle(ctx, s, msg)
}

// message returns the reusable body of cmd.
func (s *Session) message(cmd protocol.Cmd) (protocol.Message, error) {
	if m, ok := s.msgs[cmd]; ok {
		return m, nil
	}
	m, err := protocol.NewMessage(cmd)
	if err != nil {
		return nil, err
	}
	s.msgs[cmd] = m
	return m, nil
}

type handler func(ctx context.Context, s *Session, msg protocol.Message) error

var _handlers = map[protocol.Cmd]handler{
	protocol.CmdLogin: func(ctx context.Context, s *Session, msg protocol.Message) error {
		return s.handleLogin(ctx, msg.(*protocol.LogicServerLogin))
	},
	protocol.CmdDownstream: func(ctx context.Context, s *Session, msg protocol.Message) error {
		s.handleDownstream(ctx, msg.(*protocol.Downstream))
		return nil
	},
	protocol.CmdKickPlayer: func(_ context.Context, s *Session, msg protocol.Message) error {
		s.deps.Clients.KickByRuntimeID(msg.(*protocol.KickPlayer).RoleRuntimeId)
		return nil
	},
	protocol.CmdSetPlayerSlave: func(_ context.Context, s *Session, msg protocol.Message) error {
		s.handleSetSlave(msg.(*protocol.SetPlayerSlave))
		return nil
	},
	protocol.CmdSetPlayerPrimary: func(_ context.Context, s *Session, msg protocol.Message) error {
		s.handleSetPrimary(msg.(*protocol.SetPlayerPrimary))
		return nil
	},
}

func (s *Session) handleLogin(ctx context.Context, m *protocol.LogicServerLogin) error {
	role := RoleSlave
	if m.IsPrimary {
		role = RolePrimary
	}

	reason := ""
	switch {
	case subtle.ConstantTimeCompare([]byte(m.Password), []byte(s.deps.Secret())) != 1:
		reason = ReasonBadPassword
	case m.Id < 0:
		reason = ReasonInvalidID
	case role == RolePrimary && !s.deps.Registry.TryAddPrimary(m.Id, s):
		reason = ReasonDuplicateID
	case role == RoleSlave && !s.deps.Registry.TryAddSlave(m.Id, s):
		reason = ReasonDuplicateID
	}

	if reason != "" {
		metrics.IncrCounterWithDimGroup("logicserver", "login_total", 1, metrics.Dimension{"result": "reject"})
		s.logger.Warn().Int64("logicServerID", m.Id).Str("role", role.String()).Str("reason", reason).Msg("logic server login rejected")
		return s.reply(ctx, &protocol.LogicServerLoginReply{Id: s.deps.NodeID, Reason: reason})
	}

	s.id.Store(m.Id)
	s.role.Store(int32(role))
	s.logger.SetID(m.Id)

	metrics.IncrCounterWithDimGroup("logicserver", "login_total", 1, metrics.Dimension{"result": "ok"})
	s.logger.Info().Str("role", role.String()).Msg("logic server registered")
	return s.reply(ctx, &protocol.LogicServerLoginReply{IsSuccess: true, Id: s.deps.NodeID})
}

// reply failures close the connection on their own, so they do not
// count as a protocol violation.
func (s *Session) reply(ctx context.Context, m *protocol.LogicServerLoginReply) error {
	if err := s.SendPB(ctx, protocol.CmdLoginReply, m); err != nil {
		s.logger.Warn().Err(err).Msg("send login reply")
	}
	return nil
}

// handleDownstream delivers m.Data to every listed client. Decoding
// already copied it out of the frame, so all clients share that copy.
func (s *Session) handleDownstream(ctx context.Context, m *protocol.Downstream) {
	for _, rid := range m.ClientIds {
		c, ok := s.deps.Clients.FindByRuntimeID(rid)
		if !ok {
			s.logger.Debug().Int64("runtimeID", rid).Uint32("msgID", m.MsgId).Msg("downstream client not found")
			continue
		}
		if err := c.SendBinary(ctx, m.MsgId, m.Data); err != nil {
			s.logger.Debug().Int64("runtimeID", rid).Err(err).Msg("downstream send")
		}
	}
	metrics.IncrCounterWithGroup("logicserver", "downstream_target_total", metrics.Value(len(m.ClientIds)))
}

func (s *Session) handleSetSlave(m *protocol.SetPlayerSlave) {
	c, ok := s.deps.Clients.FindByRuntimeID(m.RoleRuntimeId)
	if !ok {
		s.logger.Debug().Int64("runtimeID", m.RoleRuntimeId).Msg("set slave: client not found")
		return
	}
	if m.WillSet {
		c.SetSlaveServerID(s.ID())
	} else {
		c.SetSlaveServerID(-1)
	}
}

func (s *Session) handleSetPrimary(m *protocol.SetPlayerPrimary) {
	c, ok := s.deps.Clients.FindByRuntimeID(m.RoleRuntimeId)
	if !ok {
		s.logger.Debug().Int64("runtimeID", m.RoleRuntimeId).Msg("set primary: client not found")
		return
	}
	c.SetPrimaryServerID(s.ID())
}

// SendPB sends msg as cmd. On the owning loop it is framed in place;
// elsewhere it is serialized now and framed by a posted task.
func (s *Session) SendPB(ctx context.Context, cmd protocol.Cmd, msg proto.Message) error {
	if s.IsInLoop(ctx) {
		body, err := codec.Encode(msg, s.scratch[codec.FrameHeadSize:codec.FrameHeadSize])
		if err != nil {
			return err
		}
		return s.sendFrame(cmd, body)
	}

	body, err := codec.Encode(msg, nil)
	if err != nil {
		return err
	}
	return s.post(cmd, body)
}

// SendData sends data as the body of cmd. Off the owning loop data is
// copied before posting.
func (s *Session) SendData(ctx context.Context, cmd protocol.Cmd, data []byte) error {
	if s.IsInLoop(ctx) {
		return s.sendFrame(cmd, data)
	}
	return s.post(cmd, bytes.Clone(data))
}

// ForwardUpstream relays a client packet to this logic server.
func (s *Session) ForwardUpstream(ctx context.Context, runtimeID int64, msgID uint32, data []byte) error {
	return s.SendPB(ctx, protocol.CmdUpstream, &protocol.Upstream{RoleRuntimeId: runtimeID, MsgId: msgID, Data: data})
}

// NotifyClientDisconnect tells this logic server a client went away.
func (s *Session) NotifyClientDisconnect(ctx context.Context, runtimeID int64) error {
	return s.SendPB(ctx, protocol.CmdClientDisconnect, &protocol.ClientDisconnect{RoleRuntimeId: runtimeID})
}

func (s *Session) post(cmd protocol.Cmd, body []byte) error {
	err := s.conn.Loop().Post(func(context.Context) {
		if err := s.sendFrame(cmd, body); err != nil {
			s.logger.Debug().Str("cmd", cmd.String()).Err(err).Msg("posted send")
		}
	})
	if errors.Is(err, net.ErrLoopOverloaded) {
		s.logger.Warn().Str("cmd", cmd.String()).Msg("loop overloaded, closing")
		s.conn.Close()
	}
	return err
}

// sendFrame must run on the owning loop. body may alias the scratch
// buffer past the head.
func (s *Session) sendFrame(cmd protocol.Cmd, body []byte) error {
	frame, err := codec.EncodeFrame(s.scratch[:0], uint32(cmd), s.sendSerial, body)
	if err != nil {
		s.logger.Error().Str("cmd", cmd.String()).Int("bodyLen", len(body)).Err(err).Msg("frame encode failed, closing")
		s.conn.Close()
		return err
	}
	s.sendSerial++

	if err = s.conn.Send(frame); err != nil {
		if errors.Is(err, net.ErrSendBufferFull) {
			s.logger.Warn().Str("cmd", cmd.String()).Msg("send buffer full, closing")
			s.conn.Close()
		}
		return err
	}
	metrics.IncrCounterWithDimGroup("logicserver", "send_frame_total", 1, metrics.Dimension{"cmd": cmd.String()})
	return nil
}
