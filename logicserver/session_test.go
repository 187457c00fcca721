package logicserver

import (
	"context"
	stdnet "net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/lcx/gatesvr/codec"
	"github.com/lcx/gatesvr/net"
	"github.com/lcx/gatesvr/protocol"
)

const (
	testSecret = "s3cret"
	testNodeID = int64(0x08010001)
)

var _connIDs atomic.Uint64

type sentFrame struct {
	head codec.FrameHead
	body []byte
}

type fakeConn struct {
	id   uint64
	loop *net.EventLoop

	mu      sync.Mutex
	frames  []sentFrame
	closed  int
	sendErr error
}

func newFakeConn(loop *net.EventLoop) *fakeConn {
	return &fakeConn{id: _connIDs.Add(1), loop: loop}
}

func (c *fakeConn) ID() uint64              { return c.id }
func (c *fakeConn) Loop() *net.EventLoop    { return c.loop }
func (c *fakeConn) RemoteAddr() stdnet.Addr { return &stdnet.TCPAddr{IP: stdnet.IPv4(127, 0, 0, 1), Port: 9000} }

func (c *fakeConn) Send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	h, body, err := codec.DecodeFrame(b)
	if err != nil {
		return err
	}
	c.frames = append(c.frames, sentFrame{head: h, body: append([]byte(nil), body...)})
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
}

func (c *fakeConn) sent() []sentFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentFrame(nil), c.frames...)
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type binarySend struct {
	msgID   uint32
	payload []byte
	inLoop  bool
}

type fakeClient struct {
	loop    *net.EventLoop
	primary atomic.Int64
	slave   atomic.Int64

	mu    sync.Mutex
	sends []binarySend
}

func newFakeClient(loop *net.EventLoop) *fakeClient {
	c := &fakeClient{loop: loop}
	c.primary.Store(-1)
	c.slave.Store(-1)
	return c
}

func (c *fakeClient) SendBinary(ctx context.Context, msgID uint32, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends = append(c.sends, binarySend{msgID: msgID, payload: payload, inLoop: c.IsInLoop(ctx)})
	return nil
}

func (c *fakeClient) IsInLoop(ctx context.Context) bool { return c.loop.IsInLoop(ctx) }
func (c *fakeClient) SetPrimaryServerID(id int64)       { c.primary.Store(id) }
func (c *fakeClient) SetSlaveServerID(id int64)         { c.slave.Store(id) }

type fakeClients struct {
	mu            sync.Mutex
	clients       map[int64]*fakeClient
	kicked        []int64
	kickedPrimary []int64
}

func newFakeClients() *fakeClients {
	return &fakeClients{clients: make(map[int64]*fakeClient)}
}

func (r *fakeClients) FindByRuntimeID(id int64) (ClientSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, false
	}
	return c, true
}

func (r *fakeClients) KickByRuntimeID(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kicked = append(r.kicked, id)
}

func (r *fakeClients) KickAllOfPrimary(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kickedPrimary = append(r.kickedPrimary, id)
}

type fixture struct {
	loops   [2]*net.EventLoop
	deps    *Deps
	clients *fakeClients
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{clients: newFakeClients()}
	for i := range f.loops {
		f.loops[i] = net.NewEventLoop(i, 0, -1)
		f.loops[i].Start()
		t.Cleanup(f.loops[i].Stop)
	}
	f.deps = &Deps{
		Registry: NewRegistry(),
		Clients:  f.clients,
		Secret:   func() string { return testSecret },
		NodeID:   testNodeID,
	}
	return f
}

func (f *fixture) newSession(loop int) (*Session, *fakeConn) {
	conn := newFakeConn(f.loops[loop])
	return NewSession(conn, f.deps), conn
}

// onLoop runs fn on l and waits for it.
func onLoop(t *testing.T, l *net.EventLoop, fn func(ctx context.Context)) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, l.Post(func(ctx context.Context) {
		defer close(done)
		fn(ctx)
	}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop task did not run")
	}
}

func encodeBody(t *testing.T, m protocol.Message) []byte {
	t.Helper()
	body, err := codec.Encode(m, nil)
	require.NoError(t, err)
	return body
}

func (f *fixture) deliver(t *testing.T, s *Session, cmd protocol.Cmd, body []byte) error {
	t.Helper()
	var err error
	head := codec.FrameHead{Cmd: uint32(cmd), Serial: 1, TotalLen: uint16(codec.FrameHeadSize + len(body))}
	onLoop(t, s.Conn().Loop(), func(ctx context.Context) {
		err = s.OnFrame(ctx, head, body)
	})
	return err
}

func (f *fixture) send(t *testing.T, s *Session, m protocol.Message) error {
	t.Helper()
	return f.deliver(t, s, m.Cmd(), encodeBody(t, m))
}

func (f *fixture) login(t *testing.T, s *Session, id int64, primary bool) *protocol.LogicServerLoginReply {
	t.Helper()
	conn := s.Conn().(*fakeConn)
	before := len(conn.sent())
	require.NoError(t, f.send(t, s, &protocol.LogicServerLogin{Id: id, IsPrimary: primary, Password: testSecret}))
	return lastReply(t, conn, before)
}

func lastReply(t *testing.T, conn *fakeConn, before int) *protocol.LogicServerLoginReply {
	t.Helper()
	frames := conn.sent()
	require.Len(t, frames, before+1)
	fr := frames[before]
	require.Equal(t, uint32(protocol.CmdLoginReply), fr.head.Cmd)
	reply := &protocol.LogicServerLoginReply{}
	require.NoError(t, codec.Decode(reply, fr.body))
	return reply
}

func (f *fixture) closeSession(t *testing.T, s *Session) {
	t.Helper()
	onLoop(t, s.Conn().Loop(), s.OnClose)
}

func TestLoginDuplicatePrimary(t *testing.T) {
	f := newFixture(t)
	a, connA := f.newSession(0)
	b, connB := f.newSession(1)

	reply := f.login(t, a, 7, true)
	assert.True(t, reply.IsSuccess)
	assert.Equal(t, testNodeID, reply.Id)
	assert.Empty(t, reply.Reason)
	assert.Equal(t, uint16(1), connA.sent()[0].head.Serial)
	assert.Equal(t, int64(7), a.ID())
	assert.Equal(t, RolePrimary, a.Role())

	reply = f.login(t, b, 7, true)
	assert.False(t, reply.IsSuccess)
	assert.Equal(t, ReasonDuplicateID, reply.Reason)
	assert.Equal(t, int64(-1), b.ID())
	assert.Equal(t, RoleUnset, b.Role())
	assert.Zero(t, connB.closeCount())

	got, ok := f.deps.Registry.FindPrimary(7)
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestLoginDistinctIDs(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		id      int64
		primary bool
	}{
		{1, true}, {2, true}, {1, false}, {2, false}, {3, false},
	}
	for i, c := range cases {
		s, _ := f.newSession(i % 2)
		assert.True(t, f.login(t, s, c.id, c.primary).IsSuccess, "id %d primary %v", c.id, c.primary)
	}
	assert.Equal(t, []int64{1, 2}, f.deps.Registry.PrimaryIDs())
	assert.Equal(t, []int64{1, 2, 3}, f.deps.Registry.SlaveIDs())
}

func TestLoginBadPasswordThenRetry(t *testing.T) {
	f := newFixture(t)
	s, conn := f.newSession(0)

	require.NoError(t, f.send(t, s, &protocol.LogicServerLogin{Id: 4, IsPrimary: true, Password: "nope"}))
	reply := lastReply(t, conn, 0)
	assert.False(t, reply.IsSuccess)
	assert.Equal(t, ReasonBadPassword, reply.Reason)
	assert.Equal(t, RoleUnset, s.Role())
	_, ok := f.deps.Registry.FindPrimary(4)
	assert.False(t, ok)

	reply = f.login(t, s, 4, true)
	assert.True(t, reply.IsSuccess)
	assert.Equal(t, uint16(2), conn.sent()[1].head.Serial)
}

func TestLoginPasswordReload(t *testing.T) {
	f := newFixture(t)
	var secret atomic.Value
	secret.Store("old")
	f.deps.Secret = func() string { return secret.Load().(string) }

	s, conn := f.newSession(0)
	secret.Store("new")
	require.NoError(t, f.send(t, s, &protocol.LogicServerLogin{Id: 1, Password: "old"}))
	assert.Equal(t, ReasonBadPassword, lastReply(t, conn, 0).Reason)
	require.NoError(t, f.send(t, s, &protocol.LogicServerLogin{Id: 1, Password: "new"}))
	assert.True(t, lastReply(t, conn, 1).IsSuccess)
}

func TestLoginNegativeID(t *testing.T) {
	f := newFixture(t)
	s, conn := f.newSession(0)
	require.NoError(t, f.send(t, s, &protocol.LogicServerLogin{Id: -1, IsPrimary: true, Password: testSecret}))
	assert.Equal(t, ReasonInvalidID, lastReply(t, conn, 0).Reason)
	assert.Equal(t, 0, f.deps.Registry.Len())
}

func TestProtocolViolations(t *testing.T) {
	f := newFixture(t)

	s, _ := f.newSession(0)
	err := f.send(t, s, &protocol.KickPlayer{RoleRuntimeId: 1})
	assert.ErrorIs(t, err, ErrProtocolViolation, "frame before login")
	assert.Empty(t, f.clients.kicked)

	err = f.deliver(t, s, protocol.CmdLogin, []byte{0xff})
	assert.ErrorIs(t, err, ErrProtocolViolation, "malformed login")

	require.True(t, f.login(t, s, 1, true).IsSuccess)

	err = f.send(t, s, &protocol.LogicServerLogin{Id: 2, IsPrimary: true, Password: testSecret})
	assert.ErrorIs(t, err, ErrProtocolViolation, "login while registered")
	_, ok := f.deps.Registry.FindPrimary(2)
	assert.False(t, ok)

	err = f.deliver(t, s, protocol.Cmd(12345), nil)
	assert.ErrorIs(t, err, ErrProtocolViolation, "unknown cmd")

	err = f.send(t, s, &protocol.Upstream{RoleRuntimeId: 1})
	assert.ErrorIs(t, err, ErrProtocolViolation, "gateway-only cmd")

	err = f.deliver(t, s, protocol.CmdDownstream, []byte{0x0a, 0x05, 0x01})
	assert.ErrorIs(t, err, ErrProtocolViolation, "truncated body")

	assert.Equal(t, int64(1), s.ID())
}

func TestDispatchSpans(t *testing.T) {
	f := newFixture(t)
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	f.deps.Tracer = tp

	s, _ := f.newSession(0)
	require.True(t, f.login(t, s, 4, true).IsSuccess)
	err := f.send(t, s, &protocol.LogicServerLogin{Id: 4, IsPrimary: true, Password: testSecret})
	require.ErrorIs(t, err, ErrProtocolViolation)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	for _, span := range spans {
		assert.Equal(t, "logicserver.dispatch", span.Name())
		assert.Contains(t, span.Attributes(), attribute.String("cmd", protocol.CmdLogin.String()))
	}
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
	assert.Empty(t, spans[0].Events())

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Contains(t, spans[1].Status().Description, "login while registered")
	require.Len(t, spans[1].Events(), 1)
	assert.Equal(t, "exception", spans[1].Events()[0].Name)
}

func TestClosePrimaryKicksClients(t *testing.T) {
	f := newFixture(t)
	s, _ := f.newSession(0)
	require.True(t, f.login(t, s, 9, true).IsSuccess)

	f.closeSession(t, s)
	f.closeSession(t, s)

	_, ok := f.deps.Registry.FindPrimary(9)
	assert.False(t, ok)
	assert.Equal(t, []int64{9}, f.clients.kickedPrimary)
	assert.Equal(t, int64(-1), s.ID())
	assert.Equal(t, RoleUnset, s.Role())

	// the id is free again
	s2, _ := f.newSession(1)
	assert.True(t, f.login(t, s2, 9, true).IsSuccess)
}

func TestCloseSlaveKicksNobody(t *testing.T) {
	f := newFixture(t)
	p, _ := f.newSession(0)
	s, _ := f.newSession(1)
	require.True(t, f.login(t, p, 5, true).IsSuccess)
	require.True(t, f.login(t, s, 5, false).IsSuccess)

	f.closeSession(t, s)

	assert.Empty(t, f.clients.kickedPrimary)
	_, ok := f.deps.Registry.FindSlave(5)
	assert.False(t, ok)
	_, ok = f.deps.Registry.FindPrimary(5)
	assert.True(t, ok)
}

func TestCloseUnregistered(t *testing.T) {
	f := newFixture(t)
	s, _ := f.newSession(0)
	f.closeSession(t, s)
	assert.Empty(t, f.clients.kickedPrimary)
	assert.Equal(t, 0, f.deps.Registry.Len())
}

func TestDownstreamCopyOnce(t *testing.T) {
	f := newFixture(t)
	s, _ := f.newSession(0)
	require.True(t, f.login(t, s, 1, true).IsSuccess)

	local := newFakeClient(f.loops[0])
	remoteA := newFakeClient(f.loops[1])
	remoteB := newFakeClient(f.loops[1])
	f.clients.clients[10] = local
	f.clients.clients[20] = remoteA
	f.clients.clients[30] = remoteB

	body := encodeBody(t, &protocol.Downstream{
		MsgId:     99,
		Data:      []byte("payload"),
		ClientIds: []int64{20, 10, 404, 30},
	})
	require.NoError(t, f.deliver(t, s, protocol.CmdDownstream, body))

	require.Len(t, local.sends, 1)
	require.Len(t, remoteA.sends, 1)
	require.Len(t, remoteB.sends, 1)
	for _, c := range []*fakeClient{local, remoteA, remoteB} {
		assert.Equal(t, uint32(99), c.sends[0].msgID)
		assert.Equal(t, "payload", string(c.sends[0].payload))
	}
	assert.True(t, local.sends[0].inLoop)
	assert.False(t, remoteA.sends[0].inLoop)

	// decoding detached the payload from the frame and every client shares it
	assert.Same(t, &remoteA.sends[0].payload[0], &remoteB.sends[0].payload[0])
	assert.Same(t, &local.sends[0].payload[0], &remoteA.sends[0].payload[0])
	for i := range body {
		body[i] = 0
	}
	assert.Equal(t, "payload", string(local.sends[0].payload))
	assert.Equal(t, "payload", string(remoteB.sends[0].payload))
}

func TestDownstreamAbsentClients(t *testing.T) {
	f := newFixture(t)
	s, conn := f.newSession(0)
	require.True(t, f.login(t, s, 1, true).IsSuccess)

	err := f.send(t, s, &protocol.Downstream{MsgId: 1, Data: []byte("x"), ClientIds: []int64{1, 2, 3}})
	assert.NoError(t, err)
	assert.Len(t, conn.sent(), 1)
	assert.Zero(t, conn.closeCount())
}

func TestSetSlaveScenario(t *testing.T) {
	f := newFixture(t)
	s, conn := f.newSession(0)
	require.True(t, f.login(t, s, 3, false).IsSuccess)

	c := newFakeClient(f.loops[1])
	f.clients.clients[42] = c

	require.NoError(t, f.send(t, s, &protocol.SetPlayerSlave{RoleRuntimeId: 42, WillSet: true}))
	assert.Equal(t, int64(3), c.slave.Load())
	assert.Equal(t, int64(-1), c.primary.Load())

	require.NoError(t, f.send(t, s, &protocol.SetPlayerSlave{RoleRuntimeId: 42, WillSet: false}))
	assert.Equal(t, int64(-1), c.slave.Load())

	require.NoError(t, f.send(t, s, &protocol.SetPlayerSlave{RoleRuntimeId: 43, WillSet: true}))
	assert.Len(t, conn.sent(), 1, "routing handlers never reply")
}

func TestSetPrimaryAndKick(t *testing.T) {
	f := newFixture(t)
	s, conn := f.newSession(0)
	require.True(t, f.login(t, s, 8, true).IsSuccess)

	c := newFakeClient(f.loops[0])
	c.primary.Store(2)
	f.clients.clients[42] = c

	require.NoError(t, f.send(t, s, &protocol.SetPlayerPrimary{RoleRuntimeId: 42}))
	assert.Equal(t, int64(8), c.primary.Load())
	require.NoError(t, f.send(t, s, &protocol.SetPlayerPrimary{RoleRuntimeId: 77}))

	require.NoError(t, f.send(t, s, &protocol.KickPlayer{RoleRuntimeId: 42}))
	require.NoError(t, f.send(t, s, &protocol.KickPlayer{RoleRuntimeId: 77}))
	assert.Equal(t, []int64{42, 77}, f.clients.kicked)
	assert.Len(t, conn.sent(), 1)
}

func TestSendOffLoopKeepsOrder(t *testing.T) {
	f := newFixture(t)
	s, conn := f.newSession(0)

	for i := int64(0); i < 5; i++ {
		require.NoError(t, s.ForwardUpstream(context.Background(), i, 100, []byte{byte(i)}))
	}
	require.NoError(t, s.NotifyClientDisconnect(context.Background(), 3))
	onLoop(t, f.loops[0], func(context.Context) {})

	frames := conn.sent()
	require.Len(t, frames, 6)
	for i, fr := range frames[:5] {
		assert.Equal(t, uint32(protocol.CmdUpstream), fr.head.Cmd)
		assert.Equal(t, uint16(i+1), fr.head.Serial)
		up := &protocol.Upstream{}
		require.NoError(t, codec.Decode(up, fr.body))
		assert.Equal(t, int64(i), up.RoleRuntimeId)
		assert.Equal(t, uint32(100), up.MsgId)
		assert.Equal(t, []byte{byte(i)}, up.Data)
	}
	assert.Equal(t, uint32(protocol.CmdClientDisconnect), frames[5].head.Cmd)
	dc := &protocol.ClientDisconnect{}
	require.NoError(t, codec.Decode(dc, frames[5].body))
	assert.Equal(t, int64(3), dc.RoleRuntimeId)
}

func TestSendDataOffLoopCopies(t *testing.T) {
	f := newFixture(t)
	s, conn := f.newSession(0)

	data := []byte("abc")
	require.NoError(t, s.SendData(context.Background(), protocol.CmdUpstream, data))
	data[0] = 'X'
	onLoop(t, f.loops[0], func(context.Context) {})

	frames := conn.sent()
	require.Len(t, frames, 1)
	assert.Equal(t, "abc", string(frames[0].body))
}

func TestSendOnLoopIsSynchronous(t *testing.T) {
	f := newFixture(t)
	s, conn := f.newSession(1)

	var n int
	onLoop(t, f.loops[1], func(ctx context.Context) {
		_ = s.SendData(ctx, protocol.CmdUpstream, []byte("a"))
		_ = s.SendPB(ctx, protocol.CmdClientDisconnect, &protocol.ClientDisconnect{RoleRuntimeId: 1})
		n = len(conn.sent())
	})
	assert.Equal(t, 2, n)
}

func TestSendTooLargeCloses(t *testing.T) {
	f := newFixture(t)
	s, conn := f.newSession(0)

	big := make([]byte, codec.MaxFrameSize)
	var err error
	onLoop(t, f.loops[0], func(ctx context.Context) {
		err = s.SendData(ctx, protocol.CmdUpstream, big)
	})
	assert.ErrorIs(t, err, codec.ErrBufferTooSmall)
	assert.Equal(t, 1, conn.closeCount())

	onLoop(t, f.loops[0], func(ctx context.Context) {
		err = s.SendPB(ctx, protocol.CmdUpstream, &protocol.Upstream{Data: big})
	})
	assert.ErrorIs(t, err, codec.ErrBufferTooSmall)

	require.NoError(t, s.SendData(context.Background(), protocol.CmdUpstream, big))
	onLoop(t, f.loops[0], func(context.Context) {})
	assert.Equal(t, 3, conn.closeCount())
	assert.Empty(t, conn.sent())

	// the largest body that fits still goes out
	onLoop(t, f.loops[0], func(ctx context.Context) {
		err = s.SendData(ctx, protocol.CmdUpstream, big[:codec.MaxFrameSize-codec.FrameHeadSize])
	})
	assert.NoError(t, err)
	assert.Len(t, conn.sent(), 1)
}

func TestSendSerialWraps(t *testing.T) {
	f := newFixture(t)
	s, conn := f.newSession(0)

	onLoop(t, f.loops[0], func(ctx context.Context) {
		s.sendSerial = 65535
		_ = s.SendData(ctx, protocol.CmdUpstream, nil)
		_ = s.SendData(ctx, protocol.CmdUpstream, nil)
	})
	frames := conn.sent()
	require.Len(t, frames, 2)
	assert.Equal(t, uint16(65535), frames[0].head.Serial)
	assert.Equal(t, uint16(0), frames[1].head.Serial)
}

func TestSendBufferFullCloses(t *testing.T) {
	f := newFixture(t)
	s, conn := f.newSession(0)
	conn.sendErr = net.ErrSendBufferFull

	var err error
	onLoop(t, f.loops[0], func(ctx context.Context) {
		err = s.SendData(ctx, protocol.CmdUpstream, []byte("x"))
	})
	assert.ErrorIs(t, err, net.ErrSendBufferFull)
	assert.Equal(t, 1, conn.closeCount())
}

func TestSessionFactory(t *testing.T) {
	f := newFixture(t)
	conn := newFakeConn(f.loops[0])
	sess := NewSessionFactory(f.deps)(conn)
	s, ok := sess.(*Session)
	require.True(t, ok)
	assert.Equal(t, int64(-1), s.ID())
	assert.NoError(t, s.OnOpen(f.loops[0].Context()))
}
