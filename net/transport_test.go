package net

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lcx/gatesvr/codec"
)

type recvEvent struct {
	head   codec.FrameHead
	body   []byte
	inLoop bool
}

// recordingSession echoes every frame back and records what it saw.
type recordingSession struct {
	conn    Conn
	failCmd uint32

	mu     sync.Mutex
	opened bool
	frames []recvEvent
	closes int
	// closeInLoop is whether the first OnClose ran on the owning loop
	closeInLoop bool
	closed      chan struct{}
}

func newRecordingFactory() (SessionFactory, chan *recordingSession) {
	created := make(chan *recordingSession, 16)
	return func(c Conn) Session {
		s := &recordingSession{conn: c, failCmd: 0xdead, closed: make(chan struct{})}
		created <- s
		return s
	}, created
}

func (s *recordingSession) OnOpen(ctx context.Context) error {
	s.mu.Lock()
	s.opened = s.conn.Loop().IsInLoop(ctx)
	s.mu.Unlock()
	return nil
}

func (s *recordingSession) OnFrame(ctx context.Context, h codec.FrameHead, body []byte) error {
	if h.Cmd == s.failCmd {
		return errors.New("bad cmd")
	}
	s.mu.Lock()
	s.frames = append(s.frames, recvEvent{head: h, body: append([]byte(nil), body...), inLoop: s.conn.Loop().IsInLoop(ctx)})
	s.mu.Unlock()
	out, err := codec.AppendFrame(nil, h.Cmd+1, h.Serial, body)
	if err != nil {
		return err
	}
	return s.conn.Send(out)
}

func (s *recordingSession) OnClose(ctx context.Context) {
	s.mu.Lock()
	s.closes++
	first := s.closes == 1
	if first {
		s.closeInLoop = s.conn.Loop().IsInLoop(ctx)
	}
	s.mu.Unlock()
	if first {
		close(s.closed)
	}
}

func (s *recordingSession) snapshot() ([]recvEvent, bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recvEvent(nil), s.frames...), s.opened, s.closes
}

func (s *recordingSession) closedInLoop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeInLoop
}

func waitClosed(t *testing.T, s *recordingSession) {
	t.Helper()
	select {
	case <-s.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("session not closed")
	}
}

func newTestLoops(t *testing.T) *LoopGroup {
	t.Helper()
	g := NewLoopGroup(&LoopGroupCfg{Loops: 2, TaskQueueLimit: 1024})
	g.Start()
	t.Cleanup(g.Stop)
	return g
}

func recvSession(t *testing.T, created chan *recordingSession) *recordingSession {
	t.Helper()
	select {
	case s := <-created:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no session created")
		return nil
	}
}
