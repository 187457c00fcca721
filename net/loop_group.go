package net

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
)

// LoopGroupCfg configures the event loops every connection is pinned to.
type LoopGroupCfg struct {
	// Loops is the number of event loops; 0 means one per CPU.
	Loops int `mapstructure:"loops"`
	// TaskQueueLimit bounds the pending tasks of each loop; 0 is unbounded.
	TaskQueueLimit int `mapstructure:"taskQueueLimit"`
	// PinCPU binds loop i to CPU i.
	PinCPU bool `mapstructure:"pinCPU"`
}

func (c *LoopGroupCfg) Validate() error {
	if c.Loops < 0 {
		return fmt.Errorf("loops cannot be negative")
	}
	if c.TaskQueueLimit < 0 {
		return fmt.Errorf("taskQueueLimit cannot be negative")
	}
	return nil
}

// LoopGroup owns a fixed set of event loops and hands them out round-robin.
type LoopGroup struct {
	loops []*EventLoop
	next  atomic.Uint64
}

func NewLoopGroup(cfg *LoopGroupCfg) *LoopGroup {
	n := cfg.Loops
	if n <= 0 {
		n = runtime.NumCPU()
	}
	g := &LoopGroup{loops: make([]*EventLoop, n)}
	for i := range g.loops {
		cpu := -1
		if cfg.PinCPU {
			cpu = i
		}
		g.loops[i] = NewEventLoop(i, cfg.TaskQueueLimit, cpu)
	}
	return g
}

func (g *LoopGroup) Start() {
	for _, l := range g.loops {
		l.Start()
	}
}

// Stop drains and stops every loop.
func (g *LoopGroup) Stop() {
	for _, l := range g.loops {
		l.Stop()
	}
}

// Next picks the loop for a new connection.
func (g *LoopGroup) Next() *EventLoop {
	i := g.next.Add(1) - 1
	return g.loops[i%uint64(len(g.loops))]
}

func (g *LoopGroup) Loops() []*EventLoop {
	return g.loops
}

func (g *LoopGroup) Len() int {
	return len(g.loops)
}

// Sync runs an empty task on every loop and waits for all of them, so every
// task posted before the call has run when it returns.
func (g *LoopGroup) Sync(ctx context.Context) error {
	done := make(chan struct{}, len(g.loops))
	for _, l := range g.loops {
		if err := l.PostUrgent(func(context.Context) { done <- struct{}{} }); err != nil {
			return err
		}
	}
	for range g.loops {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
