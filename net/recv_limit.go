package net

import (
	"context"
	"sync/atomic"

	"go.uber.org/ratelimit"
	"golang.org/x/time/rate"
)

// TokenRecvLimiter is a token bucket shared by every reader of a transport.
// A non-positive limit disables it.
type TokenRecvLimiter struct {
	limiter atomic.Pointer[rate.Limiter]
}

func newRateLimiter(limit, burst int) *rate.Limiter {
	if limit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = limit
	}
	return rate.NewLimiter(rate.Limit(limit), burst)
}

// NewTokenRecvLimiter allows limit frames per second with bursts of burst.
func NewTokenRecvLimiter(limit, burst int) *TokenRecvLimiter {
	self := &TokenRecvLimiter{}
	self.limiter.Store(newRateLimiter(limit, burst))
	return self
}

// Take blocks until a token is available or ctx is done.
func (l *TokenRecvLimiter) Take(ctx context.Context) error {
	return l.limiter.Load().Wait(ctx)
}

// Reload swaps in new settings; waiters on the old bucket finish there.
func (l *TokenRecvLimiter) Reload(limit, burst int) {
	l.limiter.Store(newRateLimiter(limit, burst))
}

// Filter blocks the reader goroutine of the frame's connection until a
// token is available.
func (l *TokenRecvLimiter) Filter(ctx context.Context) FrameFilter {
	return func(f *RecvFrame, next FrameHandleFunc) error {
		if err := l.Take(ctx); err != nil {
			return err
		}
		return next(f)
	}
}

// FunnelRecvLimiter is a leaky bucket, one per client connection. A
// non-positive limit disables it.
type FunnelRecvLimiter struct {
	limiter atomic.Pointer[ratelimit.Limiter]
}

func newFunnel(limit int) ratelimit.Limiter {
	if limit <= 0 {
		return ratelimit.NewUnlimited()
	}
	return ratelimit.New(limit)
}

func NewFunnelRecvLimiter(limit int) *FunnelRecvLimiter {
	self := &FunnelRecvLimiter{}
	limiter := newFunnel(limit)
	self.limiter.Store(&limiter)
	return self
}

// Take blocks until the next frame may be read.
func (l *FunnelRecvLimiter) Take() {
	_ = (*l.limiter.Load()).Take()
}

func (l *FunnelRecvLimiter) Reload(limit int) {
	limiter := newFunnel(limit)
	l.limiter.Store(&limiter)
}
