package net

import (
	"github.com/lcx/gatesvr/codec"
	"github.com/lcx/gatesvr/metrics"
)

// RecvFrame is a frame read from a connection, before it reaches the loop.
type RecvFrame struct {
	Conn Conn
	Head codec.FrameHead
	Body []byte
}

// FrameHandleFunc is the next step of a filter chain.
type FrameHandleFunc func(f *RecvFrame) error

// FrameFilter intercepts received frames. It calls next to let the frame
// through; returning an error closes the connection.
type FrameFilter func(f *RecvFrame, next FrameHandleFunc) error

// FrameFilterChain runs its filters in order and then the final handler.
type FrameFilterChain []FrameFilter

func (fc FrameFilterChain) Handle(f *RecvFrame, h FrameHandleFunc) error {
	if len(fc) == 0 {
		return h(f)
	}
	return fc[0](f, func(f *RecvFrame) error {
		return fc[1:].Handle(f, h)
	})
}

// StatFilter counts received frames and bytes per transport.
func StatFilter(transport string) FrameFilter {
	dims := metrics.Dimension{"transport": transport}
	return func(f *RecvFrame, next FrameHandleFunc) error {
		metrics.IncrCounterWithDimGroup("net", "recv_frame_total", 1, dims)
		metrics.IncrCounterWithDimGroup("net", "recv_bytes_total", metrics.Value(f.Head.TotalLen), dims)
		return next(f)
	}
}
