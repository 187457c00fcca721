package codec

import (
	"encoding/binary"
	"errors"
)

const (
	// FrameHeadSize is the fixed head: u32 cmd, u16 serial, u16 totalLen.
	FrameHeadSize = 8
	// MaxFrameSize bounds a frame including its head; it is also the size of
	// the per-session scratch buffer.
	MaxFrameSize = 8 * 1024
	// maxTotalLen is the largest value the u16 length field can carry.
	maxTotalLen = 1<<16 - 1
)

var (
	ErrBufferTooSmall = errors.New("codec: buffer too small")
	ErrFrameTooShort  = errors.New("codec: frame shorter than head")
	ErrLengthMismatch = errors.New("codec: frame length mismatch")
)

// FrameHead is the decoded fixed head of a frame.
type FrameHead struct {
	Cmd      uint32
	Serial   uint16
	TotalLen uint16
}

// BodyLen is the length of the body that follows the head.
func (h FrameHead) BodyLen() int {
	return int(h.TotalLen) - FrameHeadSize
}

// EncodeFrame writes head and body into dst[:0] and returns the frame. It
// never grows dst: a frame that does not fit in cap(dst), or whose total
// length exceeds the u16 length field, fails with ErrBufferTooSmall.
func EncodeFrame(dst []byte, cmd uint32, serial uint16, body []byte) ([]byte, error) {
	total := FrameHeadSize + len(body)
	if total > cap(dst) || total > maxTotalLen {
		return nil, ErrBufferTooSmall
	}
	frame := dst[:total]
	binary.LittleEndian.PutUint32(frame[0:4], cmd)
	binary.LittleEndian.PutUint16(frame[4:6], serial)
	binary.LittleEndian.PutUint16(frame[6:8], uint16(total))
	copy(frame[FrameHeadSize:], body)
	return frame, nil
}

// AppendFrame appends a frame to dst, growing it as needed. Used off the
// owning loop where no scratch buffer is available.
func AppendFrame(dst []byte, cmd uint32, serial uint16, body []byte) ([]byte, error) {
	total := FrameHeadSize + len(body)
	if total > maxTotalLen {
		return dst, ErrBufferTooSmall
	}
	dst = binary.LittleEndian.AppendUint32(dst, cmd)
	dst = binary.LittleEndian.AppendUint16(dst, serial)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(total))
	return append(dst, body...), nil
}

// DecodeFrameHead decodes the head at the start of b without checking the
// length against len(b).
func DecodeFrameHead(b []byte) (FrameHead, error) {
	if len(b) < FrameHeadSize {
		return FrameHead{}, ErrFrameTooShort
	}
	h := FrameHead{
		Cmd:      binary.LittleEndian.Uint32(b[0:4]),
		Serial:   binary.LittleEndian.Uint16(b[4:6]),
		TotalLen: binary.LittleEndian.Uint16(b[6:8]),
	}
	if h.TotalLen < FrameHeadSize {
		return h, ErrLengthMismatch
	}
	return h, nil
}

// DecodeFrame splits a complete frame. The returned body aliases frame.
// Only length consistency is checked; the command is not interpreted.
func DecodeFrame(frame []byte) (FrameHead, []byte, error) {
	h, err := DecodeFrameHead(frame)
	if err != nil {
		return h, nil, err
	}
	if int(h.TotalLen) != len(frame) {
		return h, nil, ErrLengthMismatch
	}
	return h, frame[FrameHeadSize:], nil
}
