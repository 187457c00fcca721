package log

import (
	"encoding/hex"
	"strconv"
	"time"
	"unicode/utf8"
)

// ObjectMarshaler lets a type write itself as a nested JSON object.
type ObjectMarshaler interface {
	MarshalLogObject(e *LogEvent)
}

// LogEvent accumulates one JSON line. Every method is nil-safe so a filtered
// out event (nil) can be chained without checks.
type LogEvent struct {
	buf    *eventBuffer
	logger Logger
	level  Level
}

type eventBuffer struct {
	b []byte
}

func (b *eventBuffer) Bytes() []byte { return b.b }
func (b *eventBuffer) Len() int      { return len(b.b) }

func newEvent(logger Logger) *LogEvent {
	return &LogEvent{
		buf:    &eventBuffer{b: make([]byte, 0, 512)},
		logger: logger,
	}
}

// Reset empties the event for reuse from the pool.
func (e *LogEvent) Reset() {
	e.buf.b = append(e.buf.b[:0], '{')
	e.level = InfoLevel
}

func (e *LogEvent) key(k string) {
	if len(e.buf.b) > 1 && e.buf.b[len(e.buf.b)-1] != '{' {
		e.buf.b = append(e.buf.b, ',')
	}
	e.buf.b = appendJSONString(e.buf.b, k)
	e.buf.b = append(e.buf.b, ':')
}

func (e *LogEvent) Str(key, val string) *LogEvent {
	if e == nil {
		return e
	}
	e.key(key)
	e.buf.b = appendJSONString(e.buf.b, val)
	return e
}

func (e *LogEvent) Int(key string, val int) *LogEvent {
	if e == nil {
		return e
	}
	e.key(key)
	e.buf.b = strconv.AppendInt(e.buf.b, int64(val), 10)
	return e
}

func (e *LogEvent) Int32(key string, val int32) *LogEvent {
	if e == nil {
		return e
	}
	e.key(key)
	e.buf.b = strconv.AppendInt(e.buf.b, int64(val), 10)
	return e
}

func (e *LogEvent) Int64(key string, val int64) *LogEvent {
	if e == nil {
		return e
	}
	e.key(key)
	e.buf.b = strconv.AppendInt(e.buf.b, val, 10)
	return e
}

func (e *LogEvent) Uint16(key string, val uint16) *LogEvent {
	if e == nil {
		return e
	}
	e.key(key)
	e.buf.b = strconv.AppendUint(e.buf.b, uint64(val), 10)
	return e
}

func (e *LogEvent) Uint32(key string, val uint32) *LogEvent {
	if e == nil {
		return e
	}
	e.key(key)
	e.buf.b = strconv.AppendUint(e.buf.b, uint64(val), 10)
	return e
}

func (e *LogEvent) Uint64(key string, val uint64) *LogEvent {
	if e == nil {
		return e
	}
	e.key(key)
	e.buf.b = strconv.AppendUint(e.buf.b, val, 10)
	return e
}

func (e *LogEvent) Float64(key string, val float64) *LogEvent {
	if e == nil {
		return e
	}
	e.key(key)
	e.buf.b = strconv.AppendFloat(e.buf.b, val, 'f', -1, 64)
	return e
}

func (e *LogEvent) Bool(key string, val bool) *LogEvent {
	if e == nil {
		return e
	}
	e.key(key)
	e.buf.b = strconv.AppendBool(e.buf.b, val)
	return e
}

// Hex writes val as a hex string, for short binary payloads.
func (e *LogEvent) Hex(key string, val []byte) *LogEvent {
	if e == nil {
		return e
	}
	e.key(key)
	e.buf.b = append(e.buf.b, '"')
	e.buf.b = hex.AppendEncode(e.buf.b, val)
	e.buf.b = append(e.buf.b, '"')
	return e
}

// Err writes err under "error". A nil err writes nothing.
func (e *LogEvent) Err(err error) *LogEvent {
	if e == nil || err == nil {
		return e
	}
	return e.Str("error", err.Error())
}

// Time writes t in RFC3339 with milliseconds.
func (e *LogEvent) Time(key string, t *time.Time) *LogEvent {
	if e == nil || t == nil {
		return e
	}
	e.key(key)
	e.buf.b = append(e.buf.b, '"')
	e.buf.b = t.AppendFormat(e.buf.b, "2006-01-02T15:04:05.000Z07:00")
	e.buf.b = append(e.buf.b, '"')
	return e
}

func (e *LogEvent) Dur(key string, d time.Duration) *LogEvent {
	if e == nil {
		return e
	}
	return e.Str(key, d.String())
}

func (e *LogEvent) Object(key string, obj ObjectMarshaler) *LogEvent {
	if e == nil || obj == nil {
		return e
	}
	e.key(key)
	e.buf.b = append(e.buf.b, '{')
	obj.MarshalLogObject(e)
	e.buf.b = append(e.buf.b, '}')
	return e
}

// Msg adds msg and writes the event.
func (e *LogEvent) Msg(msg string) {
	if e == nil {
		return
	}
	e.Str("msg", msg)
	e.End()
}

// End writes the event without a message.
func (e *LogEvent) End() {
	if e == nil {
		return
	}
	e.buf.b = append(e.buf.b, '}', '\n')
	e.logger.OnEventEnd(e)
}

const _hexDigits = "0123456789abcdef"

func appendJSONString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch {
			case c == '"' || c == '\\':
				dst = append(dst, '\\', c)
			case c == '\n':
				dst = append(dst, '\\', 'n')
			case c == '\r':
				dst = append(dst, '\\', 'r')
			case c == '\t':
				dst = append(dst, '\\', 't')
			case c < 0x20:
				dst = append(dst, '\\', 'u', '0', '0', _hexDigits[c>>4], _hexDigits[c&0xf])
			default:
				dst = append(dst, c)
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			dst = append(dst, `�`...)
		} else {
			dst = append(dst, s[i:i+size]...)
		}
		i += size
	}
	return append(dst, '"')
}
