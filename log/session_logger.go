package log

import "sync/atomic"

// SessionLogger decorates every event with the connection it belongs to and,
// once known, the id the peer registered under. Ids listed in
// LogCfg.SessionWhiteList are logged regardless of level.
type SessionLogger struct {
	base   *GameLogger
	kind   string
	connID uint64
	id     atomic.Int64
}

// NewSessionLogger returns a logger for a connection of the given kind
// ("logic" or "client") on top of the default logger.
func NewSessionLogger(kind string, connID uint64) *SessionLogger {
	return NewSessionLoggerWith(_defaultLogger, kind, connID)
}

func NewSessionLoggerWith(base *GameLogger, kind string, connID uint64) *SessionLogger {
	l := &SessionLogger{base: base, kind: kind, connID: connID}
	l.id.Store(-1)
	return l
}

// SetID records the registered id. -1 means not registered.
func (x *SessionLogger) SetID(id int64) {
	x.id.Store(id)
}

func (x *SessionLogger) IgnoreCheckLevel() bool {
	id := x.id.Load()
	return id >= 0 && x.base.GetCurrentConfig().IsInWhiteList(id)
}

func (x *SessionLogger) GetAppender() []LogAppender {
	return x.base.GetAppender()
}

func (x *SessionLogger) AddAppender(appender LogAppender) {
	x.base.AddAppender(appender)
}

func (x *SessionLogger) OnEventEnd(e *LogEvent) {
	x.base.OnEventEnd(e)
}

func (x *SessionLogger) log(level Level) *LogEvent {
	e := x.base.log(level, x.IgnoreCheckLevel())
	if e == nil {
		return nil
	}
	e.Str("session", x.kind).Uint64("conn", x.connID)
	if id := x.id.Load(); id >= 0 {
		e.Int64("id", id)
	}
	return e
}

func (x *SessionLogger) Debug() *LogEvent {
	return x.log(DebugLevel)
}

func (x *SessionLogger) Info() *LogEvent {
	return x.log(InfoLevel)
}

func (x *SessionLogger) Warn() *LogEvent {
	return x.log(WarnLevel)
}

func (x *SessionLogger) Error() *LogEvent {
	return x.log(ErrorLevel)
}

func (x *SessionLogger) Fatal() *LogEvent {
	return x.log(FatalLevel)
}
