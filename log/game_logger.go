package log

import (
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lcx/gatesvr/config"
)

// GameLogger writes pooled JSON-line events to a set of appenders.
//
// Level, caller skip, caller info and per-line overrides can be swapped at
// runtime through OnConfigChanged while other goroutines keep logging.
//
//	logger := NewLogger(&LogCfg{LogLevel: InfoLevel, ConsoleAppender: true})
//	logger.Info().Str("addr", addr).Int("loops", 4).Msg("gateway listening")
type GameLogger struct {
	appendersMu       sync.RWMutex
	appenders         []LogAppender
	minLevel          atomic.Uint32
	callerSkip        atomic.Int32
	enabledCallerInfo atomic.Bool
	levelChange       atomic.Pointer[levelChange]
	currentConfig     atomic.Pointer[LogCfg]
	eventPool         *sync.Pool
	callerCache       sync.Map
	configManager     config.ConfigManager
}

// NewLogger builds a logger from cfg, or from the defaults when cfg is nil.
func NewLogger(cfg *LogCfg) *GameLogger {
	if cfg == nil {
		cfg = getDefaultCfg()
	}
	if cfg.sessionWhiteListSet == nil {
		cfg.buildWhiteList()
	}

	logger := &GameLogger{}
	logger.eventPool = &sync.Pool{
		New: func() any {
			return newEvent(logger)
		},
	}
	logger.applyConfig(cfg)

	if cfg.FileAppender {
		logger.AddAppender(NewFileAppender(cfg))
	}
	if cfg.ConsoleAppender {
		logger.AddAppender(NewConsoleAppender())
	}

	return logger
}

// NewLoggerWithConfigManager is NewLogger subscribed to reloads of
// "logger" on configManager.
func NewLoggerWithConfigManager(cfg *LogCfg, configManager config.ConfigManager) *GameLogger {
	logger := NewLogger(cfg)
	logger.configManager = configManager
	if configManager != nil {
		configManager.AddChangeListener(logger)
	}
	return logger
}

// OnConfigChanged applies a reloaded LogCfg and forwards it to the appenders
// that listen for config changes.
func (x *GameLogger) OnConfigChanged(configName string, newConfig, oldConfig config.Config) error {
	if configName != ConfigName {
		return nil
	}
	newLogCfg, ok := newConfig.(*LogCfg)
	if !ok {
		return nil
	}

	x.applyConfig(newLogCfg)

	for _, appender := range x.GetAppender() {
		listener, ok := appender.(config.ConfigChangeListener)
		if !ok {
			continue
		}
		if err := listener.OnConfigChanged(configName, newConfig, oldConfig); err != nil {
			x.Error().Err(err).Msg("appender rejected logger config")
		}
	}
	x.Refresh()
	return nil
}

func (x *GameLogger) applyConfig(cfg *LogCfg) {
	x.minLevel.Store(uint32(cfg.LogLevel))
	x.callerSkip.Store(int32(cfg.CallerSkip))
	x.enabledCallerInfo.Store(cfg.EnabledCallerInfo)
	x.levelChange.Store(newLevelChange(cfg.LevelChange))
	x.currentConfig.Store(cfg)
}

// GetCurrentConfig returns the config most recently applied.
func (x *GameLogger) GetCurrentConfig() *LogCfg {
	return x.currentConfig.Load()
}

func (x *GameLogger) checkLevel(level Level) bool {
	return Level(x.minLevel.Load()) <= level
}

// AddAppender registers an extra output.
func (x *GameLogger) AddAppender(appender LogAppender) {
	x.appendersMu.Lock()
	defer x.appendersMu.Unlock()
	x.appenders = append(x.appenders, appender)
}

func (x *GameLogger) GetAppender() []LogAppender {
	x.appendersMu.RLock()
	defer x.appendersMu.RUnlock()
	return x.appenders
}

// Refresh flushes every appender.
func (x *GameLogger) Refresh() {
	for _, appender := range x.GetAppender() {
		appender.Refresh()
	}
}

func (x *GameLogger) IgnoreCheckLevel() bool {
	return false
}

func (x *GameLogger) newEvent() *LogEvent {
	e := x.eventPool.Get().(*LogEvent)
	e.Reset()
	return e
}

// OnEventEnd writes a finished event and recycles it. Fatal events panic
// after the write.
func (x *GameLogger) OnEventEnd(e *LogEvent) {
	for _, appender := range x.GetAppender() {
		_, _ = appender.Write(e.buf.Bytes())
	}

	if e.level == FatalLevel {
		x.Refresh()
		panic("fatal log event")
	}

	x.eventPool.Put(e)
}

func (x *GameLogger) Debug() *LogEvent {
	return x.log(DebugLevel, false)
}

func (x *GameLogger) Info() *LogEvent {
	return x.log(InfoLevel, false)
}

func (x *GameLogger) Warn() *LogEvent {
	return x.log(WarnLevel, false)
}

func (x *GameLogger) Error() *LogEvent {
	return x.log(ErrorLevel, false)
}

func (x *GameLogger) Fatal() *LogEvent {
	return x.log(FatalLevel, false)
}

// getCallerInfo resolves the caller of the public logging function, trimming
// the file to its last directory and the function to its bare name.
func (x *GameLogger) getCallerInfo() *callerInfo {
	pc, file, line, ok := runtime.Caller(3 + int(x.callerSkip.Load()))
	if !ok {
		return _UnknownCallerInfo
	}

	if cached, found := x.callerCache.Load(pc); found {
		return cached.(*callerInfo)
	}

	function := runtime.FuncForPC(pc).Name()
	if dot := strings.LastIndexByte(function, '.'); dot != -1 {
		function = function[dot+1:]
	}

	if slash := strings.LastIndexByte(file, '/'); slash > 0 {
		if prev := strings.LastIndexByte(file[:slash], '/'); prev >= 0 {
			file = file[prev+1:]
		}
	}

	c := newCallerInfo(file, function, line)
	x.callerCache.Store(pc, c)
	return c
}

// log starts an event at level, or returns nil when the level is filtered
// out. force skips the filter; it is set by session loggers whose id is
// whitelisted.
func (x *GameLogger) log(level Level, force bool) *LogEvent {
	var info *callerInfo
	if !force && !x.checkLevel(level) {
		lc := x.levelChange.Load()
		if lc.Empty() {
			return nil
		}
		info = x.getCallerInfo()
		level = lc.GetLevel(info.file, info.line, level)
		if !x.checkLevel(level) {
			return nil
		}
	}

	e := x.newEvent()
	e.level = level

	t := time.Now()
	e.Time("time", &t)
	e.Str("level", level.String())

	if x.enabledCallerInfo.Load() {
		if info == nil {
			info = x.getCallerInfo()
		}
		e.Str("caller", info.String())
	}

	return e
}
