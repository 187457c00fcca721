package log

import (
	"github.com/lcx/gatesvr/config"
)

// Logger is implemented by GameLogger and the per-connection wrappers that
// decorate its events.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	Fatal() *LogEvent
	IgnoreCheckLevel() bool
	GetAppender() []LogAppender
	AddAppender(appender LogAppender)
	OnEventEnd(e *LogEvent)
}

var _defaultLogger *GameLogger

func init() {
	_defaultLogger = NewLogger(&LogCfg{
		LogLevel:        InfoLevel,
		CallerSkip:      1,
		ConsoleAppender: true,
	})
}

// AddAppender adds an appender to the default logger.
func AddAppender(appender LogAppender) {
	_defaultLogger.AddAppender(appender)
}

// Refresh flushes every appender of the default logger.
func Refresh() {
	_defaultLogger.Refresh()
}

// SetDefaultLogger replaces the logger behind the package-level functions.
func SetDefaultLogger(logger *GameLogger) {
	_defaultLogger = logger
}

// DefaultLogger returns the logger behind the package-level functions.
func DefaultLogger() *GameLogger {
	return _defaultLogger
}

// InitializeWithConfigManager loads "logger" from configManager, installs a
// logger built from it as the default and subscribes it to reloads.
func InitializeWithConfigManager(configManager config.ConfigManager) error {
	if configManager == nil {
		return nil
	}

	logCfg := &LogCfg{}
	if err := configManager.LoadConfig(ConfigName, logCfg); err != nil {
		return err
	}

	SetDefaultLogger(NewLoggerWithConfigManager(logCfg, configManager))
	return nil
}

// Initialize is InitializeWithConfigManager on the process-wide manager.
func Initialize() error {
	return InitializeWithConfigManager(config.GetInstance())
}

func Debug() *LogEvent {
	return _defaultLogger.Debug()
}

func Info() *LogEvent {
	return _defaultLogger.Info()
}

func Warn() *LogEvent {
	return _defaultLogger.Warn()
}

func Error() *LogEvent {
	return _defaultLogger.Error()
}

// Fatal events panic once written.
func Fatal() *LogEvent {
	return _defaultLogger.Fatal()
}
