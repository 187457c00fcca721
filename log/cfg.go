package log

import (
	"fmt"
)

// ConfigName is the config file name ("logger.yaml") the logger loads from.
const ConfigName = "logger"

// LogCfg configures GameLogger and its appenders. LogLevel, CallerSkip,
// LevelChange, FileSplitMB and FileSplitHour are hot-reloadable.
type LogCfg struct {
	// LogPath is the file written by the file appender. Its directory is
	// created on open.
	LogPath string `mapstructure:"path"`

	// LogLevel is the numeric minimum level (0 trace ... 5 fatal).
	LogLevel Level `mapstructure:"level"`

	// FileSplitMB rotates the file once it grows past this size. 0 disables
	// size rotation.
	FileSplitMB int `mapstructure:"splitmb"`

	// FileSplitHour is the hour of day (0-23) of the daily rotation.
	FileSplitHour int `mapstructure:"splithour"`

	// IsAsync hands writes to a background goroutine.
	IsAsync bool `mapstructure:"isasync"`

	// AsyncCacheSize bounds the pending writes in async mode. When full the
	// write falls back to synchronous.
	AsyncCacheSize int `mapstructure:"asynccachesize"`

	// AsyncWriteMillSec is the async flush interval.
	AsyncWriteMillSec int `mapstructure:"asyncwritemillsec"`

	CallerSkip int `mapstructure:"callerSkip"`

	FileAppender    bool `mapstructure:"fileAppender"`
	ConsoleAppender bool `mapstructure:"consoleAppender"`

	// LevelChange overrides the level of individual log call sites.
	LevelChange []LevelChangeEntry `mapstructure:"levelChange"`

	// SessionWhiteList lists logic server ids and client runtime ids whose
	// session loggers bypass level filtering.
	SessionWhiteList []int64 `mapstructure:"sessionWhiteList"`

	sessionWhiteListSet map[int64]struct{} `mapstructure:"-"`

	EnabledCallerInfo bool `mapstructure:"enabledCallerInfo"`
}

func (cfg *LogCfg) GetName() string {
	return ConfigName
}

func (cfg *LogCfg) Validate() error {
	if cfg.LogLevel > FatalLevel {
		return fmt.Errorf("invalid log level %d", cfg.LogLevel)
	}
	if cfg.FileAppender && cfg.LogPath == "" {
		return fmt.Errorf("path is required when fileAppender is on")
	}
	if cfg.FileSplitMB < 0 {
		return fmt.Errorf("splitmb cannot be negative")
	}
	if cfg.FileSplitHour < 0 || cfg.FileSplitHour > 23 {
		return fmt.Errorf("splithour must be in [0,23]")
	}
	if cfg.IsAsync && cfg.AsyncCacheSize < 0 {
		return fmt.Errorf("asynccachesize cannot be negative")
	}
	cfg.buildWhiteList()
	return nil
}

func (cfg *LogCfg) buildWhiteList() {
	cfg.sessionWhiteListSet = make(map[int64]struct{}, len(cfg.SessionWhiteList))
	for _, id := range cfg.SessionWhiteList {
		cfg.sessionWhiteListSet[id] = struct{}{}
	}
}

// IsInWhiteList reports whether id is listed in SessionWhiteList. The set is
// built by Validate, which the config manager runs on every load.
func (cfg *LogCfg) IsInWhiteList(id int64) bool {
	if cfg == nil {
		return false
	}
	_, exists := cfg.sessionWhiteListSet[id]
	return exists
}

var _defaultCfg = &LogCfg{
	LogPath:           "./log/gatesvr.log",
	LogLevel:          DebugLevel,
	FileSplitMB:       50,
	FileSplitHour:     0,
	IsAsync:           true,
	AsyncCacheSize:    1024,
	AsyncWriteMillSec: 200,
	CallerSkip:        1,
	FileAppender:      true,
	ConsoleAppender:   true,
}

func getDefaultCfg() *LogCfg {
	return _defaultCfg
}
