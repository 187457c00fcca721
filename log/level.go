package log

import "strings"

// Level is the severity of a log event. Larger is more severe.
type Level uint32

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var _levelNames = [...]string{"trace", "debug", "info", "warn", "error", "fatal"}

func (l Level) String() string {
	if int(l) < len(_levelNames) {
		return _levelNames[l]
	}
	return "unknown"
}

// ParseLevel maps a level name to a Level, falling back to InfoLevel.
func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range _levelNames {
		if name == s {
			return Level(i)
		}
	}
	return InfoLevel
}
