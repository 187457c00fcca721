package log

import "strconv"

// LevelChangeEntry overrides the effective level of the log call at File:Line.
type LevelChangeEntry struct {
	File  string `mapstructure:"file"`
	Line  int    `mapstructure:"line"`
	Level Level  `mapstructure:"level"`
}

type levelChange struct {
	levels map[string]Level
}

func newLevelChange(entries []LevelChangeEntry) *levelChange {
	lc := &levelChange{levels: make(map[string]Level, len(entries))}
	for _, e := range entries {
		lc.levels[e.File+":"+strconv.Itoa(e.Line)] = e.Level
	}
	return lc
}

// Empty reports whether no override is configured.
func (lc *levelChange) Empty() bool {
	return lc == nil || len(lc.levels) == 0
}

// GetLevel returns the override for file:line, or def when there is none.
func (lc *levelChange) GetLevel(file string, line int, def Level) Level {
	if lc.Empty() {
		return def
	}
	if lv, ok := lc.levels[file+":"+strconv.Itoa(line)]; ok {
		return lv
	}
	return def
}
