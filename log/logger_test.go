package log

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memAppender struct {
	mu    sync.Mutex
	lines []string
}

func (m *memAppender) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, string(p))
	return len(p), nil
}

func (m *memAppender) Refresh() {}

func (m *memAppender) decoded(t *testing.T) []map[string]any {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]any, 0, len(m.lines))
	for _, l := range m.lines {
		require.True(t, strings.HasSuffix(l, "\n"), "line %q has no newline", l)
		var v map[string]any
		require.NoError(t, json.Unmarshal([]byte(l), &v), "line %q", l)
		out = append(out, v)
	}
	return out
}

func newMemLogger(level Level) (*GameLogger, *memAppender) {
	logger := NewLogger(&LogCfg{LogLevel: level, CallerSkip: 1})
	mem := &memAppender{}
	logger.AddAppender(mem)
	return logger, mem
}

func TestConsoleAppenderWrite(t *testing.T) {
	ca := NewConsoleAppender()
	msg := []byte("console appender\n")
	n, err := ca.Write(msg)
	if err != nil {
		t.Fatalf("ConsoleAppender.Write returned error: %v", err)
	}
	if n != len(msg) {
		t.Fatalf("ConsoleAppender.Write wrote %d bytes, want %d", n, len(msg))
	}
}

func TestEventFields(t *testing.T) {
	logger, mem := newMemLogger(DebugLevel)

	logger.Info().
		Str("addr", "127.0.0.1:7000").
		Int("loops", 4).
		Int32("i32", -3).
		Int64("id", 1<<40).
		Uint16("serial", 65535).
		Uint32("cmd", 3280140517).
		Uint64("conn", 9).
		Bool("primary", true).
		Float64("ratio", 0.5).
		Hex("raw", []byte{0xde, 0xad}).
		Err(errors.New("boom")).
		Msg("quote \" and\nnewline")

	lines := mem.decoded(t)
	require.Len(t, lines, 1)
	l := lines[0]
	assert.Equal(t, "info", l["level"])
	assert.Equal(t, "127.0.0.1:7000", l["addr"])
	assert.EqualValues(t, 4, l["loops"])
	assert.EqualValues(t, -3, l["i32"])
	assert.EqualValues(t, 1<<40, l["id"])
	assert.EqualValues(t, 65535, l["serial"])
	assert.EqualValues(t, 3280140517, l["cmd"])
	assert.EqualValues(t, 9, l["conn"])
	assert.Equal(t, true, l["primary"])
	assert.EqualValues(t, 0.5, l["ratio"])
	assert.Equal(t, "dead", l["raw"])
	assert.Equal(t, "boom", l["error"])
	assert.Equal(t, "quote \" and\nnewline", l["msg"])
	assert.Contains(t, l, "time")
}

type pair struct{ a, b int }

func (p pair) MarshalLogObject(e *LogEvent) {
	e.Int("a", p.a).Int("b", p.b)
}

func TestEventObjectAndEnd(t *testing.T) {
	logger, mem := newMemLogger(DebugLevel)

	logger.Warn().Object("pair", pair{1, 2}).Err(nil).End()

	lines := mem.decoded(t)
	require.Len(t, lines, 1)
	assert.Equal(t, map[string]any{"a": 1.0, "b": 2.0}, lines[0]["pair"])
	assert.NotContains(t, lines[0], "error")
	assert.NotContains(t, lines[0], "msg")
}

func TestLevelFiltering(t *testing.T) {
	logger, mem := newMemLogger(WarnLevel)

	assert.Nil(t, logger.Debug())
	assert.Nil(t, logger.Info())
	// a filtered event chains without panicking
	logger.Info().Str("k", "v").Int("n", 1).Msg("dropped")

	logger.Warn().Msg("kept")
	logger.Error().Msg("kept too")
	assert.Len(t, mem.decoded(t), 2)
}

func TestFatalPanics(t *testing.T) {
	logger, mem := newMemLogger(InfoLevel)
	assert.Panics(t, func() { logger.Fatal().Msg("bye") })
	require.Len(t, mem.decoded(t), 1)
}

func TestLevelChangeOverride(t *testing.T) {
	logger, mem := newMemLogger(ErrorLevel)
	logger.callerSkip.Store(0)

	_, file, line, ok := runtime.Caller(0)
	require.True(t, ok)
	file = filepath.Base(filepath.Dir(file)) + "/" + filepath.Base(file)
	logger.levelChange.Store(newLevelChange([]LevelChangeEntry{
		{File: file, Line: line + 7, Level: ErrorLevel},
	}))

	logger.Info().Msg("promoted")
	logger.Info().Msg("not promoted")

	lines := mem.decoded(t)
	require.Len(t, lines, 1)
	assert.Equal(t, "promoted", lines[0]["msg"])
	assert.Equal(t, "error", lines[0]["level"])
}

func TestOnConfigChanged(t *testing.T) {
	logger, mem := newMemLogger(ErrorLevel)
	logger.Info().Msg("before")

	newCfg := &LogCfg{LogLevel: DebugLevel, CallerSkip: 1}
	require.NoError(t, newCfg.Validate())
	require.NoError(t, logger.OnConfigChanged("other", newCfg, nil))
	logger.Info().Msg("still filtered")

	require.NoError(t, logger.OnConfigChanged(ConfigName, newCfg, nil))
	logger.Info().Msg("after")

	lines := mem.decoded(t)
	require.Len(t, lines, 1)
	assert.Equal(t, "after", lines[0]["msg"])
	assert.Same(t, newCfg, logger.GetCurrentConfig())
}

func TestLogCfgValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  LogCfg
		ok   bool
	}{
		{"defaults", *getDefaultCfg(), true},
		{"bad level", LogCfg{LogLevel: 9}, false},
		{"file without path", LogCfg{FileAppender: true}, false},
		{"bad split hour", LogCfg{FileSplitHour: 24}, false},
		{"negative split size", LogCfg{FileSplitMB: -1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, TraceLevel, ParseLevel("trace"))
	assert.Equal(t, InfoLevel, ParseLevel("nonsense"))
	assert.Equal(t, "unknown", Level(42).String())
}

func TestSessionLogger(t *testing.T) {
	logger, mem := newMemLogger(InfoLevel)
	sl := NewSessionLoggerWith(logger, "logic", 7)

	sl.Info().Msg("connected")
	sl.SetID(42)
	sl.Warn().Str("reason", "bad password").Msg("login rejected")
	sl.Debug().Msg("filtered")

	lines := mem.decoded(t)
	require.Len(t, lines, 2)
	assert.Equal(t, "logic", lines[0]["session"])
	assert.EqualValues(t, 7, lines[0]["conn"])
	assert.NotContains(t, lines[0], "id")
	assert.EqualValues(t, 42, lines[1]["id"])
	assert.Equal(t, "bad password", lines[1]["reason"])
}

func TestSessionLoggerWhiteList(t *testing.T) {
	cfg := &LogCfg{LogLevel: ErrorLevel, CallerSkip: 1, SessionWhiteList: []int64{42}}
	require.NoError(t, cfg.Validate())
	logger := NewLogger(cfg)
	mem := &memAppender{}
	logger.AddAppender(mem)

	listed := NewSessionLoggerWith(logger, "client", 1)
	other := NewSessionLoggerWith(logger, "client", 2)
	listed.SetID(42)
	other.SetID(43)

	listed.Debug().Msg("whitelisted")
	other.Debug().Msg("filtered")

	lines := mem.decoded(t)
	require.Len(t, lines, 1)
	assert.Equal(t, "whitelisted", lines[0]["msg"])
	assert.Equal(t, "debug", lines[0]["level"])
}

func TestFileAppenderSync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "gatesvr.log")
	fa := NewFileAppender(&LogCfg{LogPath: path})
	t.Cleanup(func() { _ = fa.Close() })

	_, err := fa.Write([]byte("one\n"))
	require.NoError(t, err)
	_, err = fa.Write([]byte("two\n"))
	require.NoError(t, err)
	fa.Refresh()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestFileAppenderAsyncRefresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatesvr.log")
	fa := NewFileAppender(&LogCfg{LogPath: path, IsAsync: true, AsyncCacheSize: 4, AsyncWriteMillSec: 60000})
	t.Cleanup(func() { _ = fa.Close() })

	buf := []byte("queued\n")
	_, err := fa.Write(buf)
	require.NoError(t, err)
	// the appender must not retain the caller's buffer
	copy(buf, "XXXXXX\n")

	fa.Refresh()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "queued\n", string(data))
}

func TestFileAppenderSizeRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gatesvr.log")
	fa := NewFileAppender(&LogCfg{LogPath: path})
	t.Cleanup(func() { _ = fa.Close() })

	fa.mu.Lock()
	fa.splitSize = 4
	fa.mu.Unlock()

	for _, s := range []string{"aaaaaaaa\n", "bbbb\n", "cccc\n"} {
		_, err := fa.Write([]byte(s))
		require.NoError(t, err)
	}
	fa.Refresh()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "cccc\n", string(data))
}

func TestFileAppenderDailyRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gatesvr.log")
	now := time.Date(2024, 5, 1, 3, 30, 0, 0, time.Local)
	fa := &FileAppender{path: path, splitHour: 4, now: func() time.Time { return now }}
	t.Cleanup(func() { _ = fa.Close() })

	_, err := fa.Write([]byte("before\n"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 4, 0, 0, 0, time.Local), fa.nextRoll)

	now = now.Add(time.Hour)
	_, err = fa.Write([]byte("after\n"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 2, 4, 0, 0, 0, time.Local), fa.nextRoll)

	rotated, err := os.ReadFile(path + ".20240501-043000")
	require.NoError(t, err)
	assert.Equal(t, "before\n", string(rotated))

	require.NoError(t, fa.OnConfigChanged(ConfigName, &LogCfg{FileSplitHour: 6, FileSplitMB: 1}, nil))
	assert.Equal(t, time.Date(2024, 5, 1, 6, 0, 0, 0, time.Local), fa.nextRoll)
	assert.EqualValues(t, _mb, fa.splitSize)
}
