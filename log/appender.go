package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lcx/gatesvr/config"
)

// LogAppender is an output for finished events. Write must not retain p.
type LogAppender interface {
	Write(p []byte) (int, error)
	Refresh()
}

// ConsoleAppender writes events to stdout.
type ConsoleAppender struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleAppender() *ConsoleAppender {
	return &ConsoleAppender{w: os.Stdout}
}

func (c *ConsoleAppender) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.Write(p)
}

func (c *ConsoleAppender) Refresh() {}

const _mb = 1 << 20

// FileAppender writes events to LogCfg.LogPath, rotating it daily at
// FileSplitHour and whenever it grows past FileSplitMB. Rotated files are
// renamed to <path>.<yyyymmdd-hhmmss>.
//
// In async mode writes are copied into a bounded queue drained by a
// background goroutine every AsyncWriteMillSec; a full queue falls back to
// a synchronous write.
type FileAppender struct {
	mu        sync.Mutex
	path      string
	splitSize int64
	splitHour int
	file      *os.File
	size      int64
	nextRoll  time.Time
	now       func() time.Time

	queue chan []byte
	stop  chan struct{}
	done  chan struct{}
}

// NewFileAppender opens cfg.LogPath. Open errors are reported on stderr and
// retried on the next write.
func NewFileAppender(cfg *LogCfg) *FileAppender {
	f := &FileAppender{
		path:      cfg.LogPath,
		splitSize: int64(cfg.FileSplitMB) * _mb,
		splitHour: cfg.FileSplitHour,
		now:       time.Now,
	}

	f.mu.Lock()
	if err := f.open(); err != nil {
		fmt.Fprintf(os.Stderr, "log: open %s failed: %v\n", f.path, err)
	}
	f.mu.Unlock()

	if cfg.IsAsync {
		size := cfg.AsyncCacheSize
		if size <= 0 {
			size = 1024
		}
		interval := time.Duration(cfg.AsyncWriteMillSec) * time.Millisecond
		if interval <= 0 {
			interval = 200 * time.Millisecond
		}
		f.queue = make(chan []byte, size)
		f.stop = make(chan struct{})
		f.done = make(chan struct{})
		go f.asyncLoop(interval)
	}
	return f
}

func (f *FileAppender) Write(p []byte) (int, error) {
	if f.queue != nil {
		select {
		case f.queue <- append([]byte(nil), p...):
			return len(p), nil
		default:
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeLocked(p)
}

// Refresh flushes queued async writes and syncs the file.
func (f *FileAppender) Refresh() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drainLocked()
	if f.file != nil {
		_ = f.file.Sync()
	}
}

// Close flushes and closes the file.
func (f *FileAppender) Close() error {
	if f.stop != nil {
		close(f.stop)
		<-f.done
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drainLocked()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

// OnConfigChanged picks up new rotation thresholds. The path and async mode
// are fixed for the appender's lifetime.
func (f *FileAppender) OnConfigChanged(configName string, newConfig, _ config.Config) error {
	if configName != ConfigName {
		return nil
	}
	cfg, ok := newConfig.(*LogCfg)
	if !ok {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.splitSize = int64(cfg.FileSplitMB) * _mb
	if f.splitHour != cfg.FileSplitHour {
		f.splitHour = cfg.FileSplitHour
		f.nextRoll = f.nextRollAfter(f.now())
	}
	return nil
}

func (f *FileAppender) asyncLoop(interval time.Duration) {
	defer close(f.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-f.stop:
			return
		case <-ticker.C:
			f.mu.Lock()
			f.drainLocked()
			f.mu.Unlock()
		}
	}
}

func (f *FileAppender) drainLocked() {
	if f.queue == nil {
		return
	}
	for {
		select {
		case p := <-f.queue:
			_, _ = f.writeLocked(p)
		default:
			return
		}
	}
}

func (f *FileAppender) writeLocked(p []byte) (int, error) {
	now := f.now()
	if f.file != nil && f.needRotate(now) {
		f.rotate(now)
	}
	if f.file == nil {
		if err := f.open(); err != nil {
			return 0, err
		}
	}
	n, err := f.file.Write(p)
	f.size += int64(n)
	return n, err
}

func (f *FileAppender) needRotate(now time.Time) bool {
	if f.splitSize > 0 && f.size >= f.splitSize {
		return true
	}
	return !now.Before(f.nextRoll)
}

func (f *FileAppender) rotate(now time.Time) {
	_ = f.file.Close()
	f.file = nil

	rotated := f.path + "." + now.Format("20060102-150405")
	for i := 1; ; i++ {
		if _, err := os.Stat(rotated); os.IsNotExist(err) {
			break
		}
		rotated = fmt.Sprintf("%s.%s.%d", f.path, now.Format("20060102-150405"), i)
	}
	if err := os.Rename(f.path, rotated); err != nil {
		fmt.Fprintf(os.Stderr, "log: rotate %s failed: %v\n", f.path, err)
	}
}

func (f *FileAppender) open() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	st, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}
	f.file = file
	f.size = st.Size()
	f.nextRoll = f.nextRollAfter(f.now())
	return nil
}

func (f *FileAppender) nextRollAfter(now time.Time) time.Time {
	roll := time.Date(now.Year(), now.Month(), now.Day(), f.splitHour, 0, 0, 0, now.Location())
	if !roll.After(now) {
		roll = roll.AddDate(0, 0, 1)
	}
	return roll
}
