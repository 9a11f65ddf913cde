package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/rpggio/lineage/internal/config"
)

// The log file is cut back to its newest logFileKeep bytes whenever it
// grows past logFileLimit.
const (
	logFileLimit = 6 << 20
	logFileKeep  = 5 << 20
)

// newLogger builds the process logger. The stdio transport owns stdout, so
// console logs go to stderr there. A configured path replaces the console.
func newLogger(cfg config.LogConfig, stdio bool) (*slog.Logger, func()) {
	var out io.Writer = os.Stdout
	if stdio {
		out = os.Stderr
	}
	closeLog := func() {}
	if cfg.Path != "" {
		f, err := openCappedFile(cfg.Path, logFileLimit, logFileKeep)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file %s unavailable, using console: %v\n", cfg.Path, err)
		} else {
			out = f
			closeLog = func() { f.Close() }
		}
	}
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: logLevel(cfg.Level)})
	return slog.New(handler), closeLog
}

// logLevel accepts the slog level names in any case; anything else is info.
func logLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

type cappedFile struct {
	mu    sync.Mutex
	f     *os.File
	size  int64
	limit int64
	keep  int64
}

func openCappedFile(path string, limit, keep int64) (*cappedFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	c := &cappedFile{f: f, size: info.Size(), limit: limit, keep: min(keep, limit)}
	if err := c.trim(); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

func (c *cappedFile) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.f.WriteAt(p, c.size)
	c.size += int64(n)
	if err != nil {
		return n, err
	}
	return n, c.trim()
}

// trim moves the newest keep bytes to the start of the file.
func (c *cappedFile) trim() error {
	if c.size <= c.limit {
		return nil
	}
	tail := make([]byte, c.keep)
	n, err := c.f.ReadAt(tail, c.size-c.keep)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if _, err := c.f.WriteAt(tail[:n], 0); err != nil {
		return err
	}
	if err := c.f.Truncate(int64(n)); err != nil {
		return err
	}
	c.size = int64(n)
	return nil
}

func (c *cappedFile) Close() error {
	return c.f.Close()
}
