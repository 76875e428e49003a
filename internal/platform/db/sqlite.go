package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrClosed is returned while the store file is closed for replacement.
var ErrClosed = errors.New("platform/db: store closed")

// Handle owns the single connection to the SQLite store file. Writers and
// snapshots hold the exclusive lock so they never interleave on the file.
type Handle struct {
	mu     sync.RWMutex
	path   string
	db     *sql.DB
	logger *slog.Logger
}

// Open migrates and opens the store at path, creating parent directories.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("platform/db: resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return nil, fmt.Errorf("platform/db: create dir: %w", err)
	}
	h := &Handle{path: abs, logger: logger.With(slog.String("component", "store"))}
	if err := h.open(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handle) open(ctx context.Context) error {
	if err := Migrate(h.path, h.logger); err != nil {
		return err
	}
	conn, err := sql.Open("sqlite", dsn(h.path))
	if err != nil {
		return fmt.Errorf("platform/db: open: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return fmt.Errorf("platform/db: ping: %w", err)
	}
	h.db = conn
	h.logger.Info("store opened", slog.String("path", h.path))
	return nil
}

func dsn(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(DELETE)&_pragma=foreign_keys(1)"
}

// Path returns the absolute path of the live store file.
func (h *Handle) Path() string {
	return h.path
}

// View runs fn with shared access to the store.
func (h *Handle) View(ctx context.Context, fn func(context.Context, *sql.DB) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return ErrClosed
	}
	return fn(ctx, h.db)
}

// Ping reports whether the store is open and answering.
func (h *Handle) Ping(ctx context.Context) error {
	return h.View(ctx, func(ctx context.Context, conn *sql.DB) error {
		return conn.PingContext(ctx)
	})
}

// Snapshot writes a consistent copy of the store to dst, which must not exist.
func (h *Handle) Snapshot(ctx context.Context, dst string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return ErrClosed
	}
	if _, err := h.db.ExecContext(ctx, "VACUUM INTO ?", dst); err != nil {
		return fmt.Errorf("platform/db: vacuum into: %w", err)
	}
	return nil
}

// Replace closes the store and runs fn with the live path while holding the
// exclusive lock. The handle stays closed until Reopen.
func (h *Handle) Replace(ctx context.Context, fn func(ctx context.Context, livePath string) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db != nil {
		if err := h.db.Close(); err != nil {
			return fmt.Errorf("platform/db: close before replace: %w", err)
		}
		h.db = nil
		h.logger.Info("store closed for replacement")
	}
	return fn(ctx, h.path)
}

// Reopen closes any open connection and opens the store file again.
func (h *Handle) Reopen(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db != nil {
		if err := h.db.Close(); err != nil {
			h.logger.Warn("close before reopen", slog.Any("error", err))
		}
		h.db = nil
	}
	return h.open(ctx)
}

// Close releases the connection.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}
