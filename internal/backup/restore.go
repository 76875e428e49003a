package backup

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ppestock/internal/shared"
)

var sqliteHeader = []byte("SQLite format 3\x00")

var (
	// ErrInvalidSnapshot marks a snapshot file that is not a SQLite database.
	ErrInvalidSnapshot = errors.New("backup: snapshot is not a store file")
	// ErrCopyMismatch marks a staged copy whose bytes differ from the snapshot read.
	ErrCopyMismatch = errors.New("backup: staged copy does not match snapshot")
)

// Restore replaces the live store with the snapshot named id. The live file
// is untouched unless the snapshot was verified and fully staged beside it.
func (c *Coordinator) Restore(ctx context.Context, id string) (RestoreResult, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	tracker := c.metrics.Track("backup_restore")
	result, err := c.restore(ctx, id)
	if err := tracker.End(err); err != nil {
		c.logger.Error("restore failed", slog.String("id", id), slog.Any("error", err))
		return RestoreResult{}, err
	}
	c.logger.Info("restore complete", slog.String("id", id), slog.Bool("restart_required", result.RestartRequired))
	return result, nil
}

func (c *Coordinator) restore(ctx context.Context, id string) (RestoreResult, error) {
	src, err := c.resolve(id)
	if err != nil {
		return RestoreResult{}, err
	}
	if err := verifyHeader(src); err != nil {
		return RestoreResult{}, err
	}
	info, err := os.Stat(src)
	if err != nil {
		return RestoreResult{}, shared.NewStorageError("backup: stat snapshot", err)
	}
	snap := c.describe(id, info)

	copyCtx := ctx
	if c.cfg.CopyTimeout > 0 {
		var cancel context.CancelFunc
		copyCtx, cancel = context.WithTimeout(ctx, c.cfg.CopyTimeout)
		defer cancel()
	}

	livePath := c.store.Path()
	staged := filepath.Join(filepath.Dir(livePath), "."+uuid.NewString()+".restore")
	sum, err := copyFile(copyCtx, src, staged)
	if err != nil {
		_ = os.Remove(staged)
		return RestoreResult{}, shared.NewStorageError("backup: stage restore", err)
	}
	if err := verifyCopy(staged, sum); err != nil {
		_ = os.Remove(staged)
		return RestoreResult{}, shared.NewStorageError("backup: verify staged restore", err)
	}
	c.logger.Debug("restore staged", slog.String("id", id), slog.String("sha256", sum))

	closed := false
	err = c.store.Replace(ctx, func(_ context.Context, live string) error {
		closed = true
		for _, suffix := range []string{"-journal", "-wal", "-shm"} {
			if err := os.Remove(live + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}
		if err := os.Rename(staged, live); err != nil {
			return err
		}
		syncDir(filepath.Dir(live))
		return nil
	})
	_ = os.Remove(staged)

	// the store is already swapped; a disconnecting caller must not keep it closed
	restart := c.notifyReplaced(context.WithoutCancel(ctx), closed)
	if err != nil {
		return RestoreResult{}, shared.NewStorageError("backup: replace store", err)
	}
	return RestoreResult{Snapshot: snap, RestartRequired: restart}, nil
}

// notifyReplaced runs subscribers when the live store was closed and reports
// whether the process still has to restart to use the store.
func (c *Coordinator) notifyReplaced(ctx context.Context, closed bool) bool {
	if !closed {
		return false
	}
	c.mu.Lock()
	subs := append([]ReplacedFunc(nil), c.subscribers...)
	c.mu.Unlock()
	if len(subs) == 0 {
		return true
	}
	restart := false
	for _, fn := range subs {
		if err := fn(ctx); err != nil {
			c.logger.Error("store replaced subscriber", slog.Any("error", err))
			restart = true
		}
	}
	return restart
}

func verifyHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return shared.NewStorageError("backup: open snapshot", err)
	}
	defer f.Close()
	buf := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(f, buf); err != nil || !bytes.Equal(buf, sqliteHeader) {
		return shared.NewStorageError("backup: verify snapshot", fmt.Errorf("%w: %s", ErrInvalidSnapshot, filepath.Base(path)))
	}
	return nil
}

// copyFile copies src to dst, fsyncs dst and returns the SHA-256 of the bytes read from src.
func copyFile(ctx context.Context, src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", err
	}
	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, hash), ctxReader{ctx: ctx, r: in}); err != nil {
		_ = out.Close()
		return "", err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// verifyCopy re-reads path from disk and compares its SHA-256 with want.
func verifyCopy(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return err
	}
	if got := hex.EncodeToString(hash.Sum(nil)); got != want {
		return fmt.Errorf("%w: sha256 %s, want %s", ErrCopyMismatch, got, want)
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// syncDir flushes directory entries after a rename. Some platforms cannot
// fsync a directory; that is ignored.
func syncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = f.Sync()
	_ = f.Close()
}
