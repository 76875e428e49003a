package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	jobmetrics "github.com/odyssey-erp/ppestock/internal/jobs"
	"github.com/odyssey-erp/ppestock/internal/shared"
)

// Coordinator owns the backup directory. Backup and restore runs are
// serialized; the store itself keeps snapshots from interleaving with writes.
type Coordinator struct {
	store   Store
	cfg     Config
	logger  *slog.Logger
	metrics *jobmetrics.Metrics

	runMu sync.Mutex

	mu          sync.Mutex
	slots       map[Kind]SlotStatus
	subscribers []ReplacedFunc
}

// NewCoordinator builds a Coordinator and creates the backup directory.
func NewCoordinator(store Store, cfg Config, logger *slog.Logger, metrics *jobmetrics.Metrics) (*Coordinator, error) {
	cfg = cfg.withDefaults()
	if cfg.Dir == "" {
		return nil, errors.New("backup: directory required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, shared.NewStorageError("backup: create dir", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:   store,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "backup")),
		metrics: metrics,
		slots: map[Kind]SlotStatus{
			KindManual: {State: StateIdle},
			KindAuto:   {State: StateIdle},
		},
	}, nil
}

// OnStoreReplaced subscribes fn to run after Restore closed the live store.
func (c *Coordinator) OnStoreReplaced(fn ReplacedFunc) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Status returns a copy of every slot status.
func (c *Coordinator) Status() map[Kind]SlotStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[Kind]SlotStatus, len(c.slots))
	for k, v := range c.slots {
		out[k] = v
	}
	return out
}

// ManualBackup writes a timestamp-named snapshot and prunes manual snapshots
// beyond the retention count.
func (c *Coordinator) ManualBackup(ctx context.Context) (Snapshot, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	at := c.cfg.Clock()
	snap, err := c.runSlot(ctx, KindManual, c.cfg.manualName(at))
	if err != nil {
		return Snapshot{}, err
	}
	c.prune()
	return snap, nil
}

// AutoBackup replaces the fixed automatic slot with a fresh snapshot.
func (c *Coordinator) AutoBackup(ctx context.Context) (Snapshot, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	return c.runSlot(ctx, KindAuto, c.cfg.autoName())
}

func (c *Coordinator) runSlot(ctx context.Context, kind Kind, name string) (Snapshot, error) {
	c.setSlot(kind, SlotStatus{State: StateCopying})
	tracker := c.metrics.Track("backup_" + string(kind))

	finalPath := filepath.Join(c.cfg.Dir, name)
	err := c.writeSnapshot(ctx, kind, finalPath)

	status := SlotStatus{State: StateIdle, LastRunAt: c.cfg.Clock()}
	if err != nil {
		status.LastError = err.Error()
	}
	c.setSlot(kind, status)
	if err := tracker.End(err); err != nil {
		c.logger.Error("backup failed", slog.String("kind", string(kind)), slog.Any("error", err))
		return Snapshot{}, err
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return Snapshot{}, shared.NewStorageError("backup: stat snapshot", err)
	}
	snap := c.describe(name, info)
	if kind == KindAuto {
		c.metrics.SetSnapshots(string(KindAuto), 1)
	}
	c.logger.Info("backup written", slog.String("kind", string(kind)), slog.String("id", snap.ID), slog.Int64("size", snap.Size))
	return snap, nil
}

// writeSnapshot lets the store write into a temp file and renames it into
// place, so finalPath either holds a complete snapshot or is left as it was.
func (c *Coordinator) writeSnapshot(ctx context.Context, kind Kind, finalPath string) error {
	if kind == KindManual {
		if _, err := os.Stat(finalPath); err == nil {
			return shared.NewStorageError("backup: snapshot", fmt.Errorf("%s already exists", filepath.Base(finalPath)))
		}
	}
	if c.cfg.CopyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CopyTimeout)
		defer cancel()
	}

	tmpPath := filepath.Join(c.cfg.Dir, "."+uuid.NewString()+".tmp")
	if err := c.store.Snapshot(ctx, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return shared.NewStorageError("backup: snapshot", err)
	}
	if err := syncFile(tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return shared.NewStorageError("backup: fsync", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return shared.NewStorageError("backup: rename", err)
	}
	syncDir(c.cfg.Dir)
	return nil
}

// List returns every snapshot, newest first, with the automatic slot last.
func (c *Coordinator) List(ctx context.Context) ([]Snapshot, error) {
	entries, err := os.ReadDir(c.cfg.Dir)
	if err != nil {
		return nil, shared.NewStorageError("backup: read dir", err)
	}
	var snaps []Snapshot
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, _, ok := c.cfg.parseName(entry.Name()); !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, shared.NewStorageError("backup: stat", err)
		}
		snaps = append(snaps, c.describe(entry.Name(), info))
	}
	sort.SliceStable(snaps, func(i, j int) bool {
		if snaps[i].Kind != snaps[j].Kind {
			return snaps[i].Kind == KindManual
		}
		return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
	})
	return snaps, nil
}

func (c *Coordinator) describe(name string, info os.FileInfo) Snapshot {
	kind, at, _ := c.cfg.parseName(name)
	if kind == KindAuto {
		at = info.ModTime().UTC()
	}
	return Snapshot{
		ID:        name,
		Kind:      kind,
		CreatedAt: at,
		Size:      info.Size(),
		Path:      filepath.Join(c.cfg.Dir, name),
	}
}

// prune removes the oldest manual snapshots beyond the retention count.
// Failures are logged; the snapshot just written stays valid either way.
func (c *Coordinator) prune() {
	snaps, err := c.List(context.Background())
	if err != nil {
		c.logger.Warn("prune: list snapshots", slog.Any("error", err))
		return
	}
	var manual []Snapshot
	for _, s := range snaps {
		if s.Kind == KindManual {
			manual = append(manual, s)
		}
	}
	// manual is newest first.
	for _, s := range manual[min(len(manual), c.cfg.Retention):] {
		if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("prune: remove snapshot", slog.String("id", s.ID), slog.Any("error", err))
			continue
		}
		c.logger.Info("snapshot pruned", slog.String("id", s.ID))
	}
	c.metrics.SetSnapshots(string(KindManual), min(len(manual), c.cfg.Retention))
}

func (c *Coordinator) setSlot(kind Kind, status SlotStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[kind] = status
}

func (c *Coordinator) resolve(id string) (string, error) {
	if id == "" || filepath.Base(id) != id || strings.HasPrefix(id, ".") {
		return "", shared.NewValidationError("snapshot_id", "must be a snapshot file name")
	}
	if _, _, ok := c.cfg.parseName(id); !ok {
		return "", shared.NewValidationError("snapshot_id", "is not a snapshot name")
	}
	path := filepath.Join(c.cfg.Dir, id)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", shared.NewNotFoundError("snapshot", id)
		}
		return "", shared.NewStorageError("backup: stat snapshot", err)
	}
	return path, nil
}
