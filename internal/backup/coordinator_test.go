package backup_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ppestock/internal/backup"
	"github.com/odyssey-erp/ppestock/internal/platform/db"
	"github.com/odyssey-erp/ppestock/internal/products"
	"github.com/odyssey-erp/ppestock/internal/shared"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	handle *db.Handle
	repo   *products.Repository
	coord  *backup.Coordinator
	dir    string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	handle, err := db.Open(context.Background(), filepath.Join(root, "data", "ppestock.db"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })

	clock := &stepClock{now: time.Date(2026, time.October, 1, 8, 0, 0, 0, time.UTC)}
	dir := filepath.Join(root, "backups")
	coord, err := backup.NewCoordinator(handle, backup.Config{
		Dir:         dir,
		CopyTimeout: time.Minute,
		Clock:       clock.Now,
	}, quietLogger(), nil)
	require.NoError(t, err)
	return fixture{handle: handle, repo: products.NewRepository(handle), coord: coord, dir: dir}
}

func (f fixture) add(t *testing.T, name string) int64 {
	t.Helper()
	id, err := f.repo.Create(context.Background(), products.Fields{Name: name, Batch: "B1", Quantity: 1})
	require.NoError(t, err)
	return id
}

func names(t *testing.T, f fixture) []string {
	t.Helper()
	list, err := f.repo.List(context.Background())
	require.NoError(t, err)
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, p.Name)
	}
	return out
}

func TestManualBackupKeepsFiveNewest(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Luva")
	ctx := context.Background()

	var made []backup.Snapshot
	for i := 0; i < 6; i++ {
		snap, err := f.coord.ManualBackup(ctx)
		require.NoError(t, err)
		require.Equal(t, backup.KindManual, snap.Kind)
		require.Positive(t, snap.Size)
		made = append(made, snap)
	}

	list, err := f.coord.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 5)
	require.Equal(t, made[5].ID, list[0].ID)
	for _, s := range list {
		require.NotEqual(t, made[0].ID, s.ID)
	}
	_, err = os.Stat(filepath.Join(f.dir, made[0].ID))
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestAutoBackupOverwritesSingleSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.coord.AutoBackup(ctx)
	require.NoError(t, err)
	f.add(t, "Capacete")
	second, err := f.coord.AutoBackup(ctx)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	list, err := f.coord.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, backup.KindAuto, list[0].Kind)

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")

	status := f.coord.Status()
	require.Equal(t, backup.StateIdle, status[backup.KindAuto].State)
	require.Empty(t, status[backup.KindAuto].LastError)
	require.False(t, status[backup.KindAuto].LastRunAt.IsZero())
}

func TestAutoAndManualDoNotPruneEachOther(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.AutoBackup(ctx)
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		_, err := f.coord.ManualBackup(ctx)
		require.NoError(t, err)
	}
	list, err := f.coord.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 6)
	require.Equal(t, backup.KindAuto, list[len(list)-1].Kind)
}

func TestRestoreReplacesLiveData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.coord.OnStoreReplaced(f.handle.Reopen)

	f.add(t, "Luva")
	snap, err := f.coord.ManualBackup(ctx)
	require.NoError(t, err)
	f.add(t, "Capacete")
	require.Equal(t, []string{"Luva", "Capacete"}, names(t, f))

	result, err := f.coord.Restore(ctx, snap.ID)
	require.NoError(t, err)
	require.False(t, result.RestartRequired)
	require.Equal(t, snap.ID, result.Snapshot.ID)
	require.Equal(t, []string{"Luva"}, names(t, f))
}

func TestRestoreWithoutSubscriberRequiresRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, "Luva")
	snap, err := f.coord.ManualBackup(ctx)
	require.NoError(t, err)

	result, err := f.coord.Restore(ctx, snap.ID)
	require.NoError(t, err)
	require.True(t, result.RestartRequired)

	_, err = f.repo.List(ctx)
	require.Error(t, err)

	require.NoError(t, f.handle.Reopen(ctx))
	require.Equal(t, []string{"Luva"}, names(t, f))
}

func TestRestoreFailingSubscriberRequiresRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.coord.OnStoreReplaced(func(context.Context) error { return errors.New("reopen failed") })

	snap, err := f.coord.ManualBackup(ctx)
	require.NoError(t, err)
	result, err := f.coord.Restore(ctx, snap.ID)
	require.NoError(t, err)
	require.True(t, result.RestartRequired)
}

func TestRestoreReopensAfterCallerCancels(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Luva")
	snap, err := f.coord.ManualBackup(context.Background())
	require.NoError(t, err)
	f.add(t, "Capacete")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.coord.OnStoreReplaced(func(context.Context) error {
		cancel()
		return nil
	})
	f.coord.OnStoreReplaced(f.handle.Reopen)

	result, err := f.coord.Restore(ctx, snap.ID)
	require.NoError(t, err)
	require.False(t, result.RestartRequired)
	require.Error(t, ctx.Err())
	require.Equal(t, []string{"Luva"}, names(t, f))
}

func TestRestoreUnknownSnapshotIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Luva")

	_, err := f.coord.Restore(context.Background(), "ppestock_backup_20200101_000000.000.db")
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, []string{"Luva"}, names(t, f))
}

func TestRestoreRejectsPathsOutsideBackupDir(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"", "../ppestock.db", "notes.txt", ".hidden.tmp"} {
		_, err := f.coord.Restore(context.Background(), id)
		require.ErrorIs(t, err, shared.ErrValidation, id)
	}
}

func TestRestoreCorruptSnapshotLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reopened := false
	f.coord.OnStoreReplaced(func(context.Context) error {
		reopened = true
		return nil
	})
	f.add(t, "Luva")

	bad := "ppestock_backup_20260101_000000.000.db"
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, bad), []byte("not a database"), 0o600))

	_, err := f.coord.Restore(ctx, bad)
	require.ErrorIs(t, err, shared.ErrStorage)
	require.ErrorIs(t, err, backup.ErrInvalidSnapshot)
	require.False(t, reopened)
	require.Equal(t, []string{"Luva"}, names(t, f))
}

func TestBackupOfClosedStoreFails(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.handle.Close())

	_, err := f.coord.ManualBackup(context.Background())
	require.ErrorIs(t, err, shared.ErrStorage)

	status := f.coord.Status()
	require.NotEmpty(t, status[backup.KindManual].LastError)
	require.Equal(t, backup.StateIdle, status[backup.KindManual].State)

	list, err := f.coord.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, list)
}
