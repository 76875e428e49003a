// Package backup snapshots the record store file, prunes old snapshots and
// restores a chosen snapshot over the live store.
package backup

import (
	"context"
	"strings"
	"time"
)

// Kind distinguishes the fixed automatic slot from timestamped manual snapshots.
type Kind string

const (
	// KindManual snapshots are timestamp-named and retention-pruned.
	KindManual Kind = "manual"
	// KindAuto is the single fixed-name slot overwritten every cycle.
	KindAuto Kind = "auto"
)

// State is the lifecycle of one backup slot.
type State string

const (
	// StateIdle means no copy is in flight for the slot.
	StateIdle State = "IDLE"
	// StateCopying means a snapshot is being written for the slot.
	StateCopying State = "COPYING"
)

const (
	defaultPrefix    = "ppestock_backup"
	autoSuffix       = "auto"
	snapshotExt      = ".db"
	timestampLayout  = "20060102_150405.000"
	defaultRetention = 5
)

// Store is the live record store as seen by the coordinator.
type Store interface {
	Path() string
	Snapshot(ctx context.Context, dst string) error
	Replace(ctx context.Context, fn func(ctx context.Context, livePath string) error) error
}

// Snapshot describes one backup file.
type Snapshot struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
	Path      string    `json:"-"`
}

// SlotStatus reports the state of a slot and the outcome of its last run.
type SlotStatus struct {
	State     State     `json:"state"`
	LastRunAt time.Time `json:"last_run_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// RestoreResult reports the outcome of a successful restore.
type RestoreResult struct {
	Snapshot Snapshot `json:"snapshot"`
	// RestartRequired is set when no subscriber reopened the store.
	RestartRequired bool `json:"restart_required"`
}

// ReplacedFunc is invoked after Restore closed the live store.
type ReplacedFunc func(ctx context.Context) error

// Config controls naming, retention and the copy bound.
type Config struct {
	Dir         string
	Retention   int
	CopyTimeout time.Duration
	Prefix      string
	Clock       func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Retention <= 0 {
		c.Retention = defaultRetention
	}
	if c.Prefix == "" {
		c.Prefix = defaultPrefix
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

func (c Config) manualName(at time.Time) string {
	return c.Prefix + "_" + at.UTC().Format(timestampLayout) + snapshotExt
}

func (c Config) autoName() string {
	return c.Prefix + "_" + autoSuffix + snapshotExt
}

// parseName classifies a file name; ok is false for files that are not snapshots.
func (c Config) parseName(name string) (Kind, time.Time, bool) {
	if name == c.autoName() {
		return KindAuto, time.Time{}, true
	}
	stem, found := strings.CutPrefix(name, c.Prefix+"_")
	if !found {
		return "", time.Time{}, false
	}
	stem, found = strings.CutSuffix(stem, snapshotExt)
	if !found {
		return "", time.Time{}, false
	}
	at, err := time.ParseInLocation(timestampLayout, stem, time.UTC)
	if err != nil {
		return "", time.Time{}, false
	}
	return KindManual, at, true
}
