package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/odyssey-erp/ppestock/internal/backup"
)

// Coordinator is the subset of the backup coordinator the CLI drives.
type Coordinator interface {
	ManualBackup(ctx context.Context) (backup.Snapshot, error)
	List(ctx context.Context) ([]backup.Snapshot, error)
	Restore(ctx context.Context, id string) (backup.RestoreResult, error)
}

// BackupCLI wraps manual backup helpers for operators.
type BackupCLI struct {
	coord Coordinator
}

// NewBackupCLI builds the helper around coord.
func NewBackupCLI(coord Coordinator) (*BackupCLI, error) {
	if coord == nil {
		return nil, errors.New("backup cli: coordinator required")
	}
	return &BackupCLI{coord: coord}, nil
}

// OutputOptions selects output format and streams.
type OutputOptions struct {
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

func (o *OutputOptions) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// BackupCommand writes a manual snapshot.
func (c *BackupCLI) BackupCommand(ctx context.Context, opts OutputOptions) int {
	opts.defaults()
	snap, err := c.coord.ManualBackup(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "backup: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		return encode(opts, "backup", snap)
	}
	_, _ = fmt.Fprintf(opts.Stdout, "backup written: %s (%d bytes)\n", snap.ID, snap.Size)
	return 0
}

// ListCommand prints every snapshot, newest first.
func (c *BackupCLI) ListCommand(ctx context.Context, opts OutputOptions) int {
	opts.defaults()
	snaps, err := c.coord.List(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "backups: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if snaps == nil {
			snaps = []backup.Snapshot{}
		}
		return encode(opts, "backups", snaps)
	}
	if len(snaps) == 0 {
		_, _ = fmt.Fprintln(opts.Stdout, "no backups")
		return 0
	}
	tw := tabwriter.NewWriter(opts.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tKIND\tCREATED\tSIZE")
	for _, s := range snaps {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.ID, s.Kind, s.CreatedAt.Local().Format(time.DateTime), s.Size)
	}
	_ = tw.Flush()
	return 0
}

// RestoreOptions defines flags for the restore command.
type RestoreOptions struct {
	OutputOptions
	ID      string
	Confirm bool
}

// RestoreCommand replaces the store with a snapshot. Exit code 10 means the
// store was replaced but the running process has to be restarted.
func (c *BackupCLI) RestoreCommand(ctx context.Context, opts RestoreOptions) int {
	opts.defaults()
	if opts.ID == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "restore: --id is required")
		return 1
	}
	if !opts.Confirm {
		_, _ = fmt.Fprintln(opts.Stderr, "restore: current data will be replaced; pass --yes to confirm")
		return 1
	}
	result, err := c.coord.Restore(ctx, opts.ID)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "restore: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if code := encode(opts.OutputOptions, "restore", result); code != 0 {
			return code
		}
	} else {
		_, _ = fmt.Fprintf(opts.Stdout, "restored %s\n", result.Snapshot.ID)
		if result.RestartRequired {
			_, _ = fmt.Fprintln(opts.Stdout, "restart the application to load the restored data")
		}
	}
	if result.RestartRequired {
		return 10
	}
	return 0
}

func encode(opts OutputOptions, cmd string, v any) int {
	if err := json.NewEncoder(opts.Stdout).Encode(v); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "%s: encode json: %v\n", cmd, err)
		return 1
	}
	return 0
}
