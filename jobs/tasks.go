package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/odyssey-erp/ppestock/internal/backup"
	"github.com/odyssey-erp/ppestock/internal/calendar"
)

const (
	// JobAutoBackup refreshes the automatic backup slot.
	JobAutoBackup = "backup:auto"
	// JobNearExpiryDigest mails the products close to expiring.
	JobNearExpiryDigest = "notify:near_expiry"
)

// AutoBackuper writes the automatic snapshot.
type AutoBackuper interface {
	AutoBackup(ctx context.Context) (backup.Snapshot, error)
}

// AutoBackupJob runs the automatic backup on every tick.
type AutoBackupJob struct {
	Backups AutoBackuper
	Logger  *slog.Logger
}

// NewAutoBackupJob wires dependencies for the automatic backup job.
func NewAutoBackupJob(backups AutoBackuper, logger *slog.Logger) *AutoBackupJob {
	return &AutoBackupJob{Backups: backups, Logger: logger}
}

// Run writes the automatic snapshot. Failures leave the previous slot in place.
func (j *AutoBackupJob) Run(ctx context.Context) error {
	if j == nil || j.Backups == nil {
		return errors.New("auto backup: handler not configured")
	}
	_, err := j.Backups.AutoBackup(ctx)
	return err
}

// DigestSender mails the near-expiry digest for a day.
type DigestSender interface {
	Send(ctx context.Context, today calendar.Date) (int, error)
}

// NearExpiryJob mails the digest for the current local date.
type NearExpiryJob struct {
	Digest DigestSender
	Logger *slog.Logger
	today  func() calendar.Date
}

// NewNearExpiryJob wires dependencies for the digest job.
func NewNearExpiryJob(digest DigestSender, logger *slog.Logger) *NearExpiryJob {
	return &NearExpiryJob{Digest: digest, Logger: logger, today: calendar.Today}
}

// Run sends the digest.
func (j *NearExpiryJob) Run(ctx context.Context) error {
	if j == nil || j.Digest == nil {
		return errors.New("near expiry: handler not configured")
	}
	today := calendar.Today
	if j.today != nil {
		today = j.today
	}
	n, err := j.Digest.Send(ctx, today())
	if err != nil {
		return err
	}
	if j.Logger != nil && n > 0 {
		j.Logger.Info("near expiry digest", slog.Int("products", n))
	}
	return nil
}
