package db

import (
	"context"
	"database/sql"
	"fmt"
)

// WithTx executes fn inside a transaction while holding the exclusive write lock.
func (h *Handle) WithTx(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return ErrClosed
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}
