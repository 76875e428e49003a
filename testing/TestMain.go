// Package testing switches the process into test mode when imported by a
// test binary and keeps the default store paths away from the working tree.
package testing

import (
	"os"
	"path/filepath"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("PPESTOCK_TEST_MODE", "1")
		if os.Getenv("STORE_PATH") == "" || os.Getenv("BACKUP_DIR") == "" {
			dir, err := os.MkdirTemp("", "ppestock-test-")
			if err != nil {
				return
			}
			if os.Getenv("STORE_PATH") == "" {
				_ = os.Setenv("STORE_PATH", filepath.Join(dir, "ppestock.db"))
			}
			if os.Getenv("BACKUP_DIR") == "" {
				_ = os.Setenv("BACKUP_DIR", filepath.Join(dir, "backups"))
			}
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
