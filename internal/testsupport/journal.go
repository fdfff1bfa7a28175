package testsupport

import (
	"context"
	"testing"

	"beatcache/internal/config"
	"beatcache/internal/journal"
)

// MustOpenJournal opens the config's journal for tests and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config, opts ...journal.Option) *journal.Journal {
	t.Helper()

	j, err := journal.Open(context.Background(), cfg.Paths.JournalPath, opts...)
	if err != nil {
		t.Fatalf("journal.Open failed: %v", err)
	}
	t.Cleanup(func() {
		_ = j.Close()
	})
	return j
}
