package config

import (
	"fmt"
	"os"
	"strings"
)

// SnapshotDirEnv overrides paths.snapshot_dir when set.
const SnapshotDirEnv = "BEATCACHE_SNAPSHOT_DIR"

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSnapshot()
	c.normalizeLogging()
	if c.Search.Limit <= 0 {
		c.Search.Limit = defaultSearchLimit
	}
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv(SnapshotDirEnv); ok && strings.TrimSpace(value) != "" {
		c.Paths.SnapshotDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.SnapshotDir) == "" {
		c.Paths.SnapshotDir = defaultSnapshotDir
	}

	var err error
	if c.Paths.SnapshotDir, err = expandPath(strings.TrimSpace(c.Paths.SnapshotDir)); err != nil {
		return fmt.Errorf("paths.snapshot_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.JournalPath) == "" {
		c.Paths.JournalPath = defaultJournalPath
	}
	if c.Paths.JournalPath, err = expandPath(strings.TrimSpace(c.Paths.JournalPath)); err != nil {
		return fmt.Errorf("paths.journal_path: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSnapshot() {
	c.Snapshot.FilePrefix = strings.TrimSpace(c.Snapshot.FilePrefix)
	if c.Snapshot.FilePrefix == "" {
		c.Snapshot.FilePrefix = defaultSnapshotPrefix
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
