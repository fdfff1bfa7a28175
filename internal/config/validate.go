package config

import (
	"fmt"
	"regexp"
)

var snapshotPrefixPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSnapshot(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSnapshot() error {
	if !snapshotPrefixPattern.MatchString(c.Snapshot.FilePrefix) {
		return fmt.Errorf("snapshot.file_prefix %q must contain only letters, digits, '_', '.', or '-'", c.Snapshot.FilePrefix)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be 'console' or 'json', got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}
