package config

const (
	defaultSnapshotDir    = "resources/cache"
	defaultSnapshotPrefix = "beatsaverCache"
	defaultJournalPath    = "~/.local/share/beatcache/journal.db"
	defaultLogDir         = "~/.local/share/beatcache/logs"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultJournalEnabled = true
	defaultSearchLimit    = 20
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SnapshotDir: defaultSnapshotDir,
			JournalPath: defaultJournalPath,
			LogDir:      defaultLogDir,
		},
		Snapshot: Snapshot{
			FilePrefix: defaultSnapshotPrefix,
		},
		Journal: Journal{
			Enabled: defaultJournalEnabled,
		},
		Search: Search{
			Limit: defaultSearchLimit,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
