package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"beatcache/internal/beatmap"
	"beatcache/internal/beatmapcache"
	"beatcache/internal/config"
	"beatcache/internal/journal"
	"beatcache/internal/logging"
)

// Library owns the cache and its persistence collaborators.
type Library struct {
	cfg      *config.Config
	logger   *slog.Logger
	cache    *beatmapcache.Cache
	loader   *beatmapcache.Loader
	journal  *journal.Journal
	loaded   beatmapcache.LoadSummary
	replayed int
}

// Stats summarizes the cache and its sources.
type Stats struct {
	Cache    beatmapcache.Stats       `json:"cache"`
	Snapshot beatmapcache.LoadSummary `json:"snapshot"`
	Journal  *journal.Counts          `json:"journal,omitempty"`
	Replayed int                      `json:"replayed"`
}

// Option customizes Open.
type Option func(*openOptions)

type openOptions struct {
	sessionID string
}

// WithSessionID tags journal rows written by this process.
func WithSessionID(id string) Option {
	return func(o *openOptions) {
		o.sessionID = id
	}
}

// Open builds the cache, loads snapshots, and replays the journal when enabled.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Library, error) {
	if cfg == nil {
		return nil, errors.New("open library: config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var options openOptions
	for _, opt := range opts {
		opt(&options)
	}

	store := beatmapcache.NewMemoryStore()
	lib := &Library{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "library"),
		cache:  beatmapcache.New(store, beatmapcache.WithLogger(logger)),
		loader: beatmapcache.NewLoader(store, cfg.Paths.SnapshotDir,
			beatmapcache.WithFilePrefix(cfg.Snapshot.FilePrefix),
			beatmapcache.WithLoaderLogger(logger)),
	}

	summary, err := lib.loader.Load()
	lib.loaded = summary
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}

	if cfg.Journal.Enabled {
		j, err := journal.Open(ctx, cfg.Paths.JournalPath,
			journal.WithLogger(logger),
			journal.WithSessionID(options.sessionID))
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		replayed, err := j.Replay(ctx, lib.cache)
		if err != nil {
			_ = j.Close()
			return nil, fmt.Errorf("replay journal: %w", err)
		}
		lib.journal = j
		lib.replayed = replayed
	}

	lib.logger.Debug("library ready",
		logging.Int("snapshot_files", summary.Files),
		logging.Int("snapshot_records", summary.Records),
		logging.Int("replayed", lib.replayed),
		logging.Bool("journal", lib.journal != nil))
	return lib, nil
}

// Close releases the journal.
func (l *Library) Close() error {
	if l == nil || l.journal == nil {
		return nil
	}
	err := l.journal.Close()
	l.journal = nil
	return err
}

// JournalEnabled reports whether writes are persisted to a journal.
func (l *Library) JournalEnabled() bool {
	return l != nil && l.journal != nil
}

// Cache exposes the underlying cache for read-only callers.
func (l *Library) Cache() *beatmapcache.Cache {
	return l.cache
}

// Lookup returns the cached result for key.
func (l *Library) Lookup(key beatmap.Key) (beatmap.Record, bool, error) {
	return l.cache.Get(key)
}

// Record persists a batch of fetch results and applies it to the cache.
// Failed lookups for keys that already resolve, before or within the batch,
// are not persisted.
func (l *Library) Record(ctx context.Context, entries []beatmapcache.BulkEntry) error {
	if l.journal != nil {
		resolved := make(map[string]bool)
		for _, entry := range entries {
			if rec, ok := beatmap.AsValid(entry.Record); ok {
				meta := beatmap.NormalizeMetadata(rec.Metadata)
				resolved[beatmap.HashKey(meta.Hash).Encode()] = true
				if meta.Key != "" {
					resolved[beatmap.ExternalKey(meta.Key).Encode()] = true
				}
			}
		}
		for _, entry := range entries {
			if err := l.persist(ctx, entry, resolved); err != nil {
				return err
			}
		}
	}
	l.cache.BulkUpsert(entries)
	return nil
}

func (l *Library) persist(ctx context.Context, entry beatmapcache.BulkEntry, resolved map[string]bool) error {
	if rec, ok := beatmap.AsValid(entry.Record); ok && beatmap.Normalize(rec.Metadata.Hash) != "" {
		if err := l.journal.RecordValid(ctx, rec); err != nil {
			return fmt.Errorf("journal %s: %w", entry.Key, err)
		}
		return nil
	}
	if resolved[entry.Key.Encode()] || l.resolves(entry.Key) {
		return nil
	}
	if err := l.journal.RecordInvalid(ctx, entry.Key); err != nil {
		return fmt.Errorf("journal %s: %w", entry.Key, err)
	}
	return nil
}

func (l *Library) resolves(key beatmap.Key) bool {
	rec, ok, err := l.cache.Get(key)
	return err == nil && ok && rec.Resolution().Valid
}

// MarkFailed caches a failed lookup of key. It reports false when key already
// resolves to a valid record, in which case nothing is written.
func (l *Library) MarkFailed(ctx context.Context, key beatmap.Key) (bool, error) {
	if !key.Valid() {
		return false, fmt.Errorf("mark failed: %w", beatmapcache.ErrUnsupportedKeyKind)
	}
	if l.resolves(key) {
		return false, nil
	}
	if l.journal != nil {
		if err := l.journal.RecordInvalid(ctx, key); err != nil {
			return false, fmt.Errorf("journal %s: %w", key, err)
		}
	}
	l.cache.AddInvalid(key, beatmap.NewInvalidRecord(key))
	return true, nil
}

// Invalidate forgets failed lookups so they will be fetched again.
func (l *Library) Invalidate(ctx context.Context, keys ...beatmap.Key) error {
	if l.journal != nil {
		if err := l.journal.RemoveInvalid(ctx, keys...); err != nil {
			return fmt.Errorf("invalidate: %w", err)
		}
	}
	l.cache.Invalidate(keys...)
	return nil
}

// Reset empties the journal and the in-memory cache. Snapshot files are not
// touched, so the next Open warms the cache from them again.
func (l *Library) Reset(ctx context.Context) error {
	if l.journal != nil {
		if err := l.journal.Reset(ctx); err != nil {
			return fmt.Errorf("reset journal: %w", err)
		}
	}
	l.cache.Clear()
	l.logger.Info("cache reset", logging.String(logging.FieldEventType, "cache_reset"))
	return nil
}

// List returns every valid record ordered by hash.
func (l *Library) List() []beatmap.ValidRecord {
	return l.cache.All()
}

// ListFailed returns every cached failed lookup.
func (l *Library) ListFailed() []beatmap.InvalidRecord {
	return l.cache.AllInvalid()
}

// Stats reports cache, snapshot, and journal sizes.
func (l *Library) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Cache:    l.cache.Stats(),
		Snapshot: l.loaded,
		Replayed: l.replayed,
	}
	if l.journal != nil {
		counts, err := l.journal.Counts(ctx)
		if err != nil {
			return Stats{}, err
		}
		stats.Journal = &counts
	}
	return stats, nil
}
