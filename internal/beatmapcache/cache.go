package beatmapcache

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"beatcache/internal/beatmap"
	"beatcache/internal/logging"
)

// ErrUnsupportedKeyKind is returned by Get for a key whose kind the cache does
// not dispatch on. It signals a programming error, not missing data.
var ErrUnsupportedKeyKind = errors.New("unsupported key kind")

// BulkEntry pairs a lookup key with its fetch result. Key is provenance: valid
// records are stored by their own hash, invalid ones under Key.
type BulkEntry struct {
	Key    beatmap.Key
	Record beatmap.Record
}

// Stats summarizes cache contents.
type Stats struct {
	Counts
}

// Cache is the lookup facade over a Store.
type Cache struct {
	store  Store
	logger *slog.Logger
}

// Option customizes a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for debug tracing of cache mutations.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logging.NewComponentLogger(logger, "beatmapcache")
	}
}

// New returns a Cache backed by store. A nil store gets a fresh MemoryStore.
func New(store Store, opts ...Option) *Cache {
	if store == nil {
		store = NewMemoryStore()
	}
	c := &Cache{store: store, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the backing store.
func (c *Cache) Store() Store {
	return c.store
}

// GetByHash returns the valid record for hash, falling back to a cached failed
// lookup of the same hash. The hash is matched case-insensitively.
func (c *Cache) GetByHash(hash string) (beatmap.Record, bool) {
	hash = beatmap.Normalize(hash)
	if rec, ok := c.store.Valid(hash); ok {
		return rec, true
	}
	if rec, ok := c.store.Invalid(beatmap.HashKey(hash).Encode()); ok {
		return rec, true
	}
	return nil, false
}

// GetByExternalKey resolves key through the secondary index and returns the
// record for that hash. Without an index hit it falls back to a cached failed
// lookup of the external key.
func (c *Cache) GetByExternalKey(key string) (beatmap.Record, bool) {
	key = beatmap.Normalize(key)
	if hash, ok := c.store.HashForKey(key); ok {
		if rec, ok := c.GetByHash(hash); ok {
			return rec, true
		}
	}
	if rec, ok := c.store.Invalid(beatmap.ExternalKey(key).Encode()); ok {
		return rec, true
	}
	return nil, false
}

// Get dispatches on the key's kind. It fails only with ErrUnsupportedKeyKind.
func (c *Cache) Get(key beatmap.Key) (beatmap.Record, bool, error) {
	switch key.Kind {
	case beatmap.KindHash:
		rec, ok := c.GetByHash(key.Value)
		return rec, ok, nil
	case beatmap.KindExternalKey:
		rec, ok := c.GetByExternalKey(key.Value)
		return rec, ok, nil
	default:
		return nil, false, fmt.Errorf("get %s: %w", key.Kind, ErrUnsupportedKeyKind)
	}
}

// Exists reports whether a lookup of key was already attempted, successfully
// or not. Keys of an unsupported kind never exist.
func (c *Cache) Exists(key beatmap.Key) bool {
	_, ok, err := c.Get(key)
	return err == nil && ok
}

// Add stores rec under an explicit hash.
func (c *Cache) Add(hash string, rec beatmap.ValidRecord) {
	stored := putValid(c.store, hash, rec)
	c.logger.Debug("cached beatmap",
		logging.String(logging.FieldHash, stored),
		logging.String(logging.FieldCacheKey, rec.AttemptedSource.Encode()))
}

// Upsert stores a valid record under its metadata hash. Invalid records and
// records without a hash are ignored.
func (c *Cache) Upsert(rec beatmap.Record) {
	valid, ok := beatmap.AsValid(rec)
	if !ok || beatmap.Normalize(valid.Metadata.Hash) == "" {
		return
	}
	c.Add(valid.Metadata.Hash, valid)
}

// AddInvalid caches a failed lookup of key. It is skipped when key already
// resolves to a valid record.
func (c *Cache) AddInvalid(key beatmap.Key, rec beatmap.InvalidRecord) {
	if !key.Valid() {
		return
	}
	if existing, ok, _ := c.Get(key); ok && existing.Resolution().Valid {
		c.logger.Debug("skipped failed lookup for resolved key", logging.String(logging.FieldCacheKey, key.Encode()))
		return
	}
	c.store.PutInvalid(key, rec)
}

// BulkUpsert applies a batch fetch in order. Entries carrying metadata are
// stored valid by their own hash; every other entry is stored as a failed
// lookup of its Key.
func (c *Cache) BulkUpsert(entries []BulkEntry) {
	var valid, invalid int
	for _, entry := range entries {
		if rec, ok := beatmap.AsValid(entry.Record); ok && beatmap.Normalize(rec.Metadata.Hash) != "" {
			putValid(c.store, rec.Metadata.Hash, rec)
			valid++
			continue
		}
		rec := beatmap.NewInvalidRecord(entry.Key)
		if inv, ok := beatmap.AsInvalid(entry.Record); ok && inv.AttemptedSource.Valid() {
			rec = inv
		}
		c.AddInvalid(entry.Key, rec)
		invalid++
	}
	c.logger.Debug("applied bulk upsert",
		logging.Int("valid", valid),
		logging.Int("invalid", invalid))
}

// Invalidate forgets failed lookups so the keys will be fetched again. Valid
// records are never evicted; only Clear removes them.
func (c *Cache) Invalidate(keys ...beatmap.Key) {
	c.store.RemoveInvalid(keys...)
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.store.Clear()
	c.logger.Debug("cleared beatmap cache")
}

// All returns every valid record ordered by hash.
func (c *Cache) All() []beatmap.ValidRecord {
	records := c.store.ValidRecords()
	out := make([]beatmap.ValidRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata.Hash < out[j].Metadata.Hash
	})
	return out
}

// AllInvalid returns every cached failed lookup ordered by encoded key.
func (c *Cache) AllInvalid() []beatmap.InvalidRecord {
	records := c.store.InvalidRecords()
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]beatmap.InvalidRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, records[k])
	}
	return out
}

// Stats reports the size of each mapping.
func (c *Cache) Stats() Stats {
	return Stats{Counts: c.store.Counts()}
}
