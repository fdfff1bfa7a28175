package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"beatcache/internal/beatmap"
	"beatcache/internal/beatmapcache"
	"beatcache/internal/logging"
)

// ErrLocked is returned by Open when another process owns the journal.
var ErrLocked = errors.New("journal is locked by another process")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Journal is the SQLite-backed record of cache writes.
type Journal struct {
	db        *sql.DB
	path      string
	lock      *flock.Flock
	sessionID string
	logger    *slog.Logger
	now       func() time.Time
}

// Counts reports how many rows of each kind the journal holds.
type Counts struct {
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
}

// Option customizes Open.
type Option func(*Journal)

// WithLogger sets the journal logger.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Journal) {
		j.logger = logging.NewComponentLogger(logger, "journal")
	}
}

// WithSessionID tags rows written through this handle. Open generates one when unset.
func WithSessionID(id string) Option {
	return func(j *Journal) {
		if strings.TrimSpace(id) != "" {
			j.sessionID = id
		}
	}
}

// Open takes the journal lock, opens the database at path, and initializes
// the schema.
func Open(ctx context.Context, path string, opts ...Option) (*Journal, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("open journal: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	j := &Journal{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.sessionID == "" {
		j.sessionID = uuid.NewString()
	}

	ok, err := j.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire journal lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, j.lock.Path())
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = j.lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	j.db = db

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = j.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if err := j.initSchema(ctx); err != nil {
		_ = j.Close()
		return nil, err
	}

	j.logger.Debug("journal opened",
		logging.String("path", path),
		logging.String(logging.FieldSessionID, j.sessionID))
	return j, nil
}

// Path returns the database path.
func (j *Journal) Path() string {
	return j.path
}

// SessionID returns the session tag applied to new rows.
func (j *Journal) SessionID() string {
	return j.sessionID
}

// Close closes the database and releases the lock.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	var errs []error
	if j.db != nil {
		errs = append(errs, j.db.Close())
		j.db = nil
	}
	if j.lock != nil {
		errs = append(errs, j.lock.Unlock())
	}
	return errors.Join(errs...)
}

// RecordValid stores rec and removes failed lookups it answers.
func (j *Journal) RecordValid(ctx context.Context, rec beatmap.ValidRecord) error {
	ctx = ensureContext(ctx)
	meta := beatmap.NormalizeMetadata(rec.Metadata)
	if meta.Hash == "" {
		return errors.New("record valid: metadata hash is required")
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata %s: %w", meta.Hash, err)
	}
	source := rec.AttemptedSource
	if !source.Valid() {
		source = beatmap.HashKey(meta.Hash)
	}
	externalKey := beatmap.Normalize(meta.Key)

	stale := []string{beatmap.HashKey(meta.Hash).Encode()}
	if externalKey != "" {
		stale = append(stale, beatmap.ExternalKey(externalKey).Encode())
	}

	return j.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO valid_records (hash, external_key, source, metadata, session_id, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(hash) DO UPDATE SET
				external_key = excluded.external_key,
				source = excluded.source,
				metadata = excluded.metadata,
				session_id = excluded.session_id,
				recorded_at = excluded.recorded_at`,
			meta.Hash, externalKey, source.Encode(), string(payload), j.sessionID, j.now().UnixNano())
		if err != nil {
			return fmt.Errorf("insert valid record %s: %w", meta.Hash, err)
		}
		for _, encoded := range stale {
			if _, err := tx.ExecContext(ctx, "DELETE FROM invalid_records WHERE encoded_key = ?", encoded); err != nil {
				return fmt.Errorf("delete invalid record %s: %w", encoded, err)
			}
		}
		return nil
	})
}

// RecordInvalid stores a failed lookup of key.
func (j *Journal) RecordInvalid(ctx context.Context, key beatmap.Key) error {
	if !key.Valid() {
		return fmt.Errorf("record invalid: %w", beatmapcache.ErrUnsupportedKeyKind)
	}
	_, err := j.execWithRetry(ctx, `
		INSERT INTO invalid_records (encoded_key, session_id, recorded_at)
		VALUES (?, ?, ?)
		ON CONFLICT(encoded_key) DO UPDATE SET
			session_id = excluded.session_id,
			recorded_at = excluded.recorded_at`,
		key.Encode(), j.sessionID, j.now().UnixNano())
	if err != nil {
		return fmt.Errorf("insert invalid record %s: %w", key, err)
	}
	return nil
}

// RemoveInvalid deletes failed lookups. Keys that were never recorded are ignored.
func (j *Journal) RemoveInvalid(ctx context.Context, keys ...beatmap.Key) error {
	if len(keys) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)
	return j.withTx(ctx, func(tx *sql.Tx) error {
		for _, key := range keys {
			if _, err := tx.ExecContext(ctx, "DELETE FROM invalid_records WHERE encoded_key = ?", key.Encode()); err != nil {
				return fmt.Errorf("delete invalid record %s: %w", key, err)
			}
		}
		return nil
	})
}

// Reset deletes every row.
func (j *Journal) Reset(ctx context.Context) error {
	ctx = ensureContext(ctx)
	return j.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"valid_records", "invalid_records"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// Counts returns the number of stored rows.
func (j *Journal) Counts(ctx context.Context) (Counts, error) {
	ctx = ensureContext(ctx)
	var counts Counts
	err := j.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(1) FROM valid_records),
			(SELECT COUNT(1) FROM invalid_records)`,
	).Scan(&counts.Valid, &counts.Invalid)
	if err != nil {
		return Counts{}, fmt.Errorf("count journal rows: %w", err)
	}
	return counts, nil
}

// Entries returns every row as a bulk entry: valid rows first, then failed
// lookups, each in the order they were recorded.
func (j *Journal) Entries(ctx context.Context) ([]beatmapcache.BulkEntry, error) {
	ctx = ensureContext(ctx)
	valid, err := j.validEntries(ctx)
	if err != nil {
		return nil, err
	}
	invalid, err := j.invalidEntries(ctx)
	if err != nil {
		return nil, err
	}
	return append(valid, invalid...), nil
}

// BulkUpserter receives replayed entries.
type BulkUpserter interface {
	BulkUpsert([]beatmapcache.BulkEntry)
}

// Replay applies every journal row to cache and returns the number applied.
func (j *Journal) Replay(ctx context.Context, cache BulkUpserter) (int, error) {
	entries, err := j.Entries(ctx)
	if err != nil {
		return 0, err
	}
	cache.BulkUpsert(entries)
	j.logger.Info("journal replayed",
		logging.String(logging.FieldEventType, "journal_replayed"),
		logging.Int("entries", len(entries)))
	return len(entries), nil
}

func (j *Journal) validEntries(ctx context.Context) ([]beatmapcache.BulkEntry, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT hash, source, metadata FROM valid_records ORDER BY recorded_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("query valid records: %w", err)
	}
	defer rows.Close()

	var entries []beatmapcache.BulkEntry
	for rows.Next() {
		var hash, source, payload string
		if err := rows.Scan(&hash, &source, &payload); err != nil {
			return nil, fmt.Errorf("scan valid record: %w", err)
		}
		var meta beatmap.Metadata
		if err := json.Unmarshal([]byte(payload), &meta); err != nil {
			return nil, fmt.Errorf("decode metadata %s: %w", hash, err)
		}
		key, err := beatmap.ParseKey(source)
		if err != nil {
			key = beatmap.HashKey(hash)
		}
		entries = append(entries, beatmapcache.BulkEntry{
			Key:    key,
			Record: beatmap.NewValidRecord(meta, key),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate valid records: %w", err)
	}
	return entries, nil
}

func (j *Journal) invalidEntries(ctx context.Context) ([]beatmapcache.BulkEntry, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT encoded_key FROM invalid_records ORDER BY recorded_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("query invalid records: %w", err)
	}
	defer rows.Close()

	var entries []beatmapcache.BulkEntry
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, fmt.Errorf("scan invalid record: %w", err)
		}
		key, err := beatmap.ParseKey(encoded)
		if err != nil {
			logging.WarnWithContext(j.logger, "skipping unreadable journal key",
				"journal_key_unreadable",
				logging.String(logging.FieldCacheKey, encoded),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run beatcache clear to reset the journal"),
				logging.String(logging.FieldImpact, "the failed lookup will be retried"))
			continue
		}
		entries = append(entries, beatmapcache.BulkEntry{
			Key:    key,
			Record: beatmap.NewInvalidRecord(key),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invalid records: %w", err)
	}
	return entries, nil
}

func (j *Journal) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return retryOnBusy(ctx, func() error {
		tx, err := j.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func (j *Journal) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = j.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
