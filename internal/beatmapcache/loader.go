package beatmapcache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"beatcache/internal/beatmap"
	"beatcache/internal/logging"
)

// DefaultSnapshotPrefix is the file name prefix of snapshot files.
const DefaultSnapshotPrefix = "beatsaverCache"

// LoadSummary reports what a load applied.
type LoadSummary struct {
	Files    int           `json:"files"`
	Records  int           `json:"records"`
	Duration time.Duration `json:"duration_ns"`
}

// Loader warms a Store from a directory of numbered snapshot files.
type Loader struct {
	store   Store
	dir     string
	prefix  string
	pattern *regexp.Regexp
	logger  *slog.Logger
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithFilePrefix overrides DefaultSnapshotPrefix.
func WithFilePrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// WithLoaderLogger sets the loader's logger.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logging.NewComponentLogger(logger, "snapshot")
	}
}

// NewLoader returns a Loader that reads <prefix><n>.json files from dir into store.
func NewLoader(store Store, dir string, opts ...LoaderOption) *Loader {
	l := &Loader{
		store:  store,
		dir:    dir,
		prefix: DefaultSnapshotPrefix,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.pattern = regexp.MustCompile(`^` + regexp.QuoteMeta(l.prefix) + `([0-9]+)\.json$`)
	return l
}

type snapshotFile struct {
	name  string
	index uint64
}

// Files lists matching snapshot files in load order: ascending numeric suffix,
// ties broken by name. A missing directory yields no files and no error.
func (l *Loader) Files() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot directory: %w", err)
	}

	files := make([]snapshotFile, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		m := l.pattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		index, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			// Suffix too long for uint64; order these after every parseable index.
			index = ^uint64(0)
		}
		files = append(files, snapshotFile{name: entry.Name(), index: index})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].index != files[j].index {
			return files[i].index < files[j].index
		}
		return files[i].name < files[j].name
	})

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, filepath.Join(l.dir, f.name))
	}
	return names, nil
}

// Load applies every snapshot file in order. Later records for the same hash
// overwrite earlier ones. A malformed file aborts the load; files applied
// before it stay applied.
func (l *Loader) Load() (LoadSummary, error) {
	start := time.Now()
	var summary LoadSummary

	files, err := l.Files()
	if err != nil {
		return summary, err
	}
	if len(files) == 0 {
		l.logger.Info("no snapshot files found",
			logging.String(logging.FieldEventType, "snapshot_none"),
			logging.String("dir", l.dir))
		return summary, nil
	}

	for _, path := range files {
		n, err := l.LoadFile(path)
		if err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
		summary.Files++
		summary.Records += n
	}

	summary.Duration = time.Since(start)
	l.logger.Info("snapshot load complete",
		logging.String(logging.FieldEventType, "snapshot_loaded"),
		logging.Int("files", summary.Files),
		logging.Int("records", summary.Records),
		logging.Duration("duration", summary.Duration))
	return summary, nil
}

// LoadFile applies a single snapshot file and returns the number of records
// inserted. Nothing is inserted when the file fails to parse.
func (l *Loader) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read snapshot %s: %w", filepath.Base(path), err)
	}

	metas, err := beatmap.ParseSnapshot(data)
	if err != nil {
		return 0, fmt.Errorf("parse snapshot %s: %w", filepath.Base(path), err)
	}

	for _, meta := range metas {
		putValid(l.store, meta.Hash, beatmap.NewValidRecord(meta, beatmap.HashKey(meta.Hash)))
	}

	l.logger.Debug("applied snapshot file",
		logging.String("file", filepath.Base(path)),
		logging.Int("records", len(metas)))
	return len(metas), nil
}
