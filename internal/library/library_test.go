package library_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"beatcache/internal/beatmap"
	"beatcache/internal/beatmapcache"
	"beatcache/internal/config"
	"beatcache/internal/journal"
	"beatcache/internal/library"
	"beatcache/internal/testsupport"
)

func mustOpen(t *testing.T, cfg *config.Config) *library.Library {
	t.Helper()
	lib, err := library.Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("library.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = lib.Close() })
	return lib
}

func valid(hash, key, song string) beatmap.ValidRecord {
	return beatmap.NewValidRecord(beatmap.Metadata{Hash: hash, Key: key, SongName: song}, beatmap.HashKey(hash))
}

func TestOpenLoadsSnapshots(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSnapshots(map[int]string{
		1: "[" + testsupport.SnapshotRecord("aaaa", "x1", "/cdn/aaaa.jpg") + "]",
		2: "[" + testsupport.SnapshotRecord("bbbb", "x2", "") + "]",
	}))
	lib := mustOpen(t, cfg)

	rec, ok, err := lib.Lookup(beatmap.ExternalKey("x1"))
	if err != nil || !ok {
		t.Fatalf("Lookup failed: ok=%v err=%v", ok, err)
	}
	got, _ := beatmap.AsValid(rec)
	if got.Metadata.CoverURL != "https://cdn.beatsaver.com/aaaa.jpg" {
		t.Fatalf("unexpected cover %q", got.Metadata.CoverURL)
	}

	stats, err := lib.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Snapshot.Files != 2 || stats.Cache.Valid != 2 || stats.Journal == nil {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestOpenFailsOnMalformedSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSnapshots(map[int]string{1: `[{"key":"x"}]`}))
	_, err := library.Open(context.Background(), cfg, nil)
	if !errors.Is(err, beatmap.ErrMalformedSnapshot) {
		t.Fatalf("expected ErrMalformedSnapshot, got %v", err)
	}
}

func TestRecordSurvivesReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	lib, err := library.Open(ctx, cfg, nil, library.WithSessionID("first"))
	if err != nil {
		t.Fatalf("library.Open failed: %v", err)
	}
	failed := beatmap.ExternalKey("gone")
	err = lib.Record(ctx, []beatmapcache.BulkEntry{
		{Key: beatmap.HashKey("aaaa"), Record: valid("aaaa", "x1", "Song")},
		{Key: failed, Record: nil},
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := lib.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := mustOpen(t, cfg)
	if _, ok, _ := reopened.Lookup(beatmap.HashKey("AAAA")); !ok {
		t.Fatal("expected recorded record after reopen")
	}
	rec, ok, _ := reopened.Lookup(failed)
	if !ok || rec.Resolution().Valid {
		t.Fatalf("expected failed lookup after reopen, got %#v", rec)
	}
}

func TestRecordSkipsFailuresResolvedInBatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	lib := mustOpen(t, cfg)
	ctx := context.Background()

	err := lib.Record(ctx, []beatmapcache.BulkEntry{
		{Key: beatmap.ExternalKey("x1"), Record: beatmap.NewInvalidRecord(beatmap.ExternalKey("x1"))},
		{Key: beatmap.HashKey("aaaa"), Record: valid("aaaa", "x1", "Song")},
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	stats, err := lib.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Journal.Invalid != 0 || stats.Cache.Invalid != 0 {
		t.Fatalf("expected no failed lookups, got %+v / %+v", stats.Cache, stats.Journal)
	}
}

func TestMarkFailedAndInvalidate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	lib := mustOpen(t, cfg)
	ctx := context.Background()

	key := beatmap.HashKey("ffff")
	recorded, err := lib.MarkFailed(ctx, key)
	if err != nil || !recorded {
		t.Fatalf("MarkFailed: recorded=%v err=%v", recorded, err)
	}
	if failed := lib.ListFailed(); len(failed) != 1 || !failed[0].AttemptedSource.Equal(key) {
		t.Fatalf("unexpected failed lookups %#v", failed)
	}

	if err := lib.Invalidate(ctx, key); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, ok, _ := lib.Lookup(key); ok {
		t.Fatal("expected failed lookup to be forgotten")
	}
	stats, _ := lib.Stats(ctx)
	if stats.Journal.Invalid != 0 {
		t.Fatalf("expected journal row removed, got %+v", stats.Journal)
	}
}

func TestMarkFailedSkipsResolvedKey(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSnapshots(map[int]string{
		1: "[" + testsupport.SnapshotRecord("aaaa", "x1", "") + "]",
	}))
	lib := mustOpen(t, cfg)

	recorded, err := lib.MarkFailed(context.Background(), beatmap.ExternalKey("X1"))
	if err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if recorded {
		t.Fatal("expected resolved key to be skipped")
	}

	if _, err := lib.MarkFailed(context.Background(), beatmap.Key{Value: "x"}); !errors.Is(err, beatmapcache.ErrUnsupportedKeyKind) {
		t.Fatalf("expected ErrUnsupportedKeyKind, got %v", err)
	}
}

func TestResetClearsJournalAndCache(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()
	lib := mustOpen(t, cfg)

	if err := lib.Record(ctx, []beatmapcache.BulkEntry{{Key: beatmap.HashKey("aaaa"), Record: valid("aaaa", "x1", "")}}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := lib.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	stats, _ := lib.Stats(ctx)
	if stats.Cache.Valid != 0 || stats.Journal.Valid != 0 {
		t.Fatalf("expected empty stats, got %+v", stats)
	}
}

func TestOpenWithoutJournal(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutJournal())
	lib := mustOpen(t, cfg)
	ctx := context.Background()

	if err := lib.Record(ctx, []beatmapcache.BulkEntry{{Key: beatmap.HashKey("aaaa"), Record: valid("aaaa", "x1", "")}}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	stats, err := lib.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Journal != nil || stats.Cache.Valid != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if _, err := os.Stat(cfg.Paths.JournalPath); !os.IsNotExist(err) {
		t.Fatalf("journal should not be created, stat err=%v", err)
	}
}

func TestOpenFailsWhileJournalLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.MustOpenJournal(t, cfg)

	_, err := library.Open(context.Background(), cfg, nil)
	if !errors.Is(err, journal.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestSearchRanksAndLimits(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutJournal())
	lib := mustOpen(t, cfg)
	ctx := context.Background()

	err := lib.Record(ctx, []beatmapcache.BulkEntry{
		{Key: beatmap.HashKey("aaaa"), Record: valid("aaaa", "x1", "Reality Check Through The Skull")},
		{Key: beatmap.HashKey("bbbb"), Record: valid("bbbb", "x2", "Ghost")},
		{Key: beatmap.HashKey("cccc"), Record: valid("cccc", "x3", "Real or Lie")},
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	results := lib.Search("real", 0)
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}
	for _, r := range results {
		if r.Record.Metadata.Hash == "BBBB" {
			t.Fatal("Ghost should not match")
		}
	}

	if limited := lib.Search("", 2); len(limited) != 2 || limited[0].Record.Metadata.Hash != "AAAA" {
		t.Fatalf("unexpected blank search result %#v", limited)
	}
}

func TestParseImport(t *testing.T) {
	entries, err := library.ParseImport([]byte(`[
		{"key": "hash:abcd", "metadata": {"hash": "abcd", "key": "x1", "coverURL": "/cdn/a.jpg"}},
		{"key": "key:dead"}
	]`))
	if err != nil {
		t.Fatalf("ParseImport failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	first, ok := beatmap.AsValid(entries[0].Record)
	if !ok || !first.AttemptedSource.Equal(beatmap.HashKey("ABCD")) {
		t.Fatalf("unexpected first entry %#v", entries[0])
	}
	if entries[1].Record.Resolution().Valid || !entries[1].Key.Equal(beatmap.ExternalKey("DEAD")) {
		t.Fatalf("unexpected second entry %#v", entries[1])
	}

	if _, err := library.ParseImport([]byte(`[{"key": "bogus:1"}]`)); err == nil {
		t.Fatal("expected error for unknown key kind")
	}
	if _, err := library.ParseImport([]byte(`[{"key": "hash:a", "metadata": {"key": "x"}}]`)); err == nil {
		t.Fatal("expected error for metadata without hash")
	}
}

func TestReadImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "import.json")
	if err := os.WriteFile(path, []byte(`[{"key":"key:k1"}]`), 0o644); err != nil {
		t.Fatalf("write import: %v", err)
	}
	entries, err := library.ReadImportFile(path)
	if err != nil {
		t.Fatalf("ReadImportFile failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}
